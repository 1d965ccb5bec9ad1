// Package digraphutils provides utilities for directed graphs, represented as
// a mapping from node keys to edges.
package digraphutils

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/slang-go/slang/textutils"
)

// Reachable returns every node reachable from roots, roots included.
func Reachable[K comparable](roots []K, edges func(K) []K) map[K]struct{} {
	reachable := map[K]struct{}{}
	nodes := slices.Clone(roots)
	var newNodes []K
	for len(nodes) > 0 {
		for _, node := range nodes {
			if _, ok := reachable[node]; ok {
				continue
			}
			reachable[node] = struct{}{}
			newNodes = append(newNodes, edges(node)...)
		}
		nodes, newNodes = newNodes, nodes[:0]
	}
	return reachable
}

// Sorted returns the keys of set in ascending order.
func Sorted[K cmp.Ordered](set map[K]struct{}) []K {
	res := make([]K, 0, len(set))
	for k := range set {
		res = append(res, k)
	}
	slices.Sort(res)
	return res
}

// Label returns DOT node attributes labelling a node with s.
func Label(s string) string {
	return "[label=" + strconv.Quote(s) + "]"
}

// DOTCode generates graphviz DOT code to visualize a graph.
// nodes represents all nodes included in the graph; edges to other nodes
// are left out.
// name is the name of the digraph, prelude DOT code inserted
// in the beginning, and nodeAttrs should return a string representing
// a node's attributes (in []).
func DOTCode[K comparable](nodes []K, edges func(K) []K, name, prelude string, nodeAttrs func(K) string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "digraph %v {\n", strconv.Quote(name))
	if prelude = strings.TrimSpace(prelude); prelude != "" {
		b.WriteString(textutils.IndentString(prelude, "  ", 1))
		b.WriteByte('\n')
	}
	nodeIDs := map[K]int{}
	for id, key := range nodes {
		fmt.Fprintf(&b, "  %v", id)
		if attrs := nodeAttrs(key); attrs != "" {
			b.WriteByte(' ')
			b.WriteString(attrs)
		}
		b.WriteByte('\n')
		nodeIDs[key] = id
	}
	for id, key := range nodes {
		var ids []int
		for _, k := range edges(key) {
			if to, ok := nodeIDs[k]; ok && !slices.Contains(ids, to) {
				ids = append(ids, to)
			}
		}
		if len(ids) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %v -> {", id)
		for i, to := range ids {
			if i != 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%v", to)
		}
		fmt.Fprintf(&b, "}\n")
	}
	fmt.Fprintf(&b, "}\n")
	return b.Bytes()
}
