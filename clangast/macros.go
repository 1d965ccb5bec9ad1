package clangast

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Macro is an object-like macro definition.
type Macro struct {
	Name string
	Body string
}

// ParseMacros reads the output of "clang -E -dM". Function-like macros are
// skipped. The result is sorted by name.
func ParseMacros(r io.Reader) ([]Macro, error) {
	var res []Macro
	seen := map[string]int{}
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<20)
	for lineNum := 1; sc.Scan(); lineNum++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rest, ok := strings.CutPrefix(line, "#define ")
		if !ok {
			return nil, fmt.Errorf("macro dump: line %v: expected #define, got %q", lineNum, line)
		}
		end := strings.IndexFunc(rest, func(r rune) bool { return r == ' ' || r == '\t' || r == '(' })
		if end == -1 {
			end = len(rest)
		}
		name := rest[:end]
		if end < len(rest) && rest[end] == '(' {
			continue
		}
		m := Macro{Name: name, Body: strings.TrimSpace(rest[end:])}
		if i, ok := seen[name]; ok {
			res[i] = m
			continue
		}
		seen[name] = len(res)
		res = append(res, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("macro dump: %w", err)
	}
	slices.SortFunc(res, func(a, b Macro) int { return strings.Compare(a.Name, b.Name) })
	return res, nil
}
