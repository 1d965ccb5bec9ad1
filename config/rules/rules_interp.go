// Package rules applies the allow-list and naming rules of a [config.Config]
// to the symbols found in a native header.
package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/iancoleman/strcase"
	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/textutils"
)

type SymbolSpec struct {
	// Native name, with C++ namespaces flattened ("slang_IBlob").
	Name string
	// One of config.KindFunction, config.KindType, config.KindVar.
	Kind string
	// Header the symbol was declared in, as reported by clang.
	// Empty for macros.
	File string
}

func (s SymbolSpec) Symbol() Symbol {
	return Symbol{Name: s.Name, Kind: s.Kind}
}

type Symbol struct {
	Name string
	Kind string
}

func (s Symbol) String() string {
	return s.Kind + " " + s.Name
}

// Result holds the outcome of running the rules over a symbol set.
type Result struct {
	// Native symbol to Go name. Contains every symbol, included or not.
	Names map[Symbol]string
	// Symbols selected by the allow-list.
	Included map[Symbol]bool
}

// Name returns the Go name for sym, or sym.Name if sym is unknown.
func (r *Result) Name(sym Symbol) string {
	if n, ok := r.Names[sym]; ok {
		return n
	}
	return sym.Name
}

// IsIncluded reports whether sym passed the allow-list.
func (r *Result) IsIncluded(sym Symbol) bool {
	return r.Included[sym]
}

// matchFull returns the submatches of re on s if re matches all of s.
func matchFull(re *regexp.Regexp, s string) ([][]byte, bool) {
	m := re.FindSubmatch([]byte(s))
	if len(m) == 0 || len(m[0]) != len(s) {
		return nil, false
	}
	return m[1:], true
}

func toCasing(casing, name string) (string, error) {
	switch casing {
	case "go":
		return textutils.ExportedName(name), nil
	case "kebab":
		return strcase.ToKebab(name), nil
	case "camel":
		return strcase.ToCamel(name), nil
	case "lower-camel":
		return strcase.ToLowerCamel(name), nil
	case "snake":
		return strcase.ToSnake(name), nil
	case "screaming-snake":
		return strcase.ToScreamingSnake(name), nil
	default:
		return "", fmt.Errorf("action: unknown casing: %v", casing)
	}
}

// Execute runs the rules of c over spec in order.
//
// A symbol is included only if the last matching rule with an include
// action includes it; symbols no rule mentions are excluded. Rename and
// casing actions apply to the current (possibly already renamed) name, and
// name selectors match against it as well.
//
// It is an error for two included symbols to end up with the same Go name.
func Execute(c *config.Config, spec []SymbolSpec) (res *Result, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("execute rules: %w", err)
		}
	}()

	res = &Result{
		Names:    make(map[Symbol]string, len(spec)),
		Included: make(map[Symbol]bool, len(spec)),
	}
	for _, sym := range spec {
		if _, ok := res.Names[sym.Symbol()]; ok {
			return nil, fmt.Errorf("duplicate symbol: %v", sym.Symbol())
		}
		res.Names[sym.Symbol()] = sym.Name
	}

	// Backrefs represents the '\1', '\2' etc.,
	// which are created by making a capture
	// group in the file and/or name selector.
	var backrefs [][]byte

	for _, rule := range c.Rules {
		for _, sym := range spec {
			backrefs = backrefs[:0]
			if rule.Select.Kind != "" && rule.Select.Kind != sym.Kind {
				continue
			}
			if rule.Select.File != nil {
				m, ok := matchFull(rule.Select.File, sym.File)
				if !ok {
					continue
				}
				backrefs = append(backrefs, m...)
			}
			if rule.Select.Name != nil {
				m, ok := matchFull(rule.Select.Name, res.Names[sym.Symbol()])
				if !ok {
					continue
				}
				backrefs = append(backrefs, m...)
			}

			if rule.Actions.Rename != "" {
				oldnew := [2 * 9]string{
					`\1`, "",
					`\2`, "",
					`\3`, "",
					`\4`, "",
					`\5`, "",
					`\6`, "",
					`\7`, "",
					`\8`, "",
					`\9`, "",
				}
				for i := range min(len(backrefs), 9) {
					oldnew[2*i+1] = string(backrefs[i])
				}
				res.Names[sym.Symbol()] = strings.NewReplacer(oldnew[:]...).
					Replace(rule.Actions.Rename)
			}

			if rule.Actions.Include != nil {
				res.Included[sym.Symbol()] = *rule.Actions.Include
			}

			if rule.Actions.ToCasing != "" {
				newName, err := toCasing(rule.Actions.ToCasing, res.Names[sym.Symbol()])
				if err != nil {
					return nil, err
				}
				res.Names[sym.Symbol()] = newName
			}
		}
	}

	for sym, incl := range res.Included {
		if !incl {
			delete(res.Included, sym)
		}
	}

	if err := checkConflicts(res); err != nil {
		return nil, err
	}
	return res, nil
}

// checkConflicts reports every Go name shared by more than one included
// symbol. Types, functions and constants share one Go namespace.
func checkConflicts(res *Result) error {
	byName := map[string][]Symbol{}
	for sym := range res.Included {
		n := res.Names[sym]
		byName[n] = append(byName[n], sym)
	}
	var errs *multierror.Error
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		syms := byName[n]
		if len(syms) < 2 {
			continue
		}
		slices.SortFunc(syms, func(a, b Symbol) int { return strings.Compare(a.String(), b.String()) })
		var quoted []string
		for _, s := range syms {
			quoted = append(quoted, strconv.Quote(s.Name))
		}
		errs = multierror.Append(errs, fmt.Errorf("%v all map to Go name %v", strings.Join(quoted, ", "), strconv.Quote(n)))
	}
	return errs.ErrorOrNil()
}
