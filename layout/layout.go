// Package layout emits compile-time checks that hand-written Go types keep
// the size and alignment of the native types they mirror.
//
// The checks are constant index expressions: a size difference either
// overflows uintptr or indexes past a one element array, so a mismatch
// fails go build and go vet instead of corrupting memory at runtime.
package layout

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/slang-go/slang/binder/binderio"
	"github.com/slang-go/slang/config"
)

// Pair is a Go type and the generated type it must match. Both are Go
// type expressions as seen from the package the checks are emitted into,
// e.g. "UUID" and "sys.SlangUUID".
type Pair struct {
	Host   string
	Native string
}

// PairsFromConfig returns the pairs listed in the [layout] section.
func PairsFromConfig(c *config.Layout) []Pair {
	if c == nil {
		return nil
	}
	res := make([]Pair, len(c.Pairs))
	for i, p := range c.Pairs {
		res[i] = Pair{Host: p.Host, Native: p.Native}
	}
	return res
}

// Emit writes a Go file of package pkg asserting that every pair has the
// same size and alignment.
func Emit(cb *binderio.CodeBuilder, pkg string, imports []string, pairs []Pair) error {
	if !token.IsIdentifier(pkg) {
		return fmt.Errorf("invalid package name %q", pkg)
	}
	for _, p := range pairs {
		if strings.TrimSpace(p.Host) == "" || strings.TrimSpace(p.Native) == "" {
			return fmt.Errorf("incomplete pair %+v", p)
		}
	}

	cb.Linef(`// Code generated by slanggen. DO NOT EDIT.`)
	cb.Linef(``)
	cb.Linef(`package %v`, pkg)
	cb.Linef(``)
	cb.Linef(`import (`)
	cb.Indent++
	cb.Linef(`"unsafe"`)
	if len(imports) > 0 {
		cb.Linef(``)
		for _, imp := range imports {
			cb.Linef(`%q`, imp)
		}
	}
	cb.Indent--
	cb.Linef(`)`)
	cb.Linef(``)
	cb.Linef(`// An invalid array index or an overflowing constant below means a`)
	cb.Linef(`// type no longer matches the native type it mirrors.`)
	cb.Linef(`func _() {`)
	cb.Indent++
	cb.Linef(`var x [1]struct{}`)
	for _, p := range pairs {
		for _, fn := range []string{"Sizeof", "Alignof"} {
			cb.Linef(`_ = x[unsafe.%[1]v(*new(%[2]v))-unsafe.%[1]v(*new(%[3]v))]`, fn, p.Host, p.Native)
		}
	}
	cb.Indent--
	cb.Linef(`}`)
	return nil
}

// Generate returns the formatted assertion file.
func Generate(pkg string, imports []string, pairs []Pair) ([]byte, error) {
	var cb binderio.CodeBuilder
	if err := Emit(&cb, pkg, imports, pairs); err != nil {
		return nil, err
	}
	code, err := cb.FmtString()
	if err != nil {
		return nil, err
	}
	return []byte(code), nil
}
