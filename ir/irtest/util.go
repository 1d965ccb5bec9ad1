// Package irtest loads the reference header dump under testdata for tests
// of packages that consume an [ir.Module].
package irtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/slang-go/slang/clangast"
	"github.com/slang-go/slang/ir"
)

// Dir returns the directory holding foo.h and its dumps.
func Dir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata")
}

// Source serves the dumps of foo.h as a [clangast.Source].
type Source struct {
	Root   *clangast.Node
	Macros []clangast.Macro
}

// Canned returns s as a [clangast.Source].
func (s *Source) Canned() clangast.Source {
	return canned{s}
}

type canned struct{ s *Source }

func (c canned) AST(context.Context) (*clangast.Node, error) { return c.s.Root, nil }

func (c canned) Macros(context.Context) ([]clangast.Macro, error) { return c.s.Macros, nil }

// LoadSource decodes testdata/foo.ast.json and testdata/foo.macros.txt.
func LoadSource(t testing.TB) *Source {
	t.Helper()

	astFile, err := os.Open(filepath.Join(Dir(), "foo.ast.json"))
	if err != nil {
		t.Fatal(err)
	}
	defer astFile.Close()
	root, err := clangast.Decode(astFile)
	if err != nil {
		t.Fatal(err)
	}

	macroFile, err := os.Open(filepath.Join(Dir(), "foo.macros.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer macroFile.Close()
	macros, err := clangast.ParseMacros(macroFile)
	if err != nil {
		t.Fatal(err)
	}
	return &Source{Root: root, Macros: macros}
}

// BuildModule builds the module of foo.h for 64-bit Linux.
func BuildModule(t testing.TB) *ir.Module {
	t.Helper()

	src := LoadSource(t)
	mod, err := ir.Build(src.Root, src.Macros, ir.Options{DataModel: ir.DataModelFor("linux")})
	if err != nil {
		t.Fatal(err)
	}
	return mod
}
