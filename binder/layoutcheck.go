package binder

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"

	"github.com/hashicorp/go-multierror"
)

type recordLayout struct {
	// Go and native name.
	Name   string
	Native string
	// Native size and alignment.
	Size  int64
	Align int64
}

type unsafeImporter struct{}

func (unsafeImporter) Import(path string) (*types.Package, error) {
	if path == "unsafe" {
		return types.Unsafe, nil
	}
	return nil, fmt.Errorf("unexpected import %q", path)
}

// goSizes are the sizes of the 64-bit targets bindings are generated for.
var goSizes = types.SizesFor("gc", "amd64")

// checkLayouts type checks generated code and reports every record whose
// Go size or alignment differs from its native layout. References into
// the cgo package are not checked.
func checkLayouts(code []byte, layouts []recordLayout) error {
	if len(layouts) == 0 {
		return nil
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "zbindings.go", code, 0)
	if err != nil {
		return fmt.Errorf("check layouts: %w", err)
	}
	conf := types.Config{
		FakeImportC: true,
		Importer:    unsafeImporter{},
		Sizes:       goSizes,
	}
	pkg, err := conf.Check(file.Name.Name, fset, []*ast.File{file}, nil)
	if err != nil {
		return fmt.Errorf("check layouts: %w", err)
	}

	var errs error
	for _, l := range layouts {
		obj, ok := pkg.Scope().Lookup(l.Name).(*types.TypeName)
		if !ok {
			return fmt.Errorf("check layouts: type %v not found", l.Name)
		}
		size, align := goSizes.Sizeof(obj.Type()), goSizes.Alignof(obj.Type())
		if size != l.Size || align != l.Align {
			errs = multierror.Append(errs, fmt.Errorf(
				"type %v: layout differs from native %v: Go size %v align %v, native size %v align %v",
				l.Name, l.Native, size, align, l.Size, l.Align))
		}
	}
	return errs
}
