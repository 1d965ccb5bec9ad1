package binder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/ir"
)

// Converter turns an expression between its Go type and the C type used
// in the cgo prototype.
type Converter struct {
	Name    string
	TryConv func(deps *Dependencies, cType, goType, expr string) (string, bool)
}

func ConvGoToC(deps *Dependencies, cType, goType, expr string) (string, bool) {
	for _, conv := range ConvListGoToC {
		if res, ok := conv.TryConv(deps, cType, goType, expr); ok {
			return res, true
		}
	}
	return "", false
}

func ConvCToGo(deps *Dependencies, cType, goType, expr string) (string, bool) {
	for _, conv := range ConvListCToGo {
		if res, ok := conv.TryConv(deps, cType, goType, expr); ok {
			return res, true
		}
	}
	return "", false
}

// If conversion lists are declared directly, the compiler falsely complains of an initialization cycle.
var ConvListGoToC []Converter
var ConvListCToGo []Converter

func init() {
	ConvListGoToC = convListGoToC
	ConvListCToGo = convListCToGo
}

var convListGoToC = []Converter{
	{
		Name: "pointer",
		TryConv: func(deps *Dependencies, cType, goType, expr string) (string, bool) {
			if cType != "void*" {
				return "", false
			}
			deps.MarkImport("unsafe")
			return "unsafe.Pointer(" + expr + ")", true
		},
	},
	{
		Name: "scalar",
		TryConv: func(deps *Dependencies, cType, goType, expr string) (string, bool) {
			if cType == "void" {
				return "", false
			}
			return "C." + cType + "(" + expr + ")", true
		},
	},
}

var convListCToGo = []Converter{
	{
		Name: "unsafe-pointer",
		TryConv: func(deps *Dependencies, cType, goType, expr string) (string, bool) {
			if cType != "void*" || goType != "unsafe.Pointer" {
				return "", false
			}
			return expr, true
		},
	},
	{
		Name: "pointer",
		TryConv: func(deps *Dependencies, cType, goType, expr string) (string, bool) {
			if cType != "void*" {
				return "", false
			}
			return "(" + goType + ")(" + expr + ")", true
		},
	},
	{
		Name: "scalar",
		TryConv: func(deps *Dependencies, cType, goType, expr string) (string, bool) {
			if cType == "void" || strings.HasPrefix(goType, "*") {
				return "", false
			}
			return goType + "(" + expr + ")", true
		},
	},
}

// GoType returns the Go spelling of t. References to types that aren't
// emitted are lowered to what they stand for: typedefs to their
// underlying type, enums to their integer type, pointers to records to
// unsafe.Pointer.
func GoType(deps *Dependencies, ctx *Context, t *ir.Type) (string, error) {
	return goType(deps, ctx, t, false)
}

// goType returns "" for the pointee of an opaque pointer if indirect.
func goType(deps *Dependencies, ctx *Context, t *ir.Type, indirect bool) (string, error) {
	switch t.Kind {
	case ir.Void:
		return "", nil
	case ir.Bool, ir.Int, ir.Uint, ir.Float:
		return t.String(), nil
	case ir.Pointer:
		if isFuncPtr(ctx.Module, t) {
			return "uintptr", nil
		}
		elem, err := goType(deps, ctx, t.Elem, true)
		if err != nil {
			return "", err
		}
		if elem == "" {
			deps.MarkImport("unsafe")
			return "unsafe.Pointer", nil
		}
		return "*" + elem, nil
	case ir.Array:
		elem, err := goType(deps, ctx, t.Elem, false)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[%v]%v", t.Len, elem), nil
	case ir.Func:
		return "", fmt.Errorf("function type %v outside of a pointer", t)
	case ir.Named:
		decl := ctx.Module.LookupType(t.Name)
		if decl == nil {
			if indirect {
				deps.MarkFiltered(t.Name)
				return "", nil
			}
			return "", fmt.Errorf("unknown type %v", t.Name)
		}
		if ctx.EmitsType(t.Name) {
			if err := declInfo(decl).Unsupported; err != nil {
				return "", fmt.Errorf("%v: %w", t.Name, err)
			}
			return ctx.GoName(config.KindType, t.Name), nil
		}
		deps.MarkFiltered(t.Name)
		switch d := decl.(type) {
		case *ir.Typedef:
			if d.Unsupported != nil {
				return "", fmt.Errorf("%v: %w", t.Name, d.Unsupported)
			}
			return goType(deps, ctx, d.Type, indirect)
		case *ir.Enum:
			return goType(deps, ctx, d.Underlying, indirect)
		case *ir.Record:
			if indirect {
				return "", nil
			}
			return "", fmt.Errorf("type %v is not allow-listed but used by value", t.Name)
		}
	}
	return "", fmt.Errorf("unsupported type %v", t)
}

func isFuncPtr(m *ir.Module, t *ir.Type) bool {
	if t.Kind != ir.Pointer {
		return false
	}
	elem := m.Resolve(t.Elem)
	return elem != nil && elem.Kind == ir.Func
}

// CType returns the C type standing for t in a cgo prototype: fixed width
// integers, bool, float, double, void* for data pointers and uintptr_t for
// function pointers.
func CType(m *ir.Module, t *ir.Type) (string, error) {
	if a := m.Arithmetic(t); a != nil {
		switch a.Kind {
		case ir.Bool:
			return "bool", nil
		case ir.Int:
			return fmt.Sprintf("int%v_t", a.Size*8), nil
		case ir.Uint:
			return fmt.Sprintf("uint%v_t", a.Size*8), nil
		case ir.Float:
			switch a.Size {
			case 4:
				return "float", nil
			case 8:
				return "double", nil
			}
		}
		return "", fmt.Errorf("unsupported arithmetic type %v", a)
	}
	r := m.Resolve(t)
	switch r.Kind {
	case ir.Void:
		return "void", nil
	case ir.Pointer:
		if isFuncPtr(m, r) {
			return "uintptr_t", nil
		}
		return "void*", nil
	case ir.Array:
		return "", errors.New("arrays can't be passed by value")
	case ir.Named:
		return "", fmt.Errorf("%v passed by value", r.Name)
	}
	return "", fmt.Errorf("unsupported type %v", t)
}

func declInfo(decl any) *ir.Info {
	switch d := decl.(type) {
	case *ir.Typedef:
		return &d.Info
	case *ir.Enum:
		return &d.Info
	case *ir.Record:
		return &d.Info
	case *ir.Function:
		return &d.Info
	case *ir.Const:
		return &d.Info
	}
	panic(fmt.Sprintf("unexpected declaration %T", decl))
}
