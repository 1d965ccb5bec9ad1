// Package ir is the language neutral model of a native header: the
// records, enums, typedefs, functions and constants clang found, with C++
// namespaces flattened into native names ("slang::IBlob" becomes
// "slang_IBlob").
package ir

import (
	"go/constant"

	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/config/rules"
)

// Info is shared by all top level declarations.
type Info struct {
	// Native name.
	Name string
	// Header the declaration is in. Empty for macros.
	File string
	Doc  string
	// Unsupported is set if the declaration can't be bound. It only
	// becomes an error if the declaration is emitted or used.
	Unsupported error
}

type Typedef struct {
	Info
	Type *Type
}

type EnumConst struct {
	Name  string
	Value constant.Value
}

type Enum struct {
	Info
	Scoped     bool
	Underlying *Type
	Constants  []*EnumConst
}

type Field struct {
	Name     string
	Type     *Type
	Bitfield bool
}

type Base struct {
	Type    *Type
	Virtual bool
}

type Method struct {
	Name string
	// Func type.
	Sig     *Type
	Virtual bool
	Pure    bool
}

type Record struct {
	Info
	Union    bool
	Complete bool
	Bases    []*Base
	Fields   []*Field
	Methods  []*Method

	Polymorphic       bool
	TriviallyCopyable bool
	VirtualDestructor bool
}

type Function struct {
	Info
	// Func type.
	Sig        *Type
	ParamNames []string
}

// Const is a named constant value: an object-like macro, a constant
// variable or the enumerator of an anonymous enum.
type Const struct {
	Info
	Value constant.Value
	Macro bool
}

type Module struct {
	DataModel DataModel
	// C++ records get a size of at least one byte.
	CPlusPlus bool

	Typedefs  map[string]*Typedef
	Enums     map[string]*Enum
	Records   map[string]*Record
	Functions map[string]*Function
	Consts    map[string]*Const

	// Every declaration in header order, macros last and sorted by name.
	Symbols []rules.SymbolSpec
}

func newModule(dm DataModel) *Module {
	return &Module{
		DataModel: dm,
		Typedefs:  make(map[string]*Typedef),
		Enums:     make(map[string]*Enum),
		Records:   make(map[string]*Record),
		Functions: make(map[string]*Function),
		Consts:    make(map[string]*Const),
	}
}

// LookupType returns the *Typedef, *Enum or *Record named name, or nil.
func (m *Module) LookupType(name string) any {
	if r, ok := m.Records[name]; ok {
		return r
	}
	if e, ok := m.Enums[name]; ok {
		return e
	}
	if td, ok := m.Typedefs[name]; ok {
		return td
	}
	return nil
}

// Lookup returns the declaration sym refers to, or nil.
func (m *Module) Lookup(sym rules.Symbol) any {
	switch sym.Kind {
	case config.KindType:
		return m.LookupType(sym.Name)
	case config.KindFunction:
		if fn, ok := m.Functions[sym.Name]; ok {
			return fn
		}
	case config.KindVar:
		if c, ok := m.Consts[sym.Name]; ok {
			return c
		}
	}
	return nil
}

// Resolve follows typedefs until t is no longer a named typedef.
func (m *Module) Resolve(t *Type) *Type {
	for i := 0; t != nil && t.Kind == Named && i < 100; i++ {
		td, ok := m.Typedefs[t.Name]
		if !ok {
			return t
		}
		t = td.Type
	}
	return t
}

// Arithmetic resolves t to a Bool, Int, Uint or Float type, looking
// through typedefs and enums. It returns nil for anything else.
func (m *Module) Arithmetic(t *Type) *Type {
	t = m.Resolve(t)
	if t == nil {
		return nil
	}
	if t.Kind == Named {
		e, ok := m.Enums[t.Name]
		if !ok {
			return nil
		}
		t = m.Resolve(e.Underlying)
	}
	switch t.Kind {
	case Bool, Int, Uint, Float:
		return t
	}
	return nil
}

// References returns the native type names a declaration uses directly.
func (m *Module) References(decl any) []string {
	var res []string
	add := func(t *Type) {
		t.Walk(func(t *Type) {
			if t.Kind == Named {
				res = append(res, t.Name)
			}
		})
	}
	switch d := decl.(type) {
	case *Typedef:
		add(d.Type)
	case *Enum:
		add(d.Underlying)
	case *Record:
		for _, b := range d.Bases {
			add(b.Type)
		}
		for _, f := range d.Fields {
			add(f.Type)
		}
		for _, meth := range d.Methods {
			if meth.Virtual {
				add(meth.Sig)
			}
		}
	case *Function:
		add(d.Sig)
	}
	return res
}
