package ir

import (
	"errors"
	"fmt"
	"go/constant"
	"go/token"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/slang-go/slang/clangast"
	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/config/rules"
	"github.com/slang-go/slang/logger"
)

type Options struct {
	DataModel DataModel
	// CMode treats every function as having C linkage, as when the header
	// is parsed as C.
	CMode  bool
	Logger *logger.Logger
}

type builder struct {
	opts Options
	mod  *Module

	// Enumerator and constant values by unqualified name.
	values map[string]constant.Value
	// Every named type reference, resolved once all declarations are known.
	types []*Type
	// Types clang also printed desugared, for references to typedefs the
	// dump doesn't declare.
	sugared []sugared
	// Anonymous tag declared just before the current declaration, waiting
	// for a typedef to name it.
	anon any
	// Anonymous enums whose enumerators become constants.
	anonScope string

	macros     map[string]string
	macroVals  map[string]constant.Value
	evaluating map[string]bool
	ev         *evaluator
}

// Build constructs the module for a translation unit and the object-like
// macros it defines.
func Build(root *clangast.Node, macros []clangast.Macro, opts Options) (*Module, error) {
	if root == nil || root.Kind != "TranslationUnitDecl" {
		return nil, errors.New("build module: expected a translation unit")
	}
	b := &builder{
		opts:       opts,
		mod:        newModule(opts.DataModel),
		values:     make(map[string]constant.Value),
		macros:     make(map[string]string, len(macros)),
		macroVals:  make(map[string]constant.Value),
		evaluating: make(map[string]bool),
	}
	b.mod.CPlusPlus = !opts.CMode
	b.ev = &evaluator{dm: opts.DataModel, ident: b.ident, typ: b.castType}

	b.decls(root.Inner, "", false)
	b.resolveTypes()

	for _, m := range macros {
		b.macros[m.Name] = m.Body
	}
	for _, m := range macros {
		if b.mod.Consts[m.Name] != nil {
			continue
		}
		v, err := b.macro(m.Name)
		if err != nil {
			// Most macros aren't constants.
			continue
		}
		b.mod.Consts[m.Name] = &Const{Info: Info{Name: m.Name}, Value: v, Macro: true}
		b.mod.Symbols = append(b.mod.Symbols, rules.SymbolSpec{Name: m.Name, Kind: config.KindVar})
	}
	return b.mod, nil
}

func (b *builder) addSymbol(name, kind, file string) {
	b.mod.Symbols = append(b.mod.Symbols, rules.SymbolSpec{Name: name, Kind: kind, File: file})
}

func (b *builder) parseType(spelling, scope string) (*Type, error) {
	t, err := ParseType(spelling, b.opts.DataModel)
	if err != nil {
		return nil, err
	}
	t.Walk(func(t *Type) {
		if t.Kind == Named {
			t.scope = scope
			b.types = append(b.types, t)
		}
	})
	return t, nil
}

type sugared struct {
	t         *Type
	desugared string
	scope     string
}

// parseQual parses a clang type, remembering its desugared form.
func (b *builder) parseQual(qt *clangast.QualType, scope string) (*Type, error) {
	t, err := b.parseType(qt.QualType, scope)
	if err == nil && qt.DesugaredQualType != "" && qt.DesugaredQualType != qt.QualType {
		b.sugared = append(b.sugared, sugared{t: t, desugared: qt.DesugaredQualType, scope: scope})
	}
	return t, err
}

func (b *builder) decls(nodes []*clangast.Node, scope string, externC bool) {
	for _, n := range nodes {
		if n.IsImplicit {
			continue
		}
		if b.anon != nil && !(n.Kind == "TypedefDecl" && n.Type != nil && isAnonSpelling(n.Type.QualType)) {
			b.flushAnon()
		}
		switch n.Kind {
		case "NamespaceDecl":
			if n.Name == "" {
				// Internal linkage.
				continue
			}
			b.decls(n.Inner, scope+n.Name+"_", externC)
		case "LinkageSpecDecl":
			b.decls(n.Inner, scope, externC || n.Language == "C")
		case "TypedefDecl", "TypeAliasDecl":
			b.typedef(n, scope)
		case "EnumDecl":
			b.enum(n, scope)
		case "RecordDecl", "CXXRecordDecl":
			b.record(n, scope)
		case "FunctionDecl":
			b.function(n, scope, externC)
		case "VarDecl":
			b.variable(n, scope)
		}
	}
	b.flushAnon()
}

func isAnonSpelling(s string) bool {
	return strings.Contains(s, "(unnamed") || strings.Contains(s, "(anonymous")
}

// flushAnon handles an anonymous tag no typedef named: the enumerators of
// an anonymous enum become constants, anything else is dropped.
func (b *builder) flushAnon() {
	anon := b.anon
	b.anon = nil
	e, ok := anon.(*Enum)
	if !ok {
		return
	}
	for _, c := range e.Constants {
		name := b.anonScope + c.Name
		if b.mod.Consts[name] != nil {
			continue
		}
		b.mod.Consts[name] = &Const{Info: Info{Name: name, File: e.File, Doc: e.Doc}, Value: c.Value}
		b.addSymbol(name, config.KindVar, e.File)
	}
}

// docComment returns the text of the doc comment attached to n.
func docComment(n *clangast.Node) string {
	var paras []string
	for _, c := range n.Inner {
		if c.Kind != "FullComment" {
			continue
		}
		for _, p := range c.Inner {
			var lines []string
			p.Walk(func(n *clangast.Node) bool {
				if n.Kind == "TextComment" {
					if s := strings.TrimSpace(n.Text); s != "" {
						lines = append(lines, s)
					}
				}
				return true
			})
			if len(lines) > 0 {
				paras = append(paras, strings.Join(lines, "\n"))
			}
		}
	}
	return strings.Join(paras, "\n\n")
}

func (b *builder) typedef(n *clangast.Node, scope string) {
	name := scope + n.Name
	td := &Typedef{Info: Info{Name: name, File: n.File(), Doc: docComment(n)}}
	if n.Type == nil {
		return
	}
	if isAnonSpelling(n.Type.QualType) {
		switch anon := b.anon.(type) {
		case *Record:
			b.anon = nil
			anon.Name = name
			anon.Doc = td.Doc
			b.addRecord(anon)
			return
		case *Enum:
			b.anon = nil
			anon.Name = name
			anon.Doc = td.Doc
			b.addEnum(anon)
			return
		}
	}
	t, err := b.parseQual(n.Type, scope)
	if err != nil {
		td.Unsupported = err
		t = &Type{Kind: Void}
	}
	if t.Kind == Named && (t.Name == name || scope+t.Name == name) {
		// typedef struct X X;
		return
	}
	td.Type = t
	if _, ok := b.mod.Typedefs[name]; ok {
		return
	}
	b.mod.Typedefs[name] = td
	b.addSymbol(name, config.KindType, td.File)
}

func (b *builder) enum(n *clangast.Node, scope string) {
	e := &Enum{
		Info:   Info{Name: scope + n.Name, File: n.File(), Doc: docComment(n)},
		Scoped: n.ScopedEnumTag != "",
	}
	if n.FixedUnderlyingType != nil {
		t, err := b.parseQual(n.FixedUnderlyingType, scope)
		if err != nil {
			e.Unsupported = err
		}
		e.Underlying = t
	}

	var prev constant.Value
	var errs error
	for _, c := range n.Inner {
		if c.Kind != "EnumConstantDecl" {
			continue
		}
		var v constant.Value
		if expr := firstExpr(c); expr != nil {
			var err error
			if v, err = b.ev.Node(expr); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("enumerator %v: %w", c.Name, err))
				v = nil
			}
		}
		if v == nil {
			if prev == nil {
				v = constant.MakeInt64(0)
			} else {
				v = constant.BinaryOp(prev, token.ADD, constant.MakeInt64(1))
			}
		}
		prev = v
		b.values[c.Name] = v
		e.Constants = append(e.Constants, &EnumConst{Name: c.Name, Value: v})
	}
	if errs != nil {
		e.Unsupported = errs
	}
	if e.Underlying == nil {
		e.Underlying = defaultUnderlying(e.Constants)
	}

	if n.Name == "" {
		b.anon = e
		b.anonScope = scope
		return
	}
	if len(n.Inner) == 0 && b.mod.Enums[e.Name] != nil {
		// Opaque redeclaration.
		return
	}
	b.addEnum(e)
}

// defaultUnderlying picks the integer type of an enum without a fixed
// underlying type: int, unless the values don't fit.
func defaultUnderlying(consts []*EnumConst) *Type {
	fits := func(lo, hi int64) bool {
		for _, c := range consts {
			if constant.Compare(c.Value, token.LSS, constant.MakeInt64(lo)) ||
				constant.Compare(c.Value, token.GTR, constant.MakeInt64(hi)) {
				return false
			}
		}
		return true
	}
	switch {
	case fits(-1<<31, 1<<31-1):
		return &Type{Kind: Int, Size: 4}
	case fits(0, 1<<32-1):
		return &Type{Kind: Uint, Size: 4}
	default:
		return &Type{Kind: Int, Size: 8}
	}
}

func (b *builder) addEnum(e *Enum) {
	if _, ok := b.mod.Enums[e.Name]; !ok {
		b.addSymbol(e.Name, config.KindType, e.File)
	}
	b.mod.Enums[e.Name] = e
}

func (b *builder) addRecord(r *Record) {
	old, ok := b.mod.Records[r.Name]
	if !ok {
		b.addSymbol(r.Name, config.KindType, r.File)
	} else if old.Complete && !r.Complete {
		return
	}
	b.mod.Records[r.Name] = r
}

func firstExpr(n *clangast.Node) *clangast.Node {
	for _, c := range n.Inner {
		if !strings.HasSuffix(c.Kind, "Comment") && !strings.HasSuffix(c.Kind, "Attr") {
			return c
		}
	}
	return nil
}

func (b *builder) record(n *clangast.Node, scope string) {
	r := &Record{
		Info:              Info{Name: scope + n.Name, File: n.File(), Doc: docComment(n)},
		Union:             n.TagUsed == "union",
		Complete:          n.CompleteDefinition,
		TriviallyCopyable: true,
	}
	if !r.Complete {
		if n.Name != "" {
			b.addRecord(r)
		}
		return
	}
	if dd := n.DefinitionData; dd != nil {
		r.Polymorphic = dd.IsPolymorphic
		r.TriviallyCopyable = dd.IsTriviallyCopyable
	}

	var errs error
	for _, base := range n.Bases {
		t, err := b.parseType(base.Type.QualType, scope)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("base %v: %w", base.Type.QualType, err))
			continue
		}
		r.Bases = append(r.Bases, &Base{Type: t, Virtual: base.IsVirtual})
	}

	inner := r.Name + "_"
	for _, c := range n.Inner {
		if c.IsImplicit {
			continue
		}
		switch c.Kind {
		case "FieldDecl":
			if c.Name == "" {
				errs = multierror.Append(errs, errors.New("anonymous member"))
				continue
			}
			t, err := b.parseQual(c.Type, inner)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("field %v: %w", c.Name, err))
				continue
			}
			r.Fields = append(r.Fields, &Field{Name: c.Name, Type: t, Bitfield: c.IsBitfield})
		case "CXXMethodDecl":
			if c.StorageClass == "static" {
				continue
			}
			m := &Method{Name: c.Name, Virtual: c.Virtual || c.Pure, Pure: c.Pure}
			for _, a := range c.Inner {
				if a.Kind == "OverrideAttr" || a.Kind == "FinalAttr" {
					m.Virtual = true
				}
			}
			t, err := b.parseType(c.Type.QualType, inner)
			if err != nil {
				if m.Virtual {
					errs = multierror.Append(errs, fmt.Errorf("method %v: %w", c.Name, err))
				}
				continue
			}
			m.Sig = t
			r.Methods = append(r.Methods, m)
		case "CXXDestructorDecl":
			if c.Virtual {
				r.VirtualDestructor = true
			}
		case "CXXRecordDecl", "RecordDecl", "EnumDecl", "TypedefDecl", "TypeAliasDecl":
			b.decls([]*clangast.Node{c}, inner, false)
		}
	}
	if errs != nil {
		r.Unsupported = errs
	}

	if n.Name == "" {
		b.anon = r
		return
	}
	b.addRecord(r)
}

func (b *builder) function(n *clangast.Node, scope string, externC bool) {
	if !externC && !b.opts.CMode && n.MangledName != "" && n.MangledName != n.Name {
		b.opts.Logger.Warnf("skipping function %v: no C linkage", n.Name)
		return
	}
	if n.StorageClass == "static" {
		b.opts.Logger.Warnf("skipping function %v: static", n.Name)
		return
	}
	if _, ok := b.mod.Functions[n.Name]; ok {
		return
	}
	fn := &Function{Info: Info{Name: n.Name, File: n.File(), Doc: docComment(n)}}
	t, err := b.parseType(n.Type.QualType, scope)
	if err == nil && t.Kind != Func {
		err = fmt.Errorf("expected function type, got %v", n.Type.QualType)
	}
	if err != nil {
		fn.Unsupported = err
		t = &Type{Kind: Func, Result: &Type{Kind: Void}}
	}
	fn.Sig = t
	for _, c := range n.Inner {
		if c.Kind == "ParmVarDecl" {
			fn.ParamNames = append(fn.ParamNames, c.Name)
		}
	}
	b.mod.Functions[n.Name] = fn
	b.addSymbol(n.Name, config.KindFunction, fn.File)
}

func (b *builder) variable(n *clangast.Node, scope string) {
	if n.Type == nil {
		return
	}
	t, err := ParseType(n.Type.QualType, b.opts.DataModel)
	if err != nil || !(t.Const || n.Constexpr) {
		return
	}
	expr := firstExpr(n)
	if expr == nil {
		return
	}
	v, err := b.ev.Node(expr)
	if err != nil {
		return
	}
	name := scope + n.Name
	b.values[n.Name] = v
	if _, ok := b.mod.Consts[name]; ok {
		return
	}
	b.mod.Consts[name] = &Const{Info: Info{Name: name, File: n.File(), Doc: docComment(n)}, Value: v}
	b.addSymbol(name, config.KindVar, n.File())
}

// resolveTypes rewrites each named type reference to the declaration it
// refers to. References to types the dump never declares fall back to
// the desugared spelling.
func (b *builder) resolveTypes() {
	for _, t := range b.types {
		b.resolve(t)
	}
	for _, s := range b.sugared {
		unresolved := false
		s.t.Walk(func(t *Type) {
			if t.Kind == Named && b.mod.LookupType(t.Name) == nil {
				unresolved = true
			}
		})
		if !unresolved {
			continue
		}
		d, err := ParseType(s.desugared, b.opts.DataModel)
		if err != nil {
			continue
		}
		d.Walk(func(t *Type) {
			if t.Kind == Named {
				t.scope = s.scope
				b.resolve(t)
			}
		})
		d.Const = s.t.Const
		*s.t = *d
	}
}

// resolve looks a named type up from the innermost scope outwards.
func (b *builder) resolve(t *Type) {
	scope := t.scope
	for {
		if b.mod.LookupType(scope+t.Name) != nil {
			t.Name = scope + t.Name
			break
		}
		if scope == "" {
			break
		}
		scope = strings.TrimSuffix(scope, "_")
		if i := strings.LastIndex(scope, "_"); i >= 0 {
			scope = scope[:i+1]
		} else {
			scope = ""
		}
	}
	t.scope = ""
}

// ident resolves identifiers in constant expressions: macros first, then
// enumerators and constants.
func (b *builder) ident(name string) (constant.Value, error) {
	if _, ok := b.macros[name]; ok {
		return b.macro(name)
	}
	if v, ok := b.values[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: unknown identifier %v", ErrNotConstant, name)
}

func (b *builder) macro(name string) (constant.Value, error) {
	if v, ok := b.macroVals[name]; ok {
		return v, nil
	}
	if b.evaluating[name] {
		return nil, fmt.Errorf("%w: %v refers to itself", ErrNotConstant, name)
	}
	b.evaluating[name] = true
	defer delete(b.evaluating, name)
	v, err := b.ev.Macro(b.macros[name])
	if err != nil {
		return nil, fmt.Errorf("macro %v: %w", name, err)
	}
	b.macroVals[name] = v
	return v, nil
}

func (b *builder) castType(name string) *Type {
	return b.mod.Arithmetic(&Type{Kind: Named, Name: flattenName(name)})
}
