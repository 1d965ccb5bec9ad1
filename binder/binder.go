// Package binder renders an [ir.Module] as Go source: constants, types,
// vtables and cgo wrappers for the allow-listed declarations.
package binder

import (
	"errors"
	"fmt"
	"go/constant"
	"go/token"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/iancoleman/strcase"
	"github.com/slang-go/slang/binder/binderio"
	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/ir"
	"github.com/slang-go/slang/textutils"
)

type generator struct {
	ctx  *Context
	deps *Dependencies

	cb binderio.CodeBuilder
	// Pending specs of the current const block.
	consts []string
	// C prototypes for the cgo preamble.
	protos []string
	// Native layouts of the emitted records.
	layouts []recordLayout
}

// Generate returns the formatted Go file holding the bindings selected by
// ctx.Rules. Declarations appear in header order.
//
// Every declaration that can't be bound is reported; nothing is written
// for a partial result.
func Generate(ctx *Context) ([]byte, *Dependencies, error) {
	g := &generator{ctx: ctx, deps: NewDependencies()}

	var errs error
	for _, sym := range ctx.Module.Symbols {
		if !ctx.Rules.IsIncluded(sym.Symbol()) || !g.emitsKind(sym.Kind) {
			continue
		}
		var err error
		switch d := ctx.Module.Lookup(sym.Symbol()).(type) {
		case *ir.Const:
			err = g.constant(d)
		case *ir.Enum:
			err = g.enum(d)
		case *ir.Typedef:
			err = g.typedef(d)
		case *ir.Record:
			err = g.record(d)
		case *ir.Function:
			err = g.function(d)
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%v: %w", sym.Symbol(), err))
		}
	}
	g.flushConsts()
	if errs != nil {
		return nil, nil, errs
	}
	if g.deps.NoCopy {
		g.cb.Linef(`// noCopy marks structs that must not be copied. See go vet's copylocks check.`)
		g.cb.Linef(`type noCopy struct{}`)
		g.cb.Linef(``)
		g.cb.Linef(`func (*noCopy) Lock()   {}`)
		g.cb.Linef(`func (*noCopy) Unlock() {}`)
		g.cb.Linef(``)
	}

	var cb binderio.CodeBuilder
	cb.Linef(`// Code generated by slanggen from %v. DO NOT EDIT.`, ctx.HeaderName)
	cb.Linef(``)
	cb.Linef(`package %v`, ctx.Config.Codegen.Package)
	cb.Linef(``)
	if len(g.protos) > 0 {
		cb.Linef(`/*`)
		cb.Linef(`#include <stdbool.h>`)
		cb.Linef(`#include <stdint.h>`)
		cb.Linef(``)
		for _, p := range g.protos {
			cb.Linef(`%v`, p)
		}
		cb.Linef(`*/`)
		cb.Linef(`import "C"`)
		cb.Linef(``)
	}
	if len(g.deps.Imports) > 0 {
		imports := make([]string, 0, len(g.deps.Imports))
		for imp := range g.deps.Imports {
			imports = append(imports, strconv.Quote(imp))
		}
		slices.Sort(imports)
		cb.Linef(`import (`)
		cb.Indent++
		for _, imp := range imports {
			cb.Linef(`%v`, imp)
		}
		cb.Indent--
		cb.Linef(`)`)
		cb.Linef(``)
	}
	cb.Write(g.cb.String())

	code, err := cb.FmtString()
	if err != nil {
		return nil, nil, fmt.Errorf("format generated code: %w", err)
	}
	if err := checkLayouts([]byte(code), g.layouts); err != nil {
		return nil, nil, err
	}
	return []byte(code), g.deps, nil
}

func (g *generator) emitsKind(kind string) bool {
	switch kind {
	case config.KindFunction:
		return g.ctx.Config.Codegen.Has(config.CodegenFunctions)
	case config.KindType:
		return g.ctx.Config.Codegen.Has(config.CodegenTypes)
	case config.KindVar:
		return g.ctx.Config.Codegen.Has(config.CodegenVars)
	}
	return false
}

func (g *generator) doc(info *ir.Info) string {
	if !g.ctx.Config.Codegen.DocComments {
		return ""
	}
	return textutils.CommentString(info.Doc)
}

func (g *generator) flushConsts() {
	if len(g.consts) == 0 {
		return
	}
	g.cb.Linef(`const (`)
	g.cb.Indent++
	for _, c := range g.consts {
		g.cb.Append(c)
	}
	g.cb.Indent--
	g.cb.Linef(`)`)
	g.cb.Linef(``)
	g.consts = g.consts[:0]
}

// ConstLiteral returns v as an untyped Go constant literal.
func ConstLiteral(v constant.Value) (string, error) {
	switch v.Kind() {
	case constant.Bool:
		return v.ExactString(), nil
	case constant.Int:
		return v.ExactString(), nil
	case constant.Float:
		f, _ := constant.Float64Val(v)
		if math.IsInf(f, 0) {
			return "", fmt.Errorf("constant %v overflows float64", v)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s, nil
	case constant.String:
		return strconv.Quote(constant.StringVal(v)), nil
	}
	return "", fmt.Errorf("unsupported constant %v", v)
}

func (g *generator) constant(c *ir.Const) error {
	if c.Unsupported != nil {
		return c.Unsupported
	}
	lit, err := ConstLiteral(c.Value)
	if err != nil {
		return err
	}
	g.consts = append(g.consts, g.doc(&c.Info)+g.ctx.GoName(config.KindVar, c.Name)+" = "+lit)
	return nil
}

// EnumConstName returns the Go name of an enumerator. Scoped enumerators
// and unexported ones are prefixed with the enum's Go name.
func EnumConstName(enumName string, e *ir.Enum, c *ir.EnumConst) string {
	if !e.Scoped && token.IsExported(c.Name) {
		return c.Name
	}
	if e.Scoped && token.IsExported(c.Name) {
		return enumName + c.Name
	}
	return enumName + "_" + c.Name
}

func (g *generator) enum(e *ir.Enum) error {
	if e.Unsupported != nil {
		return e.Unsupported
	}
	if g.ctx.Module.Arithmetic(e.Underlying) == nil {
		return fmt.Errorf("underlying type %v is not an integer", e.Underlying)
	}
	under, err := GoType(g.deps, g.ctx, e.Underlying)
	if err != nil {
		return err
	}
	g.flushConsts()

	name := g.ctx.GoName(config.KindType, e.Name)
	g.cb.Append(g.doc(&e.Info))
	g.cb.Linef(`type %v %v`, name, under)
	g.cb.Linef(``)
	if len(e.Constants) == 0 {
		return nil
	}
	g.cb.Linef(`const (`)
	g.cb.Indent++
	for _, c := range e.Constants {
		g.cb.Linef(`%v %v = %v`, EnumConstName(name, e, c), name, c.Value.ExactString())
	}
	g.cb.Indent--
	g.cb.Linef(`)`)
	g.cb.Linef(``)
	return nil
}

func (g *generator) typedef(td *ir.Typedef) error {
	if td.Unsupported != nil {
		return td.Unsupported
	}
	typ, err := GoType(g.deps, g.ctx, td.Type)
	if err != nil {
		return err
	}
	if typ == "" {
		return errors.New("typedef of void")
	}
	g.flushConsts()
	g.cb.Append(g.doc(&td.Info))
	g.cb.Linef(`type %v %v`, g.ctx.GoName(config.KindType, td.Name), typ)
	g.cb.Linef(``)
	return nil
}

// baseRecord returns the record b derives from.
func (g *generator) baseRecord(b *ir.Base) (*ir.Record, error) {
	t := g.ctx.Module.Resolve(b.Type)
	r, ok := g.ctx.Module.LookupType(t.Name).(*ir.Record)
	if t.Kind != ir.Named || !ok {
		return nil, fmt.Errorf("unknown base %v", b.Type)
	}
	return r, nil
}

// embedsBase reports whether a record derived from b embeds the Go type of
// b. Empty bases take up no space and are left out.
func (g *generator) embedsBase(b *ir.Base) bool {
	t := g.ctx.Module.Resolve(b.Type)
	if t.Kind != ir.Named || !g.ctx.EmitsType(t.Name) {
		return false
	}
	base, ok := g.ctx.Module.LookupType(t.Name).(*ir.Record)
	return ok && !g.ctx.Module.IsEmpty(base)
}

// fields returns the field lines of r, including those of its bases.
func (g *generator) fields(r *ir.Record) ([]string, error) {
	var res []string
	for _, b := range r.Bases {
		base, err := g.baseRecord(b)
		if err != nil {
			return nil, err
		}
		baseFields, err := g.fields(base)
		if err != nil {
			return nil, fmt.Errorf("base %v: %w", base.Name, err)
		}
		res = append(res, baseFields...)
	}
	for _, f := range r.Fields {
		typ, err := GoType(g.deps, g.ctx, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %v: %w", f.Name, err)
		}
		res = append(res, strcase.ToCamel(f.Name)+" "+typ)
	}
	return res, nil
}

func (g *generator) record(r *ir.Record) error {
	if r.Unsupported != nil {
		return r.Unsupported
	}
	name := g.ctx.GoName(config.KindType, r.Name)
	if !r.Complete {
		g.flushConsts()
		g.cb.Append(g.doc(&r.Info))
		g.cb.Linef(`type %v struct{}`, name)
		g.cb.Linef(``)
		return nil
	}
	if r.VirtualDestructor {
		return errors.New("virtual destructors are not supported")
	}
	if len(r.Bases) > 1 {
		return errors.New("multiple inheritance is not supported")
	}
	size, align, err := g.ctx.Module.RecordLayout(r)
	if err != nil {
		return err
	}

	var lines []string
	if !r.TriviallyCopyable || !g.ctx.Config.Codegen.DeriveCopy {
		g.deps.NoCopy = true
		lines = append(lines, "_ noCopy")
	}
	if r.Union {
		var alignType string
		switch align {
		case 1:
			alignType = "uint8"
		case 2:
			alignType = "uint16"
		case 4:
			alignType = "uint32"
		default:
			alignType = "uint64"
		}
		lines = append(lines,
			"_ [0]"+alignType,
			fmt.Sprintf("Raw [%v]byte", size),
		)
	} else {
		var vtbl []string
		switch {
		case r.Polymorphic:
			if g.ctx.Config.Codegen.Vtables {
				vtbl, err = g.vtable(r, name)
				if err != nil {
					return err
				}
				lines = append(lines, "Vtbl *"+name+"Vtbl")
			} else {
				g.deps.MarkImport("unsafe")
				lines = append(lines, "Vtbl unsafe.Pointer")
			}
			fields, err := g.fields(r)
			if err != nil {
				return err
			}
			lines = append(lines, fields...)
		case len(r.Bases) == 1 && g.embedsBase(r.Bases[0]):
			base, err := g.baseRecord(r.Bases[0])
			if err != nil {
				return err
			}
			if base.Unsupported != nil {
				return fmt.Errorf("base %v: %w", base.Name, base.Unsupported)
			}
			lines = append(lines, g.ctx.GoName(config.KindType, base.Name))
			for _, f := range r.Fields {
				typ, err := GoType(g.deps, g.ctx, f.Type)
				if err != nil {
					return fmt.Errorf("field %v: %w", f.Name, err)
				}
				lines = append(lines, strcase.ToCamel(f.Name)+" "+typ)
			}
		default:
			fields, err := g.fields(r)
			if err != nil {
				return err
			}
			lines = append(lines, fields...)
		}
		if g.ctx.Module.CPlusPlus && g.ctx.Module.IsEmpty(r) {
			// Empty C++ records take up one byte.
			lines = append(lines, "_ [1]byte")
		}
		if len(vtbl) > 0 {
			g.flushConsts()
			g.cb.Linef(`type %vVtbl struct {`, name)
			g.cb.Indent++
			for _, l := range vtbl {
				g.cb.Linef(`%v`, l)
			}
			g.cb.Indent--
			g.cb.Linef(`}`)
			g.cb.Linef(``)
		}
	}

	g.layouts = append(g.layouts, recordLayout{Name: name, Native: r.Name, Size: size, Align: align})
	g.flushConsts()
	g.cb.Append(g.doc(&r.Info))
	g.cb.Linef(`type %v struct {`, name)
	g.cb.Indent++
	for _, l := range lines {
		g.cb.Linef(`%v`, l)
	}
	g.cb.Indent--
	g.cb.Linef(`}`)
	g.cb.Linef(``)
	return nil
}

type vtblSlot struct {
	// Go field name.
	Name string
	// Native method name and signature, for matching overrides.
	Method string
	Sig    string
}

// slots returns the virtual method table of r in slot order.
func (g *generator) slots(r *ir.Record) ([]vtblSlot, error) {
	var res []vtblSlot
	if len(r.Bases) > 0 {
		base, err := g.baseRecord(r.Bases[0])
		if err != nil {
			return nil, err
		}
		if base.Polymorphic {
			res, err = g.slots(base)
			if err != nil {
				return nil, err
			}
		}
	}
	names := make(map[string]bool, len(res))
	for _, s := range res {
		names[s.Name] = true
	}
	for _, m := range r.Methods {
		if !m.Virtual {
			continue
		}
		sig := m.Sig.String()
		if slices.ContainsFunc(res, func(s vtblSlot) bool { return s.Method == m.Name && s.Sig == sig }) {
			// Override.
			continue
		}
		name := textutils.ExportedName(m.Name)
		if names[name] {
			for i := 2; ; i++ {
				if n := name + strconv.Itoa(i); !names[n] {
					name = n
					break
				}
			}
		}
		names[name] = true
		res = append(res, vtblSlot{Name: name, Method: m.Name, Sig: sig})
	}
	return res, nil
}

// vtable returns the field lines of the vtable struct of r.
func (g *generator) vtable(r *ir.Record, name string) ([]string, error) {
	slots, err := g.slots(r)
	if err != nil {
		return nil, err
	}
	var lines []string
	inherited := 0
	if len(r.Bases) > 0 {
		base, err := g.baseRecord(r.Bases[0])
		if err != nil {
			return nil, err
		}
		if base.Polymorphic && g.ctx.EmitsType(base.Name) {
			baseSlots, err := g.slots(base)
			if err != nil {
				return nil, err
			}
			inherited = len(baseSlots)
			lines = append(lines, g.ctx.GoName(config.KindType, base.Name)+"Vtbl")
		}
	}
	for _, s := range slots[inherited:] {
		lines = append(lines, s.Name+" uintptr")
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%v has no virtual methods", r.Name)
	}
	return lines, nil
}

// goIdents returns the identifiers in a Go type spelling.
func goIdents(typ string) []string {
	return strings.FieldsFunc(typ, func(r rune) bool {
		return r != '_' && !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	})
}

// ParamName returns a usable Go parameter name for the native name of the
// i-th parameter, not clashing with anything in used.
func ParamName(name string, i int, used map[string]bool) string {
	if name == "" {
		name = "p" + strconv.Itoa(i)
	}
	if token.IsKeyword(name) || name == "C" || name == "unsafe" {
		name += "_"
	}
	for used[name] {
		name += "_"
	}
	used[name] = true
	return name
}

func (g *generator) function(fn *ir.Function) error {
	if fn.Unsupported != nil {
		return fn.Unsupported
	}
	sig := fn.Sig
	if sig.Variadic {
		return errors.New("variadic functions can't be called through cgo")
	}

	used := map[string]bool{}
	goParams := make([]string, len(sig.Params))
	cParams := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		typ, err := GoType(g.deps, g.ctx, p)
		if err != nil {
			return fmt.Errorf("param %v: %w", i+1, err)
		}
		ct, err := CType(g.ctx.Module, p)
		if err != nil {
			return fmt.Errorf("param %v: %w", i+1, err)
		}
		goParams[i], cParams[i] = typ, ct
		for _, id := range goIdents(typ) {
			used[id] = true
		}
	}
	result, err := GoType(g.deps, g.ctx, sig.Result)
	if err != nil {
		return fmt.Errorf("result: %w", err)
	}
	cResult, err := CType(g.ctx.Module, sig.Result)
	if err != nil {
		return fmt.Errorf("result: %w", err)
	}
	for _, id := range goIdents(result) {
		used[id] = true
	}

	params := make([]string, len(sig.Params))
	args := make([]string, len(sig.Params))
	for i := range sig.Params {
		var native string
		if i < len(fn.ParamNames) {
			native = fn.ParamNames[i]
		}
		pName := ParamName(native, i, used)
		params[i] = pName + " " + goParams[i]
		arg, ok := ConvGoToC(g.deps, cParams[i], goParams[i], pName)
		if !ok {
			return fmt.Errorf("param %v: no conversion from %v to %v", i+1, goParams[i], cParams[i])
		}
		args[i] = arg
	}

	protoParams := "void"
	if len(cParams) > 0 {
		protoParams = strings.Join(cParams, ", ")
	}
	g.protos = append(g.protos, fmt.Sprintf("%v %v(%v);", cResult, fn.Name, protoParams))

	call := "C." + fn.Name + "(" + strings.Join(args, ", ") + ")"
	g.flushConsts()
	g.cb.Append(g.doc(&fn.Info))
	if result == "" {
		g.cb.Linef(`func %v(%v) {`, g.ctx.GoName(config.KindFunction, fn.Name), strings.Join(params, ", "))
		g.cb.Indent++
		g.cb.Linef(`%v`, call)
	} else {
		ret, ok := ConvCToGo(g.deps, cResult, result, call)
		if !ok {
			return fmt.Errorf("result: no conversion from %v to %v", cResult, result)
		}
		g.cb.Linef(`func %v(%v) %v {`, g.ctx.GoName(config.KindFunction, fn.Name), strings.Join(params, ", "), result)
		g.cb.Indent++
		g.cb.Linef(`return %v`, ret)
	}
	g.cb.Indent--
	g.cb.Linef(`}`)
	g.cb.Linef(``)
	return nil
}
