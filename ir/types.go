package ir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Kind int

const (
	Void Kind = iota
	Bool
	Int
	Uint
	Float
	Pointer
	Array
	Func
	Named
)

// Type is a C type as far as the binding generator cares about it.
// Qualifiers other than const are dropped.
type Type struct {
	Kind Kind
	// Byte size of Bool, Int, Uint and Float.
	Size  int64
	Const bool

	// Pointee of Pointer, element of Array.
	Elem *Type
	// Pointer spelled as a C++ reference.
	Reference bool
	// Length of Array.
	Len int64

	// Native name of Named, namespaces flattened.
	Name string
	// Scope the name was spelled in, used to resolve it.
	scope string

	// Signature of Func.
	Result   *Type
	Params   []*Type
	Variadic bool
}

func (t *Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int:
		return "int" + strconv.FormatInt(t.Size*8, 10)
	case Uint:
		return "uint" + strconv.FormatInt(t.Size*8, 10)
	case Float:
		return "float" + strconv.FormatInt(t.Size*8, 10)
	case Pointer:
		return "*" + t.Elem.String()
	case Array:
		return "[" + strconv.FormatInt(t.Len, 10) + "]" + t.Elem.String()
	case Named:
		return t.Name
	case Func:
		var b strings.Builder
		b.WriteString("func(")
		for i, p := range t.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.String())
		}
		if t.Variadic {
			if len(t.Params) > 0 {
				b.WriteString(", ")
			}
			b.WriteString("...")
		}
		b.WriteString(")")
		if t.Result != nil && t.Result.Kind != Void {
			b.WriteString(" " + t.Result.String())
		}
		return b.String()
	default:
		return fmt.Sprintf("Kind(%d)", t.Kind)
	}
}

// IsFuncPtr reports whether t is a pointer to a function.
func (t *Type) IsFuncPtr() bool {
	return t.Kind == Pointer && t.Elem.Kind == Func
}

// Walk calls fn for t and every type it is composed of.
func (t *Type) Walk(fn func(*Type)) {
	if t == nil {
		return
	}
	fn(t)
	t.Elem.Walk(fn)
	t.Result.Walk(fn)
	for _, p := range t.Params {
		p.Walk(fn)
	}
}

// DataModel holds the target dependent sizes of C builtin types.
type DataModel struct {
	LongSize    int64
	WCharSize   int64
	WCharSigned bool
}

// DataModelFor returns the data model of 64-bit targets running goos:
// LLP64 on Windows, LP64 everywhere else.
func DataModelFor(goos string) DataModel {
	if goos == "windows" {
		return DataModel{LongSize: 4, WCharSize: 2}
	}
	return DataModel{LongSize: 8, WCharSize: 4, WCharSigned: true}
}

var ErrAnonymous = errors.New("anonymous type")

// ParseType parses a type spelling as printed by clang, e.g.
// "const char *", "slang::IBlob **", "uint8_t[16]" or
// "void (*)(int, const char *)".
func ParseType(spelling string, dm DataModel) (*Type, error) {
	if strings.Contains(spelling, "(unnamed") || strings.Contains(spelling, "(anonymous") {
		return nil, fmt.Errorf("%w: %v", ErrAnonymous, spelling)
	}
	toks, err := lexType(spelling)
	if err != nil {
		return nil, err
	}
	p := &typeParser{toks: toks, dm: dm}
	t, err := p.typeName()
	if err != nil {
		return nil, fmt.Errorf("type %q: %w", spelling, err)
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("type %q: unexpected %q", spelling, p.toks[p.pos])
	}
	return t, nil
}

func lexType(s string) ([]string, error) {
	var toks []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case isIdentByte(c) || c == ':':
			j := i
			for j < len(s) && (isIdentByte(s[j]) || s[j] == ':') {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		case strings.HasPrefix(s[i:], "..."):
			toks = append(toks, "...")
			i += 3
		case strings.HasPrefix(s[i:], "&&"):
			toks = append(toks, "&&")
			i += 2
		case strings.ContainsRune("*&()[],", rune(c)):
			toks = append(toks, string(c))
			i++
		default:
			return nil, fmt.Errorf("type %q: unexpected character %q", s, c)
		}
	}
	return toks, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

type typeParser struct {
	toks []string
	pos  int
	dm   DataModel
}

func (p *typeParser) peek(n int) string {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return ""
}

func (p *typeParser) next() string {
	t := p.peek(0)
	p.pos++
	return t
}

func (p *typeParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

// ignoredWords never change the type for our purposes.
var ignoredWords = map[string]bool{
	"volatile":   true,
	"restrict":   true,
	"__restrict": true,
	"__stdcall":  true,
	"__cdecl":    true,
	"__fastcall": true,
	"noexcept":   true,
}

var builtinWords = map[string]bool{
	"void": true, "bool": true, "_Bool": true, "char": true, "short": true,
	"int": true, "long": true, "signed": true, "unsigned": true,
	"float": true, "double": true, "wchar_t": true, "char8_t": true,
	"char16_t": true, "char32_t": true, "__int128": true,
}

// typeName parses declaration specifiers followed by an abstract
// declarator.
func (p *typeParser) typeName() (*Type, error) {
	base, err := p.specifiers()
	if err != nil {
		return nil, err
	}
	return p.declarator(base)
}

func (p *typeParser) specifiers() (*Type, error) {
	var (
		words   []string
		named   string
		isConst bool
	)
loop:
	for {
		tok := p.peek(0)
		switch {
		case tok == "const":
			isConst = true
		case ignoredWords[tok]:
		case tok == "struct" || tok == "class" || tok == "union" || tok == "enum":
			p.next()
			tok = p.peek(0)
			if tok == "" || !isIdentByte(tok[0]) && tok[0] != ':' {
				return nil, fmt.Errorf("expected name after %q", p.toks[p.pos-1])
			}
			named = flattenName(tok)
		case builtinWords[tok]:
			if named != "" {
				return nil, fmt.Errorf("unexpected %q after %q", tok, named)
			}
			words = append(words, tok)
		case tok != "" && (isIdentByte(tok[0]) || tok[0] == ':'):
			if named != "" || len(words) > 0 {
				break loop
			}
			named = flattenName(tok)
		default:
			break loop
		}
		p.next()
	}
	var t *Type
	switch {
	case named != "":
		t = &Type{Kind: Named, Name: named}
	case len(words) > 0:
		var err error
		t, err = builtinType(words, p.dm)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("expected type, got %q", p.peek(0))
	}
	t.Const = isConst
	return t, nil
}

// declarator applies pointer, array and function declarators to base.
func (p *typeParser) declarator(base *Type) (*Type, error) {
	t := base
ptrs:
	for {
		tok := p.peek(0)
		switch {
		case tok == "*" || tok == "&" || tok == "&&":
			t = &Type{Kind: Pointer, Elem: t, Reference: tok != "*"}
		case tok == "const":
			if t.Kind == Pointer {
				t.Const = true
			}
		case ignoredWords[tok]:
		default:
			break ptrs
		}
		p.next()
	}
	if p.peek(0) == "(" {
		switch p.peek(1) {
		case "*", "&", "&&", "__stdcall", "__cdecl", "__fastcall":
			// Nested declarator, e.g. the "(*)" of "void (*)(int)". Its
			// suffixes bind tighter than what's inside the parentheses.
			start := p.pos
			if err := p.skipGroup(); err != nil {
				return nil, err
			}
			outer, err := p.suffixes(t)
			if err != nil {
				return nil, err
			}
			end := p.pos
			p.pos = start + 1
			inner, err := p.declarator(outer)
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			p.pos = end
			return inner, nil
		}
	}
	return p.suffixes(t)
}

func (p *typeParser) skipGroup() error {
	depth := 0
	for p.pos < len(p.toks) {
		switch p.next() {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
	return errors.New("unbalanced parentheses")
}

// groupWords take an optional parenthesized argument, e.g.
// "noexcept(true)" or "__attribute__((nothrow))".
var groupWords = map[string]bool{
	"noexcept":      true,
	"throw":         true,
	"__attribute__": true,
	"__declspec":    true,
}

// qualifiers skips what may follow the parameters of a function type,
// e.g. "int () const noexcept(false)".
func (p *typeParser) qualifiers() error {
	for {
		tok := p.peek(0)
		switch {
		case groupWords[tok]:
			p.next()
			if p.peek(0) == "(" {
				if err := p.skipGroup(); err != nil {
					return err
				}
			}
		case tok == "const" || tok == "&" || tok == "&&" || ignoredWords[tok]:
			p.next()
		default:
			return nil
		}
	}
}

type suffix struct {
	array    bool
	len      int64
	params   []*Type
	variadic bool
}

func (p *typeParser) suffixes(base *Type) (*Type, error) {
	var sufs []suffix
	for {
		switch p.peek(0) {
		case "[":
			p.next()
			lit := p.next()
			n, err := strconv.ParseInt(lit, 0, 64)
			if lit == "]" {
				return nil, errors.New("incomplete array type")
			} else if err != nil {
				return nil, fmt.Errorf("array length %q: %w", lit, err)
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			sufs = append(sufs, suffix{array: true, len: n})
			continue
		case "(":
			p.next()
			params, variadic, err := p.params()
			if err != nil {
				return nil, err
			}
			if err := p.qualifiers(); err != nil {
				return nil, err
			}
			sufs = append(sufs, suffix{params: params, variadic: variadic})
			continue
		}
		break
	}
	t := base
	for i := len(sufs) - 1; i >= 0; i-- {
		s := sufs[i]
		if s.array {
			t = &Type{Kind: Array, Elem: t, Len: s.len}
		} else {
			t = &Type{Kind: Func, Result: t, Params: s.params, Variadic: s.variadic}
		}
	}
	return t, nil
}

func (p *typeParser) params() (params []*Type, variadic bool, err error) {
	if p.peek(0) == ")" {
		p.next()
		return nil, false, nil
	}
	if p.peek(0) == "void" && p.peek(1) == ")" {
		p.pos += 2
		return nil, false, nil
	}
	for {
		if p.peek(0) == "..." {
			p.next()
			variadic = true
		} else {
			t, err := p.typeName()
			if err != nil {
				return nil, false, err
			}
			params = append(params, t)
		}
		switch tok := p.next(); tok {
		case ",":
			if variadic {
				return nil, false, errors.New("parameters after ...")
			}
		case ")":
			return params, variadic, nil
		default:
			return nil, false, fmt.Errorf("expected \",\" or \")\" in parameter list, got %q", tok)
		}
	}
}

// flattenName turns a qualified C++ name into a flat native name:
// "slang::IBlob" becomes "slang_IBlob".
func flattenName(s string) string {
	s = strings.TrimPrefix(s, "::")
	return strings.ReplaceAll(s, "::", "_")
}

func builtinType(words []string, dm DataModel) (*Type, error) {
	count := map[string]int{}
	for _, w := range words {
		count[w]++
	}
	unsigned := count["unsigned"] > 0
	if unsigned && count["signed"] > 0 {
		return nil, errors.New("both signed and unsigned")
	}
	integer := func(size int64) *Type {
		if unsigned {
			return &Type{Kind: Uint, Size: size}
		}
		return &Type{Kind: Int, Size: size}
	}
	switch {
	case count["void"] > 0:
		return &Type{Kind: Void}, nil
	case count["bool"] > 0 || count["_Bool"] > 0:
		return &Type{Kind: Bool, Size: 1}, nil
	case count["float"] > 0:
		return &Type{Kind: Float, Size: 4}, nil
	case count["double"] > 0:
		if count["long"] > 0 {
			return nil, errors.New("long double is not supported")
		}
		return &Type{Kind: Float, Size: 8}, nil
	case count["__int128"] > 0:
		return nil, errors.New("__int128 is not supported")
	case count["char"] > 0:
		return integer(1), nil
	case count["char8_t"] > 0:
		return &Type{Kind: Uint, Size: 1}, nil
	case count["char16_t"] > 0:
		return &Type{Kind: Uint, Size: 2}, nil
	case count["char32_t"] > 0:
		return &Type{Kind: Uint, Size: 4}, nil
	case count["wchar_t"] > 0:
		if dm.WCharSigned {
			return &Type{Kind: Int, Size: dm.WCharSize}, nil
		}
		return &Type{Kind: Uint, Size: dm.WCharSize}, nil
	case count["short"] > 0:
		return integer(2), nil
	case count["long"] >= 2:
		return integer(8), nil
	case count["long"] == 1:
		return integer(dm.LongSize), nil
	default:
		// "int", "signed", "unsigned"
		return integer(4), nil
	}
}
