package ir

import (
	"errors"
	"fmt"
	"go/constant"
	"go/scanner"
	"go/token"
	"strings"

	"github.com/slang-go/slang/clangast"
)

var ErrNotConstant = errors.New("not a constant expression")

// evaluator computes the values of C constant expressions, either from
// macro bodies or from clang expression nodes. Integers are exact, as in
// Go untyped constants; casts to integer types wrap.
type evaluator struct {
	dm DataModel
	// ident returns the value an identifier names.
	ident func(name string) (constant.Value, error)
	// typ resolves a type name used in a cast to an arithmetic type, or
	// returns nil if name is not a type.
	typ func(name string) *Type
}

// C binary operator precedences, higher binds tighter.
var binaryPrec = map[token.Token]int{
	token.MUL: 10, token.QUO: 10, token.REM: 10,
	token.ADD: 9, token.SUB: 9,
	token.SHL: 8, token.SHR: 8,
	token.LSS: 7, token.LEQ: 7, token.GTR: 7, token.GEQ: 7,
	token.EQL: 6, token.NEQ: 6,
	token.AND:  5,
	token.XOR:  4,
	token.OR:   3,
	token.LAND: 2,
	token.LOR:  1,
}

// Opcodes as printed in clang's AST.
var opcodes = map[string]token.Token{
	"*": token.MUL, "/": token.QUO, "%": token.REM,
	"+": token.ADD, "-": token.SUB,
	"<<": token.SHL, ">>": token.SHR,
	"<": token.LSS, "<=": token.LEQ, ">": token.GTR, ">=": token.GEQ,
	"==": token.EQL, "!=": token.NEQ,
	"&": token.AND, "^": token.XOR, "|": token.OR,
	"&&": token.LAND, "||": token.LOR,
	"~": token.TILDE, "!": token.NOT,
}

type macroTok struct {
	off int
	tok token.Token
	lit string
}

func (t macroTok) String() string {
	if t.lit != "" {
		return t.lit
	}
	return t.tok.String()
}

// scanMacro tokenizes a macro body. C number suffixes are dropped.
func scanMacro(body string) ([]macroTok, error) {
	src := []byte(body)
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))
	var errs scanner.ErrorList
	var s scanner.Scanner
	s.Init(file, src, func(pos token.Position, msg string) {
		// "?" of the conditional operator is not a Go token.
		if !strings.Contains(msg, "U+003F") {
			errs.Add(pos, msg)
		}
	}, 0)

	var toks []macroTok
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		off := file.Offset(pos)
		if tok == token.IDENT && len(toks) > 0 {
			prev := toks[len(toks)-1]
			if (prev.tok == token.INT || prev.tok == token.FLOAT) &&
				prev.off+len(prev.lit) == off && isNumberSuffix(lit) {
				continue
			}
		}
		if tok == token.ARROW {
			// "a<-1" is "a < -1" in C.
			toks = append(toks, macroTok{off, token.LSS, ""}, macroTok{off + 1, token.SUB, ""})
			continue
		}
		toks = append(toks, macroTok{off, tok, lit})
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return toks, nil
}

func isNumberSuffix(s string) bool {
	return strings.Trim(s, "uUlLfF") == ""
}

// Macro evaluates an object-like macro body.
func (ev *evaluator) Macro(body string) (constant.Value, error) {
	toks, err := scanMacro(body)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrNotConstant)
	}
	p := &macroParser{ev: ev, toks: toks}
	v, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected %v", ErrNotConstant, p.toks[p.pos])
	}
	return v, nil
}

type macroParser struct {
	ev   *evaluator
	toks []macroTok
	pos  int
}

func (p *macroParser) peek(n int) macroTok {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return macroTok{tok: token.EOF}
}

func (p *macroParser) next() macroTok {
	t := p.peek(0)
	p.pos++
	return t
}

func (p *macroParser) expect(tok token.Token) error {
	if t := p.next(); t.tok != tok {
		return fmt.Errorf("%w: expected %v, got %v", ErrNotConstant, tok, t)
	}
	return nil
}

func (p *macroParser) isQuestion() bool {
	t := p.peek(0)
	return t.tok == token.ILLEGAL && t.lit == "?"
}

func (p *macroParser) expr() (constant.Value, error) {
	cond, err := p.binary(1)
	if err != nil {
		return nil, err
	}
	if !p.isQuestion() {
		return cond, nil
	}
	p.next()
	a, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	b, err := p.expr()
	if err != nil {
		return nil, err
	}
	if truthy(cond) {
		return a, nil
	}
	return b, nil
}

func (p *macroParser) binary(minPrec int) (constant.Value, error) {
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek(0).tok
		prec, ok := binaryPrec[op]
		if !ok || prec < minPrec {
			return x, nil
		}
		p.next()
		y, err := p.binary(prec + 1)
		if err != nil {
			return nil, err
		}
		if x, err = binaryOp(x, op, y); err != nil {
			return nil, err
		}
	}
}

func (p *macroParser) unary() (constant.Value, error) {
	switch t := p.peek(0); t.tok {
	case token.SUB, token.ADD, token.TILDE, token.NOT:
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unaryOp(t.tok, x)
	case token.LPAREN:
		if typ, n := p.castType(); typ != nil {
			p.pos += n
			x, err := p.unary()
			if err != nil {
				return nil, err
			}
			return convert(x, typ)
		}
	}
	return p.primary()
}

// castType reports whether the tokens at the current position form a cast
// like "(unsigned int)" or "(int32_t)" followed by an operand, and how
// many tokens the cast spans.
func (p *macroParser) castType() (*Type, int) {
	var words []string
	n := 1
	for ; p.peek(n).tok == token.IDENT; n++ {
		words = append(words, p.peek(n).lit)
	}
	if len(words) == 0 || p.peek(n).tok != token.RPAREN {
		return nil, 0
	}
	switch p.peek(n + 1).tok {
	case token.IDENT, token.INT, token.FLOAT, token.CHAR, token.LPAREN,
		token.SUB, token.ADD, token.TILDE, token.NOT:
	default:
		return nil, 0
	}
	t := p.ev.typeOf(words)
	if t == nil {
		return nil, 0
	}
	return t, n + 1
}

func (p *macroParser) primary() (constant.Value, error) {
	t := p.next()
	switch t.tok {
	case token.INT, token.FLOAT, token.CHAR:
		v := constant.MakeFromLiteral(t.lit, t.tok, 0)
		if v.Kind() == constant.Unknown {
			return nil, fmt.Errorf("%w: bad literal %v", ErrNotConstant, t.lit)
		}
		return v, nil
	case token.STRING:
		var s strings.Builder
		for {
			v := constant.MakeFromLiteral(t.lit, token.STRING, 0)
			if v.Kind() != constant.String {
				return nil, fmt.Errorf("%w: bad literal %v", ErrNotConstant, t.lit)
			}
			s.WriteString(constant.StringVal(v))
			if p.peek(0).tok != token.STRING {
				break
			}
			t = p.next()
		}
		return constant.MakeString(s.String()), nil
	case token.LPAREN:
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		return v, p.expect(token.RPAREN)
	case token.IDENT:
		switch t.lit {
		case "true":
			return constant.MakeInt64(1), nil
		case "false":
			return constant.MakeInt64(0), nil
		}
		if p.peek(0).tok == token.LPAREN {
			// Functional cast, e.g. "int32_t(0x80000000)".
			typ := p.ev.typeOf([]string{t.lit})
			if typ == nil {
				return nil, fmt.Errorf("%w: call of %v", ErrNotConstant, t.lit)
			}
			p.next()
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			return convert(v, typ)
		}
		if p.ev.ident == nil {
			return nil, fmt.Errorf("%w: unknown identifier %v", ErrNotConstant, t.lit)
		}
		return p.ev.ident(t.lit)
	default:
		return nil, fmt.Errorf("%w: unexpected %v", ErrNotConstant, t)
	}
}

// typeOf resolves the words of a cast to an arithmetic type.
func (ev *evaluator) typeOf(words []string) *Type {
	allBuiltin := true
	for _, w := range words {
		if w == "const" {
			continue
		}
		if !builtinWords[w] {
			allBuiltin = false
		}
	}
	if allBuiltin {
		t, err := builtinType(words, ev.dm)
		if err != nil || t.Kind == Void {
			return nil
		}
		return t
	}
	if len(words) == 1 && ev.typ != nil {
		return ev.typ(words[0])
	}
	return nil
}

// Node evaluates a clang expression node.
func (ev *evaluator) Node(n *clangast.Node) (constant.Value, error) {
	if s := n.ValueString(); s != "" {
		switch n.Kind {
		case "ConstantExpr", "IntegerLiteral", "FloatingLiteral", "CharacterLiteral",
			"CXXBoolLiteralExpr", "StringLiteral":
			return parseValue(s)
		}
	}
	child := func(i int) (constant.Value, error) {
		var exprs []*clangast.Node
		for _, c := range n.Inner {
			if !strings.HasSuffix(c.Kind, "Comment") {
				exprs = append(exprs, c)
			}
		}
		if i >= len(exprs) {
			return nil, fmt.Errorf("%w: %v has no operand %v", ErrNotConstant, n.Kind, i)
		}
		return ev.Node(exprs[i])
	}
	switch n.Kind {
	case "ConstantExpr", "ParenExpr", "ImplicitCastExpr", "ExprWithCleanups", "MaterializeTemporaryExpr":
		return child(0)
	case "CStyleCastExpr", "CXXFunctionalCastExpr", "CXXStaticCastExpr":
		v, err := child(0)
		if err != nil {
			return nil, err
		}
		if n.Type == nil {
			return v, nil
		}
		t, err := ParseType(n.Type.QualType, ev.dm)
		if err != nil {
			return nil, err
		}
		if t.Kind == Named {
			if t = ev.typ(t.Name); t == nil {
				return nil, fmt.Errorf("%w: cast to %v", ErrNotConstant, n.Type.QualType)
			}
		}
		return convert(v, t)
	case "UnaryOperator":
		op, ok := opcodes[n.Opcode]
		if !ok {
			return nil, fmt.Errorf("%w: operator %v", ErrNotConstant, n.Opcode)
		}
		x, err := child(0)
		if err != nil {
			return nil, err
		}
		return unaryOp(op, x)
	case "BinaryOperator":
		op, ok := opcodes[n.Opcode]
		if !ok {
			return nil, fmt.Errorf("%w: operator %v", ErrNotConstant, n.Opcode)
		}
		x, err := child(0)
		if err != nil {
			return nil, err
		}
		y, err := child(1)
		if err != nil {
			return nil, err
		}
		return binaryOp(x, op, y)
	case "ConditionalOperator":
		cond, err := child(0)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return child(1)
		}
		return child(2)
	case "DeclRefExpr":
		if n.ReferencedDecl == nil || ev.ident == nil {
			return nil, fmt.Errorf("%w: unresolved reference", ErrNotConstant)
		}
		return ev.ident(n.ReferencedDecl.Name)
	default:
		return nil, fmt.Errorf("%w: %v", ErrNotConstant, n.Kind)
	}
}

// parseValue parses a value as clang prints it: integers, floats, "true",
// "false" and quoted strings.
func parseValue(s string) (constant.Value, error) {
	switch s {
	case "true":
		return constant.MakeInt64(1), nil
	case "false":
		return constant.MakeInt64(0), nil
	}
	if strings.HasPrefix(s, `"`) {
		v := constant.MakeFromLiteral(s, token.STRING, 0)
		if v.Kind() == constant.Unknown {
			return nil, fmt.Errorf("%w: bad string %v", ErrNotConstant, s)
		}
		return v, nil
	}
	neg := strings.HasPrefix(s, "-")
	lit := strings.TrimPrefix(s, "-")
	v := constant.MakeFromLiteral(lit, token.INT, 0)
	if v.Kind() == constant.Unknown {
		v = constant.MakeFromLiteral(lit, token.FLOAT, 0)
	}
	if v.Kind() == constant.Unknown {
		return nil, fmt.Errorf("%w: bad value %v", ErrNotConstant, s)
	}
	if neg {
		v = constant.UnaryOp(token.SUB, v, 0)
	}
	return v, nil
}

func isNumeric(v constant.Value) bool {
	return v.Kind() == constant.Int || v.Kind() == constant.Float
}

func truthy(v constant.Value) bool {
	return isNumeric(v) && constant.Sign(v) != 0
}

func boolInt(b bool) constant.Value {
	if b {
		return constant.MakeInt64(1)
	}
	return constant.MakeInt64(0)
}

func unaryOp(op token.Token, x constant.Value) (constant.Value, error) {
	if !isNumeric(x) {
		return nil, fmt.Errorf("%w: %v applied to %v", ErrNotConstant, op, x.Kind())
	}
	switch op {
	case token.SUB, token.ADD:
		return constant.UnaryOp(op, x, 0), nil
	case token.TILDE, token.XOR:
		if x.Kind() != constant.Int {
			return nil, fmt.Errorf("%w: ~ applied to %v", ErrNotConstant, x)
		}
		return constant.UnaryOp(token.XOR, x, 0), nil
	case token.NOT:
		return boolInt(!truthy(x)), nil
	default:
		return nil, fmt.Errorf("%w: unary %v", ErrNotConstant, op)
	}
}

func binaryOp(x constant.Value, op token.Token, y constant.Value) (constant.Value, error) {
	if !isNumeric(x) || !isNumeric(y) {
		return nil, fmt.Errorf("%w: %v %v %v", ErrNotConstant, x.Kind(), op, y.Kind())
	}
	ints := x.Kind() == constant.Int && y.Kind() == constant.Int
	switch op {
	case token.ADD, token.SUB, token.MUL:
		return constant.BinaryOp(x, op, y), nil
	case token.QUO:
		if constant.Sign(y) == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrNotConstant)
		}
		if ints {
			return constant.BinaryOp(x, token.QUO_ASSIGN, y), nil
		}
		return constant.BinaryOp(x, token.QUO, y), nil
	case token.REM, token.AND, token.OR, token.XOR:
		if !ints {
			return nil, fmt.Errorf("%w: %v on floats", ErrNotConstant, op)
		}
		if op == token.REM && constant.Sign(y) == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrNotConstant)
		}
		return constant.BinaryOp(x, op, y), nil
	case token.SHL, token.SHR:
		s, ok := constant.Uint64Val(y)
		if !ints || !ok || s > 1024 {
			return nil, fmt.Errorf("%w: bad shift %v %v %v", ErrNotConstant, x, op, y)
		}
		return constant.Shift(x, op, uint(s)), nil
	case token.LSS, token.LEQ, token.GTR, token.GEQ, token.EQL, token.NEQ:
		return boolInt(constant.Compare(x, op, y)), nil
	case token.LAND:
		return boolInt(truthy(x) && truthy(y)), nil
	case token.LOR:
		return boolInt(truthy(x) || truthy(y)), nil
	default:
		return nil, fmt.Errorf("%w: binary %v", ErrNotConstant, op)
	}
}

// convert applies a C cast to an arithmetic type. Integers wrap around
// to the width of the target type.
func convert(v constant.Value, t *Type) (constant.Value, error) {
	if !isNumeric(v) {
		return nil, fmt.Errorf("%w: cast of %v", ErrNotConstant, v.Kind())
	}
	switch t.Kind {
	case Float:
		return constant.ToFloat(v), nil
	case Bool:
		return boolInt(truthy(v)), nil
	case Int, Uint:
		if v.Kind() == constant.Float {
			f, _ := constant.Float64Val(v)
			v = constant.MakeFloat64(float64(int64(f)))
			v = constant.ToInt(v)
		}
		bits := uint(t.Size * 8)
		mod := constant.Shift(constant.MakeInt64(1), token.SHL, bits)
		v = constant.BinaryOp(v, token.AND, constant.BinaryOp(mod, token.SUB, constant.MakeInt64(1)))
		if t.Kind == Int {
			half := constant.Shift(constant.MakeInt64(1), token.SHL, bits-1)
			if constant.Compare(v, token.GEQ, half) {
				v = constant.BinaryOp(v, token.SUB, mod)
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: cast to %v", ErrNotConstant, t)
	}
}
