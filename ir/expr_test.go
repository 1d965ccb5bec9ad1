package ir

import (
	"errors"
	"fmt"
	"go/constant"
	"testing"

	"github.com/slang-go/slang/clangast"
	"github.com/stretchr/testify/require"
)

func testEvaluator() *evaluator {
	idents := map[string]constant.Value{
		"FOO_A": constant.MakeInt64(8),
	}
	return &evaluator{
		dm: DataModelFor("linux"),
		ident: func(name string) (constant.Value, error) {
			if v, ok := idents[name]; ok {
				return v, nil
			}
			return nil, fmt.Errorf("%w: unknown identifier %v", ErrNotConstant, name)
		},
		typ: func(name string) *Type {
			if name == "int32_t" {
				return &Type{Kind: Int, Size: 4}
			}
			return nil
		},
	}
}

func TestMacro(t *testing.T) {
	require := require.New(t)

	ev := testEvaluator()
	for body, want := range map[string]string{
		"2":                       "2",
		"(1u << 3)":               "8",
		"1 << 3 + 1":              "16",
		"1 | 2 << 1 == 4":         "1",
		"7 / 2":                   "3",
		"-7 / 2":                  "-3",
		"-7 % 3":                  "-1",
		"7.0 / 2":                 "3.5",
		"3.25f":                   "3.25",
		"0x10UL":                  "16",
		"010":                     "8",
		"201703L":                 "201703",
		"'A'":                     "65",
		`"foo" "bar"`:             `"foobar"`,
		"~0":                      "-1",
		"!0":                      "1",
		"1 ? 2 : 3":               "2",
		"0 ? 2 : 3":               "3",
		"((int32_t)0xFFFFFFFF)":   "-1",
		"(unsigned char)300":      "44",
		"(unsigned)-1":            "4294967295",
		"int32_t(0x80000000)":     "-2147483648",
		"FOO_A | 0x10":            "24",
		"(FOO_A) - 1":             "7",
		"2 < 3 && 3 > 4":          "0",
		"2 < 3 || 3 > 4":          "1",
		"1<-1":                    "0",
		"(long long)1 << 40":      "1099511627776",
		"(int)2.9":                "2",
	} {
		v, err := ev.Macro(body)
		require.NoError(err, body)
		require.Equal(want, v.String(), body)
	}
}

func TestMacroNotConstant(t *testing.T) {
	require := require.New(t)

	ev := testEvaluator()
	for _, body := range []string{
		"",
		"__attribute__((unused))",
		"1 / 0",
		"FOO_MAX(1, 2)",
		`"a" + 1`,
		"(void*)0",
		"1 +",
		"(1",
		"1.5 % 2",
		"1 << -1",
		"UNKNOWN",
	} {
		_, err := ev.Macro(body)
		require.True(errors.Is(err, ErrNotConstant), "%q: %v", body, err)
	}

	_, err := ev.Macro("#x")
	require.Error(err)
}

func TestNode(t *testing.T) {
	require := require.New(t)

	ev := testEvaluator()
	lit := func(v string) *clangast.Node {
		return &clangast.Node{Kind: "IntegerLiteral", Value: []byte(`"` + v + `"`)}
	}

	v, err := ev.Node(&clangast.Node{Kind: "ConstantExpr", Value: []byte(`"-5"`), Inner: []*clangast.Node{lit("5")}})
	require.NoError(err)
	require.Equal("-5", v.String())

	v, err = ev.Node(&clangast.Node{Kind: "BinaryOperator", Opcode: "<<", Inner: []*clangast.Node{
		{Kind: "ParenExpr", Inner: []*clangast.Node{lit("1")}},
		{Kind: "ImplicitCastExpr", Inner: []*clangast.Node{
			{Kind: "DeclRefExpr", ReferencedDecl: &clangast.Node{Name: "FOO_A"}},
		}},
	}})
	require.NoError(err)
	require.Equal("256", v.String())

	v, err = ev.Node(&clangast.Node{Kind: "UnaryOperator", Opcode: "~", Inner: []*clangast.Node{lit("0")}})
	require.NoError(err)
	require.Equal("-1", v.String())

	v, err = ev.Node(&clangast.Node{
		Kind:  "CStyleCastExpr",
		Type:  &clangast.QualType{QualType: "unsigned int"},
		Inner: []*clangast.Node{{Kind: "UnaryOperator", Opcode: "-", Inner: []*clangast.Node{lit("1")}}},
	})
	require.NoError(err)
	require.Equal("4294967295", v.String())

	v, err = ev.Node(&clangast.Node{Kind: "FloatingLiteral", Value: []byte(`"1.5"`)})
	require.NoError(err)
	require.Equal("1.5", v.String())

	v, err = ev.Node(&clangast.Node{Kind: "CXXBoolLiteralExpr", Value: []byte(`true`)})
	require.NoError(err)
	require.Equal("1", v.String())

	_, err = ev.Node(&clangast.Node{Kind: "CallExpr"})
	require.True(errors.Is(err, ErrNotConstant))
}
