package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	require := require.New(t)

	dm := DataModelFor("linux")
	for spelling, want := range map[string]string{
		"int":                                 "int32",
		"unsigned":                            "uint32",
		"unsigned long":                       "uint64",
		"long long":                           "int64",
		"unsigned long long":                  "uint64",
		"signed char":                         "int8",
		"char":                                "int8",
		"unsigned char":                       "uint8",
		"short":                               "int16",
		"unsigned short int":                  "uint16",
		"bool":                                "bool",
		"_Bool":                               "bool",
		"float":                               "float32",
		"double":                              "float64",
		"wchar_t":                             "int32",
		"char16_t":                            "uint16",
		"const char *":                        "*int8",
		"char *const *":                       "**int8",
		"void **":                             "**void",
		"slang::IBlob **":                     "**slang_IBlob",
		"::slang::IBlob *":                    "*slang_IBlob",
		"struct FooUUID":                      "FooUUID",
		"const FooUUID &":                     "*FooUUID",
		"uint8_t[16]":                         "[16]uint8_t",
		"float[2][3]":                         "[2][3]float32",
		"void (*)(int, const char *, void *)": "*func(int32, *int8, *void)",
		"FooResult (FooInt, foo::IBlob **)":   "func(FooInt, **foo_IBlob) FooResult",
		"const char *() const":                "func() *int8",
		"int (*)(const char *, ...)":          "*func(*int8, ...) int32",
		"void (void)":                         "func()",
		"int (*[4])(void)":                    "[4]*func() int32",
		"void (__stdcall *)(void)":            "*func()",

		"uint32_t () __attribute__((nothrow))":            "func() uint32_t",
		"int () noexcept(true)":                           "func() int32",
		"void () throw()":                                 "func()",
		"void (*)(int) __attribute__((noreturn)) noexcept": "*func(int32)",
	} {
		typ, err := ParseType(spelling, dm)
		require.NoError(err, spelling)
		require.Equal(want, typ.String(), spelling)
	}
}

func TestParseTypeQualifiers(t *testing.T) {
	require := require.New(t)

	dm := DataModelFor("linux")

	typ, err := ParseType("const char *", dm)
	require.NoError(err)
	require.False(typ.Const)
	require.True(typ.Elem.Const)

	typ, err = ParseType("char *const", dm)
	require.NoError(err)
	require.True(typ.Const)
	require.False(typ.Elem.Const)

	typ, err = ParseType("const FooUUID &", dm)
	require.NoError(err)
	require.True(typ.Reference)
	require.True(typ.Elem.Const)

	typ, err = ParseType("void (*)(int)", dm)
	require.NoError(err)
	require.True(typ.IsFuncPtr())
}

func TestParseTypeWindows(t *testing.T) {
	require := require.New(t)

	dm := DataModelFor("windows")
	for spelling, want := range map[string]string{
		"long":          "int32",
		"unsigned long": "uint32",
		"long long":     "int64",
		"wchar_t":       "uint16",
	} {
		typ, err := ParseType(spelling, dm)
		require.NoError(err, spelling)
		require.Equal(want, typ.String(), spelling)
	}
}

func TestParseTypeErrors(t *testing.T) {
	require := require.New(t)

	dm := DataModelFor("linux")
	for _, spelling := range []string{
		"long double",
		"__int128",
		"int[]",
		"int (",
		"std::vector<int>",
		"",
		"signed unsigned",
		"int () __attribute__((nothrow)",
	} {
		_, err := ParseType(spelling, dm)
		require.Error(err, spelling)
	}

	_, err := ParseType("struct (unnamed struct at foo.h:3:9)", dm)
	require.True(errors.Is(err, ErrAnonymous))
}
