package ir_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slang-go/slang/clangast"
	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/ir"
	"github.com/slang-go/slang/ir/irtest"
	"github.com/slang-go/slang/logger"
)

func TestBuildSymbols(t *testing.T) {
	require := require.New(t)

	mod := irtest.BuildModule(t)

	var names []string
	for _, sym := range mod.Symbols {
		names = append(names, sym.Name)
	}
	require.Equal([]string{
		"size_t", "int32_t", "int64_t", "uint8_t", "uint16_t", "uint32_t",
		"FooResult", "FooInt", "FileSystemContentsCallBack",
		"FooStage", "FOO_LEVEL", "PathKind",
		"FooUUID", "Bar", "FooValue", "ISlangUnknown",
		"foo_TargetDesc", "foo_IBlob", "foo_INamedBlob", "foo_Holder",
		"FOO_LIMIT",
		"foo_createSession", "foo_shutdown", "foo_getLastError", "bar_create",
		// Macros, sorted.
		"BAR_LIMIT", "FOO_API_VERSION", "FOO_FLAGS", "FOO_FLAG_A", "FOO_HALF",
		"FOO_NAME", "FOO_NEG", "FOO_PI", "INT32_MAX", "UINT8_MAX",
		"_LP64", "__clang__", "__clang_major__", "__cplusplus",
	}, names)

	require.Equal(config.KindFunction, mod.Symbols[21].Kind)
	require.Equal("foo.h", mod.Symbols[21].File)
	require.Equal(config.KindVar, mod.Symbols[10].Kind)
	require.Equal(config.KindType, mod.Symbols[0].Kind)
	require.Equal("/usr/lib/llvm-17/lib/clang/17/include/__stddef_size_t.h", mod.Symbols[0].File)
	require.Equal("", mod.Symbols[len(mod.Symbols)-1].File)
}

func TestBuildTypedefs(t *testing.T) {
	require := require.New(t)

	mod := irtest.BuildModule(t)

	require.Equal("int32_t", mod.Typedefs["FooResult"].Type.String())
	require.Equal("int32", mod.Resolve(mod.Typedefs["FooResult"].Type).String())
	// The dump doesn't declare __int32_t, so the desugared type is used.
	require.Equal("int32", mod.Typedefs["int32_t"].Type.String())
	require.Equal("uint64", mod.Typedefs["size_t"].Type.String())

	cb := mod.Typedefs["FileSystemContentsCallBack"].Type
	require.True(cb.IsFuncPtr())
	require.Equal("*func(int32, *int8, *void)", cb.String())
}

func TestBuildEnums(t *testing.T) {
	require := require.New(t)

	mod := irtest.BuildModule(t)

	stage := mod.Enums["FooStage"]
	require.NotNil(stage)
	require.False(stage.Scoped)
	require.Equal("int32", stage.Underlying.String())
	var values []string
	for _, c := range stage.Constants {
		values = append(values, c.Name+"="+c.Value.String())
	}
	require.Equal([]string{"FOO_STAGE_NONE=0", "FOO_STAGE_VERTEX=1", "FOO_STAGE_PIXEL=5", "FOO_STAGE_COUNT=6"}, values)

	kind := mod.Enums["PathKind"]
	require.True(kind.Scoped)
	require.Equal("int32_t", kind.Underlying.String())
	require.Equal("int32", mod.Arithmetic(kind.Underlying).String())
	require.Equal("0", kind.Constants[0].Value.String())
	require.Equal("4", kind.Constants[1].Value.String())

	// The anonymous enum's enumerator is a plain constant.
	require.Equal("6", mod.Consts["FOO_LEVEL"].Value.String())
	require.False(mod.Consts["FOO_LEVEL"].Macro)
	require.Nil(mod.Enums[""])
}

func TestBuildConsts(t *testing.T) {
	require := require.New(t)

	mod := irtest.BuildModule(t)

	for name, want := range map[string]string{
		"FOO_LIMIT":       "16",
		"FOO_API_VERSION": "2",
		"FOO_FLAG_A":      "8",
		"FOO_FLAGS":       "24",
		"FOO_NAME":        `"foobar"`,
		"FOO_PI":          "3.25",
		"FOO_NEG":         "-1",
		"FOO_HALF":        "3",
		"BAR_LIMIT":       "9",
		"__cplusplus":     "201703",
	} {
		c := mod.Consts[name]
		require.NotNil(c, name)
		require.Equal(want, c.Value.String(), name)
	}
	require.True(mod.Consts["FOO_PI"].Macro)

	for _, name := range []string{"FOO_API", "FOO_MAX", "FOO_UNSUPPORTED"} {
		require.Nil(mod.Consts[name], name)
	}
}

func TestBuildRecords(t *testing.T) {
	require := require.New(t)

	mod := irtest.BuildModule(t)

	desc := mod.Records["foo_TargetDesc"]
	require.NotNil(desc)
	require.Equal("Describes a compilation target.", desc.Doc)
	require.True(desc.TriviallyCopyable)
	require.False(desc.Polymorphic)
	var fields []string
	for _, f := range desc.Fields {
		fields = append(fields, f.Name+" "+f.Type.String())
	}
	require.Equal([]string{
		"structureSize size_t",
		"stage FooStage",
		"profile *int8",
		"bar *Bar",
		"callback FileSystemContentsCallBack",
		"weights [2]float32",
	}, fields)

	unknown := mod.Records["ISlangUnknown"]
	require.True(unknown.Polymorphic)
	require.Len(unknown.Methods, 3)
	require.Equal("queryInterface", unknown.Methods[0].Name)
	require.Equal("func(*FooUUID, **void) FooResult", unknown.Methods[0].Sig.String())
	require.True(unknown.Methods[0].Virtual)
	require.False(unknown.VirtualDestructor)

	blob := mod.Records["foo_IBlob"]
	require.Len(blob.Bases, 1)
	require.Equal("ISlangUnknown", blob.Bases[0].Type.Name)

	named := mod.Records["foo_INamedBlob"]
	require.Equal("foo_IBlob", named.Bases[0].Type.Name)
	require.Len(named.Methods, 2)
	require.True(named.Methods[0].Virtual, "override without virtual keyword")
	require.Equal("func() *int8", named.Methods[1].Sig.String())

	holder := mod.Records["foo_Holder"]
	require.False(holder.TriviallyCopyable)
	require.Len(holder.Fields, 1)
	require.Empty(holder.Methods)

	require.True(mod.Records["FooValue"].Union)
}

func TestBuildFunctions(t *testing.T) {
	require := require.New(t)

	var log bytes.Buffer
	src := irtest.LoadSource(t)
	mod, err := ir.Build(src.Root, src.Macros, ir.Options{
		DataModel: ir.DataModelFor("linux"),
		Logger:    &logger.Logger{Writer: &log, MinLevel: logger.WARN},
	})
	require.NoError(err)

	fn := mod.Functions["foo_createSession"]
	require.NotNil(fn)
	require.Equal("func(FooInt, **foo_IBlob) FooResult", fn.Sig.String())
	require.Equal([]string{"apiVersion", "outBlob"}, fn.ParamNames)
	require.Equal("Creates a session.", fn.Doc)

	require.Equal("func()", mod.Functions["foo_shutdown"].Sig.String())
	require.Equal("func() *int8", mod.Functions["foo_getLastError"].Sig.String())
	require.Equal("foo.h", mod.Functions["foo_getLastError"].File)

	require.Nil(mod.Functions["foo_cppOnly"])
	require.Contains(log.String(), "WARNING: skipping function foo_cppOnly: no C linkage")
}

func TestBuildCMode(t *testing.T) {
	require := require.New(t)

	root := &clangast.Node{Kind: "TranslationUnitDecl", Inner: []*clangast.Node{
		{Kind: "RecordDecl", TagUsed: "struct", CompleteDefinition: true, Inner: []*clangast.Node{
			{Kind: "FieldDecl", Name: "x", Type: &clangast.QualType{QualType: "int"}},
		}},
		{Kind: "TypedefDecl", Name: "Anon", Type: &clangast.QualType{QualType: "struct (unnamed at a.h:1:9)"}},
		{Kind: "RecordDecl", Name: "Point", TagUsed: "struct", CompleteDefinition: true},
		{Kind: "TypedefDecl", Name: "Point", Type: &clangast.QualType{QualType: "struct Point"}},
		{Kind: "FunctionDecl", Name: "f", MangledName: "f_mangled_anyway", Type: &clangast.QualType{QualType: "int (Anon *, Point)"}},
	}}
	mod, err := ir.Build(root, nil, ir.Options{DataModel: ir.DataModelFor("linux"), CMode: true})
	require.NoError(err)

	// The anonymous struct is named by the typedef following it.
	require.NotNil(mod.Records["Anon"])
	require.Equal("x", mod.Records["Anon"].Fields[0].Name)
	require.Nil(mod.Typedefs["Anon"])
	// A typedef naming its own tag adds nothing.
	require.Nil(mod.Typedefs["Point"])
	require.NotNil(mod.Records["Point"])

	require.NotNil(mod.Functions["f"])
	require.Equal("func(*Anon, Point) int32", mod.Functions["f"].Sig.String())

	_, err = ir.Build(&clangast.Node{Kind: "RecordDecl"}, nil, ir.Options{})
	require.Error(err)
}
