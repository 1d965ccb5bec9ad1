package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	require := require.New(t)

	c, err := Parse([]byte(DefaultConfig()), "sys")
	require.NoError(err)

	require.Equal(filepath.Join("sys", "third_party", "slang", "include", "slang.h"), c.Path(c.Header.Path))
	require.Equal([]string{"-xc++", "-std=c++17"}, c.Header.ClangArgs)
	require.True(c.Codegen.Has(CodegenFunctions))
	require.True(c.Codegen.Has(CodegenTypes))
	require.True(c.Codegen.Has(CodegenVars))
	require.True(c.Codegen.Vtables)
	require.True(c.Codegen.DeriveCopy)
	require.False(c.Codegen.DocComments)

	require.Len(c.Rules, 6)
	require.Equal(KindFunction, c.Rules[0].Select.Kind)
	require.Equal("slang_.*", c.Rules[0].Select.Name.String())
	require.NotNil(c.Rules[0].Actions.Include)
	require.True(*c.Rules[0].Actions.Include)
	require.Equal("go", c.Rules[5].Actions.ToCasing)

	require.Equal("slang", c.Link.Library)
	require.Equal("slang", c.Link.Target)
	require.Equal("Release", c.Link.Profile)
	require.Equal("SLANG_DIR", c.Link.InstallEnv)
	require.Equal("STATIC", c.Link.Defines["SLANG_LIB_TYPE"])
	require.Equal([]string{"c++"}, c.Link.ExtraLibs["darwin"])
	require.Nil(c.Layout)
}

func TestDefaults(t *testing.T) {
	require := require.New(t)

	c, err := Parse([]byte(`
[header]
path = "foo.h"
`), "")
	require.NoError(err)
	require.Equal("sys", c.Codegen.Package)
	require.Equal("zbindings.go", c.Codegen.Output)
	require.Equal([]string{CodegenFunctions, CodegenTypes, CodegenVars}, c.Codegen.Kinds)
	require.Equal(".slangbuild", c.Link.BuildDir)
	require.Empty(c.Rules)
}

func TestInvalid(t *testing.T) {
	require := require.New(t)

	for name, src := range map[string]string{
		"no header":     `[codegen]`,
		"unknown field": "[header]\npath = \"a.h\"\nbogus = 1\n",
		"bad kind":      "[header]\npath = \"a.h\"\n[codegen]\nkinds = [\"macros\"]\n",
		"bad select":    "[header]\npath = \"a.h\"\n[[rule]]\nselect.kind = \"method\"\n",
		"bad regexp":    "[header]\npath = \"a.h\"\n[[rule]]\nselect.name = \"(\"\n",
		"layout pair":   "[header]\npath = \"a.h\"\n[layout]\npackage = \"slang\"\n[[layout.pair]]\nhost = \"X\"\n",
	} {
		_, err := Parse([]byte(src), "")
		require.Error(err, name)
		var cErr *Error
		require.True(errors.As(err, &cErr), name)
	}
}

func TestLoadImports(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	require.NoError(os.MkdirAll(filepath.Join(dir, "common"), 0o777))
	require.NoError(os.WriteFile(filepath.Join(dir, "common", "rules.toml"), []byte(`
[header]
path = "slang.h"
include-dirs = ["."]

[[rule]]
select.kind = "var"
select.name = "SLANG_.*"
action.include = true
`), 0o666))
	require.NoError(os.WriteFile(filepath.Join(dir, "slanggen.toml"), []byte(`
imports = ["common/rules.toml"]

[[rule]]
select.kind = "function"
select.name = "slang_.*"
action.include = true
`), 0o666))

	c, err := Load(filepath.Join(dir, "slanggen.toml"))
	require.NoError(err)
	require.Equal(filepath.Join(dir, "common", "slang.h"), c.Path(c.Header.Path))
	require.Equal([]string{filepath.Join(dir, "common")}, c.Header.IncludeDirs)
	require.Len(c.Rules, 2)
	require.Equal(KindFunction, c.Rules[0].Select.Kind)
	require.Equal(KindVar, c.Rules[1].Select.Kind)
}

func TestLoadErrorCarriesPath(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "slanggen.toml")
	require.NoError(os.WriteFile(path, []byte("[header\n"), 0o666))
	_, err := Load(path)
	var cErr *Error
	require.True(errors.As(err, &cErr))
	require.Contains(cErr.Error(), path)
	require.Contains(cErr.String(), "Error in file")
}

func TestShippedConfig(t *testing.T) {
	require := require.New(t)

	c, err := Load(filepath.Join("..", "sys", "slanggen.toml"))
	require.NoError(err)
	require.Equal("sys", c.Codegen.Package)
	require.NotNil(c.Layout)
	require.Equal("zlayout.go", c.Layout.Output)
	require.Len(c.Layout.Pairs, 1)
	require.Equal("UUID", c.Layout.Pairs[0].Host)
	require.Equal("SlangUUID", c.Layout.Pairs[0].Native)
	require.Equal(filepath.Join("..", "sys", "third_party", "slang"), c.Path(c.Link.SourceDir))
}
