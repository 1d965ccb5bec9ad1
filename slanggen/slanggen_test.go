package slanggen

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/ir/irtest"
	"github.com/slang-go/slang/link"
	"github.com/slang-go/slang/logger"
)

const fooConfig = `
[header]
path = "foo.h"
clang-args = ["-xc++", "-std=c++17"]

[codegen]
package = "foo"

[[rule]]
select.kind = "function"
select.name = "foo_.*"
action.include = true

[[rule]]
select.kind = "type"
select.name = "Foo.*|foo_.*|ISlangUnknown|FileSystemContentsCallBack|PathKind"
action.include = true

[[rule]]
select.kind = "var"
select.name = "FOO_.*"
action.include = true

[[rule]]
select.kind = "function"
action.to-casing = "go"

[[rule]]
select.kind = "type"
action.to-casing = "go"

[link]
library = "foo"
target = "foo"

[layout]
package = "foo"

[[layout.pair]]
host = "UUID"
native = "FooUUID"
`

type fakeBuilder struct {
	root string
	err  error
}

func (b *fakeBuilder) Build(ctx context.Context, target string, defines map[string]string) (link.Output, error) {
	if b.err != nil {
		return link.Output{}, b.err
	}
	return link.Output{Root: b.root, Profile: "Release"}, nil
}

func testOptions(t *testing.T, log *bytes.Buffer) *Options {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(fooConfig), dir)
	require.NoError(t, err)
	return &Options{
		Config:   cfg,
		Source:   irtest.LoadSource(t).Canned(),
		Strategy: link.StrategyStatic,
		GOOS:     "linux",
		Builder:  &fakeBuilder{root: filepath.Join(dir, ".slangbuild")},
		Logger:   &logger.Logger{Writer: log},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCMode(t *testing.T) {
	require := require.New(t)

	require.True(cMode(nil))
	require.True(cMode([]string{"-std=c11", "-DFOO"}))
	require.False(cMode([]string{"-xc++"}))
	require.False(cMode([]string{"-std=gnu++20"}))
}

func TestExtract(t *testing.T) {
	require := require.New(t)

	var log bytes.Buffer
	ex, err := Extract(context.Background(), testOptions(t, &log))
	require.NoError(err)
	require.True(ex.Module.CPlusPlus)

	// Bar is reachable through foo_TargetDesc.bar.
	require.Contains(ex.Filtered, "Bar")
	require.Contains(ex.Filtered, "size_t")
	require.NotContains(ex.Filtered, "FooStage")
	require.NotContains(ex.Filtered, "foo_Holder")

	var names []string
	for _, s := range ex.Included() {
		names = append(names, s.Name)
	}
	require.Contains(names, "foo_createSession")
	require.Contains(names, "FOO_API_VERSION")
	require.NotContains(names, "bar_create")
}

func TestRun(t *testing.T) {
	require := require.New(t)

	var log, stats bytes.Buffer
	o := testOptions(t, &log)
	o.Stats = &stats
	require.NoError(Run(context.Background(), o))

	dir := o.Config.Dir
	bindings := readFile(t, filepath.Join(dir, "zbindings.go"))
	require.True(strings.HasPrefix(bindings, "// Code generated by slanggen from foo.h. DO NOT EDIT."))
	require.Contains(bindings, "package foo")
	require.Contains(bindings, "func FooCreateSession(")
	require.NotContains(bindings, "bar_create")

	cgo := readFile(t, filepath.Join(dir, "zlink_static_linux.go"))
	require.Contains(cgo, "//go:build slangstatic && linux")
	require.Contains(cgo, "-L${SRCDIR}/.slangbuild/build/Release/lib -lfoo")

	lay := readFile(t, filepath.Join(dir, "zlayout.go"))
	require.Contains(lay, "unsafe.Sizeof(*new(UUID))")
	require.Contains(lay, "unsafe.Sizeof(*new(FooUUID))")

	require.Contains(log.String(), "INFO: link-lib=static=foo")
	require.Contains(log.String(), "not allow-listed but referenced")
	require.Contains(log.String(), "INFO: wrote "+filepath.Join(dir, "zlayout.go"))

	require.Contains(stats.String(), "==Binding stats==")
	require.Contains(stats.String(), "==Timing stats==")
	require.Contains(stats.String(), "Write bindings")
}

func TestLinkDynamic(t *testing.T) {
	require := require.New(t)

	var log bytes.Buffer
	o := testOptions(t, &log)
	o.Strategy = link.StrategyDynamic
	o.GOOS = "darwin"
	o.Builder = &fakeBuilder{err: errors.New("must not build")}
	path, err := Link(context.Background(), o)
	require.NoError(err)
	require.Equal(filepath.Join(o.Config.Dir, "zlink_darwin.go"), path)
	cgo := readFile(t, path)
	require.Contains(cgo, "//go:build darwin && !slangstatic")
	require.Contains(cgo, "// #cgo LDFLAGS: -lfoo\n")
}

func TestLinkWindowsNeedsInstallDir(t *testing.T) {
	require := require.New(t)

	var log bytes.Buffer
	o := testOptions(t, &log)
	o.Strategy = link.StrategyDynamic
	o.GOOS = "windows"
	_, err := Link(context.Background(), o)
	require.ErrorContains(err, "SLANG_DIR")

	o.Getenv = func(key string) string {
		if key == "SLANG_DIR" {
			return filepath.Join(o.Config.Dir, "install")
		}
		return ""
	}
	path, err := Link(context.Background(), o)
	require.NoError(err)
	require.Contains(readFile(t, path), "-L${SRCDIR}/install/bin -L${SRCDIR}/install/lib -lfoo")
}

func TestLinkBuildFailure(t *testing.T) {
	require := require.New(t)

	var log bytes.Buffer
	o := testOptions(t, &log)
	o.Builder = &fakeBuilder{err: errors.New("cmake exploded")}
	_, err := Link(context.Background(), o)
	require.ErrorContains(err, "link static: cmake exploded")
}

func TestLayoutOptional(t *testing.T) {
	require := require.New(t)

	var log bytes.Buffer
	o := testOptions(t, &log)
	o.Config.Layout = nil
	path, err := Layout(o)
	require.NoError(err)
	require.Empty(path)
}

func TestSymbolTableAndGraph(t *testing.T) {
	require := require.New(t)

	var log bytes.Buffer
	ex, err := Extract(context.Background(), testOptions(t, &log))
	require.NoError(err)

	var tbl bytes.Buffer
	WriteSymbolTable(&tbl, ex)
	require.Contains(tbl.String(), "foo_createSession")
	require.Contains(tbl.String(), "FooCreateSession")

	dot := string(SymbolGraph(ex))
	require.True(strings.HasPrefix(dot, "digraph \"slang\" {\n  node [shape=box]\n"))
	require.Contains(dot, `[label="Bar", style=dashed]`)
	require.Contains(dot, `[label="foo_createSession"]`)
}
