package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slang-go/slang/logger"
)

func run(t *testing.T, env map[string]string, args ...string) (stdout, log string, err error) {
	t.Helper()
	var out, logBuf bytes.Buffer
	l := &logger.Logger{Writer: &logBuf}
	cmd := NewCLI(&out, l, func(k string) string { return env[k] })
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), logBuf.String(), err
}

func TestInit(t *testing.T) {
	require := require.New(t)

	dir := filepath.Join(t.TempDir(), "sys")
	_, log, err := run(t, nil, "init", dir)
	require.NoError(err)
	require.Contains(log, "INFO: wrote "+filepath.Join(dir, "slanggen.toml"))

	data, err := os.ReadFile(filepath.Join(dir, "slanggen.toml"))
	require.NoError(err)
	require.Contains(string(data), `install-env = "SLANG_DIR"`)

	_, _, err = run(t, nil, "init", dir)
	require.ErrorContains(err, "already exists")
}

const linkConfig = `
[header]
path = "foo.h"

[codegen]
package = "foo"

[link]
library = "foo"

[layout]
package = "foo"

[[layout.pair]]
host = "UUID"
native = "FooUUID"
`

func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slanggen.toml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o666))
	return path
}

func TestLinkCommand(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, linkConfig)
	_, log, err := run(t, nil, "link", "-c", path, "--goos", "linux", "-v")
	require.NoError(err)
	require.Contains(log, "INFO: link-lib=foo")

	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), "zlink_linux.go"))
	require.NoError(err)
	require.Contains(string(data), "// #cgo LDFLAGS: -lfoo\n")
}

func TestGOOSFromEnv(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, linkConfig)
	_, log, err := run(t, map[string]string{"GOOS": "darwin"}, "link", "-c", path)
	require.NoError(err)
	require.Empty(log)

	_, err = os.Stat(filepath.Join(filepath.Dir(path), "zlink_darwin.go"))
	require.NoError(err)
}

func TestLinkCommandWindowsNeedsEnv(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, linkConfig)
	_, _, err := run(t, nil, "link", "-c", path, "--goos", "windows")
	require.ErrorContains(err, "SLANG_DIR")
}

func TestLayoutCommand(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, linkConfig)
	_, _, err := run(t, nil, "layout", "-c", path)
	require.NoError(err)
	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), "zlayout.go"))
	require.NoError(err)
	require.Contains(string(data), "unsafe.Alignof(*new(FooUUID))")

	path = writeConfig(t, "[header]\npath = \"foo.h\"\n")
	_, _, err = run(t, nil, "layout", "-c", path)
	require.ErrorContains(err, "no [layout] section")
}

func TestBadConfig(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, "[header]\npath = \"foo.h\"\nbogus = 1\n")
	_, _, err := run(t, nil, "link", "-c", path)
	require.ErrorContains(err, path)
}
