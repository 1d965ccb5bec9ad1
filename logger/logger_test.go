package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	require := require.New(t)

	var b bytes.Buffer
	l := &Logger{Writer: &b, Prefix: "slanggen:", MinLevel: WARN}
	l.Infof("hidden %v", 1)
	l.Warnf("unresolved %v", "slang_IBlob")
	l.Errorf("first\nsecond")
	require.Equal(`slanggen: WARNING: unresolved slang_IBlob
slanggen: ERROR:
  first
  second
`, b.String())
}

func TestFatalExits(t *testing.T) {
	require := require.New(t)

	var b bytes.Buffer
	code := -1
	l := &Logger{Writer: &b, Exit: func(c int) { code = c }}
	l.Fatalf("no header")
	require.Equal(1, code)
	require.Equal("FATAL: no header\n", b.String())
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Infof("nothing %v", "happens")
	Discard.Fatalf("nor here")
}
