// Package logger provides the leveled line logger used by slanggen.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/slang-go/slang/textutils"
)

type LogLevel int

const (
	INFO  LogLevel = 0
	WARN  LogLevel = 1
	ERROR LogLevel = 2
	FATAL LogLevel = 99
)

func (lvl LogLevel) String() string {
	switch lvl {
	case INFO:
		return "INFO"
	case WARN:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		panic(fmt.Sprintf("invalid log level: %d", int(lvl)))
	}
}

type Logger struct {
	Writer   io.Writer
	Prefix   string
	MinLevel LogLevel

	// Exit is called after a FATAL message. Defaults to os.Exit.
	Exit func(code int)
}

// Discard is a Logger that drops everything, including FATAL messages
// (which then don't exit either).
var Discard = &Logger{}

// Log writes a single message. Messages spanning multiple lines are
// written on their own lines, indented below the level tag.
// A nil Logger is valid and drops everything.
func (l *Logger) Log(level LogLevel, format string, args ...any) {
	if l == nil || l.Writer == nil || level < l.MinLevel {
		return
	}
	var b bytes.Buffer
	if l.Prefix != "" {
		b.WriteString(l.Prefix)
		b.WriteString(" ")
	}
	b.WriteString(level.String())
	b.WriteString(":")
	s := fmt.Sprintf(format, args...)
	if strings.Contains(s, "\n") {
		b.WriteString("\n")
		s = textutils.IndentString(s, "  ", 1)
	} else {
		b.WriteString(" ")
	}
	b.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		b.WriteString("\n")
	}
	// Nothing sensible to do if the log sink itself fails.
	_, _ = io.Copy(l.Writer, &b)
	if level == FATAL {
		exit := l.Exit
		if exit == nil {
			exit = os.Exit
		}
		exit(1)
	}
}

func (l *Logger) Infof(format string, args ...any) { l.Log(INFO, format, args...) }
func (l *Logger) Warnf(format string, args ...any) { l.Log(WARN, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Log(ERROR, format, args...) }
func (l *Logger) Fatalf(format string, args ...any) { l.Log(FATAL, format, args...) }
