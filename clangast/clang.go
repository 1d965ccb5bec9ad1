package clangast

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/mod/semver"
)

// MinVersion is the oldest clang that can dump its AST as JSON.
const MinVersion = "v9.0.0"

// Source provides the parsed header. [Clang] is the real implementation;
// tests use canned dumps.
type Source interface {
	AST(ctx context.Context) (*Node, error)
	Macros(ctx context.Context) ([]Macro, error)
}

// Clang runs the clang executable over Header.
type Clang struct {
	// Path of the clang executable. Defaults to "clang".
	Path string
	// Header to parse.
	Header string
	// IncludeDirs become -I flags.
	IncludeDirs []string
	// Args go before everything else (language mode, defines).
	Args []string
}

func (c *Clang) path() string {
	if c.Path == "" {
		return "clang"
	}
	return c.Path
}

func (c *Clang) args(extra ...string) []string {
	args := append([]string(nil), c.Args...)
	for _, dir := range c.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	args = append(args, extra...)
	return append(args, c.Header)
}

var versionRe = regexp.MustCompile(`clang version (\d+)\.(\d+)\.(\d+)`)

// ParseVersion extracts the semantic version (e.g. "v17.0.6") from the
// output of "clang --version".
func ParseVersion(out string) (string, error) {
	m := versionRe.FindStringSubmatch(out)
	if m == nil {
		first, _, _ := strings.Cut(out, "\n")
		return "", fmt.Errorf("cannot find clang version in %q", first)
	}
	v := "v" + m[1] + "." + m[2] + "." + m[3]
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid clang version %v", v)
	}
	return v, nil
}

// Version returns the version of the clang executable, failing if it is
// older than [MinVersion].
func (c *Clang) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	v, err := ParseVersion(string(out))
	if err != nil {
		return "", err
	}
	if semver.Compare(v, MinVersion) < 0 {
		return "", fmt.Errorf("clang %v is too old, need at least %v for JSON AST dumps", v, MinVersion)
	}
	return v, nil
}

func (c *Clang) AST(ctx context.Context) (*Node, error) {
	out, err := c.run(ctx, c.args("-fsyntax-only", "-Xclang", "-ast-dump=json")...)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(out))
}

func (c *Clang) Macros(ctx context.Context) ([]Macro, error) {
	out, err := c.run(ctx, c.args("-E", "-dM")...)
	if err != nil {
		return nil, err
	}
	return ParseMacros(bytes.NewReader(out))
}

func (c *Clang) run(ctx context.Context, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path(), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &Error{Cmd: cmd.String(), Err: err, Diagnostics: Diagnostics(&stderr)}
	}
	return stdout.Bytes(), nil
}

// Error is a failed clang invocation.
type Error struct {
	Cmd string
	Err error
	// One entry per "error:" line clang printed.
	Diagnostics *multierror.Error
}

func (e *Error) Error() string {
	if e.Diagnostics != nil && len(e.Diagnostics.Errors) > 0 {
		return fmt.Sprintf("clang: %v", e.Diagnostics)
	}
	return fmt.Sprintf("clang: %v: %v", e.Cmd, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Diagnostics collects every error line of clang's stderr, e.g.
//
//	vendor/slang/include/slang.h:12:10: fatal error: 'slang-deprecated.h' file not found
func Diagnostics(r io.Reader) *multierror.Error {
	var errs *multierror.Error
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "error: ") {
			errs = multierror.Append(errs, errors.New(strings.TrimSpace(line)))
		}
	}
	if errs != nil {
		errs.ErrorFormat = formatDiagnostics
	}
	return errs
}

func formatDiagnostics(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = "  " + err.Error()
	}
	return fmt.Sprintf("%d errors:\n%v", len(errs), strings.Join(lines, "\n"))
}
