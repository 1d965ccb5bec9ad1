// Package link decides how the native Slang library is linked and renders
// the decision as cgo linker directives.
//
// A build either links a copy of the library built from vendored source
// (static) or a prebuilt shared library (dynamic). Each [Variant] has its
// own pure function returning the [Directive] list; only the static one
// needs a build, which a [Builder] performs.
package link

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/slang-go/slang/config"
)

type Strategy int

const (
	StrategyDynamic Strategy = iota
	StrategyStatic
)

func (s Strategy) String() string {
	switch s {
	case StrategyDynamic:
		return "dynamic"
	case StrategyStatic:
		return "static"
	default:
		panic(fmt.Sprintf("invalid strategy: %d", int(s)))
	}
}

// Config holds everything needed to pick and render a variant. It is
// filled once by [ConfigFromEnv] and read-only afterwards.
type Config struct {
	Strategy Strategy
	GOOS     string

	Library   string
	Target    string
	SourceDir string
	BuildDir  string
	Profile   string
	Defines   map[string]string

	// Installation root of a prebuilt library, read from InstallEnv.
	InstallDir string
	InstallEnv string

	// System libraries a static build needs on GOOS.
	ExtraLibs []string
}

// ConfigFromEnv combines the [link] section of c with the build strategy,
// the target OS and the environment as seen through getenv.
func ConfigFromEnv(c *config.Config, strategy Strategy, goos string, getenv func(string) string) *Config {
	return &Config{
		Strategy:   strategy,
		GOOS:       goos,
		Library:    c.Link.Library,
		Target:     c.Link.Target,
		SourceDir:  c.Path(c.Link.SourceDir),
		BuildDir:   c.Path(c.Link.BuildDir),
		Profile:    c.Link.Profile,
		Defines:    c.Link.Defines,
		InstallDir: getenv(c.Link.InstallEnv),
		InstallEnv: c.Link.InstallEnv,
		ExtraLibs:  c.Link.ExtraLibs[goos],
	}
}

type Variant int

const (
	StaticVendored Variant = iota
	DynamicWindowsStyle
	DynamicUnixStyle
	DynamicMacStyle
)

func (v Variant) String() string {
	switch v {
	case StaticVendored:
		return "static"
	case DynamicWindowsStyle:
		return "windows"
	case DynamicUnixStyle:
		return "unix"
	case DynamicMacStyle:
		return "darwin"
	default:
		panic(fmt.Sprintf("invalid variant: %d", int(v)))
	}
}

// SelectVariant picks the variant for cfg. Every OS that is neither
// Windows nor macOS links like Linux.
func SelectVariant(cfg *Config) Variant {
	if cfg.Strategy == StrategyStatic {
		return StaticVendored
	}
	switch cfg.GOOS {
	case "windows":
		return DynamicWindowsStyle
	case "darwin", "ios":
		return DynamicMacStyle
	default:
		return DynamicUnixStyle
	}
}

type DirectiveKind int

const (
	SearchPath DirectiveKind = iota
	LinkLib
)

type LinkKind int

const (
	LinkDefault LinkKind = iota
	LinkStatic
	LinkDylib
)

func (k LinkKind) String() string {
	switch k {
	case LinkDefault:
		return ""
	case LinkStatic:
		return "static"
	case LinkDylib:
		return "dylib"
	default:
		panic(fmt.Sprintf("invalid link kind: %d", int(k)))
	}
}

// Directive is a single instruction to the linker: a directory to search
// or a library to link.
type Directive struct {
	Kind DirectiveKind
	// Directory of SearchPath.
	Path string
	// Library name of LinkLib, without "lib" prefix or extension.
	Lib      string
	LinkKind LinkKind
}

func SearchPathDirective(path string) Directive {
	return Directive{Kind: SearchPath, Path: path}
}

func LinkDirective(lib string, kind LinkKind) Directive {
	return Directive{Kind: LinkLib, Lib: lib, LinkKind: kind}
}

// String returns d in the form of a cargo build script instruction,
// e.g. "link-search=native=/x/lib" or "link-lib=static=slang".
func (d Directive) String() string {
	switch d.Kind {
	case SearchPath:
		return "link-search=native=" + d.Path
	case LinkLib:
		if d.LinkKind == LinkDefault {
			return "link-lib=" + d.Lib
		}
		return "link-lib=" + d.LinkKind.String() + "=" + d.Lib
	default:
		panic(fmt.Sprintf("invalid directive kind: %d", int(d.Kind)))
	}
}

// Output describes where a build placed its artifacts.
type Output struct {
	// Root of the build tree.
	Root    string
	Profile string
}

// LibDir returns the directory holding the built libraries.
func (o Output) LibDir() string {
	return filepath.Join(o.Root, "build", o.Profile, "lib")
}

// checkPath reports paths that can't be written into a #cgo directive.
// Spaces are fine: arguments holding them are quoted.
func checkPath(p string) error {
	if !utf8.ValidString(p) {
		return fmt.Errorf("path %q is not valid UTF-8", p)
	}
	if i := strings.IndexFunc(p, func(r rune) bool {
		return unicode.IsControl(r) || r == '"' || r == '\''
	}); i >= 0 {
		r, _ := utf8.DecodeRuneInString(p[i:])
		return fmt.Errorf("path %q contains %q, which can't appear in a cgo directive", p, r)
	}
	return nil
}

// StaticDirectives links the static library built into out.
func StaticDirectives(cfg *Config, out Output) ([]Directive, error) {
	if out.Profile == "" {
		return nil, errors.New("empty build profile")
	}
	dir := out.LibDir()
	if err := checkPath(dir); err != nil {
		return nil, err
	}
	return []Directive{
		SearchPathDirective(dir),
		LinkDirective(cfg.Library, LinkStatic),
	}, nil
}

// WindowsDirectives links the import library of a prebuilt installation
// at cfg.InstallDir.
func WindowsDirectives(cfg *Config) ([]Directive, error) {
	if cfg.InstallDir == "" {
		return nil, fmt.Errorf("environment variable %v must be set to the Slang installation directory", cfg.InstallEnv)
	}
	var res []Directive
	for _, sub := range []string{"bin", "lib"} {
		dir := filepath.Join(cfg.InstallDir, sub)
		if err := checkPath(dir); err != nil {
			return nil, fmt.Errorf("%v: %w", cfg.InstallEnv, err)
		}
		res = append(res, SearchPathDirective(dir))
	}
	return append(res, LinkDirective(cfg.Library, LinkStatic)), nil
}

// UnixDirectives links a shared library found on the default search path.
func UnixDirectives(cfg *Config) []Directive {
	return []Directive{LinkDirective(cfg.Library, LinkDefault)}
}

// MacDirectives links a dynamic library found on the default search path.
func MacDirectives(cfg *Config) []Directive {
	return []Directive{LinkDirective(cfg.Library, LinkDylib)}
}

// Resolve selects the variant of cfg and returns its directives. Only the
// static variant calls b.
func Resolve(ctx context.Context, cfg *Config, b Builder) (Variant, []Directive, error) {
	v := SelectVariant(cfg)
	var (
		ds  []Directive
		err error
	)
	switch v {
	case StaticVendored:
		var out Output
		out, err = b.Build(ctx, cfg.Target, cfg.Defines)
		if err == nil {
			ds, err = StaticDirectives(cfg, out)
		}
	case DynamicWindowsStyle:
		ds, err = WindowsDirectives(cfg)
	case DynamicUnixStyle:
		ds = UnixDirectives(cfg)
	case DynamicMacStyle:
		ds = MacDirectives(cfg)
	}
	if err != nil {
		return v, nil, fmt.Errorf("link %v: %w", v, err)
	}
	return v, ds, nil
}
