package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"dario.cat/mergo"
	"github.com/pelletier/go-toml/v2"
)

// Symbol kinds a rule can select on.
const (
	KindFunction = "function"
	KindType     = "type"
	KindVar      = "var"
)

// Declaration kinds that can be listed in [Codegen.Kinds].
const (
	CodegenFunctions = "functions"
	CodegenTypes     = "types"
	CodegenVars      = "vars"
)

//go:embed default.toml
var defaultConfig string

// DefaultConfig returns the contents of a config file that binds the
// vendored Slang header the same way the shipped sys package does.
func DefaultConfig() string {
	return defaultConfig
}

type Header struct {
	// Path to the native public header.
	Path string `toml:"path"`
	// Directories passed as -I to clang.
	IncludeDirs []string `toml:"include-dirs"`
	// Language mode flags, e.g. ["-xc++", "-std=c++17"].
	ClangArgs []string `toml:"clang-args"`
}

type Codegen struct {
	Package     string   `toml:"package"`
	Output      string   `toml:"output"`
	Kinds       []string `toml:"kinds"`
	Vtables     bool     `toml:"vtables"`
	DeriveCopy  bool     `toml:"derive-copy"`
	DocComments bool     `toml:"doc-comments"`
}

// Has reports whether kind is one of the selected codegen kinds.
func (c Codegen) Has(kind string) bool {
	return slices.Contains(c.Kinds, kind)
}

type Rule struct {
	Select struct {
		Kind string         `toml:"kind"`
		Name *regexp.Regexp `toml:"name"`
		File *regexp.Regexp `toml:"file"`
	} `toml:"select"`
	Actions struct {
		Include  *bool  `toml:"include"`
		Rename   string `toml:"rename"`
		ToCasing string `toml:"to-casing"`
	} `toml:"action"`
}

type Link struct {
	// Name of the native library, e.g. "slang".
	Library string `toml:"library"`
	// Build target restricted to when building from vendored source.
	Target string `toml:"target"`
	// Vendored source tree of the native library.
	SourceDir string `toml:"source-dir"`
	// Root of the CMake build tree (the binary dir is <build-dir>/build).
	BuildDir string `toml:"build-dir"`
	// CMake build profile (CMAKE_BUILD_TYPE / --config).
	Profile string `toml:"profile"`
	// Extra -D definitions for the CMake configure step.
	Defines map[string]string `toml:"defines"`
	// Environment variable naming the installation root (Windows, dynamic).
	InstallEnv string `toml:"install-env"`
	// Additional system libraries per GOOS.
	ExtraLibs map[string][]string `toml:"extra-libs"`
}

type Layout struct {
	// Package and file the assertions are written to.
	Package string `toml:"package"`
	Output  string `toml:"output"`
	// Import paths needed to name the native types.
	Imports []string `toml:"imports"`
	Pairs   []struct {
		Host   string `toml:"host"`
		Native string `toml:"native"`
	} `toml:"pair"`
}

type Config struct {
	Imports []string `toml:"imports"`
	Header  Header   `toml:"header"`
	Codegen Codegen  `toml:"codegen"`
	Rules   []Rule   `toml:"rule"`
	Link    Link     `toml:"link"`
	Layout  *Layout  `toml:"layout"`

	// Dir is the directory of the loaded file. Relative paths in the
	// config are relative to it.
	Dir string `toml:"-"`
}

// Path resolves p relative to the config's directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

type Error struct {
	filePath string
	err      error  // short, single-line error
	str      string // full, multi-line error string, or err string, if none
}

// Error returns a short error message.
func (e *Error) Error() string {
	return e.filePath + ": " + e.err.Error()
}

// String returns the full multi-line error string.
func (e *Error) String() string {
	if e.str != "" {
		return "Error in file " + strconv.Quote(e.filePath) + ":\n" + e.str
	} else {
		return e.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.err
}

// Load reads the config file at path, merges in everything it imports
// and fills in defaults.
func Load(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, &Error{filePath: path, err: err}
	}
	return c, nil
}

// Parse decodes a config from memory. Relative paths resolve against dir.
func Parse(data []byte, dir string) (*Config, error) {
	c, err := decode(data, "<memory>")
	if err != nil {
		return nil, err
	}
	c.Dir = dir
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, &Error{filePath: "<memory>", err: err}
	}
	return c, nil
}

func decode(data []byte, path string) (_ *Config, err error) {
	defer func() {
		if err != nil {
			if tErr := (&toml.DecodeError{}); errors.As(err, &tErr) {
				err = &Error{filePath: path, err: err, str: tErr.String()}
			} else if tErr := (&toml.StrictMissingError{}); errors.As(err, &tErr) {
				err = &Error{filePath: path, err: err, str: tErr.String()}
			} else {
				err = &Error{filePath: path, err: err}
			}
		}
	}()

	c := &Config{}
	err = toml.NewDecoder(bytes.NewReader(data)).
		DisallowUnknownFields().
		Decode(c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{filePath: path, err: err}
	}
	c, err := decode(file, path)
	if err != nil {
		return nil, err
	}
	c.Dir = filepath.Dir(path)

	var importedCs []*Config // collect imported files first so their imports don't leak into our file's imports
	for _, imp := range c.Imports {
		newC, err := load(c.Path(imp))
		if err != nil {
			return nil, err
		}
		newC.absPaths()
		importedCs = append(importedCs, newC)
	}
	for _, newC := range importedCs {
		// Rules of imported files run after our own.
		if err := mergo.Merge(c, newC, mergo.WithAppendSlice); err != nil {
			return nil, &Error{filePath: path, err: err}
		}
	}

	return c, nil
}

// absPaths rewrites an imported config's relative paths so they keep
// pointing at the same place once merged into the importer.
func (c *Config) absPaths() {
	c.Header.Path = c.Path(c.Header.Path)
	for i, dir := range c.Header.IncludeDirs {
		c.Header.IncludeDirs[i] = c.Path(dir)
	}
	c.Link.SourceDir = c.Path(c.Link.SourceDir)
	c.Link.BuildDir = c.Path(c.Link.BuildDir)
}

func (c *Config) setDefaults() {
	if c.Header.ClangArgs == nil {
		c.Header.ClangArgs = []string{"-xc++", "-std=c++17"}
	}
	if c.Codegen.Package == "" {
		c.Codegen.Package = "sys"
	}
	if c.Codegen.Output == "" {
		c.Codegen.Output = "zbindings.go"
	}
	if c.Codegen.Kinds == nil {
		c.Codegen.Kinds = []string{CodegenFunctions, CodegenTypes, CodegenVars}
	}
	if c.Link.Library == "" {
		c.Link.Library = "slang"
	}
	if c.Link.Target == "" {
		c.Link.Target = c.Link.Library
	}
	if c.Link.BuildDir == "" {
		c.Link.BuildDir = ".slangbuild"
	}
	if c.Link.Profile == "" {
		c.Link.Profile = "Release"
	}
	if c.Link.InstallEnv == "" {
		c.Link.InstallEnv = "SLANG_DIR"
	}
	if c.Layout != nil && c.Layout.Output == "" {
		c.Layout.Output = "zlayout.go"
	}
}

func (c *Config) validate() error {
	if c.Header.Path == "" {
		return errors.New("header: path is required")
	}
	for _, k := range c.Codegen.Kinds {
		switch k {
		case CodegenFunctions, CodegenTypes, CodegenVars:
		default:
			return fmt.Errorf("codegen: unsupported kind %q (want %q, %q or %q)",
				k, CodegenFunctions, CodegenTypes, CodegenVars)
		}
	}
	for i, r := range c.Rules {
		switch r.Select.Kind {
		case "", KindFunction, KindType, KindVar:
		default:
			return fmt.Errorf("rule %v: select: unknown kind %q", i+1, r.Select.Kind)
		}
	}
	if c.Layout != nil {
		if c.Layout.Package == "" {
			return errors.New("layout: package is required")
		}
		for i, p := range c.Layout.Pairs {
			if p.Host == "" || p.Native == "" {
				return fmt.Errorf("layout: pair %v: host and native are required", i+1)
			}
		}
	}
	return nil
}
