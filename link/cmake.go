package link

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/slang-go/slang/logger"
)

// Builder builds one target of the vendored native library.
type Builder interface {
	Build(ctx context.Context, target string, defines map[string]string) (Output, error)
}

// CMake configures and builds the vendored source tree with CMake. The
// build tree is <Root>/build.
type CMake struct {
	SourceDir string
	Root      string
	Profile   string

	// Command is the cmake executable. Defaults to "cmake".
	Command string
	// Receive the output of cmake. Discarded if nil.
	Stdout io.Writer
	Stderr io.Writer
	Logger *logger.Logger
}

// NewCMake returns a CMake building the sources cfg points at.
func NewCMake(cfg *Config, log *logger.Logger) *CMake {
	return &CMake{
		SourceDir: cfg.SourceDir,
		Root:      cfg.BuildDir,
		Profile:   cfg.Profile,
		Logger:    log,
	}
}

// ConfigureArgs returns the arguments of the configure step. The library
// is always built static.
func (c *CMake) ConfigureArgs(defines map[string]string) []string {
	defs := maps.Clone(defines)
	if defs == nil {
		defs = map[string]string{}
	}
	defs["SLANG_LIB_TYPE"] = "STATIC"
	defs["CMAKE_BUILD_TYPE"] = c.Profile

	args := []string{"-S", c.SourceDir, "-B", Output{Root: c.Root}.buildTree()}
	for _, k := range slices.Sorted(maps.Keys(defs)) {
		args = append(args, "-D"+k+"="+defs[k])
	}
	return args
}

// BuildArgs returns the arguments of the build step, restricted to target.
func (c *CMake) BuildArgs(target string) []string {
	return []string{"--build", Output{Root: c.Root}.buildTree(), "--target", target, "--config", c.Profile}
}

func (o Output) buildTree() string {
	return filepath.Join(o.Root, "build")
}

func (c *CMake) run(ctx context.Context, args []string) error {
	command := c.Command
	if command == "" {
		command = "cmake"
	}
	c.Logger.Infof("running %v %v", command, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v %v: %w", command, args[0], err)
	}
	return nil
}

func (c *CMake) Build(ctx context.Context, target string, defines map[string]string) (Output, error) {
	if c.SourceDir == "" {
		return Output{}, fmt.Errorf("cmake: no source directory configured")
	}
	if c.Profile == "" {
		return Output{}, fmt.Errorf("cmake: no build profile configured")
	}
	if err := c.run(ctx, c.ConfigureArgs(defines)); err != nil {
		return Output{}, fmt.Errorf("cmake: configure: %w", err)
	}
	if err := c.run(ctx, c.BuildArgs(target)); err != nil {
		return Output{}, fmt.Errorf("cmake: build: %w", err)
	}
	out := Output{Root: c.Root, Profile: c.Profile}
	if fi, err := os.Stat(out.LibDir()); err != nil || !fi.IsDir() {
		return Output{}, fmt.Errorf("cmake: build of %v produced no library directory %v", target, out.LibDir())
	}
	return out, nil
}
