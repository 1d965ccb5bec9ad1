package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/link"
	"github.com/slang-go/slang/logger"
	"github.com/slang-go/slang/slanggen"
)

const defaultConfigName = "slanggen.toml"

// NewCLI returns the slanggen command tree. Output that isn't logging goes
// to stdout; the environment is read through getenv only.
func NewCLI(stdout io.Writer, log *logger.Logger, getenv func(string) string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "slanggen",
		Short: "Generate Go bindings and link directives for the Slang shader compiler",
		Long: `slanggen extracts the declarations of a native header with clang,
writes Go bindings for the allow-listed ones, decides how the library is
linked and writes the matching cgo directives.

Running it without a subcommand does all of that.`,
		Args: cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
		},
	}
	rootCmd.SetOut(stdout)

	static, _ := strconv.ParseBool(getenv("SLANGGEN_STATIC"))
	goos := getenv("GOOS")
	if goos == "" {
		goos = runtime.GOOS
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", defaultConfigName, "Config file")
	flags.Bool("static", static, "Build and link the vendored library (default from SLANGGEN_STATIC)")
	flags.String("goos", goos, "Target operating system")
	flags.String("clang", "", "clang executable (default \"clang\" from PATH)")
	flags.BoolP("verbose", "v", false, "Log progress")

	options := func(cmd *cobra.Command) (*slanggen.Options, error) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		log.MinLevel = logger.WARN
		if verbose {
			log.MinLevel = logger.INFO
		}

		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			var cErr *config.Error
			if errors.As(err, &cErr) {
				return nil, errors.New(cErr.String())
			}
			return nil, err
		}
		o := &slanggen.Options{
			Config:   cfg,
			Strategy: link.StrategyDynamic,
			Getenv:   getenv,
			Logger:   log,
		}
		o.ClangPath, _ = cmd.Flags().GetString("clang")
		o.GOOS, _ = cmd.Flags().GetString("goos")
		if s, _ := cmd.Flags().GetBool("static"); s {
			o.Strategy = link.StrategyStatic
		}
		if verbose {
			o.BuildOutput = cmd.ErrOrStderr()
			o.Stats = cmd.OutOrStdout()
		}
		return o, nil
	}

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		o, err := options(cmd)
		if err != nil {
			return err
		}
		return slanggen.Run(cmd.Context(), o)
	}

	bindingsCmd := &cobra.Command{
		Use:   "bindings",
		Short: "Write the Go bindings of the allow-listed declarations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := options(cmd)
			if err != nil {
				return err
			}
			path, err := slanggen.Bindings(cmd.Context(), o)
			if err != nil {
				return err
			}
			log.Infof("wrote %v", path)
			return nil
		},
	}

	linkCmd := &cobra.Command{
		Use:   "link",
		Short: "Resolve how the library is linked and write the cgo directives",
		Long: `link writes the cgo linker flags of the selected variant.

With --static, the vendored source is built with CMake first. Otherwise a
prebuilt library is linked; on Windows its installation directory is read
from the environment variable named by link.install-env.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := options(cmd)
			if err != nil {
				return err
			}
			path, err := slanggen.Link(cmd.Context(), o)
			if err != nil {
				return err
			}
			log.Infof("wrote %v", path)
			return nil
		},
	}

	layoutCmd := &cobra.Command{
		Use:   "layout",
		Short: "Write the compile-time layout assertions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := options(cmd)
			if err != nil {
				return err
			}
			path, err := slanggen.Layout(o)
			if err != nil {
				return err
			}
			if path == "" {
				return errors.New("no [layout] section in config")
			}
			log.Infof("wrote %v", path)
			return nil
		},
	}

	symbolsCmd := &cobra.Command{
		Use:   "symbols",
		Short: "List the allow-listed symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := options(cmd)
			if err != nil {
				return err
			}
			ex, err := slanggen.Extract(cmd.Context(), o)
			if err != nil {
				return err
			}
			if dot, _ := cmd.Flags().GetBool("dot"); dot {
				_, err := cmd.OutOrStdout().Write(slanggen.SymbolGraph(ex))
				return err
			}
			slanggen.WriteSymbolTable(cmd.OutOrStdout(), ex)
			return nil
		},
	}
	symbolsCmd.Flags().Bool("dot", false, "Print the references between symbols as graphviz DOT code")

	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return initConfig(dir, log)
		},
	}

	rootCmd.AddCommand(
		bindingsCmd,
		linkCmd,
		layoutCmd,
		symbolsCmd,
		initCmd,
	)

	return rootCmd
}

func initConfig(dir string, log *logger.Logger) error {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	path := filepath.Join(dir, defaultConfigName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%v already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.WriteFile(path, []byte(config.DefaultConfig()), 0o666); err != nil {
		return err
	}
	log.Infof("wrote %v", path)
	return nil
}
