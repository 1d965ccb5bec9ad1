// Package slanggen glues the stages together: it extracts declarations from
// the header, writes the bindings, resolves how the library is linked and
// writes the layout assertions, in that order.
package slanggen

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/slang-go/slang/binder"
	"github.com/slang-go/slang/binder/binderio"
	"github.com/slang-go/slang/clangast"
	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/config/rules"
	"github.com/slang-go/slang/digraphutils"
	"github.com/slang-go/slang/ir"
	"github.com/slang-go/slang/layout"
	"github.com/slang-go/slang/link"
	"github.com/slang-go/slang/logger"
)

// Options configure a run. Everything read from the environment is in
// here, filled once by the caller.
type Options struct {
	Config *config.Config

	// Source of the parsed header. Defaults to running clang at ClangPath.
	Source    clangast.Source
	ClangPath string

	Strategy link.Strategy
	GOOS     string
	Getenv   func(string) string
	// Builds the vendored library for the static strategy. Defaults to
	// CMake, with its output going to BuildOutput.
	Builder     link.Builder
	BuildOutput io.Writer

	Logger *logger.Logger
	// Receives the statistics tables of [Run]. Nothing is printed if nil.
	Stats io.Writer
}

func (o *Options) getenv(key string) string {
	if o.Getenv == nil {
		return ""
	}
	return o.Getenv(key)
}

// cMode reports whether clang parses the header as C.
func cMode(args []string) bool {
	for _, a := range args {
		if a == "-xc++" || strings.HasPrefix(a, "-std=c++") || strings.HasPrefix(a, "-std=gnu++") {
			return false
		}
	}
	return true
}

func (o *Options) source(ctx context.Context) (clangast.Source, error) {
	if o.Source != nil {
		return o.Source, nil
	}
	c := o.Config
	clang := &clangast.Clang{
		Path:   o.ClangPath,
		Header: c.Path(c.Header.Path),
		Args:   c.Header.ClangArgs,
	}
	for _, dir := range c.Header.IncludeDirs {
		clang.IncludeDirs = append(clang.IncludeDirs, c.Path(dir))
	}
	v, err := clang.Version(ctx)
	if err != nil {
		return nil, err
	}
	o.Logger.Infof("using clang %v", v)
	return clang, nil
}

// Extraction is the header's declarations filtered by the allow-list.
type Extraction struct {
	Module *ir.Module
	Rules  *rules.Result
	// Native types the allow-list filtered out that emitted declarations
	// still reference, sorted.
	Filtered []string
}

// Extract parses the header and runs the allow-list over its symbols.
func Extract(ctx context.Context, o *Options) (*Extraction, error) {
	src, err := o.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	root, err := src.AST(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	macros, err := src.Macros(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	mod, err := ir.Build(root, macros, ir.Options{
		DataModel: ir.DataModelFor(o.GOOS),
		CMode:     cMode(o.Config.Header.ClangArgs),
		Logger:    o.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	res, err := rules.Execute(o.Config, mod.Symbols)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	ex := &Extraction{Module: mod, Rules: res}
	for sym := range References(mod, res) {
		if sym.Kind == config.KindType && !res.IsIncluded(sym) {
			ex.Filtered = append(ex.Filtered, sym.Name)
		}
	}
	slices.Sort(ex.Filtered)
	return ex, nil
}

// Included returns the included symbols in header order.
func (ex *Extraction) Included() []rules.SymbolSpec {
	var res []rules.SymbolSpec
	for _, s := range ex.Module.Symbols {
		if ex.Rules.IsIncluded(s.Symbol()) {
			res = append(res, s)
		}
	}
	return res
}

// edges returns the types the declaration of sym refers to.
func edges(mod *ir.Module) func(rules.Symbol) []rules.Symbol {
	return func(sym rules.Symbol) []rules.Symbol {
		decl := mod.Lookup(sym)
		if decl == nil {
			return nil
		}
		var res []rules.Symbol
		for _, name := range mod.References(decl) {
			res = append(res, rules.Symbol{Name: name, Kind: config.KindType})
		}
		return res
	}
}

// References returns every symbol reachable from the included ones.
func References(mod *ir.Module, res *rules.Result) map[rules.Symbol]struct{} {
	var roots []rules.Symbol
	for _, s := range mod.Symbols {
		if res.IsIncluded(s.Symbol()) {
			roots = append(roots, s.Symbol())
		}
	}
	return digraphutils.Reachable(roots, edges(mod))
}

// Bindings writes the Go declarations of the allow-listed symbols and
// returns the path written.
func Bindings(ctx context.Context, o *Options) (string, error) {
	ex, err := Extract(ctx, o)
	if err != nil {
		return "", err
	}
	return writeBindings(o, ex)
}

func writeBindings(o *Options, ex *Extraction) (string, error) {
	c := o.Config
	if n := len(ex.Filtered); n > 0 {
		o.Logger.Infof("%v types are not allow-listed but referenced, their uses are lowered: %v",
			n, strings.Join(ex.Filtered, ", "))
	}
	bctx := binder.NewContext(c, ex.Module, ex.Rules, o.Logger, filepath.Base(c.Header.Path))
	code, _, err := binder.Generate(bctx)
	if err != nil {
		return "", fmt.Errorf("generate bindings: %w", err)
	}
	out := c.Path(c.Codegen.Output)
	if err := binderio.WriteFile(out, code); err != nil {
		return "", fmt.Errorf("generate bindings: %w", err)
	}
	return out, nil
}

// Link resolves the link variant, building the vendored library for the
// static strategy, and writes the cgo directive file. It returns the path
// written.
func Link(ctx context.Context, o *Options) (string, error) {
	c := o.Config
	lc := link.ConfigFromEnv(c, o.Strategy, o.GOOS, o.getenv)
	b := o.Builder
	if b == nil {
		cm := link.NewCMake(lc, o.Logger)
		cm.Stdout, cm.Stderr = o.BuildOutput, o.BuildOutput
		b = cm
	}
	v, ds, err := link.Resolve(ctx, lc, b)
	if err != nil {
		return "", err
	}
	for _, d := range ds {
		o.Logger.Infof("%v", d)
	}
	path, err := link.WriteCgoFile(c.Dir, c.Codegen.Package, lc, v, ds)
	if err != nil {
		return "", fmt.Errorf("link %v: %w", v, err)
	}
	return path, nil
}

// Layout writes the layout assertions configured in [layout]. It returns
// "" if there is no such section.
func Layout(o *Options) (string, error) {
	lc := o.Config.Layout
	if lc == nil {
		return "", nil
	}
	code, err := layout.Generate(lc.Package, lc.Imports, layout.PairsFromConfig(lc))
	if err != nil {
		return "", fmt.Errorf("layout: %w", err)
	}
	out := o.Config.Path(lc.Output)
	if err := binderio.WriteFile(out, code); err != nil {
		return "", fmt.Errorf("layout: %w", err)
	}
	return out, nil
}

// Run executes every stage.
func Run(ctx context.Context, o *Options) error {
	timeStart := time.Now()

	ex, err := Extract(ctx, o)
	if err != nil {
		return err
	}

	timeExtract := time.Since(timeStart)
	timeStart = time.Now()

	bindingsPath, err := writeBindings(o, ex)
	if err != nil {
		return err
	}

	timeBindings := time.Since(timeStart)
	timeStart = time.Now()

	linkPath, err := Link(ctx, o)
	if err != nil {
		return err
	}

	timeLink := time.Since(timeStart)
	timeStart = time.Now()

	layoutPath, err := Layout(o)
	if err != nil {
		return err
	}

	timeLayout := time.Since(timeStart)

	o.Logger.Infof("wrote %v", bindingsPath)
	o.Logger.Infof("wrote %v", linkPath)
	if layoutPath != "" {
		o.Logger.Infof("wrote %v", layoutPath)
	}

	if o.Stats == nil {
		return nil
	}
	fmt.Fprintf(o.Stats, "==Binding stats==\n")
	WriteKindTable(o.Stats, ex)
	fmt.Fprintln(o.Stats)
	fmt.Fprintf(o.Stats, "==Timing stats==\n")
	{
		timeTotal := timeExtract + timeBindings + timeLink + timeLayout
		timePercent := func(t time.Duration) string {
			if timeTotal == 0 {
				return "0.00"
			}
			return strconv.FormatFloat(
				float64(t)/float64(timeTotal)*100,
				'f', 2, 64,
			)
		}

		tbl := tablewriter.NewWriter(o.Stats)
		tbl.SetHeader([]string{"Task", "Time", "Time %"})
		tbl.AppendBulk([][]string{
			{"Extract declarations", timeExtract.String(), timePercent(timeExtract)},
			{"Write bindings", timeBindings.String(), timePercent(timeBindings)},
			{"Link", timeLink.String(), timePercent(timeLink)},
			{"Layout assertions", timeLayout.String(), timePercent(timeLayout)},
			{"==TOTAL==", timeTotal.String(), "100"},
		})
		tbl.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_RIGHT})
		tbl.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		tbl.SetCenterSeparator("|")
		tbl.Render()
	}
	return nil
}

// WriteKindTable writes how many symbols of each kind passed the
// allow-list.
func WriteKindTable(w io.Writer, ex *Extraction) {
	total := map[string]int{}
	included := map[string]int{}
	for _, s := range ex.Module.Symbols {
		total[s.Kind]++
		if ex.Rules.IsIncluded(s.Symbol()) {
			included[s.Kind]++
		}
	}
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Kind", "Included/Total"})
	var nIncl, nTotal int
	for _, kind := range []string{config.KindFunction, config.KindType, config.KindVar} {
		tbl.Append([]string{kind, fmt.Sprintf("%v/%v", included[kind], total[kind])})
		nIncl += included[kind]
		nTotal += total[kind]
	}
	tbl.Append([]string{"==TOTAL==", fmt.Sprintf("%v/%v", nIncl, nTotal)})
	tbl.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})
	tbl.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	tbl.SetCenterSeparator("|")
	tbl.Render()
}

// WriteSymbolTable writes one row per included symbol.
func WriteSymbolTable(w io.Writer, ex *Extraction) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Kind", "Native", "Go", "File"})
	tbl.SetAutoWrapText(false)
	for _, s := range ex.Included() {
		tbl.Append([]string{s.Kind, s.Name, ex.Rules.Name(s.Symbol()), s.File})
	}
	tbl.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	tbl.SetCenterSeparator("|")
	tbl.Render()
}

// SymbolGraph returns the references between included symbols and the
// filtered types they use as graphviz DOT code. Filtered types are
// drawn dashed.
func SymbolGraph(ex *Extraction) []byte {
	var nodes []rules.Symbol
	for _, s := range ex.Included() {
		nodes = append(nodes, s.Symbol())
	}
	for _, name := range ex.Filtered {
		nodes = append(nodes, rules.Symbol{Name: name, Kind: config.KindType})
	}
	return digraphutils.DOTCode(nodes, edges(ex.Module), "slang", "node [shape=box]", func(s rules.Symbol) string {
		if !ex.Rules.IsIncluded(s) {
			return `[label=` + strconv.Quote(s.Name) + `, style=dashed]`
		}
		return digraphutils.Label(s.Name)
	})
}
