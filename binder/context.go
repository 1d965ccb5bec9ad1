package binder

import (
	"github.com/slang-go/slang/config"
	"github.com/slang-go/slang/config/rules"
	"github.com/slang-go/slang/ir"
	"github.com/slang-go/slang/logger"
)

// Immutable
type Context struct {
	Config *config.Config
	Module *ir.Module
	Rules  *rules.Result
	Logger *logger.Logger
	// Base name of the header, for the generated file's header line.
	HeaderName string
}

func NewContext(cfg *config.Config, mod *ir.Module, res *rules.Result, log *logger.Logger, headerName string) *Context {
	return &Context{
		Config:     cfg,
		Module:     mod,
		Rules:      res,
		Logger:     log,
		HeaderName: headerName,
	}
}

// GoName returns the Go name of the native symbol name of kind.
func (ctx *Context) GoName(kind, name string) string {
	return ctx.Rules.Name(rules.Symbol{Name: name, Kind: kind})
}

// EmitsType reports whether the native type name is emitted, so that
// references to it can use its Go name.
func (ctx *Context) EmitsType(name string) bool {
	return ctx.Config.Codegen.Has(config.CodegenTypes) &&
		ctx.Rules.IsIncluded(rules.Symbol{Name: name, Kind: config.KindType})
}
