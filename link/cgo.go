package link

import (
	"fmt"
	"go/build/constraint"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/slang-go/slang/binder/binderio"
)

// StaticTag is the build tag selecting the static variant.
const StaticTag = "slangstatic"

// FileName returns the name of the file holding the directives of v.
// The GOOS suffix doubles as a file name build constraint.
func FileName(v Variant, goos string) string {
	if v == StaticVendored {
		return "zlink_static_" + goos + ".go"
	}
	return "zlink_" + goos + ".go"
}

// Constraint returns the build constraint of the file holding the
// directives of v for goos.
func Constraint(v Variant, goos string) constraint.Expr {
	static := &constraint.TagExpr{Tag: StaticTag}
	osTag := &constraint.TagExpr{Tag: goos}
	if v == StaticVendored {
		return &constraint.AndExpr{X: static, Y: osTag}
	}
	return &constraint.AndExpr{X: osTag, Y: &constraint.NotExpr{X: static}}
}

// LDFlags renders ds and extraLibs as the value of a "#cgo LDFLAGS:" line.
// Paths inside pkgDir are made relative to ${SRCDIR}, and arguments
// holding spaces are quoted.
func LDFlags(ds []Directive, extraLibs []string, pkgDir string) (string, error) {
	var flags []string
	for _, d := range ds {
		switch d.Kind {
		case SearchPath:
			p, err := srcdirPath(d.Path, pkgDir)
			if err != nil {
				return "", err
			}
			arg := "-L" + p
			if err := checkPath(arg); err != nil {
				return "", err
			}
			if strings.ContainsFunc(arg, unicode.IsSpace) {
				arg = `"` + arg + `"`
			}
			flags = append(flags, arg)
		case LinkLib:
			flags = append(flags, "-l"+d.Lib)
		}
	}
	for _, lib := range extraLibs {
		flags = append(flags, "-l"+lib)
	}
	return strings.Join(flags, " "), nil
}

// slashPath returns p with forward slashes. cgo directives treat
// backslashes as escapes.
func slashPath(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
}

func srcdirPath(p, pkgDir string) (string, error) {
	if pkgDir == "" {
		return slashPath(p), nil
	}
	absP, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(pkgDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absDir, absP)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return slashPath(p), nil
	}
	if rel == "." {
		return "${SRCDIR}", nil
	}
	return "${SRCDIR}/" + slashPath(rel), nil
}

// EmitCgoFile writes the Go file carrying the linker flags of v for goos.
func EmitCgoFile(cb *binderio.CodeBuilder, pkg string, v Variant, goos, ldflags string) {
	cb.Linef(`// Code generated by slanggen. DO NOT EDIT.`)
	cb.Linef(``)
	cb.Linef(`//go:build %v`, Constraint(v, goos))
	cb.Linef(``)
	cb.Linef(`package %v`, pkg)
	cb.Linef(``)
	if ldflags != "" {
		cb.Linef(`// #cgo LDFLAGS: %v`, ldflags)
	}
	cb.Linef(`import "C"`)
}

// WriteCgoFile renders the directives of v into pkgDir and returns the
// path of the written file.
func WriteCgoFile(pkgDir, pkg string, cfg *Config, v Variant, ds []Directive) (string, error) {
	var extra []string
	if v == StaticVendored {
		extra = cfg.ExtraLibs
	}
	flags, err := LDFlags(ds, extra, pkgDir)
	if err != nil {
		return "", fmt.Errorf("render link directives: %w", err)
	}
	var cb binderio.CodeBuilder
	EmitCgoFile(&cb, pkg, v, cfg.GOOS, flags)
	code, err := cb.FmtString()
	if err != nil {
		return "", fmt.Errorf("render link directives: %w", err)
	}
	path := filepath.Join(pkgDir, FileName(v, cfg.GOOS))
	if err := binderio.WriteFile(path, []byte(code)); err != nil {
		return "", err
	}
	return path, nil
}
