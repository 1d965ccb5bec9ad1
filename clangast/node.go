// Package clangast runs clang over a header and decodes what it reports:
// the JSON AST dump (-ast-dump=json) and the macro dump (-E -dM).
package clangast

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Node is a single entry of clang's JSON AST dump. Only the attributes
// the binding generator reads are decoded.
type Node struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Loc        *Loc   `json:"loc"`
	Range      *Range `json:"range"`
	IsImplicit bool   `json:"isImplicit"`

	Type *QualType `json:"type"`

	// Declarations
	MangledName  string `json:"mangledName"`
	StorageClass string `json:"storageClass"`
	Init         string `json:"init"`
	Constexpr    bool   `json:"constexpr"`
	IsBitfield   bool   `json:"isBitfield"`

	// Tag declarations
	TagUsed             string          `json:"tagUsed"`
	CompleteDefinition  bool            `json:"completeDefinition"`
	Bases               []Base          `json:"bases"`
	DefinitionData      *DefinitionData `json:"definitionData"`
	ScopedEnumTag       string          `json:"scopedEnumTag"`
	FixedUnderlyingType *QualType       `json:"fixedUnderlyingType"`

	// Methods
	Virtual bool `json:"virtual"`
	Pure    bool `json:"pure"`

	// LinkageSpecDecl
	Language string `json:"language"`

	// Expressions
	Value          json.RawMessage `json:"value"`
	Opcode         string          `json:"opcode"`
	CastKind       string          `json:"castKind"`
	ReferencedDecl *Node           `json:"referencedDecl"`

	// Comments
	Text string `json:"text"`

	Inner []*Node `json:"inner"`
}

type QualType struct {
	QualType          string `json:"qualType"`
	DesugaredQualType string `json:"desugaredQualType"`
	TypeAliasDeclID   string `json:"typeAliasDeclId"`
}

type Base struct {
	Access    string   `json:"access"`
	IsVirtual bool     `json:"isVirtual"`
	Type      QualType `json:"type"`
}

// DefinitionData holds the C++ class properties clang reports for a
// complete class. Flags are only present in the dump when set.
type DefinitionData struct {
	IsPolymorphic       bool `json:"isPolymorphic"`
	IsTriviallyCopyable bool `json:"isTriviallyCopyable"`
	IsStandardLayout    bool `json:"isStandardLayout"`
	IsPOD               bool `json:"isPOD"`
}

// Loc is a source location. clang omits "file" (and "line") when they
// are unchanged from the previously printed location; [Decode] fills them
// back in.
type Loc struct {
	Offset       *int64 `json:"offset"`
	File         string `json:"file"`
	Line         int    `json:"line"`
	Col          int    `json:"col"`
	SpellingLoc  *Loc   `json:"spellingLoc"`
	ExpansionLoc *Loc   `json:"expansionLoc"`
	IncludedFrom *struct {
		File string `json:"file"`
	} `json:"includedFrom"`
}

type Range struct {
	Begin *Loc `json:"begin"`
	End   *Loc `json:"end"`
}

// ValueString returns the evaluated value of an expression node
// (IntegerLiteral, ConstantExpr, ...), or "" if clang didn't record one.
func (n *Node) ValueString() string {
	if len(n.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(n.Value, &s); err == nil {
		return s
	}
	return string(n.Value)
}

// File returns the header n was declared in, or "" for builtins.
func (n *Node) File() string {
	if n.Loc == nil {
		return ""
	}
	return n.Loc.File
}

// Walk calls fn for n and its descendants in document order until fn
// returns false for a node, in which case its children are skipped.
func (n *Node) Walk(fn func(n *Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Inner {
		c.Walk(fn)
	}
}

// Decode reads a JSON AST dump and restores the file names clang elided.
func Decode(r io.Reader) (*Node, error) {
	var root Node
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode clang AST: %w", err)
	}
	if root.Kind != "TranslationUnitDecl" {
		return nil, fmt.Errorf("decode clang AST: expected TranslationUnitDecl, got %q", root.Kind)
	}
	var cur string
	root.fillFiles(&cur)
	return &root, nil
}

// fillFiles visits locations in the same order clang printed them.
func (n *Node) fillFiles(cur *string) {
	fillLoc(n.Loc, cur)
	if n.Range != nil {
		fillLoc(n.Range.Begin, cur)
		fillLoc(n.Range.End, cur)
	}
	for _, c := range n.Inner {
		c.fillFiles(cur)
	}
}

func fillLoc(l *Loc, cur *string) {
	if l == nil {
		return
	}
	if l.SpellingLoc != nil || l.ExpansionLoc != nil {
		fillLoc(l.SpellingLoc, cur)
		fillLoc(l.ExpansionLoc, cur)
		if l.ExpansionLoc != nil {
			l.File = l.ExpansionLoc.File
			l.Line = l.ExpansionLoc.Line
		}
		return
	}
	if l.File != "" {
		*cur = l.File
	} else if l.Offset != nil {
		l.File = *cur
	}
}
