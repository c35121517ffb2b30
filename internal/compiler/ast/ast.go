package ast

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// Node is the base interface for all AST nodes
type Node interface {
	TokenLiteral() string
	Position() token.Position
}

// Decl is a top-level declaration of a KDL file
type Decl interface {
	Node
	declNode()
}

// File is the root AST node representing one parsed .kdl file
type File struct {
	Path  string
	Decls []Decl
}

func (f *File) TokenLiteral() string { return "kdl" }

func (f *File) Position() token.Position { return token.Position{File: f.Path, Line: 1, Column: 1} }

// ============ DECORATORS ============

// Decorator is an annotation such as @override or @repeatable(0, 10, count).
// Each argument is kept as an unevaluated token stream.
type Decorator struct {
	Word token.Word
	Name string
	Args [][]token.Token
	Pos  token.Position
}

func (d *Decorator) TokenLiteral() string { return "@" + d.Name }

func (d *Decorator) Position() token.Position { return d.Pos }

func (d *Decorator) declNode() {}

// Find returns the first decorator with word w, or nil
func Find(decorators []*Decorator, w token.Word) *Decorator {
	for _, d := range decorators {
		if d.Word == w {
			return d
		}
	}
	return nil
}

// ============ DIRECTIVES ============

// ImportDirective represents: @import "path/file.kdl";
type ImportDirective struct {
	Path string
	Pos  token.Position
}

func (d *ImportDirective) TokenLiteral() string { return "@import" }

func (d *ImportDirective) Position() token.Position { return d.Pos }

func (d *ImportDirective) declNode() {}

// ModuleDirective represents: @module Name { @requires Other; @import "x.kdl"; };
type ModuleDirective struct {
	Name     string
	Requires []string
	Imports  []*ImportDirective
	Pos      token.Position
}

func (d *ModuleDirective) TokenLiteral() string { return "@module" }

func (d *ModuleDirective) Position() token.Position { return d.Pos }

func (d *ModuleDirective) declNode() {}

// VarDirective represents @var name = expr; and @const name = expr;
type VarDirective struct {
	Name  string
	Const bool
	Value []token.Token
	Pos   token.Position
}

func (d *VarDirective) TokenLiteral() string {
	if d.Const {
		return "@const"
	}
	return "@var"
}

func (d *VarDirective) Position() token.Position { return d.Pos }

func (d *VarDirective) declNode() {}

// MetadataDirective represents: @metadata key = expr;
type MetadataDirective struct {
	Key   string
	Value []token.Token
	Pos   token.Position
}

func (d *MetadataDirective) TokenLiteral() string { return "@metadata" }

func (d *MetadataDirective) Position() token.Position { return d.Pos }

func (d *MetadataDirective) declNode() {}

// ByteOrderDirective represents: @byteorder little;
type ByteOrderDirective struct {
	Order string
	Pos   token.Position
}

func (d *ByteOrderDirective) TokenLiteral() string { return "@byteorder" }

func (d *ByteOrderDirective) Position() token.Position { return d.Pos }

func (d *ByteOrderDirective) declNode() {}

// NamespaceDirective represents: @namespace Name; (empty Name resets)
type NamespaceDirective struct {
	Name string
	Pos  token.Position
}

func (d *NamespaceDirective) TokenLiteral() string { return "@namespace" }

func (d *NamespaceDirective) Position() token.Position { return d.Pos }

func (d *NamespaceDirective) declNode() {}

// OutDirective represents: @out expr;
type OutDirective struct {
	Value []token.Token
	Pos   token.Position
}

func (d *OutDirective) TokenLiteral() string { return "@out" }

func (d *OutDirective) Position() token.Position { return d.Pos }

func (d *OutDirective) declNode() {}

// ScriptDirective represents: @script { statements };
type ScriptDirective struct {
	Body []token.Token
	Pos  token.Position
}

func (d *ScriptDirective) TokenLiteral() string { return "@script" }

func (d *ScriptDirective) Position() token.Position { return d.Pos }

func (d *ScriptDirective) declNode() {}

// ============ FUNCTIONS ============

// Param is a typed parameter: Integer count
type Param struct {
	Name string
	Type token.Word
	Pos  token.Position
}

// FunctionDecl represents: function name(Integer a, String b) { statements };
type FunctionDecl struct {
	Name   string
	Params []Param
	Body   []token.Token
	Pos    token.Position
}

func (f *FunctionDecl) TokenLiteral() string { return "function" }

func (f *FunctionDecl) Position() token.Position { return f.Pos }

func (f *FunctionDecl) declNode() {}

// ============ TYPES ============

// TemplateEntry is one line of a template block: HWRD reload; Point origin; LSTE;
type TemplateEntry struct {
	Type  token.Token // TEMPLATE_TYPE, or IDENT naming a type to nest
	Label string
	Pos   token.Position
}

// FieldDecl represents a field block entry: @repeatable(0, 4) shots = [];
type FieldDecl struct {
	Name       string
	Value      []token.Token // empty when the field has no default
	Decorators []*Decorator
	Pos        token.Position
}

func (f *FieldDecl) TokenLiteral() string { return f.Name }

func (f *FieldDecl) Position() token.Position { return f.Pos }

// ConstructorDecl represents: constructor(Integer r) { reload = r; };
type ConstructorDecl struct {
	Params []Param
	Body   []token.Token
	Pos    token.Position
}

// TypeDecl represents: declare type Name : "code" { template {...}; field {...}; };
type TypeDecl struct {
	Name        string
	Code        string
	Template    []TemplateEntry
	Fields      []*FieldDecl
	Constructor *ConstructorDecl
	Pos         token.Position
}

func (t *TypeDecl) TokenLiteral() string { return "declare" }

func (t *TypeDecl) Position() token.Position { return t.Pos }

func (t *TypeDecl) declNode() {}

// ============ RESOURCES ============

// ResourceDecl represents: new Type (id, "name", args...) { field = expr; };
type ResourceDecl struct {
	Type string // possibly qualified: Namespace.Type
	ID   []token.Token
	Name []token.Token
	Args [][]token.Token
	Body []token.Token
	Pos  token.Position
}

func (r *ResourceDecl) TokenLiteral() string { return "new" }

func (r *ResourceDecl) Position() token.Position { return r.Pos }

func (r *ResourceDecl) declNode() {}
