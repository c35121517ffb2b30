// Package parser turns a token stream into the declaration AST of one KDL
// file. Parse errors are recoverable: the parser records a diagnostic,
// skips to the next statement boundary and carries on.
package parser

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/ast"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/parser/shared"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/script"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

type Parser struct {
	*shared.ParserCore
}

func New(toks []token.Token) *Parser {
	return &Parser{ParserCore: shared.NewParserCore(toks)}
}

// Parse is a convenience wrapper returning the file and its diagnostics.
func Parse(path string, toks []token.Token) (*ast.File, []*errors.CompileError) {
	p := New(toks)
	f := p.ParseFile(path)
	return f, p.Errors()
}

// ParseFile is the main entry point for parsing a .kdl file
func (p *Parser) ParseFile(path string) *ast.File {
	file := &ast.File{Path: path, Decls: []ast.Decl{}}

	for !p.Finished() {
		start, errs := p.Offset(), len(p.Errors())
		if decl := p.parseDecl(); decl != nil {
			file.Decls = append(file.Decls, decl)
		} else if len(p.Errors()) > errs {
			p.recover(start)
		}
		// Safety: ensure progress
		if p.Offset() == start {
			p.Next()
		}
	}
	return file
}

// recover skips the remains of a statement that failed to parse. A
// declaration start reached by the failed parse is left alone.
func (p *Parser) recover(start int) {
	if p.Offset() == start {
		p.Next()
	} else if shared.StartsDeclaration(p.Cur()) {
		return
	}
	p.Synchronize()
}

func (p *Parser) parseDecl() ast.Decl {
	cur := p.Cur()
	switch cur.Kind {
	case token.SEMICOLON:
		p.Next()
		return nil
	case token.DIRECTIVE:
		return p.parseDirective()
	case token.DECORATOR:
		return p.ParseDecorator()
	case token.KEYWORD:
		switch cur.Word {
		case token.Declare:
			if decl := p.ParseTypeDecl(); decl != nil {
				return decl
			}
			return nil
		case token.New:
			if decl := p.parseResource(); decl != nil {
				return decl
			}
			return nil
		case token.Function:
			if decl := p.ParseFunctionDecl(); decl != nil {
				return decl
			}
			return nil
		}
	}
	p.AddError(errors.UnexpectedToken, "unexpected %s at top level", cur.Kind)
	return nil
}

// ============ DIRECTIVES ============

func (p *Parser) parseDirective() ast.Decl {
	cur := p.Cur()
	switch cur.Word {
	case token.Import:
		if d := p.parseImport(); d != nil {
			return d
		}
	case token.Module:
		if d := p.parseModule(); d != nil {
			return d
		}
	case token.Var, token.Const:
		if d := p.parseVar(); d != nil {
			return d
		}
	case token.Metadata:
		if d := p.parseMetadata(); d != nil {
			return d
		}
	case token.ByteOrder:
		if d := p.parseByteOrder(); d != nil {
			return d
		}
	case token.Namespace:
		if d := p.parseNamespace(); d != nil {
			return d
		}
	case token.Out:
		d := &ast.OutDirective{Pos: cur.Pos}
		if d.Value = p.parseExpression("@out"); d.Value != nil && p.EndStatement() {
			return d
		}
	case token.Script:
		d := &ast.ScriptDirective{Pos: cur.Pos}
		p.Next()
		body, ok := p.ParseBody()
		if ok {
			d.Body = body
			return d
		}
	case token.Requires:
		p.AddError(errors.MalformedDirective, "@requires is only valid inside a @module block")
	default:
		p.AddError(errors.MalformedDirective, "unexpected directive @%s", cur.Literal)
	}
	return nil
}

// parseImport parses: @import "path/file.kdl";
func (p *Parser) parseImport() *ast.ImportDirective {
	d := &ast.ImportDirective{Pos: p.Cur().Pos}
	if !p.ExpectPeek(token.STRING) {
		return nil
	}
	d.Path = p.Cur().Literal
	if d.Path == "" {
		p.AddError(errors.MalformedDirective, "empty import path")
		return nil
	}
	p.Next()
	if !p.EndStatement() {
		return nil
	}
	return d
}

// parseModule parses: @module Name { @requires Other; @import "x.kdl"; };
func (p *Parser) parseModule() *ast.ModuleDirective {
	d := &ast.ModuleDirective{Pos: p.Cur().Pos}
	if !p.ExpectPeek(token.IDENT) {
		return nil
	}
	d.Name = p.Cur().Literal
	if !p.ExpectPeek(token.LBRACE) {
		return nil
	}
	p.Next() // move past {

	for !p.Is(token.RBRACE) && !p.Finished() {
		start := p.Offset()
		cur := p.Cur()
		switch {
		case cur.Is(token.Requires):
			if !p.ExpectPeek(token.IDENT) {
				return nil
			}
			d.Requires = append(d.Requires, p.Cur().Literal)
			p.Next()
			if !p.EndStatement() {
				return nil
			}
		case cur.Is(token.Import):
			imp := p.parseImport()
			if imp == nil {
				return nil
			}
			d.Imports = append(d.Imports, imp)
		default:
			p.AddError(errors.MalformedDirective, "only @requires and @import are allowed in module %s", d.Name)
			return nil
		}
		// Safety: ensure progress
		if p.Offset() == start {
			p.Next()
		}
	}

	if !p.Is(token.RBRACE) {
		p.AddError(errors.UnexpectedToken, "unterminated module %s", d.Name)
		return nil
	}
	p.Next()
	p.EndBlock()
	return d
}

// parseVar parses: @var name = expr; and @const name = expr;
func (p *Parser) parseVar() *ast.VarDirective {
	d := &ast.VarDirective{Const: p.Cur().Is(token.Const), Pos: p.Cur().Pos}
	if !p.ExpectPeek(token.IDENT) {
		return nil
	}
	d.Name = p.Cur().Literal
	if !p.ExpectPeek(token.ASSIGN) {
		return nil
	}
	if d.Value = p.parseExpression(d.TokenLiteral() + " " + d.Name); d.Value == nil {
		return nil
	}
	if !p.EndStatement() {
		return nil
	}
	return d
}

// parseMetadata parses: @metadata key = expr;
func (p *Parser) parseMetadata() *ast.MetadataDirective {
	d := &ast.MetadataDirective{Pos: p.Cur().Pos}
	if !p.ExpectPeek(token.IDENT) {
		return nil
	}
	d.Key = p.Cur().Literal
	if !p.ExpectPeek(token.ASSIGN) {
		return nil
	}
	if d.Value = p.parseExpression("@metadata " + d.Key); d.Value == nil {
		return nil
	}
	if !p.EndStatement() {
		return nil
	}
	return d
}

// parseByteOrder parses: @byteorder little; or @byteorder big;
func (p *Parser) parseByteOrder() *ast.ByteOrderDirective {
	d := &ast.ByteOrderDirective{Pos: p.Cur().Pos}
	if !p.ExpectPeek(token.IDENT) {
		return nil
	}
	d.Order = p.Cur().Literal
	if d.Order != "big" && d.Order != "little" {
		p.AddError(errors.MalformedDirective, "byte order must be big or little, got %s", d.Order)
		return nil
	}
	p.Next()
	if !p.EndStatement() {
		return nil
	}
	return d
}

// parseNamespace parses: @namespace Name; and the resetting @namespace;
func (p *Parser) parseNamespace() *ast.NamespaceDirective {
	d := &ast.NamespaceDirective{Pos: p.Cur().Pos}
	p.Next()
	if p.Is(token.IDENT) {
		d.Name = p.Cur().Literal
		p.Next()
	}
	if !p.EndStatement() {
		return nil
	}
	return d
}

// parseExpression collects the expression after the cursor up to the
// closing `;`, which is left under the cursor.
func (p *Parser) parseExpression(what string) []token.Token {
	p.Next()
	toks := p.CollectUntil(token.SEMICOLON, token.RBRACE)
	if len(toks) == 0 {
		p.AddError(errors.ExpressionSyntax, "missing expression for %s", what)
		return nil
	}
	return toks
}

// ============ RESOURCES ============

// parseResource parses: new Weapon (128, "Blaster", 12) { shots = [10, 20]; };
func (p *Parser) parseResource() *ast.ResourceDecl {
	r := &ast.ResourceDecl{Pos: p.Cur().Pos}
	if !p.ExpectPeek(token.IDENT) {
		return nil
	}
	r.Type = p.Cur().Literal
	if p.Peek().Kind == token.DOT {
		p.Next()
		if !p.ExpectPeek(token.IDENT) {
			return nil
		}
		r.Type += "." + p.Cur().Literal
	}

	if !p.ExpectPeek(token.LPAREN) {
		return nil
	}
	p.Next() // consume (
	args := p.CollectUntil(token.RPAREN)
	if !p.Is(token.RPAREN) {
		p.AddError(errors.UnexpectedToken, "unterminated arguments for new %s", r.Type)
		return nil
	}
	p.Next() // consume )

	parts := script.SplitTopLevel(args, token.COMMA)
	if len(parts) == 0 || len(parts[0]) == 0 {
		p.AddError(errors.MalformedDeclaration, "new %s requires a resource id", r.Type)
		return nil
	}
	for _, part := range parts {
		if len(part) == 0 {
			p.AddError(errors.MalformedDeclaration, "empty argument in new %s", r.Type)
			return nil
		}
	}
	r.ID = parts[0]
	if len(parts) > 1 {
		r.Name = parts[1]
	}
	if len(parts) > 2 {
		r.Args = parts[2:]
	}

	if p.Is(token.LBRACE) {
		body, ok := p.ParseBody()
		if !ok {
			return nil
		}
		r.Body = body
		return r
	}
	if !p.EndStatement() {
		return nil
	}
	return r
}
