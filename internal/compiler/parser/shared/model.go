package shared

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/ast"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// ParseTypeDecl parses: declare type Weapon : "weap" { template {...}; field {...}; constructor(...) {...}; };
// The cursor must be on `declare`.
func (p *ParserCore) ParseTypeDecl() *ast.TypeDecl {
	decl := &ast.TypeDecl{Pos: p.curToken.Pos}

	if !p.peekToken.Is(token.Type) {
		p.addErrorAt(p.peekToken, errors.UnexpectedToken, "expected 'type' after 'declare', got %s", describe(p.peekToken))
		return nil
	}
	p.nextToken()

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	decl.Name = p.curToken.Literal

	if !p.expectPeek(token.COLON) {
		return nil
	}
	if !p.expectPeek(token.STRING) {
		return nil
	}
	decl.Code = p.curToken.Literal
	if len(decl.Code) != 4 {
		p.addError(errors.MalformedDeclaration, "type code %q of %s must be 4 characters", decl.Code, decl.Name)
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken() // move past {

	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		start := p.Offset()
		switch {
		case p.curToken.Is(token.Template):
			if decl.Template != nil {
				p.addError(errors.MalformedDeclaration, "type %s has more than one template block", decl.Name)
			}
			decl.Template = append(decl.Template, p.ParseTemplateBlock()...)
		case p.curToken.Is(token.Field):
			decl.Fields = append(decl.Fields, p.ParseFieldBlock()...)
		case p.curToken.Is(token.Constructor):
			if decl.Constructor != nil {
				p.addError(errors.MalformedDeclaration, "type %s has more than one constructor", decl.Name)
			}
			if c := p.ParseConstructor(); c != nil {
				decl.Constructor = c
			}
		default:
			p.addError(errors.UnexpectedToken, "expected template, field or constructor in type %s, got %s", decl.Name, describe(p.curToken))
			p.skipMember()
		}
		// Safety: ensure progress
		if p.Offset() == start {
			p.nextToken()
		}
	}

	if !p.curTokenIs(token.RBRACE) {
		p.addError(errors.UnexpectedToken, "unterminated type %s", decl.Name)
		return nil
	}
	p.nextToken() // consume }
	p.EndBlock()
	return decl
}

// skipMember skips to the end of the current member of a block: past the
// next `;` or a balanced `{...}`, stopping before the enclosing `}`.
func (p *ParserCore) skipMember() {
	p.CollectUntil(token.SEMICOLON, token.RBRACE)
	if p.curTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
}

// ParseTemplateBlock parses: template { HWRD reload; Point origin; LSTE; };
func (p *ParserCore) ParseTemplateBlock() []ast.TemplateEntry {
	entries := []ast.TemplateEntry{}
	if !p.expectPeek(token.LBRACE) {
		return entries
	}
	p.nextToken() // move past {

	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		start := p.Offset()
		if entry, ok := p.parseTemplateEntry(); ok {
			entries = append(entries, entry)
		} else {
			p.skipMember()
		}
		// Safety: ensure progress
		if p.Offset() == start {
			p.nextToken()
		}
	}

	if p.curTokenIs(token.RBRACE) {
		p.nextToken()
		p.EndBlock()
	}
	return entries
}

func (p *ParserCore) parseTemplateEntry() (ast.TemplateEntry, bool) {
	entry := ast.TemplateEntry{Type: p.curToken, Pos: p.curToken.Pos}

	switch {
	case p.curTokenIs(token.TEMPLATE_TYPE):
		if p.curToken.Prim == token.LSTE {
			p.nextToken()
			return entry, p.EndStatement()
		}
	case p.curTokenIs(token.IDENT):
		// Nested type, optionally qualified: Combat.Point
		if p.peekTokenIs(token.DOT) {
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return entry, false
			}
			entry.Type.Literal += "." + p.curToken.Literal
		}
	default:
		p.addError(errors.MalformedTemplate, "expected a template field type, got %s", describe(p.curToken))
		return entry, false
	}

	if !p.expectPeek(token.IDENT) {
		return entry, false
	}
	entry.Label = p.curToken.Literal
	p.nextToken()
	return entry, p.EndStatement()
}

// ParseFieldBlock parses: field { reload = 30; @repeatable(0, 10, count) shots = []; };
func (p *ParserCore) ParseFieldBlock() []*ast.FieldDecl {
	var fields []*ast.FieldDecl
	if !p.expectPeek(token.LBRACE) {
		return fields
	}
	p.nextToken() // move past {

	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		start := p.Offset()
		if f := p.parseFieldDecl(); f != nil {
			fields = append(fields, f)
		} else {
			p.skipMember()
		}
		// Safety: ensure progress
		if p.Offset() == start {
			p.nextToken()
		}
	}

	if p.curTokenIs(token.RBRACE) {
		p.nextToken()
		p.EndBlock()
	}
	return fields
}

func (p *ParserCore) parseFieldDecl() *ast.FieldDecl {
	decorators := p.ParseDecorators()
	if !p.curTokenIs(token.IDENT) {
		p.addError(errors.UnexpectedToken, "expected field name, got %s", describe(p.curToken))
		return nil
	}

	field := &ast.FieldDecl{
		Name:       p.curToken.Literal,
		Decorators: decorators,
		Pos:        p.curToken.Pos,
	}
	p.nextToken()

	if p.curTokenIs(token.ASSIGN) {
		p.nextToken() // consume =
		field.Value = p.CollectUntil(token.SEMICOLON, token.RBRACE)
		if len(field.Value) == 0 {
			p.addError(errors.ExpressionSyntax, "missing default value for field %s", field.Name)
		}
	}
	if !p.EndStatement() {
		return nil
	}
	return field
}
