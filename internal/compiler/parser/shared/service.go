package shared

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/ast"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// ParseFunctionDecl parses: function clamp(Integer v, Integer lo, Integer hi) { min(max(v, lo), hi); };
// The cursor must be on `function`.
func (p *ParserCore) ParseFunctionDecl() *ast.FunctionDecl {
	fn := &ast.FunctionDecl{Pos: p.curToken.Pos}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	fn.Name = p.curToken.Literal

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.ParseParams()
	if !ok {
		return nil
	}
	fn.Params = params

	body, ok := p.ParseBody()
	if !ok {
		return nil
	}
	fn.Body = body
	return fn
}

// ParseConstructor parses: constructor(Integer r, String t) { reload = r; };
// The cursor must be on `constructor`.
func (p *ParserCore) ParseConstructor() *ast.ConstructorDecl {
	ctor := &ast.ConstructorDecl{Pos: p.curToken.Pos}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.ParseParams()
	if !ok {
		return nil
	}
	ctor.Params = params

	body, ok := p.ParseBody()
	if !ok {
		return nil
	}
	ctor.Body = body
	return ctor
}

// ParseParams parses a typed parameter list. The cursor must be on `(` and
// is left after the closing `)`.
func (p *ParserCore) ParseParams() ([]ast.Param, bool) {
	params := []ast.Param{}
	p.nextToken() // consume (

	for !p.curTokenIs(token.RPAREN) && !p.curTokenIs(token.EOF) {
		if !p.curTokenIs(token.VALUE_TYPE) {
			p.addError(errors.UnexpectedToken, "expected parameter type, got %s", describe(p.curToken))
			return params, false
		}
		param := ast.Param{Type: p.curToken.Word, Pos: p.curToken.Pos}
		if !p.expectPeek(token.IDENT) {
			return params, false
		}
		param.Name = p.curToken.Literal
		for _, prev := range params {
			if prev.Name == param.Name {
				p.addError(errors.MalformedDeclaration, "duplicate parameter %s", param.Name)
			}
		}
		params = append(params, param)
		p.nextToken()

		if p.curTokenIs(token.COMMA) {
			p.nextToken()
			continue
		}
		if !p.curTokenIs(token.RPAREN) {
			p.addError(errors.UnexpectedToken, "expected ',' or ')', got %s", describe(p.curToken))
			return params, false
		}
	}

	if !p.curTokenIs(token.RPAREN) {
		p.addError(errors.UnexpectedToken, "unterminated parameter list")
		return params, false
	}
	p.nextToken() // consume )
	return params, true
}

// ParseBody returns the tokens between `{` and its matching `}`. The cursor
// must be on `{` and is left after the block and its optional `;`.
func (p *ParserCore) ParseBody() ([]token.Token, bool) {
	if !p.curTokenIs(token.LBRACE) {
		p.addError(errors.UnexpectedToken, "expected '{', got %s", describe(p.curToken))
		return nil, false
	}
	p.nextToken() // consume {

	body := p.CollectUntil(token.RBRACE)
	if !p.curTokenIs(token.RBRACE) {
		p.addError(errors.UnexpectedToken, "unterminated block")
		return body, false
	}
	p.nextToken() // consume }
	p.EndBlock()
	return body, true
}
