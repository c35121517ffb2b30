package shared

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/ast"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/script"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// ParseDecorator parses: @override, @condition(reload > 0), @repeatable(0, 10, count)
// The cursor must be on the DECORATOR token and is left on the token after it.
func (p *ParserCore) ParseDecorator() *ast.Decorator {
	dec := &ast.Decorator{
		Word: p.curToken.Word,
		Name: p.curToken.Literal,
		Pos:  p.curToken.Pos,
	}
	p.nextToken() // move past decorator name

	if !p.curTokenIs(token.LPAREN) {
		return dec
	}
	p.nextToken() // consume (

	args := p.CollectUntil(token.RPAREN)
	if !p.curTokenIs(token.RPAREN) {
		p.addError(errors.UnexpectedToken, "unterminated arguments for @%s", dec.Name)
		return dec
	}
	p.nextToken() // consume )

	for _, arg := range script.SplitTopLevel(args, token.COMMA) {
		if len(arg) == 0 {
			p.addErrorAt(p.curToken, errors.MalformedDeclaration, "empty argument to @%s", dec.Name)
			continue
		}
		dec.Args = append(dec.Args, arg)
	}
	return dec
}

// ParseDecorators parses consecutive decorators.
func (p *ParserCore) ParseDecorators() []*ast.Decorator {
	var out []*ast.Decorator
	for p.curTokenIs(token.DECORATOR) {
		out = append(out, p.ParseDecorator())
	}
	return out
}
