package shared

import (
	"fmt"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/tokenizer"
)

// ParserCore contains the token cursor and the parsing helpers shared by
// the top-level declaration parser and the type body parsers
type ParserCore struct {
	s         *tokenizer.Stream
	curToken  token.Token
	peekToken token.Token
	errs      []*errors.CompileError
}

// NewParserCore creates a parser core over a tokenized file
func NewParserCore(toks []token.Token) *ParserCore {
	p := &ParserCore{s: tokenizer.NewStream(toks)}
	p.sync()
	return p
}

func (p *ParserCore) Errors() []*errors.CompileError {
	return p.errs
}

func (p *ParserCore) addError(code errors.Code, format string, args ...interface{}) {
	p.addErrorAt(p.curToken, code, format, args...)
}

func (p *ParserCore) addErrorAt(tok token.Token, code errors.Code, format string, args ...interface{}) {
	err := errors.New(errors.PhaseDiagnostic, code, tok.Pos.Diag(), format, args...)
	p.errs = append(p.errs, err.Near(tok.Literal))
}

func (p *ParserCore) sync() {
	p.curToken = p.s.Current()
	p.peekToken = p.s.Peek(1)
}

func (p *ParserCore) nextToken() {
	p.s.Next()
	p.sync()
}

func (p *ParserCore) curTokenIs(k token.Kind) bool {
	return p.curToken.Kind == k
}

func (p *ParserCore) peekTokenIs(k token.Kind) bool {
	return p.peekToken.Kind == k
}

func (p *ParserCore) expectPeek(k token.Kind) bool {
	if p.peekTokenIs(k) {
		p.nextToken()
		return true
	}
	p.addErrorAt(p.peekToken, errors.UnexpectedToken, "expected %s, got %s", k, describe(p.peekToken))
	return false
}

func describe(tok token.Token) string {
	if tok.Kind == token.EOF {
		return "end of file"
	}
	return fmt.Sprintf("%s %q", tok.Kind, tok.Literal)
}

// Cur returns the token under the cursor
func (p *ParserCore) Cur() token.Token {
	return p.curToken
}

// Peek returns the token after the cursor
func (p *ParserCore) Peek() token.Token {
	return p.peekToken
}

func (p *ParserCore) Next() {
	p.nextToken()
}

func (p *ParserCore) Is(k token.Kind) bool {
	return p.curTokenIs(k)
}

func (p *ParserCore) ExpectPeek(k token.Kind) bool {
	return p.expectPeek(k)
}

func (p *ParserCore) AddError(code errors.Code, format string, args ...interface{}) {
	p.addError(code, format, args...)
}

// Offset is the cursor index, used by callers to ensure progress
func (p *ParserCore) Offset() int {
	return p.s.Position()
}

// Finished reports whether the cursor reached EOF
func (p *ParserCore) Finished() bool {
	return p.curTokenIs(token.EOF)
}

// CollectUntil gathers tokens from the cursor up to the first stop kind at
// bracket depth zero and leaves the cursor on that token.
func (p *ParserCore) CollectUntil(stop ...token.Kind) []token.Token {
	out := p.s.Until(stop...)
	p.sync()
	return out
}

// EndStatement consumes the `;` closing a statement.
func (p *ParserCore) EndStatement() bool {
	if p.curTokenIs(token.SEMICOLON) {
		p.nextToken()
		return true
	}
	p.addError(errors.UnexpectedToken, "expected ';', got %s", describe(p.curToken))
	return false
}

// EndBlock consumes the optional `;` after a closing brace.
func (p *ParserCore) EndBlock() {
	if p.curTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
}

// StartsDeclaration reports whether tok can begin a top-level declaration.
func StartsDeclaration(tok token.Token) bool {
	switch tok.Kind {
	case token.DIRECTIVE, token.DECORATOR:
		return true
	case token.KEYWORD:
		return tok.Word == token.Declare || tok.Word == token.New || tok.Word == token.Function
	}
	return false
}

// Synchronize skips tokens until a top-level statement boundary is found.
// Used for error recovery to avoid cascades of follow-up errors.
func (p *ParserCore) Synchronize() {
	depth := 0
	for !p.curTokenIs(token.EOF) {
		switch p.curToken.Kind {
		case token.LBRACE, token.LPAREN, token.LBRACKET:
			depth++
		case token.RBRACE, token.RPAREN, token.RBRACKET:
			if depth > 0 {
				depth--
			}
			if depth == 0 && p.curTokenIs(token.RBRACE) {
				p.nextToken()
				p.EndBlock()
				return
			}
		case token.SEMICOLON:
			if depth == 0 {
				p.nextToken()
				return
			}
		default:
			if depth == 0 && StartsDeclaration(p.curToken) {
				return
			}
		}
		p.nextToken()
	}
}
