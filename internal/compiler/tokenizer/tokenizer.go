// Package tokenizer reclassifies lexemes against the fixed KDL
// vocabularies. Character grammar lives in the lexer; everything that
// depends on word lists lives here.
package tokenizer

import (
	"strconv"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/lexer"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// Tokenize converts a lexeme stream into tokens. Any error is a fatal
// TokenizeError for the file.
func Tokenize(lexemes []lexer.Lexeme) ([]token.Token, error) {
	t := &tokenizer{in: lexemes}
	return t.run()
}

// TokenizeSource lexes and tokenizes src in one step.
func TokenizeSource(file, src string) ([]token.Token, error) {
	lexemes, err := lexer.Lex(file, src)
	if err != nil {
		return nil, err
	}
	return Tokenize(lexemes)
}

type tokenizer struct {
	in  []lexer.Lexeme
	pos int
	out []token.Token
}

func (t *tokenizer) peek(n int) lexer.Lexeme {
	if t.pos+n < len(t.in) {
		return t.in[t.pos+n]
	}
	return lexer.Lexeme{Kind: lexer.EOF}
}

func (t *tokenizer) emit(tok token.Token) {
	t.out = append(t.out, tok)
}

func (t *tokenizer) fail(code errors.Code, lx lexer.Lexeme, format string, args ...interface{}) error {
	return errors.New(errors.PhaseTokenizer, code, lx.Pos.Diag(), format, args...).Near(lx.Text)
}

func (t *tokenizer) run() ([]token.Token, error) {
	for t.pos < len(t.in) {
		lx := t.in[t.pos]
		switch lx.Kind {
		case lexer.EOF:
			t.emit(token.Token{Kind: token.EOF, Pos: lx.Pos})
			return t.out, nil

		case lexer.Identifier:
			t.emit(classifyIdent(lx))
			t.pos++

		case lexer.Integer:
			n, err := parseInteger(lx.Text)
			if err != nil {
				return nil, t.fail(errors.MalformedNumber, lx, "integer literal out of range")
			}
			t.emit(token.Token{Kind: token.INTEGER, Literal: lx.Text, Pos: lx.Pos, Int: n})
			t.pos++

		case lexer.String:
			t.emit(token.Token{Kind: token.STRING, Literal: lx.Text, Pos: lx.Pos})
			t.pos++

		case lexer.Symbol:
			if err := t.symbol(lx); err != nil {
				return nil, err
			}
		}
	}
	// A lexeme stream always ends in EOF; tolerate one that does not.
	t.emit(token.Token{Kind: token.EOF})
	return t.out, nil
}

func (t *tokenizer) symbol(lx lexer.Lexeme) error {
	switch lx.Text {
	case "@":
		return t.annotation(lx)
	case "#":
		return t.reference(lx)
	}
	kind, ok := token.LookupSymbol(lx.Text)
	if !ok {
		return t.fail(errors.IllegalCharacter, lx, "unrecognised symbol")
	}
	t.emit(token.Token{Kind: kind, Literal: lx.Text, Pos: lx.Pos})
	t.pos++
	return nil
}

// annotation classifies `@name` as a directive or a decorator.
func (t *tokenizer) annotation(at lexer.Lexeme) error {
	name := t.peek(1)
	if name.Kind != lexer.Identifier {
		return t.fail(errors.UnknownDirective, at, "expected directive or decorator name after '@'")
	}
	if w, ok := token.LookupDirective(name.Text); ok {
		t.emit(token.Token{Kind: token.DIRECTIVE, Literal: name.Text, Pos: at.Pos, Word: w})
	} else if w, ok := token.LookupDecorator(name.Text); ok {
		t.emit(token.Token{Kind: token.DECORATOR, Literal: name.Text, Pos: at.Pos, Word: w})
	} else {
		return t.fail(errors.UnknownDirective, name, "unknown directive or decorator @%s", name.Text)
	}
	t.pos += 2
	return nil
}

// reference reads `#id`, `#-id` or `#Namespace.id`.
func (t *tokenizer) reference(hash lexer.Lexeme) error {
	tok := token.Token{Kind: token.REFERENCE, Pos: hash.Pos}
	i := 1
	if ns := t.peek(i); ns.Kind == lexer.Identifier && t.peek(i+1).Text == "." {
		tok.Namespace = ns.Text
		i += 2
	}
	negative := false
	if t.peek(i).Kind == lexer.Symbol && t.peek(i).Text == "-" {
		negative = true
		i++
	}
	idLx := t.peek(i)
	if idLx.Kind != lexer.Integer {
		return t.fail(errors.MalformedReference, hash, "expected resource id after '#'")
	}
	n, err := parseInteger(idLx.Text)
	if err != nil {
		return t.fail(errors.MalformedReference, idLx, "resource id out of range")
	}
	if negative {
		n = -n
	}
	tok.Int = n
	tok.Literal = "#" + strconv.FormatInt(n, 10)
	if tok.Namespace != "" {
		tok.Literal = "#" + tok.Namespace + "." + strconv.FormatInt(n, 10)
	}
	t.emit(tok)
	t.pos += i + 1
	return nil
}

func classifyIdent(lx lexer.Lexeme) token.Token {
	kind, word := token.LookupIdent(lx.Text)
	tok := token.Token{Kind: kind, Literal: lx.Text, Pos: lx.Pos, Word: word}
	if kind == token.TEMPLATE_TYPE {
		prim, width, _ := token.LookupPrimitive(lx.Text)
		tok.Prim = prim
		tok.Int = int64(width)
	}
	return tok
}

// parseInteger keeps the 64-bit pattern, so 0xFFFFFFFFFFFFFFFF is -1.
func parseInteger(text string) (int64, error) {
	u, err := lexer.ParseInteger(text)
	if err != nil {
		return 0, err
	}
	return int64(u), nil
}
