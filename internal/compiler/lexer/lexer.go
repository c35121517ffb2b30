package lexer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// Kind is the character-level class of a lexeme.
type Kind uint8

const (
	EOF Kind = iota
	Identifier
	Integer
	String
	Symbol
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Identifier:
		return "Identifier"
	case Integer:
		return "Integer"
	case String:
		return "String"
	case Symbol:
		return "Symbol"
	}
	return "Unknown"
}

// Lexeme is a run of characters matched by one character-class rule.
// String lexemes hold the unescaped value.
type Lexeme struct {
	Kind Kind
	Text string
	Pos  token.Position
}

type Lexer struct {
	file         string
	input        string
	position     int  // current offset in input (bytes)
	readPosition int  // next reading position (bytes)
	ch           rune // current character
	line         int  // current line (1-based)
	column       int  // current column (1-based)
}

func New(file, input string) *Lexer {
	l := &Lexer{
		file:   file,
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// Lex scans the whole input. The returned slice always ends with an EOF
// lexeme when err is nil.
func Lex(file, input string) ([]Lexeme, error) {
	l := New(file, input)
	var out []Lexeme
	for {
		lx, err := l.Next()
		if err != nil {
			return out, err
		}
		out = append(out, lx)
		if lx.Kind == EOF {
			return out, nil
		}
	}
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.column++
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
		if l.ch == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.ch = r
		l.position = l.readPosition
		l.readPosition += size
	}
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.ch == 0 && l.position >= len(l.input)
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{
		File:   l.file,
		Line:   l.line,
		Column: l.column,
		Offset: l.position,
	}
}

func (l *Lexer) fail(code errors.Code, pos token.Position, text, format string, args ...interface{}) error {
	return errors.New(errors.PhaseLexer, code, pos.Diag(), format, args...).Near(text)
}

// Next returns the next lexeme, or a fatal lexer error.
func (l *Lexer) Next() (Lexeme, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return Lexeme{}, err
	}

	pos := l.currentPos()

	switch {
	case l.atEOF():
		return Lexeme{Kind: EOF, Pos: pos}, nil
	case l.ch == '"':
		s, err := l.readString(pos)
		if err != nil {
			return Lexeme{}, err
		}
		return Lexeme{Kind: String, Text: s, Pos: pos}, nil
	case isLetter(l.ch):
		return Lexeme{Kind: Identifier, Text: l.readIdentifier(), Pos: pos}, nil
	case isDigit(l.ch):
		text := l.readNumber()
		if _, err := ParseInteger(text); err != nil {
			return Lexeme{}, l.fail(errors.MalformedNumber, pos, text, "malformed integer literal")
		}
		return Lexeme{Kind: Integer, Text: text, Pos: pos}, nil
	}

	// Longest match over the symbol table.
	two := string(l.ch) + string(l.peekChar())
	if _, ok := token.LookupSymbol(two); ok {
		l.readChar()
		l.readChar()
		return Lexeme{Kind: Symbol, Text: two, Pos: pos}, nil
	}
	one := string(l.ch)
	if _, ok := token.LookupSymbol(one); ok || l.ch == '@' || l.ch == '#' {
		l.readChar()
		return Lexeme{Kind: Symbol, Text: one, Pos: pos}, nil
	}

	return Lexeme{}, l.fail(errors.IllegalCharacter, pos, one, "illegal character")
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		// Skip whitespace
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		// Skip single-line comments
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		// Skip multi-line comments
		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.currentPos()
			l.readChar() // consume /
			l.readChar() // consume *
			for {
				if l.atEOF() {
					return l.fail(errors.UnterminatedComment, pos, "/*", "unterminated block comment")
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // consume *
					l.readChar() // consume /
					break
				}
				l.readChar()
			}
			continue
		}

		return nil
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readNumber consumes digits plus any trailing letters so that 0x1F and
// 0b101 lex as one unit; validity is checked by the caller.
// ParseInteger reads an unsigned integer literal: decimal, or hexadecimal
// and binary behind a 0x or 0b prefix. Leading zeros stay decimal.
func ParseInteger(text string) (uint64, error) {
	base := 10
	if len(text) > 1 && text[0] == '0' {
		switch text[1] {
		case 'x', 'X':
			base, text = 16, text[2:]
		case 'b', 'B':
			base, text = 2, text[2:]
		}
	}
	return strconv.ParseUint(text, base, 64)
}

func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) || isLetter(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readString(pos token.Position) (string, error) {
	l.readChar() // consume opening "
	var b strings.Builder

	for l.ch != '"' {
		if l.atEOF() {
			return "", l.fail(errors.UnterminatedString, pos, b.String(), "unterminated string literal")
		}
		if l.ch == '\\' {
			l.readChar() // consume backslash
			switch l.ch {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case '"', '\\':
				b.WriteRune(l.ch)
			case 0:
				continue
			default:
				b.WriteByte('\\')
				b.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		b.WriteRune(l.ch)
		l.readChar()
	}

	l.readChar() // consume closing "
	return b.String(), nil
}

func isLetter(ch rune) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}
