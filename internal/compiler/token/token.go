package token

import (
	"fmt"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
)

type Kind uint8

type Position struct {
	File   string
	Line   int
	Column int
	Offset int
}

// Diag converts the position for use in diagnostics.
func (p Position) Diag() errors.Position {
	return errors.Position{File: p.File, Line: p.Line, Column: p.Column}
}

func (p Position) String() string {
	return p.Diag().String()
}

// Token is a vocabulary-classified lexeme. Word is set for DIRECTIVE,
// DECORATOR, KEYWORD and VALUE_TYPE tokens; Prim and Int for TEMPLATE_TYPE;
// Int for INTEGER and REFERENCE; Namespace for REFERENCE.
type Token struct {
	Kind      Kind
	Literal   string
	Pos       Position
	Word      Word
	Prim      Primitive
	Int       int64
	Namespace string
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "EOF"
	case STRING:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Literal)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Literal)
}

// Is reports whether the token is the given vocabulary word.
func (t Token) Is(w Word) bool {
	switch t.Kind {
	case DIRECTIVE, DECORATOR, KEYWORD, VALUE_TYPE:
		return t.Word == w
	}
	return false
}

const (
	// Special
	ILLEGAL Kind = iota
	EOF

	// Identifiers + literals
	IDENT
	INTEGER
	STRING
	BOOLEAN
	REFERENCE

	// Vocabulary
	DIRECTIVE
	DECORATOR
	KEYWORD
	TEMPLATE_TYPE
	VALUE_TYPE

	// Delimiters
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	SEMICOLON
	COMMA
	DOT
	COLON

	// Operators
	ASSIGN
	PLUS
	MINUS
	ASTERISK
	SLASH
	PERCENT
	EQ
	NOT_EQ
	LT
	GT
	LT_EQ
	GT_EQ
	AND
	OR
	BANG
	AMP
	PIPE
	CARET
	TILDE
	SHL
	SHR
)

var kindNames = [...]string{
	ILLEGAL:       "ILLEGAL",
	EOF:           "EOF",
	IDENT:         "IDENT",
	INTEGER:       "INTEGER",
	STRING:        "STRING",
	BOOLEAN:       "BOOLEAN",
	REFERENCE:     "REFERENCE",
	DIRECTIVE:     "DIRECTIVE",
	DECORATOR:     "DECORATOR",
	KEYWORD:       "KEYWORD",
	TEMPLATE_TYPE: "TEMPLATE_TYPE",
	VALUE_TYPE:    "VALUE_TYPE",
	LPAREN:        "(",
	RPAREN:        ")",
	LBRACE:        "{",
	RBRACE:        "}",
	LBRACKET:      "[",
	RBRACKET:      "]",
	SEMICOLON:     ";",
	COMMA:         ",",
	DOT:           ".",
	COLON:         ":",
	ASSIGN:        "=",
	PLUS:          "+",
	MINUS:         "-",
	ASTERISK:      "*",
	SLASH:         "/",
	PERCENT:       "%",
	EQ:            "==",
	NOT_EQ:        "!=",
	LT:            "<",
	GT:            ">",
	LT_EQ:         "<=",
	GT_EQ:         ">=",
	AND:           "&&",
	OR:            "||",
	BANG:          "!",
	AMP:           "&",
	PIPE:          "|",
	CARET:         "^",
	TILDE:         "~",
	SHL:           "<<",
	SHR:           ">>",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsOperator reports whether k is an expression operator.
func (k Kind) IsOperator() bool {
	return k >= PLUS && k <= SHR
}

var symbols map[string]Kind

func init() {
	symbols = make(map[string]Kind, int(SHR-LPAREN)+1)
	for k := LPAREN; k <= SHR; k++ {
		symbols[kindNames[k]] = k
	}
}

// LookupSymbol classifies punctuation and operator text.
func LookupSymbol(text string) (Kind, bool) {
	k, ok := symbols[text]
	return k, ok
}
