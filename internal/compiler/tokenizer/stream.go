package tokenizer

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// Stream is a cursor over a token slice. Reading past the end keeps
// returning the final EOF token.
type Stream struct {
	toks []token.Token
	pos  int
}

func NewStream(toks []token.Token) *Stream {
	if len(toks) == 0 || toks[len(toks)-1].Kind != token.EOF {
		toks = append(toks, token.Token{Kind: token.EOF})
	}
	return &Stream{toks: toks}
}

// Current returns the token under the cursor.
func (s *Stream) Current() token.Token {
	return s.Peek(0)
}

// Peek looks n tokens ahead of the cursor.
func (s *Stream) Peek(n int) token.Token {
	i := s.pos + n
	if i >= len(s.toks) {
		return s.toks[len(s.toks)-1]
	}
	return s.toks[i]
}

// Next returns the current token and advances.
func (s *Stream) Next() token.Token {
	tok := s.Current()
	if s.pos < len(s.toks)-1 {
		s.pos++
	}
	return tok
}

func (s *Stream) Finished() bool {
	return s.Current().Kind == token.EOF
}

func (s *Stream) Is(kind token.Kind) bool {
	return s.Current().Kind == kind
}

// Accept consumes the current token if it has the given kind.
func (s *Stream) Accept(kind token.Kind) bool {
	if s.Is(kind) {
		s.Next()
		return true
	}
	return false
}

// Until collects tokens up to, but not including, the first token of kind
// stop found at bracket depth zero, and leaves the cursor on it.
func (s *Stream) Until(stop ...token.Kind) []token.Token {
	var out []token.Token
	depth := 0
	for !s.Finished() {
		tok := s.Current()
		if depth == 0 {
			for _, k := range stop {
				if tok.Kind == k {
					return out
				}
			}
		}
		switch tok.Kind {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			depth--
		}
		out = append(out, s.Next())
	}
	return out
}

// Position returns the cursor index, for use with Reset.
func (s *Stream) Position() int {
	return s.pos
}

func (s *Stream) Reset(pos int) {
	s.pos = pos
}
