package script

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

const maxCallDepth = 200

// Interpreter evaluates token sub-streams against a Scopes arena.
type Interpreter struct {
	Scopes *Scopes
	depth  int
}

func New(scopes *Scopes) *Interpreter {
	if scopes == nil {
		scopes = NewScopes()
	}
	return &Interpreter{Scopes: scopes}
}

func (in *Interpreter) fail(code errors.Code, pos token.Position, text, format string, args ...interface{}) error {
	return errors.New(errors.PhaseInterpreter, code, pos.Diag(), format, args...).Near(text)
}

// Operator binding power, highest binds tightest. Unary operators are
// prefix and right-associative; every binary operator is left-associative.
const (
	precLogicalOr = iota + 1
	precLogicalAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquals
	precCompare
	precShift
	precSum
	precProduct
	precUnary
)

var binaryPrecedence = map[token.Kind]int{
	token.OR:       precLogicalOr,
	token.AND:      precLogicalAnd,
	token.PIPE:     precBitOr,
	token.CARET:    precBitXor,
	token.AMP:      precBitAnd,
	token.EQ:       precEquals,
	token.NOT_EQ:   precEquals,
	token.LT:       precCompare,
	token.GT:       precCompare,
	token.LT_EQ:    precCompare,
	token.GT_EQ:    precCompare,
	token.SHL:      precShift,
	token.SHR:      precShift,
	token.PLUS:     precSum,
	token.MINUS:    precSum,
	token.ASTERISK: precProduct,
	token.SLASH:    precProduct,
	token.PERCENT:  precProduct,
}

// item is one entry of the output queue or the operator stack.
type item struct {
	tok     token.Token
	operand bool
	unary   bool
	val     value.Value
}

func (it item) precedence() int {
	if it.unary {
		return precUnary
	}
	return binaryPrecedence[it.tok.Kind]
}

// Evaluate runs the shunting-yard algorithm over toks and returns the
// single resulting value.
func (in *Interpreter) Evaluate(scope ScopeID, toks []token.Token) (value.Value, error) {
	var output []item
	var ops []item
	expectOperand := true
	pos := token.Position{}
	if len(toks) > 0 {
		pos = toks[0].Pos
	}

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch {
		case tok.Kind == token.LPAREN:
			if !expectOperand {
				return value.Value{}, in.fail(errors.ExpressionSyntax, tok.Pos, "(", "unexpected '('")
			}
			ops = append(ops, item{tok: tok})

		case tok.Kind == token.RPAREN:
			found := false
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.tok.Kind == token.LPAREN {
					found = true
					break
				}
				output = append(output, top)
			}
			if !found || expectOperand {
				return value.Value{}, in.fail(errors.ExpressionSyntax, tok.Pos, ")", "unbalanced ')'")
			}

		case tok.Kind.IsOperator():
			if expectOperand {
				if tok.Kind != token.MINUS && tok.Kind != token.PLUS && tok.Kind != token.BANG && tok.Kind != token.TILDE {
					return value.Value{}, in.fail(errors.ExpressionSyntax, tok.Pos, tok.Literal, "missing operand before %s", tok.Literal)
				}
				ops = append(ops, item{tok: tok, unary: true})
				continue
			}
			if tok.Kind == token.BANG || tok.Kind == token.TILDE {
				return value.Value{}, in.fail(errors.ExpressionSyntax, tok.Pos, tok.Literal, "unexpected %s", tok.Literal)
			}
			cur := item{tok: tok}
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.tok.Kind == token.LPAREN || top.precedence() < cur.precedence() {
					break
				}
				output = append(output, top)
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, cur)
			expectOperand = true

		default:
			if !expectOperand {
				return value.Value{}, in.fail(errors.ExpressionSyntax, tok.Pos, tok.Literal, "missing operator before %s", tok)
			}
			v, next, err := in.operand(scope, toks, i)
			if err != nil {
				return value.Value{}, err
			}
			output = append(output, item{tok: tok, operand: true, val: v})
			i = next
			expectOperand = false
		}
	}

	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.tok.Kind == token.LPAREN {
			return value.Value{}, in.fail(errors.ExpressionSyntax, top.tok.Pos, "(", "unbalanced '('")
		}
		output = append(output, top)
	}

	if len(output) == 0 {
		return value.Value{}, in.fail(errors.ExpressionSyntax, pos, "", "empty expression")
	}
	if expectOperand {
		return value.Value{}, in.fail(errors.ExpressionSyntax, pos, "", "expression ends with an operator")
	}
	return in.reduce(output)
}

// operand resolves the operand starting at toks[i]. It returns the index
// of the last token consumed.
func (in *Interpreter) operand(scope ScopeID, toks []token.Token, i int) (value.Value, int, error) {
	tok := toks[i]
	switch tok.Kind {
	case token.INTEGER:
		return value.Int(tok.Int), i, nil
	case token.STRING:
		return value.Str(tok.Literal), i, nil
	case token.BOOLEAN:
		return value.Bool(tok.Literal == "true"), i, nil
	case token.REFERENCE:
		return value.Ref(tok.Namespace, tok.Int), i, nil

	case token.LBRACKET:
		end, err := in.matching(toks, i)
		if err != nil {
			return value.Value{}, i, err
		}
		elems, err := in.evaluateList(scope, toks[i+1:end])
		if err != nil {
			return value.Value{}, i, err
		}
		return value.ListOf(elems...), end, nil

	case token.IDENT:
		if i+1 < len(toks) && toks[i+1].Kind == token.LPAREN {
			end, err := in.matching(toks, i+1)
			if err != nil {
				return value.Value{}, i, err
			}
			args, err := in.evaluateList(scope, toks[i+2:end])
			if err != nil {
				return value.Value{}, i, err
			}
			v, err := in.Call(scope, tok, args)
			return v, end, err
		}
		v, ok := in.Scopes.Lookup(scope, tok.Literal)
		if !ok {
			return value.Value{}, i, in.fail(errors.UnknownVariable, tok.Pos, tok.Literal, "unknown variable %s", tok.Literal)
		}
		return v, i, nil
	}
	return value.Value{}, i, in.fail(errors.ExpressionSyntax, tok.Pos, tok.Literal, "unexpected %s in expression", tok)
}

// Call resolves name by name and arity against the scope chain and runs it.
func (in *Interpreter) Call(scope ScopeID, name token.Token, args []value.Value) (value.Value, error) {
	fn, arityKnown := in.Scopes.LookupFunction(scope, name.Literal, len(args))
	if fn == nil {
		if arityKnown {
			return value.Value{}, in.fail(errors.ArityMismatch, name.Pos, name.Literal,
				"no overload of %s takes %d arguments", name.Literal, len(args))
		}
		return value.Value{}, in.fail(errors.UnknownFunction, name.Pos, name.Literal, "unknown function %s", name.Literal)
	}
	return fn.Execute(in, name.Pos, args)
}

// matching returns the index of the bracket closing toks[open].
func (in *Interpreter) matching(toks []token.Token, open int) (int, error) {
	depth := 0
	for j := open; j < len(toks); j++ {
		switch toks[j].Kind {
		case token.LPAREN, token.LBRACKET:
			depth++
		case token.RPAREN, token.RBRACKET:
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return 0, in.fail(errors.ExpressionSyntax, toks[open].Pos, toks[open].Literal, "unclosed %s", toks[open].Literal)
}

// evaluateList splits toks at top-level commas and evaluates each part
// eagerly, left to right.
func (in *Interpreter) evaluateList(scope ScopeID, toks []token.Token) ([]value.Value, error) {
	parts := SplitTopLevel(toks, token.COMMA)
	out := make([]value.Value, 0, len(parts))
	for _, part := range parts {
		v, err := in.Evaluate(scope, part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SplitTopLevel splits toks at separators outside any brackets. An empty
// input yields no parts.
func SplitTopLevel(toks []token.Token, sep token.Kind) [][]token.Token {
	if len(toks) == 0 {
		return nil
	}
	var parts [][]token.Token
	depth, start := 0, 0
	for j, tok := range toks {
		switch tok.Kind {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, toks[start:j])
				start = j + 1
			}
		}
	}
	return append(parts, toks[start:])
}

// reduce evaluates the postfix output queue.
func (in *Interpreter) reduce(output []item) (value.Value, error) {
	var stack []value.Value
	for _, it := range output {
		if it.operand {
			stack = append(stack, it.val)
			continue
		}
		if it.unary {
			if len(stack) < 1 {
				return value.Value{}, in.fail(errors.ExpressionSyntax, it.tok.Pos, it.tok.Literal, "missing operand")
			}
			v, err := in.applyUnary(it.tok, stack[len(stack)-1])
			if err != nil {
				return value.Value{}, err
			}
			stack[len(stack)-1] = v
			continue
		}
		if len(stack) < 2 {
			return value.Value{}, in.fail(errors.ExpressionSyntax, it.tok.Pos, it.tok.Literal, "missing operand")
		}
		l, r := stack[len(stack)-2], stack[len(stack)-1]
		v, err := in.applyBinary(it.tok, l, r)
		if err != nil {
			return value.Value{}, err
		}
		stack = stack[:len(stack)-1]
		stack[len(stack)-1] = v
	}
	if len(stack) != 1 {
		return value.Value{}, in.fail(errors.ExpressionSyntax, output[0].tok.Pos, "", "malformed expression")
	}
	return stack[0], nil
}
