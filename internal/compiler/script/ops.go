package script

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

func (in *Interpreter) mismatch(op token.Token, l, r value.Value) error {
	return in.fail(errors.TypeMismatch, op.Pos, op.Literal, "operator %s not defined for %s and %s", op.Literal, l.Kind, r.Kind)
}

func (in *Interpreter) applyUnary(op token.Token, v value.Value) (value.Value, error) {
	switch op.Kind {
	case token.BANG:
		return value.Bool(!v.Truthy()), nil
	case token.MINUS, token.PLUS, token.TILDE:
		if v.Kind != value.Integer {
			return value.Value{}, in.fail(errors.TypeMismatch, op.Pos, op.Literal, "operator %s needs an Integer, got %s", op.Literal, v.Kind)
		}
		switch op.Kind {
		case token.MINUS:
			return value.Int(-v.Int), nil
		case token.TILDE:
			return value.Int(^v.Int), nil
		}
		return v, nil
	}
	return value.Value{}, in.fail(errors.ExpressionSyntax, op.Pos, op.Literal, "%s is not a unary operator", op.Literal)
}

func (in *Interpreter) applyBinary(op token.Token, l, r value.Value) (value.Value, error) {
	switch op.Kind {
	case token.EQ:
		return value.Bool(l.Equal(r)), nil
	case token.NOT_EQ:
		return value.Bool(!l.Equal(r)), nil
	case token.AND:
		return value.Bool(l.Truthy() && r.Truthy()), nil
	case token.OR:
		return value.Bool(l.Truthy() || r.Truthy()), nil
	case token.PLUS:
		switch {
		case l.Kind == value.String || r.Kind == value.String:
			return value.Str(l.Text() + r.Text()), nil
		case l.Kind == value.List && r.Kind == value.List:
			joined := make([]value.Value, 0, len(l.List)+len(r.List))
			joined = append(joined, l.List...)
			return value.ListOf(append(joined, r.List...)...), nil
		}
	case token.LT, token.GT, token.LT_EQ, token.GT_EQ:
		if l.Kind == value.String && r.Kind == value.String {
			return value.Bool(compare(op.Kind, stringCmp(l.Str, r.Str))), nil
		}
	}

	if l.Kind != value.Integer || r.Kind != value.Integer {
		return value.Value{}, in.mismatch(op, l, r)
	}
	a, b := l.Int, r.Int

	switch op.Kind {
	case token.PLUS:
		return value.Int(a + b), nil
	case token.MINUS:
		return value.Int(a - b), nil
	case token.ASTERISK:
		return value.Int(a * b), nil
	case token.SLASH, token.PERCENT:
		if b == 0 {
			return value.Value{}, in.fail(errors.DivisionByZero, op.Pos, op.Literal, "division by zero")
		}
		if op.Kind == token.SLASH {
			return value.Int(a / b), nil
		}
		return value.Int(a % b), nil
	case token.AMP:
		return value.Int(a & b), nil
	case token.PIPE:
		return value.Int(a | b), nil
	case token.CARET:
		return value.Int(a ^ b), nil
	case token.SHL, token.SHR:
		if b < 0 || b > 63 {
			return value.Value{}, in.fail(errors.TypeMismatch, op.Pos, op.Literal, "shift count %d out of range", b)
		}
		if op.Kind == token.SHL {
			return value.Int(a << uint(b)), nil
		}
		return value.Int(a >> uint(b)), nil
	case token.LT, token.GT, token.LT_EQ, token.GT_EQ:
		c := 0
		if a < b {
			c = -1
		} else if a > b {
			c = 1
		}
		return value.Bool(compare(op.Kind, c)), nil
	}
	return value.Value{}, in.mismatch(op, l, r)
}

func stringCmp(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compare(kind token.Kind, c int) bool {
	switch kind {
	case token.LT:
		return c < 0
	case token.GT:
		return c > 0
	case token.LT_EQ:
		return c <= 0
	}
	return c >= 0
}
