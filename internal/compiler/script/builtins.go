package script

import (
	"fmt"
	"strings"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/lexer"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

func wantInt(name string, v value.Value) (int64, error) {
	if v.Kind != value.Integer {
		return 0, fmt.Errorf("%s expects Integer, got %s", name, v.Kind)
	}
	return v.Int, nil
}

func wantString(name string, v value.Value) (string, error) {
	if v.Kind != value.String {
		return "", fmt.Errorf("%s expects String, got %s", name, v.Kind)
	}
	return v.Str, nil
}

func intFn(name string, arity int, f func(n []int64) int64) *Function {
	return Native(name, arity, func(args []value.Value) (value.Value, error) {
		ns := make([]int64, len(args))
		for i, a := range args {
			n, err := wantInt(name, a)
			if err != nil {
				return value.Value{}, err
			}
			ns[i] = n
		}
		return value.Int(f(ns)), nil
	})
}

func builtins() []*Function {
	return []*Function{
		Native("len", 1, func(args []value.Value) (value.Value, error) {
			switch args[0].Kind {
			case value.String:
				return value.Int(int64(len(args[0].Str))), nil
			case value.List:
				return value.Int(int64(len(args[0].List))), nil
			}
			return value.Value{}, fmt.Errorf("len expects String or List, got %s", args[0].Kind)
		}),
		intFn("min", 2, func(n []int64) int64 {
			if n[0] < n[1] {
				return n[0]
			}
			return n[1]
		}),
		intFn("max", 2, func(n []int64) int64 {
			if n[0] > n[1] {
				return n[0]
			}
			return n[1]
		}),
		intFn("clamp", 3, func(n []int64) int64 {
			if n[0] < n[1] {
				return n[1]
			}
			if n[0] > n[2] {
				return n[2]
			}
			return n[0]
		}),
		intFn("abs", 1, func(n []int64) int64 {
			if n[0] < 0 {
				return -n[0]
			}
			return n[0]
		}),
		intFn("bit", 1, func(n []int64) int64 {
			return 1 << uint(n[0]&63)
		}),
		Native("upper", 1, func(args []value.Value) (value.Value, error) {
			s, err := wantString("upper", args[0])
			return value.Str(strings.ToUpper(s)), err
		}),
		Native("lower", 1, func(args []value.Value) (value.Value, error) {
			s, err := wantString("lower", args[0])
			return value.Str(strings.ToLower(s)), err
		}),
		Native("str", 1, func(args []value.Value) (value.Value, error) {
			return value.Str(args[0].Text()), nil
		}),
		Native("int", 1, func(args []value.Value) (value.Value, error) {
			if args[0].Kind == value.String {
				text := strings.TrimSpace(args[0].Str)
				neg := strings.HasPrefix(text, "-")
				u, err := lexer.ParseInteger(strings.TrimPrefix(text, "-"))
				if err != nil {
					return value.Value{}, fmt.Errorf("int: cannot parse %q", args[0].Str)
				}
				n := int64(u)
				if neg {
					n = -n
				}
				return value.Int(n), nil
			}
			n, ok := args[0].AsInt()
			if !ok {
				return value.Value{}, fmt.Errorf("int: cannot convert %s", args[0].Kind)
			}
			return value.Int(n), nil
		}),
		Native("rect", 4, func(args []value.Value) (value.Value, error) {
			out := make([]value.Value, 4)
			for i, a := range args {
				n, err := wantInt("rect", a)
				if err != nil {
					return value.Value{}, err
				}
				out[i] = value.Int(n)
			}
			return value.ListOf(out...), nil
		}),
	}
}

// RegisterBuiltins defines the native function library in scope.
func RegisterBuiltins(s *Scopes, scope ScopeID) {
	for _, fn := range builtins() {
		// Builtins go into a fresh scope, so names never collide.
		_ = s.DefineFunction(scope, fn, true)
	}
}
