package script

import (
	"fmt"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

// Param is a named, typed function parameter. Type is one of the value
// type words (token.IntegerType ...); token.AnyType accepts everything.
type Param struct {
	Name string
	Type token.Word
}

// Body is either a NativeBody or a ScriptBody.
type Body interface {
	body()
}

// NativeBody calls straight into Go.
type NativeBody struct {
	Call func(args []value.Value) (value.Value, error)
}

// ScriptBody is a statement stream executed in a fresh child scope.
type ScriptBody struct {
	Script Script
}

func (NativeBody) body() {}
func (ScriptBody) body() {}

// Function is owned by the scope it was defined in.
type Function struct {
	Name   string
	Params []Param
	Body   Body
	Pos    token.Position
	Scope  ScopeID
}

// Native builds a function with AnyType parameters around call.
func Native(name string, arity int, call func(args []value.Value) (value.Value, error)) *Function {
	params := make([]Param, arity)
	for i := range params {
		params[i] = Param{Name: fmt.Sprintf("arg%d", i), Type: token.AnyType}
	}
	return &Function{Name: name, Params: params, Body: NativeBody{Call: call}}
}

// Execute runs the function with already evaluated arguments and returns
// its single result.
func (f *Function) Execute(in *Interpreter, pos token.Position, args []value.Value) (value.Value, error) {
	if len(args) != len(f.Params) {
		return value.Value{}, in.fail(errors.ArityMismatch, pos, f.Name,
			"%s expects %d arguments, got %d", f.Name, len(f.Params), len(args))
	}
	for i, p := range f.Params {
		if !Accepts(p.Type, args[i]) {
			return value.Value{}, in.fail(errors.TypeMismatch, pos, f.Name,
				"argument %s of %s must be %s, got %s", p.Name, f.Name, p.Type, args[i].Kind)
		}
	}

	switch b := f.Body.(type) {
	case NativeBody:
		v, err := b.Call(args)
		if err != nil {
			if _, ok := errors.As(err); ok {
				return value.Value{}, err
			}
			return value.Value{}, in.fail(errors.TypeMismatch, pos, f.Name, "%s: %v", f.Name, err)
		}
		return v, nil

	case ScriptBody:
		if in.depth >= maxCallDepth {
			return value.Value{}, in.fail(errors.CallDepth, pos, f.Name, "call depth exceeded in %s", f.Name)
		}
		in.depth++
		defer func() { in.depth-- }()

		var result value.Value
		err := in.Scopes.With(f.Scope, func(local ScopeID) error {
			for i, p := range f.Params {
				if err := in.Scopes.Set(local, p.Name, args[i]); err != nil {
					return err
				}
			}
			res, err := in.Run(local, b.Script)
			result = res.Value
			return err
		})
		return result, err
	}
	return value.Value{}, fmt.Errorf("function %s has no body", f.Name)
}

// Accepts reports whether v may be passed as a parameter of value type t.
func Accepts(t token.Word, v value.Value) bool {
	switch t {
	case token.IntegerType:
		return v.Kind == value.Integer
	case token.StringType:
		return v.Kind == value.String
	case token.BooleanType:
		return v.Kind == value.Boolean
	case token.ListType:
		return v.Kind == value.List
	case token.ReferenceType:
		return v.Kind == value.Reference || v.Kind == value.Integer
	}
	return true
}
