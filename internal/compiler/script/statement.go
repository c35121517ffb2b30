package script

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

// Statement is one expression plus an optional commit of its result to a
// variable of the executing scope.
type Statement struct {
	Expr   []token.Token
	Target string
	Export bool
	Pos    token.Position
}

// Script is an ordered list of statements sharing one scope.
type Script struct {
	Statements []Statement
}

// Result is the outcome of running a Script: the value of the last
// statement, the variables assigned in first-assignment order and the
// final values of exported ("watched") variables.
type Result struct {
	Value    value.Value
	Assigned []string
	Watched  map[string]value.Value
}

// ParseStatement reads `[export] [name =] expr`.
func ParseStatement(toks []token.Token) (Statement, error) {
	st := Statement{}
	if len(toks) > 0 {
		st.Pos = toks[0].Pos
	}
	if len(toks) > 0 && toks[0].Is(token.Export) {
		st.Export = true
		toks = toks[1:]
	}
	if len(toks) >= 2 && toks[0].Kind == token.IDENT && toks[1].Kind == token.ASSIGN {
		st.Target = toks[0].Literal
		toks = toks[2:]
	}
	if st.Export && st.Target == "" {
		return st, errors.New(errors.PhaseInterpreter, errors.ExpressionSyntax, st.Pos.Diag(), "export needs an assignment")
	}
	if len(toks) == 0 {
		return st, errors.New(errors.PhaseInterpreter, errors.ExpressionSyntax, st.Pos.Diag(), "statement has no expression")
	}
	st.Expr = toks
	return st, nil
}

// ParseScript splits toks into `;` separated statements.
func ParseScript(toks []token.Token) (Script, error) {
	var sc Script
	for _, part := range SplitTopLevel(toks, token.SEMICOLON) {
		if len(part) == 0 {
			continue
		}
		st, err := ParseStatement(part)
		if err != nil {
			return sc, err
		}
		sc.Statements = append(sc.Statements, st)
	}
	return sc, nil
}

// Execute evaluates one statement in scope and commits its result.
func (in *Interpreter) Execute(scope ScopeID, st Statement) (value.Value, error) {
	v, err := in.Evaluate(scope, st.Expr)
	if err != nil {
		return value.Value{}, err
	}
	if st.Target != "" {
		if err := in.Scopes.Set(scope, st.Target, v); err != nil {
			return value.Value{}, errors.New(errors.PhaseDiagnostic, errors.ConstReassigned, st.Pos.Diag(), "%v", err).Near(st.Target)
		}
	}
	return v, nil
}

// Run executes every statement against the one shared scope. The first
// error aborts the remaining statements; the partial result is returned
// with it.
func (in *Interpreter) Run(scope ScopeID, sc Script) (Result, error) {
	res := Result{Watched: map[string]value.Value{}}
	seen := map[string]bool{}
	var exported []string

	for _, st := range sc.Statements {
		v, err := in.Execute(scope, st)
		if err != nil {
			return res, err
		}
		res.Value = v
		if st.Target != "" && !seen[st.Target] {
			seen[st.Target] = true
			res.Assigned = append(res.Assigned, st.Target)
		}
		if st.Export {
			exported = append(exported, st.Target)
		}
	}

	for _, name := range exported {
		if v, ok := in.Scopes.Local(scope, name); ok {
			res.Watched[name] = v
		}
	}
	return res, nil
}
