package session

import (
	"sort"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/assembler"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/script"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

var _ assembler.Evaluator = (*Session)(nil)

// Default evaluates the default expression of f in a fresh child of the
// root scope: globals and functions are visible, instance values are not.
func (s *Session) Default(_ *schema.TypeDefinition, f *schema.TypeField) (value.Value, error) {
	var v value.Value
	err := s.Scopes.With(s.Scopes.Root(), func(id script.ScopeID) error {
		var err error
		v, err = s.Interp.Evaluate(id, f.Default)
		return err
	})
	return v, err
}

// Condition evaluates the @condition of f with values bound as variables.
func (s *Session) Condition(_ *schema.TypeDefinition, f *schema.TypeField, values map[string]value.Value) (bool, error) {
	var ok bool
	err := s.Scopes.With(s.Scopes.Root(), func(id script.ScopeID) error {
		if err := s.bind(id, values); err != nil {
			return err
		}
		v, err := s.Interp.Evaluate(id, f.Condition)
		ok = v.Truthy()
		return err
	})
	return ok, err
}

// bind sets values in scope id in name order, so diagnostics are stable.
func (s *Session) bind(id script.ScopeID, values map[string]value.Value) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.Scopes.Set(id, name, values[name]); err != nil {
			return err
		}
	}
	return nil
}
