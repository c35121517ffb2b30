// Package assembler encodes resource instances into the bytes described
// by their type's binary template, and decodes such bytes back into
// instances.
//
// Values map onto templates as follows. A top-level field takes the
// instance value stored under its label. A nested template takes a
// positional List holding one value per value-bearing field. A list span
// takes a List with one element per repetition; each element is a
// positional List, or a bare scalar when the span has a single
// value-bearing field. Count fields never take values of their own: they
// always store the length of the list that follows them.
package assembler

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

// DefaultMaxDepth bounds nested template recursion.
const DefaultMaxDepth = 32

// Evaluator supplies what the template walk cannot find in the bytes or
// the instance: field defaults and emission conditions.
type Evaluator interface {
	Default(def *schema.TypeDefinition, f *schema.TypeField) (value.Value, error)
	Condition(def *schema.TypeDefinition, f *schema.TypeField, values map[string]value.Value) (bool, error)
}

type Assembler struct {
	Registry *schema.Registry
	Eval     Evaluator
	Order    Order
	MaxDepth int
}

// New returns a big-endian assembler. eval may be nil, in which case
// missing fields take zero values and every condition holds.
func New(reg *schema.Registry, eval Evaluator) *Assembler {
	return &Assembler{Registry: reg, Eval: eval, Order: BigEndian, MaxDepth: DefaultMaxDepth}
}

func fail(code errors.Code, f *schema.Field, format string, args ...interface{}) error {
	return errors.New(errors.PhaseEncoder, code, f.Pos.Diag(), format, args...).Near(f.Label)
}

func (a *Assembler) template(def *schema.TypeDefinition) (*schema.Template, error) {
	if def == nil || !a.Registry.Valid(def.Template) {
		name := "<nil>"
		pos := errors.Position{}
		if def != nil {
			name, pos = def.Name, def.Pos.Diag()
		}
		return nil, errors.New(errors.PhaseEncoder, errors.MalformedTemplate, pos, "type %s has no binary template", name)
	}
	return a.Registry.Template(def.Template), nil
}

func (a *Assembler) maxDepth() int {
	if a.MaxDepth > 0 {
		return a.MaxDepth
	}
	return DefaultMaxDepth
}

// fallback resolves a field the instance left out.
func (a *Assembler) fallback(owner *schema.TypeDefinition, f *schema.Field) (value.Value, error) {
	if owner != nil && a.Eval != nil {
		if tf := owner.Field(f.Label); tf != nil && len(tf.Default) > 0 {
			return a.Eval.Default(owner, tf)
		}
	}
	return Zero(f), nil
}

// Zero is the value a field takes when neither the instance nor a default
// supplies one.
func Zero(f *schema.Field) value.Value {
	switch f.Prim {
	case token.PSTR, token.CSTR, token.CNNN, token.LSTR, token.HEXD, token.HNNN:
		return value.Str("")
	case token.BBIT:
		return value.Bool(false)
	case token.RSRC:
		return value.Ref("", 0)
	case token.RECT:
		return value.ListOf(value.Int(0), value.Int(0), value.Int(0), value.Int(0))
	case token.LSTC, token.NESTED:
		return value.ListOf()
	}
	return value.Int(0)
}

// bounds returns the allowed element counts of the list opened at
// tpl.Fields[at].
func bounds(owner *schema.TypeDefinition, tpl *schema.Template, at int) (int64, int64) {
	f := &tpl.Fields[at]
	limit := int64(1<<31 - 1)
	if f.Count >= 0 {
		limit = maxCount(tpl.Fields[f.Count].Prim)
	}
	lo, hi := int64(0), limit
	if owner != nil {
		if tf := owner.Field(f.Label); tf != nil && tf.Repeatable != nil {
			lo, hi = tf.Repeatable.Lower, tf.Repeatable.Upper
		}
	}
	if hi > limit {
		hi = limit
	}
	return lo, hi
}

// conditional reports whether the field of owner labelled f must pass its
// condition before it is written or read.
func (a *Assembler) conditional(owner *schema.TypeDefinition, f *schema.Field) *schema.TypeField {
	if owner == nil || a.Eval == nil {
		return nil
	}
	tf := owner.Field(f.Label)
	if tf == nil || len(tf.Condition) == 0 {
		return nil
	}
	return tf
}
