package schema

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/script"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

// Repeatable bounds the element count of a list field. CountField, when
// set, names a sibling field that receives the actual count.
type Repeatable struct {
	Lower      int64
	Upper      int64
	CountField string
}

// TypeField is the named, valued side of a template label.
type TypeField struct {
	Name       string
	Default    []token.Token
	Repeatable *Repeatable
	Condition  []token.Token
	Builtin    bool
	Synthesize bool
	Deprecated bool
	Pos        token.Position
}

// Constructor maps positional arguments of a resource declaration onto
// fields.
type Constructor struct {
	Params []script.Param
	Body   script.Script
	Pos    token.Position
}

// TypeDefinition is a declared resource type.
type TypeDefinition struct {
	Name        string
	Namespace   string
	Code        string
	Template    TemplateID
	Fields      []*TypeField
	Constructor *Constructor
	Pos         token.Position

	// Decorator words applied to the declaration itself.
	Decorators []token.Word
}

// QualifiedName is Namespace.Name, or Name in the global namespace.
func (d *TypeDefinition) QualifiedName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "." + d.Name
}

// Field returns the field called name, or nil.
func (d *TypeDefinition) Field(name string) *TypeField {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Has reports whether the declaration carried decorator w.
func (d *TypeDefinition) Has(w token.Word) bool {
	for _, dw := range d.Decorators {
		if dw == w {
			return true
		}
	}
	return false
}

// Instance is a fully valued resource ready for encoding. Values is keyed
// by top-level template label.
type Instance struct {
	Ref    value.ResourceRef
	Name   string
	Type   *TypeDefinition
	Values map[string]value.Value
	Pos    token.Position
}

func NewInstance(def *TypeDefinition, id int64, name string) *Instance {
	inst := &Instance{
		Name:   name,
		Type:   def,
		Values: make(map[string]value.Value),
	}
	inst.Ref = value.ResourceRef{ID: id}
	if def != nil {
		inst.Ref.Namespace = def.Namespace
		inst.Ref.Type = def.Code
	}
	return inst
}

// Equal compares two instances by identity and values.
func (i *Instance) Equal(o *Instance) bool {
	if i.Ref != o.Ref || i.Name != o.Name || len(i.Values) != len(o.Values) {
		return false
	}
	for k, v := range i.Values {
		ov, ok := o.Values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
