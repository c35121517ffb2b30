package value

import (
	"fmt"
	"strconv"
	"strings"
)

type Kind uint8

const (
	Nil Kind = iota
	Integer
	String
	Boolean
	List
	Reference
)

func (k Kind) String() string {
	switch k {
	case Nil:
		return "Nil"
	case Integer:
		return "Integer"
	case String:
		return "String"
	case Boolean:
		return "Boolean"
	case List:
		return "List"
	case Reference:
		return "Reference"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ResourceRef identifies a resource by id, optionally qualified by
// namespace and type name.
type ResourceRef struct {
	Namespace string
	Type      string
	ID        int64
}

func (r ResourceRef) String() string {
	if r.Namespace != "" {
		return fmt.Sprintf("#%s.%d", r.Namespace, r.ID)
	}
	return fmt.Sprintf("#%d", r.ID)
}

// Value is the tagged container produced by evaluating an expression or a
// literal. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind
	Int  int64
	Str  string
	Bool bool
	List []Value
	Ref  ResourceRef
}

func Int(n int64) Value { return Value{Kind: Integer, Int: n} }

func Str(s string) Value { return Value{Kind: String, Str: s} }

func Bool(b bool) Value { return Value{Kind: Boolean, Bool: b} }

func ListOf(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{Kind: List, List: vs}
}

func Ref(namespace string, id int64) Value {
	return Value{Kind: Reference, Ref: ResourceRef{Namespace: namespace, ID: id}}
}

func (v Value) IsNil() bool { return v.Kind == Nil }

// AsInt converts integers, booleans and references to an integer.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case Integer:
		return v.Int, true
	case Boolean:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case Reference:
		return v.Ref.ID, true
	}
	return 0, false
}

// Truthy follows the usual rules: zero, empty and nil are false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Integer:
		return v.Int != 0
	case String:
		return v.Str != ""
	case Boolean:
		return v.Bool
	case List:
		return len(v.List) > 0
	case Reference:
		return true
	}
	return false
}

func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Nil:
		return true
	case Integer:
		return v.Int == o.Int
	case String:
		return v.Str == o.Str
	case Boolean:
		return v.Bool == o.Bool
	case Reference:
		return v.Ref == o.Ref
	case List:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value as a KDL literal.
func (v Value) String() string {
	switch v.Kind {
	case Integer:
		return strconv.FormatInt(v.Int, 10)
	case String:
		return strconv.Quote(v.Str)
	case Boolean:
		return strconv.FormatBool(v.Bool)
	case Reference:
		return v.Ref.String()
	case List:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "nil"
}

// Text renders the value for string concatenation and display: strings
// are not quoted.
func (v Value) Text() string {
	if v.Kind == String {
		return v.Str
	}
	return v.String()
}
