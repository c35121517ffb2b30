// Package schema holds type definitions and the binary templates that fix
// their on-disk layout.
package schema

import (
	"fmt"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// TemplateID addresses a Template in a Registry.
type TemplateID int32

const NoTemplate TemplateID = -1

// Field is one entry of a binary template.
type Field struct {
	Prim       token.Primitive
	Width      int
	Label      string
	Nested     TemplateID
	NestedType string
	Pos        token.Position

	// Filled in by Template.Link.
	Match int // LSTC <-> LSTE partner index
	Count int // for LSTC: index of the count field, or -1
}

// IsCount reports whether p stores an element count.
func IsCount(p token.Primitive) bool {
	return p == token.OCNT || p == token.ZCNT || p == token.LCNT
}

// HoldsValue reports whether the field consumes a value of its own. Count
// fields are derived from their list, and LSTE only closes a span.
func (f *Field) HoldsValue() bool {
	return !IsCount(f.Prim) && f.Prim != token.LSTE
}

func (f *Field) String() string {
	switch f.Prim {
	case token.CNNN:
		return fmt.Sprintf("C%03X %s", f.Width, f.Label)
	case token.HNNN:
		return fmt.Sprintf("H%03X %s", f.Width, f.Label)
	case token.NESTED:
		return f.NestedType + " " + f.Label
	case token.LSTE:
		return "LSTE"
	}
	return f.Prim.String() + " " + f.Label
}

// Template is an ordered binary layout.
type Template struct {
	Type   string
	Fields []Field
}

func (t *Template) fail(f *Field, format string, args ...interface{}) error {
	return errors.New(errors.PhaseDiagnostic, errors.MalformedTemplate, f.Pos.Diag(), format, args...).Near(f.Label)
}

// Link validates the template and records list partners. Lists must be
// balanced and may not nest; a count field must sit directly before an
// LSTC; labels are unique; HEXD and any list without a count field must
// come last.
func (t *Template) Link() error {
	labels := make(map[string]bool, len(t.Fields))
	open := -1
	for i := range t.Fields {
		f := &t.Fields[i]
		f.Match, f.Count = -1, -1

		if f.Prim != token.LSTE {
			if f.Label == "" {
				return t.fail(f, "%s needs a label", f.Prim)
			}
			if labels[f.Label] {
				return t.fail(f, "duplicate template label %q", f.Label)
			}
			labels[f.Label] = true
		}

		switch {
		case IsCount(f.Prim):
			if i+1 >= len(t.Fields) || t.Fields[i+1].Prim != token.LSTC {
				return t.fail(f, "count field %s must be followed by LSTC", f.Label)
			}
			if open >= 0 {
				return t.fail(f, "count field %s inside a list", f.Label)
			}
		case f.Prim == token.LSTC:
			if open >= 0 {
				return t.fail(f, "nested list %s inside %s", f.Label, t.Fields[open].Label)
			}
			open = i
			if i > 0 && IsCount(t.Fields[i-1].Prim) {
				f.Count = i - 1
			}
		case f.Prim == token.LSTE:
			if open < 0 {
				return t.fail(f, "LSTE without LSTC")
			}
			f.Match, t.Fields[open].Match = open, i
			if t.Fields[open].Count < 0 && i != len(t.Fields)-1 {
				return t.fail(&t.Fields[open], "list %s has no count field and is not last", t.Fields[open].Label)
			}
			open = -1
		case f.Prim == token.HEXD:
			if open >= 0 || i != len(t.Fields)-1 {
				return t.fail(f, "HEXD must be the last field")
			}
		}
	}
	if open >= 0 {
		return t.fail(&t.Fields[open], "LSTC %s is never closed", t.Fields[open].Label)
	}
	return nil
}

// Slots counts the value-bearing positions in fields[from:to]. A whole
// list span is one slot.
func (t *Template) Slots(from, to int) int {
	n := 0
	for i := from; i < to; i++ {
		f := &t.Fields[i]
		if !f.HoldsValue() {
			continue
		}
		n++
		if f.Prim == token.LSTC {
			i = f.Match
		}
	}
	return n
}

// Labels returns the top-level labels in template order. Fields inside a
// list span are reached through the list label.
func (t *Template) Labels() []string {
	var out []string
	for i := 0; i < len(t.Fields); i++ {
		f := &t.Fields[i]
		if f.Prim == token.LSTE {
			continue
		}
		out = append(out, f.Label)
		if f.Prim == token.LSTC {
			i = f.Match
		}
	}
	return out
}

// Lookup returns the index of the field labelled name.
func (t *Template) Lookup(name string) int {
	for i := range t.Fields {
		if t.Fields[i].Label == name {
			return i
		}
	}
	return -1
}
