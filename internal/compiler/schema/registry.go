package schema

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// maxNesting bounds walks over nested templates.
const maxNesting = 64

type entry struct {
	tpl   Template
	owner *TypeDefinition
}

// Registry is an arena of templates. Nested fields refer to other entries
// by TemplateID; replacing an entry keeps its ID, so types nesting it see
// the new layout.
type Registry struct {
	entries []entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add links tpl and stores it for owner.
func (r *Registry) Add(tpl Template, owner *TypeDefinition) (TemplateID, error) {
	if err := tpl.Link(); err != nil {
		return NoTemplate, err
	}
	if err := r.checkNested(&tpl); err != nil {
		return NoTemplate, err
	}
	r.entries = append(r.entries, entry{tpl: tpl, owner: owner})
	id := TemplateID(len(r.entries) - 1)
	if owner != nil {
		owner.Template = id
	}
	return id, nil
}

// Replace swaps the template and owner stored at id. The old entry is
// restored if the new layout fails to link, would recurse, or would leave
// a template that nests it with an open field before its end.
func (r *Registry) Replace(id TemplateID, tpl Template, owner *TypeDefinition) error {
	if err := tpl.Link(); err != nil {
		return err
	}
	if err := r.checkNested(&tpl); err != nil {
		return err
	}
	old := r.entries[id]
	r.entries[id] = entry{tpl: tpl, owner: owner}
	if err := r.CheckRecursion(id); err != nil {
		r.entries[id] = old
		return err
	}
	for i := range r.entries {
		if TemplateID(i) == id {
			continue
		}
		if err := r.checkNested(&r.entries[i].tpl); err != nil {
			r.entries[id] = old
			return err
		}
	}
	if owner != nil {
		owner.Template = id
	}
	return nil
}

func (r *Registry) Valid(id TemplateID) bool {
	return id >= 0 && int(id) < len(r.entries)
}

// Template returns the template at id. It panics on an invalid id.
func (r *Registry) Template(id TemplateID) *Template {
	return &r.entries[id].tpl
}

// Owner returns the type definition the template at id belongs to.
func (r *Registry) Owner(id TemplateID) *TypeDefinition {
	return r.entries[id].owner
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// CheckRecursion walks the nested fields reachable from id and fails if
// any path leads back to id.
func (r *Registry) CheckRecursion(id TemplateID) error {
	visited := make(map[TemplateID]bool)
	var walk func(cur TemplateID, via *Field) error
	walk = func(cur TemplateID, via *Field) error {
		for i := range r.entries[cur].tpl.Fields {
			f := &r.entries[cur].tpl.Fields[i]
			if f.Prim != token.NESTED {
				continue
			}
			if f.Nested == id {
				at := f
				if via != nil {
					at = via
				}
				return errors.New(errors.PhaseDiagnostic, errors.TemplateRecursion, at.Pos.Diag(),
					"template %s nests itself through %s", r.entries[id].tpl.Type, f.NestedType).Near(at.Label)
			}
			if visited[f.Nested] || !r.Valid(f.Nested) {
				continue
			}
			visited[f.Nested] = true
			next := via
			if next == nil {
				next = f
			}
			if err := walk(f.Nested, next); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(id, nil)
}

// Open reports whether the data of template id runs to the end of the
// enclosing blob. That is the case when it ends in HEXD, in a list without
// a count field, or in a nested template that is itself open.
func (r *Registry) Open(id TemplateID) bool {
	for depth := 0; r.Valid(id) && depth < maxNesting; depth++ {
		fields := r.entries[id].tpl.Fields
		if len(fields) == 0 {
			return false
		}
		last := &fields[len(fields)-1]
		switch last.Prim {
		case token.HEXD:
			return true
		case token.LSTE:
			return fields[last.Match].Count < 0
		case token.NESTED:
			id = last.Nested
			continue
		}
		return false
	}
	return false
}

// checkNested verifies that nested fields point at registered templates
// and that an open template is only nested as the last field.
func (r *Registry) checkNested(tpl *Template) error {
	for i := range tpl.Fields {
		f := &tpl.Fields[i]
		if f.Prim != token.NESTED {
			continue
		}
		if !r.Valid(f.Nested) {
			return tpl.fail(f, "nested type %s has no template", f.NestedType)
		}
		if i != len(tpl.Fields)-1 && r.Open(f.Nested) {
			return tpl.fail(f, "%s runs to the end of the data and must be the last field", f.NestedType)
		}
	}
	return nil
}
