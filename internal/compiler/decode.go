package compiler

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/assembler"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/rsrc"
)

// typeFor finds the declared type of a stored resource: by code in the
// resource's namespace, then globally, then in any namespace.
func (c *Compiler) typeFor(r *rsrc.Resource) *schema.TypeDefinition {
	if def := c.Session.TypeByCode(r.Namespace, r.Type); def != nil {
		return def
	}
	if def := c.Session.TypeByCode("", r.Type); def != nil {
		return def
	}
	for _, def := range c.Session.Types() {
		if def.Code == r.Type {
			return def
		}
	}
	return nil
}

// Decode reads the resources of file back into instances, using the types
// declared in this compiler's session. A resource whose type is unknown or
// whose bytes do not match its template is reported and skipped.
func (c *Compiler) Decode(file *rsrc.File) ([]*schema.Instance, *errors.ErrorList) {
	errs := errors.NewErrorList()
	asm := *c.asm
	asm.Order = assembler.BigEndian
	if file.LittleEndian {
		asm.Order = assembler.LittleEndian
	}

	var out []*schema.Instance
	for _, r := range file.Resources() {
		def := c.typeFor(r)
		if def == nil {
			errs.Append(errors.New(errors.PhaseEncoder, errors.UnknownType, errors.Position{},
				"no type declared for resource %s", r.Key()).Near(r.Type))
			continue
		}
		inst, err := asm.Decode(def, r.Data)
		if err != nil {
			c.log.Warn("resource not decoded", "resource", r.Key().String(), "error", err)
			errs.Append(err)
			continue
		}
		inst.Ref.ID = r.ID
		inst.Ref.Namespace = r.Namespace
		inst.Name = r.Name
		out = append(out, inst)
	}
	return out, errs
}
