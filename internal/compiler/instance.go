package compiler

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/assembler"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/ast"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/script"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/rsrc"
)

func (c *Compiler) syncOrder() {
	if c.Session.LittleEndian() {
		c.asm.Order = assembler.LittleEndian
	} else {
		c.asm.Order = assembler.BigEndian
	}
}

// newResource evaluates a `new` declaration, encodes the instance and
// stores its bytes. An encode failure skips this resource only.
func (c *Compiler) newResource(d *ast.ResourceDecl, decorators []*ast.Decorator) error {
	def, err := c.Session.ResolveType(d.Type, d.Pos)
	if err != nil {
		return err
	}
	if def.Has(token.Deprecated) {
		c.report(warn(errors.DeprecatedField, d.Pos, "type %s is deprecated", def.QualifiedName()).Near(d.Type))
	}

	inst, err := c.instantiate(def, d)
	if err != nil {
		return err
	}

	c.syncOrder()
	data, err := c.asm.Encode(def, inst)
	if err != nil {
		c.log.Warn("resource skipped", "type", def.QualifiedName(), "id", inst.Ref.ID, "error", err)
		return err
	}

	r := &rsrc.Resource{
		Type:      def.Code,
		Namespace: inst.Ref.Namespace,
		ID:        inst.Ref.ID,
		Name:      inst.Name,
		Data:      data,
	}
	if len(decorators) > 0 {
		// @override and @duplicate both allow replacing an earlier resource.
		c.out.Replace(r)
	} else if err := c.out.Add(r); err != nil {
		return diag(errors.DuplicateResource, d.Pos, "%v", err).Near(d.Type)
	}
	c.encoded++
	c.log.Debug("resource encoded", "type", def.Code, "id", r.ID, "bytes", len(data))
	return nil
}

// instantiate builds the instance of d: constructor, body, defaults,
// element counts and synthesized fields, in that order.
func (c *Compiler) instantiate(def *schema.TypeDefinition, d *ast.ResourceDecl) (*schema.Instance, error) {
	idv, err := c.Session.Evaluate(d.ID)
	if err != nil {
		return nil, err
	}
	if idv.Kind != value.Integer && idv.Kind != value.Reference {
		return nil, diag(errors.TypeMismatch, d.Pos, "resource id must be an Integer or Reference, got %s", idv.Kind)
	}
	id, _ := idv.AsInt()

	name := ""
	if d.Name != nil {
		v, err := c.Session.Evaluate(d.Name)
		if err != nil {
			return nil, err
		}
		if v.Kind != value.String {
			return nil, diag(errors.TypeMismatch, d.Pos, "resource name must be a String, got %s", v.Kind)
		}
		name = v.Str
	}

	inst := schema.NewInstance(def, id, name)
	inst.Pos = d.Pos
	inst.Ref.Namespace = c.Session.Namespace()
	tpl := c.Session.Templates.Template(def.Template)

	body, err := script.ParseScript(d.Body)
	if err != nil {
		return nil, err
	}
	for _, st := range body.Statements {
		if err := c.checkAssign(def, tpl, st.Target, st.Pos); err != nil {
			return nil, err
		}
	}

	authored := make(map[string]bool)
	err = c.Session.WithScope(func(scope script.ScopeID) error {
		if err := c.construct(def, d, inst, scope, authored); err != nil {
			return err
		}
		res, err := c.Session.Interp.Run(scope, body)
		for _, name := range res.Assigned {
			v, _ := c.Session.Scopes.Local(scope, name)
			inst.Values[name] = v
			authored[name] = true
		}
		if err != nil {
			return err
		}
		return c.finalize(def, tpl, inst, scope, authored)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// checkAssign validates an assignment target of a resource body.
func (c *Compiler) checkAssign(def *schema.TypeDefinition, tpl *schema.Template, target string, pos token.Position) error {
	if target == "" {
		return nil
	}
	if !topLevel(tpl, target) {
		return diag(errors.UnknownField, pos, "%s has no field %s", def.QualifiedName(), target).Near(target)
	}
	tf := def.Field(target)
	if tf == nil {
		return nil
	}
	if tf.Builtin {
		return diag(errors.BuiltinAssigned, pos, "field %s of %s is builtin and cannot be assigned", target, def.QualifiedName()).Near(target)
	}
	if tf.Deprecated {
		c.report(warn(errors.DeprecatedField, pos, "field %s of %s is deprecated", target, def.QualifiedName()).Near(target))
	}
	return nil
}

// construct runs the type's constructor with the positional arguments of
// d. Parameters live in a scope of their own; the fields the constructor
// assigns are copied into the instance scope.
func (c *Compiler) construct(def *schema.TypeDefinition, d *ast.ResourceDecl, inst *schema.Instance, scope script.ScopeID, authored map[string]bool) error {
	ctor := def.Constructor
	if len(d.Args) == 0 && (ctor == nil || len(ctor.Params) > 0) {
		return nil
	}
	if ctor == nil {
		return diag(errors.MalformedDeclaration, d.Pos, "type %s has no constructor", def.QualifiedName()).Near(d.Type)
	}
	if len(d.Args) != len(ctor.Params) {
		return errors.New(errors.PhaseInterpreter, errors.ArityMismatch, d.Pos.Diag(),
			"constructor of %s expects %d arguments, got %d", def.QualifiedName(), len(ctor.Params), len(d.Args)).Near(d.Type)
	}

	args := make([]value.Value, len(d.Args))
	for i, arg := range d.Args {
		v, err := c.Session.Interp.Evaluate(scope, arg)
		if err != nil {
			return err
		}
		if !script.Accepts(ctor.Params[i].Type, v) {
			return errors.New(errors.PhaseInterpreter, errors.TypeMismatch, d.Pos.Diag(),
				"argument %s of %s must be %s, got %s", ctor.Params[i].Name, def.QualifiedName(), ctor.Params[i].Type, v.Kind).Near(ctor.Params[i].Name)
		}
		args[i] = v
	}

	return c.Session.Scopes.With(scope, func(local script.ScopeID) error {
		for i, p := range ctor.Params {
			if err := c.Session.Scopes.Set(local, p.Name, args[i]); err != nil {
				return err
			}
		}
		res, err := c.Session.Interp.Run(local, ctor.Body)
		for _, name := range res.Assigned {
			v, _ := c.Session.Scopes.Local(local, name)
			if err := c.Session.Scopes.Set(scope, name, v); err != nil {
				return err
			}
			inst.Values[name] = v
			authored[name] = true
		}
		return err
	})
}

// finalize fills in what the author left out. Defaults are evaluated
// without instance bindings; counts and synthesized fields see every
// value of the instance.
func (c *Compiler) finalize(def *schema.TypeDefinition, tpl *schema.Template, inst *schema.Instance, scope script.ScopeID, authored map[string]bool) error {
	for _, tf := range def.Fields {
		if tf.Synthesize || len(tf.Default) == 0 || !topLevel(tpl, tf.Name) {
			continue
		}
		if _, ok := inst.Values[tf.Name]; ok {
			continue
		}
		v, err := c.Session.Default(def, tf)
		if err != nil {
			return err
		}
		inst.Values[tf.Name] = v
	}
	for name, v := range inst.Values {
		if _, ok := c.Session.Scopes.Local(scope, name); !ok {
			if err := c.Session.Scopes.Set(scope, name, v); err != nil {
				return err
			}
		}
	}
	// Fields nobody set are visible to synthesize expressions with the
	// value the encoder will write for them.
	for i := 0; i < len(tpl.Fields); i++ {
		f := &tpl.Fields[i]
		if f.Prim == token.LSTE {
			continue
		}
		if _, ok := c.Session.Scopes.Local(scope, f.Label); !ok {
			if err := c.Session.Scopes.Set(scope, f.Label, assembler.Zero(f)); err != nil {
				return err
			}
		}
		if f.Prim == token.LSTC {
			i = f.Match
		}
	}

	counted := make(map[string]bool)
	for i := range tpl.Fields {
		f := &tpl.Fields[i]
		if f.Prim != token.LSTC {
			continue
		}
		n := 0
		if v, ok := inst.Values[f.Label]; ok && v.Kind == value.List {
			n = len(v.List)
		}
		var targets []string
		if f.Count >= 0 {
			targets = append(targets, tpl.Fields[f.Count].Label)
		}
		if tf := def.Field(f.Label); tf != nil && tf.Repeatable != nil && tf.Repeatable.CountField != "" {
			targets = append(targets, tf.Repeatable.CountField)
		}
		for _, name := range targets {
			inst.Values[name] = value.Int(int64(n))
			counted[name] = true
			if err := c.Session.Scopes.Set(scope, name, value.Int(int64(n))); err != nil {
				return err
			}
		}
	}

	for _, tf := range def.Fields {
		if !tf.Synthesize || authored[tf.Name] || counted[tf.Name] {
			continue
		}
		v, err := c.Session.Interp.Evaluate(scope, tf.Default)
		if err != nil {
			return err
		}
		inst.Values[tf.Name] = v
		if err := c.Session.Scopes.Set(scope, tf.Name, v); err != nil {
			return err
		}
	}
	return nil
}
