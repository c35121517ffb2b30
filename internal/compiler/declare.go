package compiler

import (
	"path/filepath"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/ast"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/script"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/session"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

func diag(code errors.Code, pos token.Position, format string, args ...interface{}) *errors.CompileError {
	return errors.New(errors.PhaseDiagnostic, code, pos.Diag(), format, args...)
}

func warn(code errors.Code, pos token.Position, format string, args ...interface{}) *errors.CompileError {
	w := diag(code, pos, format, args...)
	w.Warning = true
	return w
}

// Decorators accepted by each kind of declaration.
var (
	typeDecorators     = []token.Word{token.Override, token.Duplicate, token.Deprecated}
	functionDecorators = []token.Word{token.Override}
	resourceDecorators = []token.Word{token.Override, token.Duplicate}
	fieldDecorators    = []token.Word{token.Builtin, token.Synthesize, token.Condition, token.Repeatable, token.Deprecated}
)

// checkDecorators rejects decorators that do not apply to what, and
// arguments on decorators that take none.
func checkDecorators(decorators []*ast.Decorator, allowed []token.Word, what string) error {
	for _, d := range decorators {
		ok := false
		for _, w := range allowed {
			if d.Word == w {
				ok = true
				break
			}
		}
		if !ok {
			return diag(errors.MalformedDeclaration, d.Pos, "@%s cannot be applied to %s", d.Name, what).Near(d.Name)
		}
		switch d.Word {
		case token.Condition, token.Repeatable:
		default:
			if len(d.Args) > 0 {
				return diag(errors.MalformedDeclaration, d.Pos, "@%s takes no arguments", d.Name).Near(d.Name)
			}
		}
	}
	return nil
}

func (c *Compiler) declare(file *ast.File, decl ast.Decl, decorators []*ast.Decorator) error {
	switch d := decl.(type) {
	case *ast.TypeDecl:
		if err := checkDecorators(decorators, typeDecorators, "a type"); err != nil {
			return err
		}
		return c.declareType(d, decorators)
	case *ast.ResourceDecl:
		if err := checkDecorators(decorators, resourceDecorators, "a resource"); err != nil {
			return err
		}
		return c.newResource(d, decorators)
	case *ast.FunctionDecl:
		if err := checkDecorators(decorators, functionDecorators, "a function"); err != nil {
			return err
		}
		return c.declareFunction(d, ast.Find(decorators, token.Override) != nil)
	}

	if len(decorators) > 0 {
		return diag(errors.MalformedDeclaration, decorators[0].Pos, "@%s cannot be applied to %s",
			decorators[0].Name, decl.TokenLiteral()).Near(decorators[0].Name)
	}
	return c.directive(file, decl)
}

// ============ DIRECTIVES ============

func (c *Compiler) directive(file *ast.File, decl ast.Decl) error {
	switch d := decl.(type) {
	case *ast.ImportDirective:
		return c.Session.Import(d.Path, filepath.Dir(file.Path), d.Pos, c.loadFile)

	case *ast.ModuleDirective:
		m := &session.Module{Name: d.Name, Requires: d.Requires, Pos: d.Pos}
		for _, imp := range d.Imports {
			m.Imports = append(m.Imports, imp.Path)
		}
		c.report(c.Session.DeclareModule(m))
		for _, imp := range d.Imports {
			if err := c.Session.Import(imp.Path, filepath.Dir(file.Path), imp.Pos, c.loadFile); err != nil {
				return err
			}
		}
		return nil

	case *ast.VarDirective:
		v, err := c.Session.Evaluate(d.Value)
		if err != nil {
			return err
		}
		return c.Session.SetVariable(d.Name, v, d.Const, d.Pos)

	case *ast.MetadataDirective:
		v, err := c.Session.Evaluate(d.Value)
		if err != nil {
			return err
		}
		c.Session.SetMetadata(d.Key, v)
		return nil

	case *ast.ByteOrderDirective:
		little := d.Order == "little"
		if c.encoded > 0 && little != c.Session.LittleEndian() {
			// The container records a single byte order for the batch.
			return diag(errors.MalformedDirective, d.Pos,
				"@byteorder %s after %d resources were encoded in the other order", d.Order, c.encoded).Near(d.Order)
		}
		c.Session.SetLittleEndian(little)
		return nil

	case *ast.NamespaceDirective:
		c.Session.SetNamespace(d.Name)
		return nil

	case *ast.OutDirective:
		v, err := c.Session.Evaluate(d.Value)
		if err != nil {
			return err
		}
		c.output = append(c.output, v.Text())
		c.log.Info(v.Text(), "file", d.Pos.File, "line", d.Pos.Line)
		return nil

	case *ast.ScriptDirective:
		return c.runScript(d)
	}
	return diag(errors.MalformedDirective, decl.Position(), "unsupported declaration %s", decl.TokenLiteral())
}

// runScript executes an @script block in its own scope. Exported variables
// are then bound in the enclosing scope.
func (c *Compiler) runScript(d *ast.ScriptDirective) error {
	sc, err := script.ParseScript(d.Body)
	if err != nil {
		return err
	}
	var watched map[string]value.Value
	err = c.Session.WithScope(func(scope script.ScopeID) error {
		res, err := c.Session.Interp.Run(scope, sc)
		watched = res.Watched
		return err
	})
	if err != nil {
		return err
	}
	for _, st := range sc.Statements {
		if !st.Export {
			continue
		}
		if v, ok := watched[st.Target]; ok {
			if err := c.Session.SetVariable(st.Target, v, false, st.Pos); err != nil {
				return err
			}
		}
	}
	return nil
}

// ============ FUNCTIONS ============

func params(in []ast.Param) []script.Param {
	out := make([]script.Param, len(in))
	for i, p := range in {
		out[i] = script.Param{Name: p.Name, Type: p.Type}
	}
	return out
}

func (c *Compiler) declareFunction(d *ast.FunctionDecl, replace bool) error {
	body, err := script.ParseScript(d.Body)
	if err != nil {
		return err
	}
	fn := &script.Function{
		Name:   d.Name,
		Params: params(d.Params),
		Body:   script.ScriptBody{Script: body},
		Pos:    d.Pos,
	}
	return c.Session.DefineFunction(fn, replace)
}

// ============ TYPES ============

func (c *Compiler) declareType(d *ast.TypeDecl, decorators []*ast.Decorator) error {
	def := &schema.TypeDefinition{Name: d.Name, Code: d.Code, Pos: d.Pos, Template: schema.NoTemplate}

	tpl, err := c.template(d)
	if err != nil {
		return err
	}
	for _, fd := range d.Fields {
		tf, err := c.typeField(d, &tpl, def, fd)
		if err != nil {
			return err
		}
		def.Fields = append(def.Fields, tf)
	}
	if d.Constructor != nil {
		ctor, err := constructor(d, &tpl, def)
		if err != nil {
			return err
		}
		def.Constructor = ctor
	}

	if err := c.Session.DeclareType(def, tpl, decorators); err != nil {
		return err
	}
	c.log.Debug("type declared", "type", def.QualifiedName(), "code", def.Code, "fields", len(tpl.Fields))
	return nil
}

// template converts and links the template block of d, resolving nested
// types.
func (c *Compiler) template(d *ast.TypeDecl) (schema.Template, error) {
	tpl := schema.Template{Type: d.Name}
	for _, e := range d.Template {
		f := schema.Field{Label: e.Label, Pos: e.Pos, Nested: schema.NoTemplate}
		if e.Type.Kind == token.TEMPLATE_TYPE {
			f.Prim = e.Type.Prim
			f.Width = int(e.Type.Int)
		} else {
			nested, err := c.Session.ResolveType(e.Type.Literal, e.Pos)
			if err != nil {
				return tpl, err
			}
			f.Prim = token.NESTED
			f.Nested = nested.Template
			f.NestedType = nested.QualifiedName()
		}
		tpl.Fields = append(tpl.Fields, f)
	}
	return tpl, tpl.Link()
}

func (c *Compiler) typeField(d *ast.TypeDecl, tpl *schema.Template, def *schema.TypeDefinition, fd *ast.FieldDecl) (*schema.TypeField, error) {
	at := tpl.Lookup(fd.Name)
	if at < 0 {
		return nil, diag(errors.UnknownField, fd.Pos, "field %s is not part of the template of %s", fd.Name, d.Name).Near(fd.Name)
	}
	if def.Field(fd.Name) != nil {
		return nil, diag(errors.MalformedDeclaration, fd.Pos, "field %s of %s declared twice", fd.Name, d.Name).Near(fd.Name)
	}
	if err := checkDecorators(fd.Decorators, fieldDecorators, "a field"); err != nil {
		return nil, err
	}

	tf := &schema.TypeField{Name: fd.Name, Default: fd.Value, Pos: fd.Pos}
	for _, dec := range fd.Decorators {
		switch dec.Word {
		case token.Builtin:
			tf.Builtin = true
		case token.Synthesize:
			tf.Synthesize = true
		case token.Deprecated:
			tf.Deprecated = true
		case token.Condition:
			if len(dec.Args) != 1 {
				return nil, diag(errors.MalformedDeclaration, dec.Pos, "@condition takes one expression").Near(fd.Name)
			}
			tf.Condition = dec.Args[0]
		case token.Repeatable:
			rep, err := c.repeatable(tpl, fd, dec)
			if err != nil {
				return nil, err
			}
			tf.Repeatable = rep
		}
	}
	if tf.Synthesize && len(tf.Default) == 0 {
		return nil, diag(errors.MalformedDeclaration, fd.Pos, "@synthesize field %s needs an expression", fd.Name).Near(fd.Name)
	}
	return tf, nil
}

// repeatable reads @repeatable(lower, upper[, countField]). The bounds
// are evaluated once, at declaration.
func (c *Compiler) repeatable(tpl *schema.Template, fd *ast.FieldDecl, dec *ast.Decorator) (*schema.Repeatable, error) {
	if tpl.Fields[tpl.Lookup(fd.Name)].Prim != token.LSTC {
		return nil, diag(errors.MalformedDeclaration, dec.Pos, "@repeatable field %s must be a list (LSTC)", fd.Name).Near(fd.Name)
	}
	if len(dec.Args) < 2 || len(dec.Args) > 3 {
		return nil, diag(errors.MalformedDeclaration, dec.Pos, "@repeatable takes (lower, upper[, count field])").Near(fd.Name)
	}

	rep := &schema.Repeatable{}
	for i, dst := range []*int64{&rep.Lower, &rep.Upper} {
		v, err := c.Session.Evaluate(dec.Args[i])
		if err != nil {
			return nil, err
		}
		if v.Kind != value.Integer {
			return nil, diag(errors.MalformedDeclaration, dec.Pos, "@repeatable bounds must be integers, got %s", v.Kind).Near(fd.Name)
		}
		*dst = v.Int
	}
	if rep.Lower < 0 || rep.Upper < rep.Lower {
		return nil, diag(errors.MalformedDeclaration, dec.Pos, "invalid @repeatable bounds %d..%d", rep.Lower, rep.Upper).Near(fd.Name)
	}

	if len(dec.Args) == 3 {
		arg := dec.Args[2]
		if len(arg) != 1 || arg[0].Kind != token.IDENT {
			return nil, diag(errors.MalformedDeclaration, dec.Pos, "@repeatable count field must be a field name").Near(fd.Name)
		}
		at := tpl.Lookup(arg[0].Literal)
		if at < 0 {
			return nil, diag(errors.UnknownField, arg[0].Pos, "count field %s is not part of the template", arg[0].Literal).Near(arg[0].Literal)
		}
		if f := &tpl.Fields[at]; !holdsCount(f.Prim) || !topLevel(tpl, f.Label) {
			return nil, diag(errors.MalformedDeclaration, arg[0].Pos, "%s cannot hold a count", f).Near(arg[0].Literal)
		}
		rep.CountField = arg[0].Literal
	}
	return rep, nil
}

// constructor checks that a constructor only assigns fields.
func constructor(d *ast.TypeDecl, tpl *schema.Template, def *schema.TypeDefinition) (*schema.Constructor, error) {
	body, err := script.ParseScript(d.Constructor.Body)
	if err != nil {
		return nil, err
	}
	for _, st := range body.Statements {
		if st.Target == "" {
			continue
		}
		if !topLevel(tpl, st.Target) {
			return nil, diag(errors.UnknownField, st.Pos, "constructor of %s assigns unknown field %s", d.Name, st.Target).Near(st.Target)
		}
		if tf := def.Field(st.Target); tf != nil && tf.Builtin {
			return nil, diag(errors.BuiltinAssigned, st.Pos, "constructor of %s assigns builtin field %s", d.Name, st.Target).Near(st.Target)
		}
	}
	return &schema.Constructor{Params: params(d.Constructor.Params), Body: body, Pos: d.Constructor.Pos}, nil
}

// holdsCount reports whether a field of kind p can store an element count.
func holdsCount(p token.Primitive) bool {
	switch p {
	case token.OCNT, token.ZCNT, token.LCNT,
		token.DBYT, token.DWRD, token.DLNG, token.DQAD,
		token.HBYT, token.HWRD, token.HLNG, token.HQAD:
		return true
	}
	return false
}

// topLevel reports whether name labels a field outside any list span,
// that is one an instance can assign.
func topLevel(tpl *schema.Template, name string) bool {
	for _, l := range tpl.Labels() {
		if l == name {
			return true
		}
	}
	return false
}
