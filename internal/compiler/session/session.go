// Package session holds the state of one compile: the scope stack, the
// type and template registries, declared modules, the import tracker and
// the decorators waiting for their declaration.
package session

import (
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/ast"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/resolver"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/script"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

// Module is a named group of imports declared with @module.
type Module struct {
	Name     string
	Requires []string
	Imports  []string
	Pos      token.Position
}

// Session is not safe for concurrent use. A compiler owns exactly one.
type Session struct {
	Scopes    *script.Scopes
	Interp    *script.Interpreter
	Templates *schema.Registry
	Imports   *resolver.Resolver
	Log       *slog.Logger

	stack []script.ScopeID

	types  []*schema.TypeDefinition
	byName map[string]int // qualified name
	byCode map[string]int // namespace + "\x00" + code

	modules   map[string]*Module
	pending   []*ast.Decorator
	metadata  map[string]value.Value
	little    bool
	namespace string
}

// New creates a session whose root scope carries the builtin functions.
// A nil resolver or logger is replaced by a default one.
func New(res *resolver.Resolver, log *slog.Logger) *Session {
	if res == nil {
		res = resolver.New()
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	scopes := script.NewScopes()
	script.RegisterBuiltins(scopes, scopes.Root())

	return &Session{
		Scopes:    scopes,
		Interp:    script.New(scopes),
		Templates: schema.NewRegistry(),
		Imports:   res,
		Log:       log,
		stack:     []script.ScopeID{scopes.Root()},
		byName:    make(map[string]int),
		byCode:    make(map[string]int),
		modules:   make(map[string]*Module),
		metadata:  make(map[string]value.Value),
	}
}

func diag(code errors.Code, pos token.Position, format string, args ...interface{}) *errors.CompileError {
	return errors.New(errors.PhaseDiagnostic, code, pos.Diag(), format, args...)
}

// ============ SCOPES ============

// Current is the innermost scope.
func (s *Session) Current() script.ScopeID {
	return s.stack[len(s.stack)-1]
}

// PushScope opens a child of the current scope and makes it current.
func (s *Session) PushScope() script.ScopeID {
	id := s.Scopes.Push(s.Current())
	s.stack = append(s.stack, id)
	return id
}

// PopScope discards the current scope. Popping the root panics.
func (s *Session) PopScope() {
	if len(s.stack) == 1 {
		panic("session: pop of the root scope")
	}
	id := s.Current()
	s.stack = s.stack[:len(s.stack)-1]
	s.Scopes.Pop(id)
}

// WithScope runs fn in a fresh child scope. The scope is discarded however
// fn returns, panics included.
func (s *Session) WithScope(fn func(script.ScopeID) error) error {
	id := s.PushScope()
	depth := len(s.stack)
	defer func() {
		// fn may have left scopes of its own open.
		for len(s.stack) > depth {
			s.PopScope()
		}
		s.PopScope()
	}()
	return fn(id)
}

// Evaluate runs an expression in the current scope.
func (s *Session) Evaluate(toks []token.Token) (value.Value, error) {
	return s.Interp.Evaluate(s.Current(), toks)
}

// Lookup resolves a variable from the current scope outwards.
func (s *Session) Lookup(name string, pos token.Position) (value.Value, error) {
	if v, ok := s.Scopes.Lookup(s.Current(), name); ok {
		return v, nil
	}
	return value.Value{}, errors.New(errors.PhaseInterpreter, errors.UnknownVariable, pos.Diag(),
		"unknown variable %s", name).Near(name)
}

// SetVariable binds name in the current scope. Rebinding a constant fails.
func (s *Session) SetVariable(name string, v value.Value, constant bool, pos token.Position) error {
	set := s.Scopes.Set
	if constant {
		set = s.Scopes.SetConst
	}
	if err := set(s.Current(), name, v); err != nil {
		return diag(errors.ConstReassigned, pos, "%v", err).Near(name)
	}
	return nil
}

// DefineFunction registers a scripted function in the current scope.
func (s *Session) DefineFunction(fn *script.Function, replace bool) error {
	if err := s.Scopes.DefineFunction(s.Current(), fn, replace); err != nil {
		return diag(errors.DuplicateFunction, fn.Pos, "%v", err).Near(fn.Name)
	}
	return nil
}

// ============ TYPES ============

func codeKey(namespace, code string) string {
	return namespace + "\x00" + code
}

// DeclareType registers def with its template in the current namespace.
// Redeclaring a name or type code fails unless the declaration carries
// @override or @duplicate, in which case the new definition takes the
// place of the old one: types nesting it and the declaration order keep
// pointing at the same slot.
func (s *Session) DeclareType(def *schema.TypeDefinition, tpl schema.Template, decorators []*ast.Decorator) error {
	def.Namespace = s.namespace
	for _, d := range decorators {
		def.Decorators = append(def.Decorators, d.Word)
	}
	replace := def.Has(token.Override) || def.Has(token.Duplicate)

	idx, exists := s.byName[def.QualifiedName()]
	codeIdx, codeTaken := s.byCode[codeKey(def.Namespace, def.Code)]
	if !exists {
		idx, exists = codeIdx, codeTaken
	}
	if exists && codeTaken && codeIdx != idx {
		other := s.types[codeIdx]
		return diag(errors.DuplicateType, def.Pos, "type %s cannot take code %q, already used by %s at %s",
			def.QualifiedName(), def.Code, other.QualifiedName(), other.Pos).Near(def.Code)
	}
	if exists && !replace {
		old := s.types[idx]
		return diag(errors.DuplicateType, def.Pos, "type %s (%q) already declared at %s",
			def.QualifiedName(), def.Code, old.Pos).Near(def.Name)
	}

	if !exists {
		if _, err := s.Templates.Add(tpl, def); err != nil {
			return err
		}
		s.types = append(s.types, def)
		idx = len(s.types) - 1
	} else {
		old := s.types[idx]
		if err := s.Templates.Replace(old.Template, tpl, def); err != nil {
			return err
		}
		delete(s.byName, old.QualifiedName())
		delete(s.byCode, codeKey(old.Namespace, old.Code))
		s.types[idx] = def
		s.Log.Debug("type replaced", "type", def.QualifiedName(), "at", def.Pos.String())
	}
	s.byName[def.QualifiedName()] = idx
	s.byCode[codeKey(def.Namespace, def.Code)] = idx
	return nil
}

// ResolveType finds a type by qualified name, by name in the current
// namespace, by name in the global namespace, or by type code in the same
// order.
func (s *Session) ResolveType(name string, pos token.Position) (*schema.TypeDefinition, error) {
	if strings.Contains(name, ".") {
		if idx, ok := s.byName[name]; ok {
			return s.types[idx], nil
		}
	} else {
		if s.namespace != "" {
			if idx, ok := s.byName[s.namespace+"."+name]; ok {
				return s.types[idx], nil
			}
		}
		if idx, ok := s.byName[name]; ok {
			return s.types[idx], nil
		}
		if def := s.TypeByCode(s.namespace, name); def != nil {
			return def, nil
		}
		if def := s.TypeByCode("", name); def != nil {
			return def, nil
		}
	}
	return nil, diag(errors.UnknownType, pos, "unknown type %s", name).Near(name)
}

// TypeByCode returns the type registered for code in namespace, or nil.
func (s *Session) TypeByCode(namespace, code string) *schema.TypeDefinition {
	if idx, ok := s.byCode[codeKey(namespace, code)]; ok {
		return s.types[idx]
	}
	return nil
}

// Types lists the declared types in declaration order.
func (s *Session) Types() []*schema.TypeDefinition {
	return append([]*schema.TypeDefinition(nil), s.types...)
}

// ============ MODULES ============

// DeclareModule records a module. Every required module must already be
// declared; the module is registered even when one is missing so later
// references do not cascade.
func (s *Session) DeclareModule(m *Module) error {
	if prev, ok := s.modules[m.Name]; ok {
		return diag(errors.MalformedDirective, m.Pos, "module %s already declared at %s", m.Name, prev.Pos).Near(m.Name)
	}
	s.modules[m.Name] = m
	for _, req := range m.Requires {
		if _, ok := s.modules[req]; !ok {
			return diag(errors.UnknownModule, m.Pos, "module %s requires unknown module %s", m.Name, req).Near(req)
		}
	}
	return nil
}

func (s *Session) Module(name string) (*Module, bool) {
	m, ok := s.modules[name]
	return m, ok
}

// Modules returns the declared module names, sorted.
func (s *Session) Modules() []string {
	out := make([]string, 0, len(s.modules))
	for name := range s.modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ============ IMPORTS ============

// LoadFunc processes the source of one file.
type LoadFunc func(path, src string) error

// Load runs load for a file that is not imported by anything, tracking it
// like an import so files importing it back are caught as cycles.
func (s *Session) Load(path, src string, load LoadFunc) error {
	s.Imports.Begin(path)
	defer s.Imports.Finish(path)
	return load(path, src)
}

// Import resolves importPath relative to fromDir and loads it once. A file
// that is still loading further up the chain is an import cycle.
func (s *Session) Import(importPath, fromDir string, pos token.Position, load LoadFunc) error {
	path, err := s.Imports.Resolve(importPath, fromDir)
	if err != nil {
		return diag(errors.ImportFailed, pos, "cannot import %s: %v", importPath, err).Near(importPath).AsFatal()
	}
	if s.Imports.Loading(path) {
		return diag(errors.ImportCycle, pos, "import cycle: %s", s.Imports.Chain(path)).Near(importPath)
	}
	if s.Imports.Done(path) {
		s.Log.Debug("import already loaded", "path", path)
		return nil
	}
	src, err := s.Imports.Read(path)
	if err != nil {
		return diag(errors.ImportFailed, pos, "cannot import %s: %v", importPath, err).Near(importPath).AsFatal()
	}
	s.Log.Debug("importing", "path", path)
	return s.Load(path, src, load)
}

// ============ DECORATORS ============

// AddDecorator holds d until the next declaration takes it.
func (s *Session) AddDecorator(d *ast.Decorator) {
	s.pending = append(s.pending, d)
}

// TakeDecorators returns and clears the pending decorators.
func (s *Session) TakeDecorators() []*ast.Decorator {
	out := s.pending
	s.pending = nil
	return out
}

// ============ DIRECTIVE STATE ============

func (s *Session) SetMetadata(key string, v value.Value) {
	s.metadata[key] = v
}

// Metadata returns a copy of the @metadata entries.
func (s *Session) Metadata() map[string]value.Value {
	out := make(map[string]value.Value, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

func (s *Session) SetLittleEndian(little bool) {
	s.little = little
}

func (s *Session) LittleEndian() bool {
	return s.little
}

// SetNamespace selects the namespace of following declarations. An empty
// name returns to the global namespace.
func (s *Session) SetNamespace(ns string) {
	s.namespace = ns
}

func (s *Session) Namespace() string {
	return s.namespace
}
