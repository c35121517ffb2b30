package script

import (
	"fmt"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

// ScopeID addresses a scope node in a Scopes arena.
type ScopeID int32

// NoScope is the parent of the root scope.
const NoScope ScopeID = -1

type binding struct {
	val      value.Value
	constant bool
}

type scopeNode struct {
	parent   ScopeID
	vars     map[string]binding
	order    []string
	funcs    map[string][]*Function
	children int
	live     bool
}

// Scopes is an arena of lexical scopes. Nodes refer to their parent by
// index, so a chain can only point at nodes created before it and is
// therefore acyclic. Popped nodes are recycled.
type Scopes struct {
	nodes []scopeNode
	free  []ScopeID
}

// NewScopes creates an arena holding a single root scope.
func NewScopes() *Scopes {
	s := &Scopes{}
	s.alloc(NoScope)
	return s
}

func (s *Scopes) Root() ScopeID {
	return 0
}

func (s *Scopes) alloc(parent ScopeID) ScopeID {
	node := scopeNode{
		parent: parent,
		vars:   make(map[string]binding),
		funcs:  make(map[string][]*Function),
		live:   true,
	}
	if parent != NoScope {
		s.nodes[parent].children++
	}
	if n := len(s.free); n > 0 {
		id := s.free[n-1]
		s.free = s.free[:n-1]
		s.nodes[id] = node
		return id
	}
	s.nodes = append(s.nodes, node)
	return ScopeID(len(s.nodes) - 1)
}

// Push creates a child of parent.
func (s *Scopes) Push(parent ScopeID) ScopeID {
	s.mustLive(parent)
	return s.alloc(parent)
}

// Pop discards a scope and every binding it holds. Scopes must be popped
// innermost first; the root cannot be popped.
func (s *Scopes) Pop(id ScopeID) {
	s.mustLive(id)
	if id == s.Root() {
		panic("script: cannot pop the root scope")
	}
	node := &s.nodes[id]
	if node.children > 0 {
		panic(fmt.Sprintf("script: scope %d popped while %d child scopes are live", id, node.children))
	}
	s.nodes[node.parent].children--
	*node = scopeNode{parent: NoScope}
	s.free = append(s.free, id)
}

// With runs fn inside a fresh child of parent. The child is discarded
// when fn returns, whether normally, with an error, or by panicking.
func (s *Scopes) With(parent ScopeID, fn func(ScopeID) error) error {
	child := s.Push(parent)
	defer s.Pop(child)
	return fn(child)
}

func (s *Scopes) Live(id ScopeID) bool {
	return id >= 0 && int(id) < len(s.nodes) && s.nodes[id].live
}

func (s *Scopes) mustLive(id ScopeID) {
	if !s.Live(id) {
		panic(fmt.Sprintf("script: scope %d is not live", id))
	}
}

func (s *Scopes) Parent(id ScopeID) ScopeID {
	s.mustLive(id)
	return s.nodes[id].parent
}

// Depth is the number of ancestors of id.
func (s *Scopes) Depth(id ScopeID) int {
	d := 0
	for cur := s.Parent(id); cur != NoScope; cur = s.nodes[cur].parent {
		d++
	}
	return d
}

// Set binds name in scope id itself, shadowing any outer binding. It
// fails if the local binding is a constant.
func (s *Scopes) Set(id ScopeID, name string, v value.Value) error {
	return s.bind(id, name, v, false)
}

// SetConst binds an immutable name in scope id.
func (s *Scopes) SetConst(id ScopeID, name string, v value.Value) error {
	return s.bind(id, name, v, true)
}

func (s *Scopes) bind(id ScopeID, name string, v value.Value, constant bool) error {
	s.mustLive(id)
	node := &s.nodes[id]
	if old, ok := node.vars[name]; ok {
		if old.constant {
			return fmt.Errorf("cannot reassign constant %q", name)
		}
	} else {
		node.order = append(node.order, name)
	}
	node.vars[name] = binding{val: v, constant: constant}
	return nil
}

// Lookup resolves name starting at id and walking outward; the nearest
// binding wins.
func (s *Scopes) Lookup(id ScopeID, name string) (value.Value, bool) {
	s.mustLive(id)
	for cur := id; cur != NoScope; cur = s.nodes[cur].parent {
		if b, ok := s.nodes[cur].vars[name]; ok {
			return b.val, true
		}
	}
	return value.Value{}, false
}

// Local reports a binding held by id itself.
func (s *Scopes) Local(id ScopeID, name string) (value.Value, bool) {
	s.mustLive(id)
	b, ok := s.nodes[id].vars[name]
	return b.val, ok
}

// IsConst reports whether the nearest binding of name is a constant.
func (s *Scopes) IsConst(id ScopeID, name string) bool {
	s.mustLive(id)
	for cur := id; cur != NoScope; cur = s.nodes[cur].parent {
		if b, ok := s.nodes[cur].vars[name]; ok {
			return b.constant
		}
	}
	return false
}

// Names lists the local bindings of id in first-binding order.
func (s *Scopes) Names(id ScopeID) []string {
	s.mustLive(id)
	return append([]string(nil), s.nodes[id].order...)
}

// DefineFunction registers fn in scope id. A function with the same name
// and arity already in that scope is an error unless replace is set.
func (s *Scopes) DefineFunction(id ScopeID, fn *Function, replace bool) error {
	s.mustLive(id)
	node := &s.nodes[id]
	fns := node.funcs[fn.Name]
	for i, existing := range fns {
		if len(existing.Params) == len(fn.Params) {
			if !replace {
				return fmt.Errorf("function %s/%d already defined", fn.Name, len(fn.Params))
			}
			fns[i] = fn
			fn.Scope = id
			return nil
		}
	}
	fn.Scope = id
	node.funcs[fn.Name] = append(fns, fn)
	return nil
}

// LookupFunction resolves name with the given arity through the scope
// chain. arityKnown reports that the name exists somewhere with a
// different parameter count.
func (s *Scopes) LookupFunction(id ScopeID, name string, arity int) (fn *Function, arityKnown bool) {
	s.mustLive(id)
	for cur := id; cur != NoScope; cur = s.nodes[cur].parent {
		for _, f := range s.nodes[cur].funcs[name] {
			if len(f.Params) == arity {
				return f, true
			}
			arityKnown = true
		}
	}
	return nil, arityKnown
}
