// Package symtab implements nested lexical scopes for defvars, template
// arguments, foreach iterators and NAME bindings.
package symtab

import (
	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// ScopeKind identifies what opened a scope.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeClass
	ScopeMulticlass
	ScopeForeach
	ScopeBlock // let, if, defset bodies
	ScopeBody  // def/class body
	ScopeOperator
)

var scopeNames = []string{
	"global",
	"class",
	"multiclass",
	"foreach",
	"block",
	"body",
	"operator",
}

func (k ScopeKind) String() string {
	if int(k) < len(scopeNames) {
		return scopeNames[k]
	}
	return "unknown"
}

// Scope maps names to values of type V and links to its enclosing scope.
type Scope[V any] struct {
	kind   ScopeKind
	parent *Scope[V]
	names  map[string]V
	order  []string
}

// NewGlobal creates an outermost scope.
func NewGlobal[V any]() *Scope[V] {
	return &Scope[V]{kind: ScopeGlobal, names: make(map[string]V)}
}

// Push opens a nested scope.
func (s *Scope[V]) Push(kind ScopeKind) *Scope[V] {
	return &Scope[V]{kind: kind, parent: s, names: make(map[string]V)}
}

// Pop returns the enclosing scope (nil for the global scope).
func (s *Scope[V]) Pop() *Scope[V] {
	return s.parent
}

func (s *Scope[V]) Kind() ScopeKind {
	return s.kind
}

// IsGlobal reports whether s is the outermost scope.
func (s *Scope[V]) IsGlobal() bool {
	return s.parent == nil
}

// Define binds name in this scope. Rebinding a name already bound in the
// same scope is a DuplicateSymbolError; shadowing an outer binding is fine.
func (s *Scope[V]) Define(name string, v V) error {
	if _, exists := s.names[name]; exists {
		return diag.Errorf(diag.KindDuplicateSymbol, "'%s' is already defined in this %s scope", name, s.kind)
	}
	s.names[name] = v
	s.order = append(s.order, name)
	return nil
}

// Get looks name up in this scope only.
func (s *Scope[V]) Get(name string) (V, bool) {
	v, ok := s.names[name]
	return v, ok
}

// Lookup searches this scope and then each enclosing one.
func (s *Scope[V]) Lookup(name string) (V, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.names[name]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// LookupLocal is Lookup without the global scope.
func (s *Scope[V]) LookupLocal(name string) (V, bool) {
	for sc := s; sc != nil && sc.parent != nil; sc = sc.parent {
		if v, ok := sc.names[name]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Names returns the names bound directly in this scope in definition order.
func (s *Scope[V]) Names() []string {
	return append([]string(nil), s.order...)
}

// Depth is the number of enclosing scopes.
func (s *Scope[V]) Depth() int {
	d := 0
	for sc := s.parent; sc != nil; sc = sc.parent {
		d++
	}
	return d
}
