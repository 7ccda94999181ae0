package symtab

import (
	"testing"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

func TestDefineAndLookup(t *testing.T) {
	g := NewGlobal[int]()
	if err := g.Define("x", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inner := g.Push(ScopeForeach)
	if v, ok := inner.Lookup("x"); !ok || v != 1 {
		t.Errorf("expected outer binding, got %d, %v", v, ok)
	}
	if _, ok := inner.Lookup("y"); ok {
		t.Error("unexpected binding for y")
	}
}

func TestShadowing(t *testing.T) {
	g := NewGlobal[string]()
	_ = g.Define("i", "global")
	body := g.Push(ScopeForeach)
	if err := body.Define("i", "iter"); err != nil {
		t.Fatalf("shadowing should be allowed: %v", err)
	}
	if v, _ := body.Lookup("i"); v != "iter" {
		t.Errorf("expected inner binding, got %q", v)
	}
	if v, _ := body.Pop().Lookup("i"); v != "global" {
		t.Errorf("expected global binding after pop, got %q", v)
	}
}

func TestDuplicateInSameScope(t *testing.T) {
	g := NewGlobal[int]()
	_ = g.Define("x", 1)
	err := g.Define("x", 2)
	if !diag.IsKind(err, diag.KindDuplicateSymbol) {
		t.Fatalf("expected DuplicateSymbolError, got %v", err)
	}
	if v, _ := g.Lookup("x"); v != 1 {
		t.Errorf("original binding should survive, got %d", v)
	}
}

func TestLookupLocalSkipsGlobal(t *testing.T) {
	g := NewGlobal[int]()
	_ = g.Define("suffix", 1)
	mc := g.Push(ScopeMulticlass)
	_ = mc.Define("NAME", 2)
	block := mc.Push(ScopeBlock)

	if _, ok := block.LookupLocal("suffix"); ok {
		t.Error("global names must not be visible to LookupLocal")
	}
	if v, ok := block.LookupLocal("NAME"); !ok || v != 2 {
		t.Errorf("expected multiclass binding, got %d, %v", v, ok)
	}
	if _, ok := g.LookupLocal("suffix"); ok {
		t.Error("LookupLocal on the global scope finds nothing")
	}
}

func TestNamesAndDepth(t *testing.T) {
	g := NewGlobal[int]()
	s := g.Push(ScopeClass).Push(ScopeBody)
	_ = s.Define("b", 1)
	_ = s.Define("a", 2)

	names := s.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Errorf("expected definition order, got %v", names)
	}
	if s.Depth() != 2 || !g.IsGlobal() || s.IsGlobal() {
		t.Errorf("unexpected depth %d", s.Depth())
	}
	if s.Kind() != ScopeBody || s.Kind().String() != "body" {
		t.Errorf("unexpected kind %v", s.Kind())
	}
}

func TestGetIgnoresEnclosingScopes(t *testing.T) {
	g := NewGlobal[int]()
	_ = g.Define("x", 1)
	inner := g.Push(ScopeBody)
	if _, ok := inner.Get("x"); ok {
		t.Error("Get should not search the enclosing scope")
	}
	_ = inner.Define("x", 2)
	if v, ok := inner.Get("x"); !ok || v != 2 {
		t.Errorf("expected local binding, got %d, %v", v, ok)
	}
}
