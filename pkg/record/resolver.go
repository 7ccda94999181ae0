package record

import (
	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// Resolver supplies values for variable references during Resolve.
type Resolver interface {
	// Lookup returns the value bound to v, or nil when v is not known here.
	Lookup(v *VarInit) (Init, error)
	// IsFinal reports whether this is the last resolution of a def. In final
	// mode an operator applied to an unset value is an error instead of
	// being left for later.
	IsFinal() bool
	// Keeper gives access to defs and classes (for !cast, anonymous
	// instances and !exists).
	Keeper() *RecordKeeper
}

type mapEntry struct {
	value    Init
	resolved bool
}

// MapResolver substitutes a fixed set of names, typically the template
// arguments of a class being instantiated. Bound values are themselves
// resolved against the map, so defaults may refer to earlier arguments.
type MapResolver struct {
	rk      *RecordKeeper
	entries map[string]*mapEntry
	final   bool
}

// NewMapResolver creates an empty, non-final map resolver.
func NewMapResolver(rk *RecordKeeper) *MapResolver {
	return &MapResolver{rk: rk, entries: make(map[string]*mapEntry)}
}

// Set binds name to v.
func (m *MapResolver) Set(name string, v Init) {
	m.entries[name] = &mapEntry{value: v}
}

// SetFinal switches final mode on or off.
func (m *MapResolver) SetFinal(final bool) {
	m.final = final
}

func (m *MapResolver) Lookup(v *VarInit) (Init, error) {
	e, ok := m.entries[v.Name]
	if !ok {
		return nil, nil
	}
	if !e.resolved {
		// mark first so a self-referencing default terminates
		e.resolved = true
		nv, err := e.value.Resolve(m)
		if err != nil {
			return nil, err
		}
		e.value = nv
	}
	return e.value, nil
}

func (m *MapResolver) IsFinal() bool         { return m.final }
func (m *MapResolver) Keeper() *RecordKeeper { return m.rk }

// RecordResolver resolves references to the fields of one record, and NAME
// to the record's name. A field that (transitively) refers to itself is a
// CyclicFieldReferenceError.
type RecordResolver struct {
	rk       *RecordKeeper
	rec      *Record
	final    bool
	stack    []string
	inStack  map[string]bool
	resolved map[string]Init
}

// NewRecordResolver creates a resolver over rec's fields.
func NewRecordResolver(rk *RecordKeeper, rec *Record, final bool) *RecordResolver {
	return &RecordResolver{
		rk:       rk,
		rec:      rec,
		final:    final,
		inStack:  make(map[string]bool),
		resolved: make(map[string]Init),
	}
}

func (rr *RecordResolver) Lookup(v *VarInit) (Init, error) {
	if v.Name == "NAME" && rr.rec.GetValue("NAME") == nil {
		return NewString(rr.rec.Name), nil
	}
	rv := rr.rec.GetValue(v.Name)
	if rv == nil || rv.IsTemplateArg {
		return nil, nil
	}
	if val, ok := rr.resolved[v.Name]; ok {
		return val, nil
	}
	if rr.inStack[v.Name] {
		chain := append(append([]string(nil), rr.stack...), v.Name)
		return nil, &diag.Error{
			Kind:   diag.KindCyclicFieldReference,
			Msg:    "cyclic reference between fields of '" + rr.rec.Name + "': " + joinArrow(chain),
			Record: rr.rec.Name,
		}
	}
	rr.inStack[v.Name] = true
	rr.stack = append(rr.stack, v.Name)
	val, err := rv.Value.Resolve(rr)
	rr.stack = rr.stack[:len(rr.stack)-1]
	delete(rr.inStack, v.Name)
	if err != nil {
		return nil, err
	}
	if conv, ok := Convert(val, rv.Type); ok {
		val = conv
	}
	rr.resolved[v.Name] = val
	return val, nil
}

func (rr *RecordResolver) IsFinal() bool         { return rr.final }
func (rr *RecordResolver) Keeper() *RecordKeeper { return rr.rk }

func joinArrow(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += " -> "
		}
		s += n
	}
	return s
}

// ShadowResolver hides some names from an inner resolver. Operators that
// bind their own variables (!foreach, !foldl, !filter) use it so an outer
// binding of the same name does not leak into their body.
type ShadowResolver struct {
	inner  Resolver
	shadow map[string]bool
}

// NewShadowResolver hides names from inner.
func NewShadowResolver(inner Resolver, names ...string) *ShadowResolver {
	s := &ShadowResolver{inner: inner, shadow: make(map[string]bool)}
	for _, n := range names {
		s.shadow[n] = true
	}
	return s
}

func (s *ShadowResolver) Lookup(v *VarInit) (Init, error) {
	if s.shadow[v.Name] {
		return nil, nil
	}
	return s.inner.Lookup(v)
}

func (s *ShadowResolver) IsFinal() bool         { return s.inner.IsFinal() }
func (s *ShadowResolver) Keeper() *RecordKeeper { return s.inner.Keeper() }

// bindResolver binds a few names on top of an outer resolver.
type bindResolver struct {
	outer    Resolver
	bindings map[string]Init
}

func (b *bindResolver) Lookup(v *VarInit) (Init, error) {
	if val, ok := b.bindings[v.Name]; ok {
		return val, nil
	}
	return b.outer.Lookup(v)
}

func (b *bindResolver) IsFinal() bool         { return b.outer.IsFinal() }
func (b *bindResolver) Keeper() *RecordKeeper { return b.outer.Keeper() }

// nopResolver knows no names; resolving with it only folds operators.
type nopResolver struct {
	rk    *RecordKeeper
	final bool
}

func (nopResolver) Lookup(*VarInit) (Init, error) { return nil, nil }
func (n nopResolver) IsFinal() bool               { return n.final }
func (n nopResolver) Keeper() *RecordKeeper       { return n.rk }

// Fold resolves v with no bindings, folding every operator whose operands
// are already concrete.
func Fold(rk *RecordKeeper, v Init) (Init, error) {
	return v.Resolve(nopResolver{rk: rk})
}

// FoldFinal is Fold in final mode.
func FoldFinal(rk *RecordKeeper, v Init) (Init, error) {
	return v.Resolve(nopResolver{rk: rk, final: true})
}
