package record

import (
	"fmt"
	"strings"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// VarInit references a named value: a template argument (qualified as
// Class:arg), a field of the record being built, NAME, or a variable bound
// by an operator such as !foreach.
type VarInit struct {
	Name string
	T    Type
}

func (v *VarInit) String() string { return v.Name }
func (v *VarInit) Type() Type     { return v.T }
func (*VarInit) IsConcrete() bool { return false }

func (v *VarInit) Resolve(r Resolver) (Init, error) {
	val, err := r.Lookup(v)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return v, nil
	}
	return val, nil
}

// VarBitInit is one bit of a symbolic value.
type VarBitInit struct {
	Var Init
	Bit int
}

func (v *VarBitInit) String() string { return fmt.Sprintf("%s{%d}", v.Var, v.Bit) }
func (*VarBitInit) Type() Type       { return BitType{} }
func (*VarBitInit) IsConcrete() bool { return false }

func (v *VarBitInit) Resolve(r Resolver) (Init, error) {
	val, err := v.Var.Resolve(r)
	if err != nil {
		return nil, err
	}
	if b, ok := bitOf(val, v.Bit); ok {
		return b, nil
	}
	if val == v.Var {
		return v, nil
	}
	return &VarBitInit{Var: val, Bit: v.Bit}, nil
}

// bitOf extracts bit i of a concrete numeric value.
func bitOf(v Init, i int) (Init, bool) {
	switch x := v.(type) {
	case *IntInit:
		if i >= 64 {
			return NewBit(x.Value < 0), true
		}
		return NewBit((uint64(x.Value)>>uint(i))&1 == 1), true
	case *BitInit:
		if i == 0 {
			return x, true
		}
	case *BitsInit:
		if i < len(x.Bits) {
			return x.Bits[i], true
		}
	case *UnsetInit:
		return Unset, true
	}
	return nil, false
}

// FieldInit is x.field
type FieldInit struct {
	Rec   Init
	Field string
	Loc   diag.SourceLoc
}

func (f *FieldInit) String() string { return f.Rec.String() + "." + f.Field }
func (*FieldInit) IsConcrete() bool { return false }

func (f *FieldInit) Type() Type {
	if rt, ok := f.Rec.Type().(RecordType); ok {
		if rv := rt.Rec.GetValue(f.Field); rv != nil {
			return rv.Type
		}
	}
	return nil
}

func (f *FieldInit) Resolve(r Resolver) (Init, error) {
	rec, err := f.Rec.Resolve(r)
	if err != nil {
		return nil, err
	}
	if d, ok := rec.(*DefInit); ok {
		rv := d.Def.GetValue(f.Field)
		if rv == nil || rv.IsTemplateArg {
			return nil, diag.ErrorAt(f.Loc, diag.KindUndefinedSymbol, "record '%s' has no field '%s'", d.Def.Name, f.Field)
		}
		return rv.Value, nil
	}
	if rec == f.Rec {
		return f, nil
	}
	return &FieldInit{Rec: rec, Field: f.Field, Loc: f.Loc}, nil
}

// RangeInit is one index or inclusive range of a slice.
type RangeInit struct {
	Start Init
	End   Init // nil for a single index
}

func (ri RangeInit) String() string {
	if ri.End == nil {
		return ri.Start.String()
	}
	return ri.Start.String() + "..." + ri.End.String()
}

func resolveRanges(ranges []RangeInit, r Resolver) ([]RangeInit, error) {
	out := make([]RangeInit, len(ranges))
	for i, ri := range ranges {
		s, err := ri.Start.Resolve(r)
		if err != nil {
			return nil, err
		}
		out[i].Start = s
		if ri.End != nil {
			e, err := ri.End.Resolve(r)
			if err != nil {
				return nil, err
			}
			out[i].End = e
		}
	}
	return out, nil
}

// ExpandRanges turns concrete ranges into the written index sequence.
// It returns ok=false while some bound is still symbolic.
func ExpandRanges(ranges []RangeInit) ([]int, bool, error) {
	var idx []int
	for _, ri := range ranges {
		s, ok := intOf(ri.Start)
		if !ok {
			return nil, false, nil
		}
		if ri.End == nil {
			if s < 0 {
				return nil, false, diag.Errorf(diag.KindType, "negative index %d", s)
			}
			idx = append(idx, int(s))
			continue
		}
		e, ok := intOf(ri.End)
		if !ok {
			return nil, false, nil
		}
		if s < 0 || e < 0 {
			return nil, false, diag.Errorf(diag.KindType, "negative index in range %d...%d", s, e)
		}
		if s <= e {
			for i := s; i <= e; i++ {
				idx = append(idx, int(i))
			}
		} else {
			for i := s; i >= e; i-- {
				idx = append(idx, int(i))
			}
		}
	}
	return idx, true, nil
}

func formatRanges(ranges []RangeInit) string {
	parts := make([]string, len(ranges))
	for i, ri := range ranges {
		parts[i] = ri.String()
	}
	return strings.Join(parts, ", ")
}

// BitSliceInit is x{ranges}. The written order is most significant first,
// so x{7-4} has x{4} as its bit 0.
type BitSliceInit struct {
	X      Init
	Ranges []RangeInit
	Loc    diag.SourceLoc
}

func (b *BitSliceInit) String() string { return b.X.String() + "{" + formatRanges(b.Ranges) + "}" }
func (*BitSliceInit) IsConcrete() bool { return false }

func (b *BitSliceInit) Type() Type {
	n := 0
	for _, ri := range b.Ranges {
		if ri.End == nil {
			n++
			continue
		}
		s, ok1 := intOf(ri.Start)
		e, ok2 := intOf(ri.End)
		if !ok1 || !ok2 {
			return nil
		}
		if s > e {
			s, e = e, s
		}
		n += int(e-s) + 1
	}
	return BitsType{Width: n}
}

func (b *BitSliceInit) Resolve(r Resolver) (Init, error) {
	x, err := b.X.Resolve(r)
	if err != nil {
		return nil, err
	}
	ranges, err := resolveRanges(b.Ranges, r)
	if err != nil {
		return nil, err
	}
	idx, ok, err := ExpandRanges(ranges)
	if err != nil {
		return nil, diag.At(b.Loc, err)
	}
	if ok {
		if bits, done, err := sliceBits(x, idx); err != nil {
			return nil, diag.At(b.Loc, err)
		} else if done {
			return bits, nil
		}
	}
	return &BitSliceInit{X: x, Ranges: ranges, Loc: b.Loc}, nil
}

// sliceBits extracts bits idx (written order) from x. It returns
// done=false when x is still symbolic.
func sliceBits(x Init, idx []int) (Init, bool, error) {
	width := -1
	switch v := x.(type) {
	case *BitsInit:
		width = len(v.Bits)
	case *BitInit:
		width = 1
	case *IntInit:
		width = 64
	case *UnsetInit:
	default:
		if bt, ok := x.Type().(BitsType); ok {
			width = bt.Width
		} else if !TypeCompatible(x.Type(), IntType{}) {
			return nil, false, diag.Errorf(diag.KindType, "cannot take a bit slice of '%s'", x)
		} else {
			return nil, false, nil
		}
	}
	bits := make([]Init, len(idx))
	for i := range idx {
		bit := idx[len(idx)-1-i]
		if width >= 0 && bit >= width {
			return nil, false, diag.Errorf(diag.KindType, "bit index %d out of range for '%s'", bit, x)
		}
		if b, ok := bitOf(x, bit); ok {
			bits[i] = b
		} else {
			bits[i] = &VarBitInit{Var: x, Bit: bit}
		}
	}
	return &BitsInit{Bits: bits}, true, nil
}

// ListSliceInit is x[ranges]; Single marks x[i] which yields one element.
type ListSliceInit struct {
	X      Init
	Ranges []RangeInit
	Single bool
	Loc    diag.SourceLoc
}

func (l *ListSliceInit) String() string { return l.X.String() + "[" + formatRanges(l.Ranges) + "]" }
func (*ListSliceInit) IsConcrete() bool { return false }

func (l *ListSliceInit) Type() Type {
	lt, ok := l.X.Type().(ListType)
	if !ok {
		return nil
	}
	if l.Single {
		return lt.Elem
	}
	return lt
}

func (l *ListSliceInit) Resolve(r Resolver) (Init, error) {
	x, err := l.X.Resolve(r)
	if err != nil {
		return nil, err
	}
	ranges, err := resolveRanges(l.Ranges, r)
	if err != nil {
		return nil, err
	}
	list, isList := x.(*ListInit)
	if !isList && x.IsConcrete() {
		return nil, diag.ErrorAt(l.Loc, diag.KindType, "cannot index '%s', it is not a list", x)
	}
	idx, ok, err := ExpandRanges(ranges)
	if err != nil {
		return nil, diag.At(l.Loc, err)
	}
	if !ok || !isList {
		return &ListSliceInit{X: x, Ranges: ranges, Single: l.Single, Loc: l.Loc}, nil
	}
	elems := make([]Init, len(idx))
	for i, n := range idx {
		if n >= len(list.Elems) {
			return nil, diag.ErrorAt(l.Loc, diag.KindType, "list index %d out of range for list of size %d", n, len(list.Elems))
		}
		elems[i] = list.Elems[n]
	}
	if l.Single {
		return elems[0], nil
	}
	return &ListInit{Elems: elems, Elem: list.Elem}, nil
}

// ClassInstInit is an anonymous instantiation Class<args> used as a value.
// Once every argument is concrete it becomes a reference to an anonymous
// def. Args has one slot per template argument; nil means "use the default".
type ClassInstInit struct {
	Class *Record
	Args  []Init
	Loc   diag.SourceLoc
}

func (c *ClassInstInit) String() string {
	var parts []string
	for _, a := range c.Args {
		if a == nil {
			break
		}
		parts = append(parts, a.String())
	}
	if len(parts) == 0 {
		return c.Class.Name
	}
	return c.Class.Name + "<" + strings.Join(parts, ", ") + ">"
}

func (c *ClassInstInit) Type() Type     { return RecordType{Rec: c.Class} }
func (*ClassInstInit) IsConcrete() bool { return false }

func (c *ClassInstInit) Resolve(r Resolver) (Init, error) {
	args := make([]Init, len(c.Args))
	concrete := true
	changed := false
	for i, a := range c.Args {
		if a == nil {
			continue
		}
		na, err := a.Resolve(r)
		if err != nil {
			return nil, err
		}
		args[i] = na
		changed = changed || na != a
		concrete = concrete && na.IsConcrete()
	}
	if concrete {
		def, err := r.Keeper().InstantiateAnonymous(c.Class, args, c.Loc)
		if err != nil {
			return nil, err
		}
		return &DefInit{Def: def}, nil
	}
	if !changed {
		return c, nil
	}
	return &ClassInstInit{Class: c.Class, Args: args, Loc: c.Loc}, nil
}

func intOf(v Init) (int64, bool) {
	switch x := v.(type) {
	case *IntInit:
		return x.Value, true
	case *BitInit:
		if x.Value {
			return 1, true
		}
		return 0, true
	case *BitsInit:
		return x.IntValue()
	}
	return 0, false
}
