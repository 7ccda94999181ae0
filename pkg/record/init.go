package record

import (
	"strconv"
	"strings"
)

// Init is a TableGen value. Concrete inits are final values; symbolic ones
// (variable references, operators, slices) are rewritten by Resolve until
// they become concrete.
type Init interface {
	// String renders the value in TableGen syntax.
	String() string
	// Type is the static type, or nil when unknown.
	Type() Type
	// IsConcrete reports whether the value contains no symbolic parts.
	// The unset value counts as concrete.
	IsConcrete() bool
	// Resolve substitutes what r knows and folds what becomes foldable.
	Resolve(r Resolver) (Init, error)
}

// UnsetInit is the uninitialized value ?
type UnsetInit struct{}

// Unset is the shared uninitialized value.
var Unset = &UnsetInit{}

func (*UnsetInit) String() string                   { return "?" }
func (*UnsetInit) Type() Type                       { return nil }
func (*UnsetInit) IsConcrete() bool                 { return true }
func (u *UnsetInit) Resolve(Resolver) (Init, error) { return u, nil }

// IsUnset reports whether v is the uninitialized value.
func IsUnset(v Init) bool {
	_, ok := v.(*UnsetInit)
	return ok
}

// BitInit is a single bit
type BitInit struct {
	Value bool
}

var (
	bitZero = &BitInit{Value: false}
	bitOne  = &BitInit{Value: true}
)

// NewBit returns the shared bit value for b.
func NewBit(b bool) *BitInit {
	if b {
		return bitOne
	}
	return bitZero
}

func (b *BitInit) String() string {
	if b.Value {
		return "1"
	}
	return "0"
}
func (*BitInit) Type() Type                       { return BitType{} }
func (*BitInit) IsConcrete() bool                 { return true }
func (b *BitInit) Resolve(Resolver) (Init, error) { return b, nil }

// BitsInit is a fixed-width bit sequence. Bits[0] is the least significant
// bit; elements are BitInit, UnsetInit or per-bit references.
type BitsInit struct {
	Bits []Init
}

func (b *BitsInit) String() string {
	var sb strings.Builder
	sb.WriteString("{ ")
	for i := len(b.Bits) - 1; i >= 0; i-- {
		sb.WriteString(b.Bits[i].String())
		if i > 0 {
			sb.WriteString(", ")
		}
	}
	sb.WriteString(" }")
	return sb.String()
}

func (b *BitsInit) Type() Type { return BitsType{Width: len(b.Bits)} }

func (b *BitsInit) IsConcrete() bool {
	for _, bit := range b.Bits {
		if !bit.IsConcrete() {
			return false
		}
	}
	return true
}

func (b *BitsInit) Resolve(r Resolver) (Init, error) {
	changed := false
	bits := make([]Init, len(b.Bits))
	for i, bit := range b.Bits {
		nb, err := bit.Resolve(r)
		if err != nil {
			return nil, err
		}
		bits[i] = nb
		changed = changed || nb != bit
	}
	if !changed {
		return b, nil
	}
	return &BitsInit{Bits: bits}, nil
}

// IntValue returns the unsigned value of the bits when every bit is set.
func (b *BitsInit) IntValue() (int64, bool) {
	var v uint64
	for i, bit := range b.Bits {
		bi, ok := bit.(*BitInit)
		if !ok {
			return 0, false
		}
		if bi.Value && i < 64 {
			v |= 1 << uint(i)
		}
	}
	return int64(v), true
}

// IntInit is a 64-bit signed integer
type IntInit struct {
	Value int64
}

// NewInt creates an integer value.
func NewInt(v int64) *IntInit {
	return &IntInit{Value: v}
}

func (i *IntInit) String() string                 { return strconv.FormatInt(i.Value, 10) }
func (*IntInit) Type() Type                       { return IntType{} }
func (*IntInit) IsConcrete() bool                 { return true }
func (i *IntInit) Resolve(Resolver) (Init, error) { return i, nil }

// StringInit is a string or code value
type StringInit struct {
	Value string
	Code  bool
}

// NewString creates a string value.
func NewString(s string) *StringInit {
	return &StringInit{Value: s}
}

func (s *StringInit) String() string {
	if s.Code {
		return "[{" + s.Value + "}]"
	}
	return "\"" + s.Value + "\""
}
func (s *StringInit) Type() Type                     { return StringType{Code: s.Code} }
func (*StringInit) IsConcrete() bool                 { return true }
func (s *StringInit) Resolve(Resolver) (Init, error) { return s, nil }

// ListInit is a list of values with a common element type
type ListInit struct {
	Elems []Init
	Elem  Type
}

// NewList creates a list, inferring the element type from the first
// element when elem is nil.
func NewList(elems []Init, elem Type) *ListInit {
	if elem == nil {
		for _, e := range elems {
			if t := e.Type(); t != nil {
				elem = t
				break
			}
		}
	}
	return &ListInit{Elems: elems, Elem: elem}
}

func (l *ListInit) String() string {
	parts := make([]string, len(l.Elems))
	for i, e := range l.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (l *ListInit) Type() Type { return ListType{Elem: l.Elem} }

func (l *ListInit) IsConcrete() bool {
	for _, e := range l.Elems {
		if !e.IsConcrete() {
			return false
		}
	}
	return true
}

func (l *ListInit) Resolve(r Resolver) (Init, error) {
	elems, changed, err := resolveAll(l.Elems, r)
	if err != nil {
		return nil, err
	}
	if !changed {
		return l, nil
	}
	return &ListInit{Elems: elems, Elem: l.Elem}, nil
}

// DagInit is a DAG: an operator plus optionally named arguments
type DagInit struct {
	Op     Init
	OpName string
	Args   []Init
	Names  []string
}

func (d *DagInit) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(d.Op.String())
	if d.OpName != "" {
		sb.WriteString(":$" + d.OpName)
	}
	for i, a := range d.Args {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
		if d.Names[i] != "" {
			sb.WriteString(":$" + d.Names[i])
		}
	}
	sb.WriteString(")")
	return sb.String()
}

func (*DagInit) Type() Type { return DagType{} }

func (d *DagInit) IsConcrete() bool {
	if !d.Op.IsConcrete() {
		return false
	}
	for _, a := range d.Args {
		if !a.IsConcrete() {
			return false
		}
	}
	return true
}

func (d *DagInit) Resolve(r Resolver) (Init, error) {
	op, err := d.Op.Resolve(r)
	if err != nil {
		return nil, err
	}
	args, changed, err := resolveAll(d.Args, r)
	if err != nil {
		return nil, err
	}
	if !changed && op == d.Op {
		return d, nil
	}
	return &DagInit{Op: op, OpName: d.OpName, Args: args, Names: d.Names}, nil
}

// argIndex finds an argument by name.
func (d *DagInit) argIndex(name string) int {
	for i, n := range d.Names {
		if n == name {
			return i
		}
	}
	return -1
}

func (d *DagInit) clone() *DagInit {
	return &DagInit{
		Op:     d.Op,
		OpName: d.OpName,
		Args:   append([]Init(nil), d.Args...),
		Names:  append([]string(nil), d.Names...),
	}
}

// DefInit is a reference to a def
type DefInit struct {
	Def *Record
}

func (d *DefInit) String() string                 { return d.Def.Name }
func (d *DefInit) Type() Type                     { return RecordType{Rec: d.Def} }
func (*DefInit) IsConcrete() bool                 { return true }
func (d *DefInit) Resolve(Resolver) (Init, error) { return d, nil }

// LiteralOpInit is a string literal used as a DAG operator. Each occurrence
// carries its own identity, and two of them are equal only when they are
// the same occurrence.
type LiteralOpInit struct {
	Text string
	ID   int
}

func (l *LiteralOpInit) String() string                 { return "\"" + l.Text + "\"" }
func (*LiteralOpInit) Type() Type                       { return StringType{} }
func (*LiteralOpInit) IsConcrete() bool                 { return true }
func (l *LiteralOpInit) Resolve(Resolver) (Init, error) { return l, nil }

func resolveAll(in []Init, r Resolver) ([]Init, bool, error) {
	out := make([]Init, len(in))
	changed := false
	for i, v := range in {
		nv, err := v.Resolve(r)
		if err != nil {
			return nil, false, err
		}
		out[i] = nv
		changed = changed || nv != v
	}
	return out, changed, nil
}

// IsComplete reports whether v is concrete and contains no unset value.
func IsComplete(v Init) bool {
	switch x := v.(type) {
	case *UnsetInit:
		return false
	case *BitsInit:
		for _, b := range x.Bits {
			if !IsComplete(b) {
				return false
			}
		}
		return true
	case *ListInit:
		for _, e := range x.Elems {
			if !IsComplete(e) {
				return false
			}
		}
		return true
	case *DagInit:
		if !IsComplete(x.Op) {
			return false
		}
		for _, a := range x.Args {
			if !IsComplete(a) {
				return false
			}
		}
		return true
	}
	return v.IsConcrete()
}
