// Package record implements the TableGen data model: types, values (inits),
// the bang operator table, resolvers, records and the record keeper.
package record

import "fmt"

// Type is the interface for all value types
type Type interface {
	implType()
	String() string
}

// BitType is bit
type BitType struct{}

// BitsType is bits<Width>
type BitsType struct {
	Width int
}

// IntType is int
type IntType struct{}

// StringType is string; Code marks the `code` spelling
type StringType struct {
	Code bool
}

// ListType is list<Elem>; Elem is nil for an untyped empty list
type ListType struct {
	Elem Type
}

// DagType is dag
type DagType struct{}

// RecordType is a class type, or the type of a def reference
type RecordType struct {
	Rec *Record
}

func (BitType) implType()    {}
func (BitsType) implType()   {}
func (IntType) implType()    {}
func (StringType) implType() {}
func (ListType) implType()   {}
func (DagType) implType()    {}
func (RecordType) implType() {}

func (BitType) String() string    { return "bit" }
func (t BitsType) String() string { return fmt.Sprintf("bits<%d>", t.Width) }
func (IntType) String() string    { return "int" }
func (t StringType) String() string {
	if t.Code {
		return "code"
	}
	return "string"
}
func (t ListType) String() string {
	if t.Elem == nil {
		return "list<?>"
	}
	return fmt.Sprintf("list<%s>", t.Elem)
}
func (DagType) String() string      { return "dag" }
func (t RecordType) String() string { return t.Rec.Name }

// typeName prints a possibly unknown type.
func typeName(t Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

func isNumeric(t Type) bool {
	switch t.(type) {
	case BitType, BitsType, IntType:
		return true
	}
	return false
}

func isStringType(t Type) bool {
	_, ok := t.(StringType)
	return ok
}

// TypeCompatible reports whether a value of type from may be stored in a
// slot of type to. A nil type is unknown and compatible with everything;
// the concrete value is checked again once it resolves.
func TypeCompatible(from, to Type) bool {
	if from == nil || to == nil {
		return true
	}
	switch t := to.(type) {
	case BitType, BitsType, IntType:
		return isNumeric(from)
	case StringType:
		return isStringType(from)
	case ListType:
		f, ok := from.(ListType)
		return ok && TypeCompatible(f.Elem, t.Elem)
	case DagType:
		_, ok := from.(DagType)
		return ok
	case RecordType:
		f, ok := from.(RecordType)
		return ok && (f.Rec == t.Rec || f.Rec.IsSubClassOf(t.Rec))
	}
	return false
}

// SameType reports whether two declared types are identical.
func SameType(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch x := a.(type) {
	case StringType:
		return isStringType(b)
	case ListType:
		y, ok := b.(ListType)
		return ok && SameType(x.Elem, y.Elem)
	case RecordType:
		y, ok := b.(RecordType)
		return ok && x.Rec == y.Rec
	}
	return a == b
}

// Convert converts v to type t. It returns false when the value cannot be
// represented; symbolic values are accepted when their type is compatible,
// and bits conversions of symbolic values yield per-bit references.
func Convert(v Init, t Type) (Init, bool) {
	if t == nil {
		return v, true
	}
	if _, ok := v.(*UnsetInit); ok {
		return v, true
	}
	switch tt := t.(type) {
	case BitType:
		return convertToBit(v)
	case BitsType:
		return convertToBits(v, tt.Width)
	case IntType:
		return convertToInt(v)
	case StringType:
		switch x := v.(type) {
		case *StringInit:
			return x, true
		case *LiteralOpInit:
			return NewString(x.Text), true
		}
	case ListType:
		if l, ok := v.(*ListInit); ok {
			elems := make([]Init, len(l.Elems))
			for i, e := range l.Elems {
				c, ok := Convert(e, tt.Elem)
				if !ok {
					return nil, false
				}
				elems[i] = c
			}
			elem := tt.Elem
			if elem == nil {
				elem = l.Elem
			}
			return &ListInit{Elems: elems, Elem: elem}, true
		}
	case DagType:
		if d, ok := v.(*DagInit); ok {
			return d, true
		}
	case RecordType:
		if d, ok := v.(*DefInit); ok {
			if d.Def == tt.Rec || d.Def.IsSubClassOf(tt.Rec) {
				return d, true
			}
			return nil, false
		}
	}
	if !v.IsConcrete() && TypeCompatible(v.Type(), t) {
		if bt, ok := t.(BitsType); ok {
			return symbolicBits(v, bt.Width), true
		}
		return v, true
	}
	return nil, false
}

func convertToBit(v Init) (Init, bool) {
	switch x := v.(type) {
	case *BitInit:
		return x, true
	case *IntInit:
		if x.Value == 0 || x.Value == 1 {
			return NewBit(x.Value == 1), true
		}
	case *BitsInit:
		if len(x.Bits) == 1 {
			return x.Bits[0], true
		}
	}
	if !v.IsConcrete() && TypeCompatible(v.Type(), BitType{}) {
		return v, true
	}
	return nil, false
}

func convertToInt(v Init) (Init, bool) {
	switch x := v.(type) {
	case *IntInit:
		return x, true
	case *BitInit:
		if x.Value {
			return NewInt(1), true
		}
		return NewInt(0), true
	case *BitsInit:
		if n, ok := x.IntValue(); ok {
			return NewInt(n), true
		}
		if !x.IsConcrete() {
			return x, true
		}
		return nil, false
	}
	if !v.IsConcrete() && TypeCompatible(v.Type(), IntType{}) {
		return v, true
	}
	return nil, false
}

func convertToBits(v Init, width int) (Init, bool) {
	switch x := v.(type) {
	case *BitsInit:
		if len(x.Bits) == width {
			return x, true
		}
		return nil, false
	case *BitInit:
		if width == 1 {
			return &BitsInit{Bits: []Init{x}}, true
		}
		return nil, false
	case *IntInit:
		if !fitsInBits(x.Value, width) {
			return nil, false
		}
		bits := make([]Init, width)
		for i := 0; i < width; i++ {
			bits[i] = NewBit(i < 64 && (uint64(x.Value)>>uint(i))&1 == 1)
		}
		return &BitsInit{Bits: bits}, true
	}
	if !v.IsConcrete() && TypeCompatible(v.Type(), BitsType{Width: width}) {
		return symbolicBits(v, width), true
	}
	return nil, false
}

// fitsInBits accepts values representable as width-bit unsigned or signed.
func fitsInBits(v int64, width int) bool {
	if width >= 64 {
		return true
	}
	if width == 0 {
		return v == 0
	}
	return v>>uint(width) == 0 || v>>uint(width-1) == -1
}

func symbolicBits(v Init, width int) *BitsInit {
	bits := make([]Init, width)
	for i := range bits {
		bits[i] = &VarBitInit{Var: v, Bit: i}
	}
	return &BitsInit{Bits: bits}
}
