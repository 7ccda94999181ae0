package record

import (
	"strconv"
	"strings"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// Folding functions receive concrete arguments. Returning (nil, nil) keeps
// the operator symbolic for a later resolution.

func intArgs(o *OpInit, args []Init) ([]int64, error) {
	out := make([]int64, len(args))
	for i, a := range args {
		n, ok := intOf(a)
		if !ok {
			return nil, o.errorf("expected an integer operand, got '%s'", a)
		}
		out[i] = n
	}
	return out, nil
}

func foldArith(o *OpInit, args []Init, _ Resolver) (Init, error) {
	ns, err := intArgs(o, args)
	if err != nil {
		return nil, err
	}
	acc := ns[0]
	for _, n := range ns[1:] {
		switch o.Op {
		case "add":
			acc += n
		case "sub":
			acc -= n
		case "mul":
			acc *= n
		case "div":
			if n == 0 {
				return nil, o.errorf("division by zero")
			}
			if acc == -1<<63 && n == -1 {
				// wraps like the other operators
				continue
			}
			acc /= n
		case "and":
			acc &= n
		case "or":
			acc |= n
		case "xor":
			acc ^= n
		case "shl":
			if n < 0 || n > 63 {
				acc = 0
			} else {
				acc = int64(uint64(acc) << uint(n))
			}
		case "srl":
			if n < 0 || n > 63 {
				acc = 0
			} else {
				acc = int64(uint64(acc) >> uint(n))
			}
		case "sra":
			if n < 0 || n > 63 {
				if acc < 0 {
					acc = -1
				} else {
					acc = 0
				}
			} else {
				acc >>= uint(n)
			}
		}
	}
	return NewInt(acc), nil
}

func foldNot(o *OpInit, args []Init, _ Resolver) (Init, error) {
	ns, err := intArgs(o, args)
	if err != nil {
		return nil, err
	}
	return NewBit(ns[0] == 0), nil
}

func foldLog2(o *OpInit, args []Init, _ Resolver) (Init, error) {
	ns, err := intArgs(o, args)
	if err != nil {
		return nil, err
	}
	if ns[0] <= 0 {
		return nil, o.errorf("logarithm of non-positive value %d", ns[0])
	}
	n := int64(0)
	for v := uint64(ns[0]); v > 1; v >>= 1 {
		n++
	}
	return NewInt(n), nil
}

// Equal compares two concrete values structurally. Numeric values compare
// by integer value; string operators of dags compare by occurrence; defs by
// identity. Values of unrelated kinds are a TypeError.
func Equal(a, b Init) (bool, error) {
	if x, ok := intOf(a); ok {
		if y, ok := intOf(b); ok {
			return x == y, nil
		}
		return false, mismatch(a, b)
	}
	switch x := a.(type) {
	case *StringInit:
		switch y := b.(type) {
		case *StringInit:
			return x.Value == y.Value, nil
		case *LiteralOpInit:
			return false, nil
		}
	case *LiteralOpInit:
		switch y := b.(type) {
		case *LiteralOpInit:
			return x.ID == y.ID, nil
		case *StringInit:
			return false, nil
		}
	case *DefInit:
		if y, ok := b.(*DefInit); ok {
			return x.Def == y.Def, nil
		}
	case *ListInit:
		if y, ok := b.(*ListInit); ok {
			if len(x.Elems) != len(y.Elems) {
				return false, nil
			}
			for i := range x.Elems {
				eq, err := Equal(x.Elems[i], y.Elems[i])
				if err != nil || !eq {
					return false, err
				}
			}
			return true, nil
		}
	case *DagInit:
		if y, ok := b.(*DagInit); ok {
			if !SameOperator(x.Op, y.Op) || len(x.Args) != len(y.Args) {
				return false, nil
			}
			for i := range x.Args {
				if x.Names[i] != y.Names[i] {
					return false, nil
				}
				eq, err := Equal(x.Args[i], y.Args[i])
				if err != nil || !eq {
					return false, err
				}
			}
			return true, nil
		}
	case *UnsetInit:
		return IsUnset(b), nil
	}
	return false, mismatch(a, b)
}

func mismatch(a, b Init) error {
	return diag.Errorf(diag.KindType, "cannot compare '%s' of type '%s' with '%s' of type '%s'",
		a, typeName(a.Type()), b, typeName(b.Type()))
}

// SameOperator reports whether two dag operators are the same: the same
// def, or the same occurrence of a string literal.
func SameOperator(a, b Init) bool {
	switch x := a.(type) {
	case *DefInit:
		y, ok := b.(*DefInit)
		return ok && x.Def == y.Def
	case *LiteralOpInit:
		y, ok := b.(*LiteralOpInit)
		return ok && x.ID == y.ID
	}
	return a == b
}

func foldCompare(o *OpInit, args []Init, _ Resolver) (Init, error) {
	a, b := args[0], args[1]
	switch o.Op {
	case "eq", "ne":
		eq, err := Equal(a, b)
		if err != nil {
			return nil, o.errorf("%v", errMsg(err))
		}
		return NewBit(eq == (o.Op == "eq")), nil
	}
	var cmp int
	if x, ok := intOf(a); ok {
		y, ok := intOf(b)
		if !ok {
			return nil, o.errorf("%v", errMsg(mismatch(a, b)))
		}
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	} else if x, ok := a.(*StringInit); ok {
		y, ok := b.(*StringInit)
		if !ok {
			return nil, o.errorf("%v", errMsg(mismatch(a, b)))
		}
		cmp = strings.Compare(x.Value, y.Value)
	} else {
		return nil, o.errorf("expected int or string operands, got '%s'", a)
	}
	var res bool
	switch o.Op {
	case "lt":
		res = cmp < 0
	case "le":
		res = cmp <= 0
	case "gt":
		res = cmp > 0
	case "ge":
		res = cmp >= 0
	}
	return NewBit(res), nil
}

func errMsg(err error) string {
	if de, ok := asDiag(err); ok {
		return de.Msg
	}
	return err.Error()
}

func foldSize(o *OpInit, args []Init, _ Resolver) (Init, error) {
	var n int
	switch x := args[0].(type) {
	case *StringInit:
		n = len(x.Value)
	case *ListInit:
		n = len(x.Elems)
	case *DagInit:
		n = len(x.Args)
	default:
		return nil, o.errorf("expected a string, list or dag, got '%s'", args[0])
	}
	if o.Op == "empty" {
		return NewBit(n == 0), nil
	}
	return NewInt(int64(n)), nil
}

// foldRepr renders a value in its printed form; a def renders as its
// full record block.
func foldRepr(_ *OpInit, args []Init, _ Resolver) (Init, error) {
	if d, ok := args[0].(*DefInit); ok {
		return NewString(FormatRecord(d.Def)), nil
	}
	return NewString(args[0].String()), nil
}

func stringArg(o *OpInit, a Init) (*StringInit, error) {
	switch x := a.(type) {
	case *StringInit:
		return x, nil
	case *LiteralOpInit:
		return NewString(x.Text), nil
	}
	return nil, o.errorf("expected a string operand, got '%s'", a)
}

func foldStrconcat(o *OpInit, args []Init, _ Resolver) (Init, error) {
	var sb strings.Builder
	code := false
	for _, a := range args {
		s, err := stringArg(o, a)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s.Value)
		code = code || s.Code
	}
	return &StringInit{Value: sb.String(), Code: code}, nil
}

func foldSubst(o *OpInit, args []Init, _ Resolver) (Init, error) {
	target, repl, val := args[0], args[1], args[2]
	if s, ok := val.(*StringInit); ok {
		t, err := stringArg(o, target)
		if err != nil {
			return nil, err
		}
		r, err := stringArg(o, repl)
		if err != nil {
			return nil, err
		}
		if t.Value == "" {
			return s, nil
		}
		return &StringInit{Value: strings.ReplaceAll(s.Value, t.Value, r.Value), Code: s.Code}, nil
	}
	if d, ok := val.(*DefInit); ok {
		if t, ok := target.(*DefInit); ok && t.Def == d.Def {
			return repl, nil
		}
		return val, nil
	}
	if eq, err := Equal(target, val); err == nil && eq {
		return repl, nil
	}
	return val, nil
}

func foldCase(o *OpInit, args []Init, _ Resolver) (Init, error) {
	s, err := stringArg(o, args[0])
	if err != nil {
		return nil, err
	}
	lo, hi, delta := rune('A'), rune('Z'), rune('a'-'A')
	if o.Op == "toupper" {
		lo, hi, delta = 'a', 'z', -delta
	}
	// ASCII letters only, so byte offsets from !find and !size still hold
	mapped := strings.Map(func(r rune) rune {
		if r >= lo && r <= hi {
			return r + delta
		}
		return r
	}, s.Value)
	return &StringInit{Value: mapped, Code: s.Code}, nil
}

func foldFind(o *OpInit, args []Init, _ Resolver) (Init, error) {
	s, err := stringArg(o, args[0])
	if err != nil {
		return nil, err
	}
	sub, err := stringArg(o, args[1])
	if err != nil {
		return nil, err
	}
	start := int64(0)
	if len(args) == 3 {
		n, ok := intOf(args[2])
		if !ok {
			return nil, o.errorf("start position must be an integer, got '%s'", args[2])
		}
		start = n
	}
	// a negative start searches from the beginning
	if start < 0 {
		start = 0
	}
	if start > int64(len(s.Value)) {
		return NewInt(-1), nil
	}
	i := strings.Index(s.Value[start:], sub.Value)
	if i < 0 {
		return NewInt(-1), nil
	}
	return NewInt(int64(i) + start), nil
}

func foldSubstr(o *OpInit, args []Init, _ Resolver) (Init, error) {
	s, err := stringArg(o, args[0])
	if err != nil {
		return nil, err
	}
	start, ok := intOf(args[1])
	if !ok {
		return nil, o.errorf("start position must be an integer, got '%s'", args[1])
	}
	if start < 0 || start > int64(len(s.Value)) {
		return nil, o.errorf("start position %d is out of range", start)
	}
	end := int64(len(s.Value))
	if len(args) == 3 {
		n, ok := intOf(args[2])
		if !ok {
			return nil, o.errorf("length must be an integer, got '%s'", args[2])
		}
		if n < 0 {
			return nil, o.errorf("length %d is negative", n)
		}
		if start+n < end {
			end = start + n
		}
	}
	return &StringInit{Value: s.Value[start:end], Code: s.Code}, nil
}

func foldInterleave(o *OpInit, args []Init, _ Resolver) (Init, error) {
	list, ok := args[0].(*ListInit)
	if !ok {
		return nil, o.errorf("expected a list, got '%s'", args[0])
	}
	sep, err := stringArg(o, args[1])
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(list.Elems))
	for i, e := range list.Elems {
		if n, ok := intOf(e); ok {
			parts[i] = strconv.FormatInt(n, 10)
			continue
		}
		s, err := stringArg(o, e)
		if err != nil {
			return nil, err
		}
		parts[i] = s.Value
	}
	return NewString(strings.Join(parts, sep.Value)), nil
}

func listArg(o *OpInit, a Init) (*ListInit, error) {
	if l, ok := a.(*ListInit); ok {
		return l, nil
	}
	return nil, o.errorf("expected a list, got '%s'", a)
}

func foldListconcat(o *OpInit, args []Init, _ Resolver) (Init, error) {
	var elems []Init
	var elem Type
	for _, a := range args {
		l, err := listArg(o, a)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			elem = l.Elem
		} else if l.Elem != nil && !TypeCompatible(l.Elem, elem) && !TypeCompatible(elem, l.Elem) {
			return nil, o.errorf("cannot concatenate lists of '%s' and '%s'", elem, l.Elem)
		}
		elems = append(elems, l.Elems...)
	}
	return &ListInit{Elems: elems, Elem: elem}, nil
}

func foldListremove(o *OpInit, args []Init, _ Resolver) (Init, error) {
	a, err := listArg(o, args[0])
	if err != nil {
		return nil, err
	}
	b, err := listArg(o, args[1])
	if err != nil {
		return nil, err
	}
	var out []Init
	for _, e := range a.Elems {
		found := false
		for _, x := range b.Elems {
			eq, err := Equal(e, x)
			if err != nil {
				return nil, o.errorf("%s", errMsg(err))
			}
			if eq {
				found = true
				break
			}
		}
		if !found {
			out = append(out, e)
		}
	}
	return &ListInit{Elems: out, Elem: a.Elem}, nil
}

func foldListsplat(o *OpInit, args []Init, _ Resolver) (Init, error) {
	n, ok := intOf(args[1])
	if !ok {
		return nil, o.errorf("count must be an integer, got '%s'", args[1])
	}
	if n < 0 {
		return nil, o.errorf("count %d is negative", n)
	}
	elems := make([]Init, n)
	for i := range elems {
		elems[i] = args[0]
	}
	return &ListInit{Elems: elems, Elem: args[0].Type()}, nil
}

func foldListflatten(o *OpInit, args []Init, _ Resolver) (Init, error) {
	l, err := listArg(o, args[0])
	if err != nil {
		return nil, err
	}
	var elems []Init
	var elem Type
	for _, e := range l.Elems {
		if inner, ok := e.(*ListInit); ok {
			elems = append(elems, inner.Elems...)
			if elem == nil {
				elem = inner.Elem
			}
			continue
		}
		elems = append(elems, e)
	}
	if lt, ok := l.Elem.(ListType); ok && lt.Elem != nil {
		elem = lt.Elem
	}
	return &ListInit{Elems: elems, Elem: elem}, nil
}

func foldHeadTail(o *OpInit, args []Init, _ Resolver) (Init, error) {
	l, err := listArg(o, args[0])
	if err != nil {
		return nil, err
	}
	if len(l.Elems) == 0 {
		return nil, o.errorf("empty list")
	}
	if o.Op == "head" {
		return l.Elems[0], nil
	}
	return &ListInit{Elems: append([]Init(nil), l.Elems[1:]...), Elem: l.Elem}, nil
}

// foldRange produces the half-open sequence from start toward end. A step
// that points away from end gives an empty list.
func foldRange(o *OpInit, args []Init, _ Resolver) (Init, error) {
	var start, end, step int64 = 0, 0, 1
	if len(args) == 1 {
		if l, ok := args[0].(*ListInit); ok {
			end = int64(len(l.Elems))
		} else if n, ok := intOf(args[0]); ok {
			end = n
		} else {
			return nil, o.errorf("expected an integer or a list, got '%s'", args[0])
		}
	} else {
		ns, err := intArgs(o, args)
		if err != nil {
			return nil, err
		}
		start, end = ns[0], ns[1]
		if len(ns) == 3 {
			step = ns[2]
		}
	}
	if step == 0 {
		return nil, o.errorf("step must be non-zero")
	}
	elems := []Init{}
	if step > 0 {
		for i := start; i < end; i += step {
			elems = append(elems, NewInt(i))
			if i > end-step {
				break
			}
		}
	} else {
		for i := start; i > end; i += step {
			elems = append(elems, NewInt(i))
			if i < end-step {
				break
			}
		}
	}
	return &ListInit{Elems: elems, Elem: IntType{}}, nil
}

func dagArg(o *OpInit, a Init) (*DagInit, error) {
	if d, ok := a.(*DagInit); ok {
		return d, nil
	}
	return nil, o.errorf("expected a dag, got '%s'", a)
}

// dagOperator turns a value into a dag operator. Strings become a fresh
// literal operator.
func dagOperator(o *OpInit, v Init, r Resolver) (Init, error) {
	switch x := v.(type) {
	case *DefInit, *LiteralOpInit:
		return x, nil
	case *StringInit:
		return r.Keeper().NewLiteralOp(x.Value), nil
	}
	return nil, o.errorf("dag operator must be a record or a string, got '%s'", v)
}

func nameOf(o *OpInit, v Init) (string, error) {
	if IsUnset(v) {
		return "", nil
	}
	s, err := stringArg(o, v)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(s.Value, "$"), nil
}

func foldDag(o *OpInit, args []Init, r Resolver) (Init, error) {
	op, err := dagOperator(o, args[0], r)
	if err != nil {
		return nil, err
	}
	vals, ok := args[1].(*ListInit)
	if !ok {
		return nil, o.errorf("expected a list of values, got '%s'", args[1])
	}
	names, ok := args[2].(*ListInit)
	if !ok {
		return nil, o.errorf("expected a list of names, got '%s'", args[2])
	}
	if len(vals.Elems) != len(names.Elems) {
		return nil, o.errorf("value list has %d elements but name list has %d", len(vals.Elems), len(names.Elems))
	}
	d := &DagInit{Op: op, Args: append([]Init(nil), vals.Elems...), Names: make([]string, len(names.Elems))}
	for i, n := range names.Elems {
		if d.Names[i], err = nameOf(o, n); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func foldCon(o *OpInit, args []Init, _ Resolver) (Init, error) {
	first, err := dagArg(o, args[0])
	if err != nil {
		return nil, err
	}
	out := first.clone()
	for _, a := range args[1:] {
		d, err := dagArg(o, a)
		if err != nil {
			return nil, err
		}
		if !SameOperator(first.Op, d.Op) {
			return nil, diag.ErrorAt(o.Loc, diag.KindIncompatibleDagOperator,
				"!con: dag operators '%s' and '%s' are not the same", first.Op, d.Op)
		}
		out.Args = append(out.Args, d.Args...)
		out.Names = append(out.Names, d.Names...)
	}
	return out, nil
}

// dagIndex finds an argument by position or by name.
func dagIndex(o *OpInit, d *DagInit, key Init) (int, error) {
	if n, ok := intOf(key); ok {
		if n < 0 || n >= int64(len(d.Args)) {
			return -1, diag.ErrorAt(o.Loc, diag.KindDagArgumentNotFound, "!%s: index %d is out of range for dag '%s'", o.Op, n, d)
		}
		return int(n), nil
	}
	name, err := nameOf(o, key)
	if err != nil {
		return -1, o.errorf("key must be an integer or a string, got '%s'", key)
	}
	i := d.argIndex(name)
	if i < 0 {
		return -1, diag.ErrorAt(o.Loc, diag.KindDagArgumentNotFound, "!%s: dag '%s' has no argument named '%s'", o.Op, d, name)
	}
	return i, nil
}

func foldGetdagarg(o *OpInit, args []Init, _ Resolver) (Init, error) {
	d, err := dagArg(o, args[0])
	if err != nil {
		return nil, err
	}
	i, err := dagIndex(o, d, args[1])
	if err != nil {
		return nil, err
	}
	v, ok := Convert(d.Args[i], o.TypeArg)
	if !ok {
		return nil, o.errorf("argument '%s' is not of type '%s'", d.Args[i], o.TypeArg)
	}
	return v, nil
}

func foldGetdagop(o *OpInit, args []Init, _ Resolver) (Init, error) {
	d, err := dagArg(o, args[0])
	if err != nil {
		return nil, err
	}
	if o.TypeArg == nil {
		return d.Op, nil
	}
	v, ok := Convert(d.Op, o.TypeArg)
	if !ok {
		return nil, o.errorf("operator '%s' is not of type '%s'", d.Op, o.TypeArg)
	}
	return v, nil
}

func foldGetdagopname(o *OpInit, args []Init, _ Resolver) (Init, error) {
	d, err := dagArg(o, args[0])
	if err != nil {
		return nil, err
	}
	if d.OpName == "" {
		return Unset, nil
	}
	return NewString(d.OpName), nil
}

func foldGetdagname(o *OpInit, args []Init, _ Resolver) (Init, error) {
	d, err := dagArg(o, args[0])
	if err != nil {
		return nil, err
	}
	i, err := dagIndex(o, d, args[1])
	if err != nil {
		return nil, err
	}
	if d.Names[i] == "" {
		return Unset, nil
	}
	return NewString(d.Names[i]), nil
}

func foldSetdagop(o *OpInit, args []Init, r Resolver) (Init, error) {
	d, err := dagArg(o, args[0])
	if err != nil {
		return nil, err
	}
	op, err := dagOperator(o, args[1], r)
	if err != nil {
		return nil, err
	}
	nd := d.clone()
	nd.Op = op
	return nd, nil
}

func foldSetdagopname(o *OpInit, args []Init, _ Resolver) (Init, error) {
	d, err := dagArg(o, args[0])
	if err != nil {
		return nil, err
	}
	name, err := nameOf(o, args[1])
	if err != nil {
		return nil, err
	}
	nd := d.clone()
	nd.OpName = name
	return nd, nil
}

func foldSetdagarg(o *OpInit, args []Init, _ Resolver) (Init, error) {
	d, err := dagArg(o, args[0])
	if err != nil {
		return nil, err
	}
	if IsUnset(args[1]) {
		return nil, o.errorf("key is uninitialized")
	}
	i, err := dagIndex(o, d, args[1])
	if err != nil {
		return nil, err
	}
	nd := d.clone()
	nd.Args[i] = args[2]
	return nd, nil
}

func foldSetdagname(o *OpInit, args []Init, _ Resolver) (Init, error) {
	d, err := dagArg(o, args[0])
	if err != nil {
		return nil, err
	}
	i, err := dagIndex(o, d, args[1])
	if err != nil {
		return nil, err
	}
	name, err := nameOf(o, args[2])
	if err != nil {
		return nil, err
	}
	nd := d.clone()
	nd.Names[i] = name
	return nd, nil
}

// isOfType reports whether a concrete value belongs to type t.
func isOfType(v Init, t Type) bool {
	if rt, ok := t.(RecordType); ok {
		d, ok := v.(*DefInit)
		return ok && (d.Def == rt.Rec || d.Def.IsSubClassOf(rt.Rec))
	}
	vt := v.Type()
	if vt == nil {
		return false
	}
	if _, ok := t.(BitsType); ok {
		_, isBits := vt.(BitsType)
		return isBits && SameType(vt, t)
	}
	return SameType(vt, t)
}

func foldIsa(o *OpInit, args []Init, _ Resolver) (Init, error) {
	return NewBit(isOfType(args[0], o.TypeArg)), nil
}

func foldExists(o *OpInit, args []Init, r Resolver) (Init, error) {
	s, err := stringArg(o, args[0])
	if err != nil {
		return nil, err
	}
	if d := r.Keeper().GetDef(s.Value); d != nil {
		return NewBit(isOfType(&DefInit{Def: d}, o.TypeArg)), nil
	}
	if r.IsFinal() {
		return NewBit(false), nil
	}
	return nil, nil
}

func foldCast(o *OpInit, args []Init, r Resolver) (Init, error) {
	v := args[0]
	switch t := o.TypeArg.(type) {
	case StringType:
		switch x := v.(type) {
		case *StringInit:
			return &StringInit{Value: x.Value, Code: t.Code}, nil
		case *LiteralOpInit:
			return NewString(x.Text), nil
		case *DefInit:
			return NewString(x.Def.Name), nil
		}
		if n, ok := intOf(v); ok {
			return NewString(strconv.FormatInt(n, 10)), nil
		}
	case RecordType:
		if s, ok := v.(*StringInit); ok {
			d := r.Keeper().GetDef(s.Value)
			if d == nil {
				if r.IsFinal() {
					return nil, diag.ErrorAt(o.Loc, diag.KindUndefinedSymbol, "undefined reference to record '%s'", s.Value)
				}
				return nil, nil
			}
			v = &DefInit{Def: d}
		}
		if d, ok := v.(*DefInit); ok {
			if d.Def != t.Rec && !d.Def.IsSubClassOf(t.Rec) {
				return nil, o.errorf("record '%s' is not a subclass of '%s'", d.Def.Name, t.Rec.Name)
			}
			return d, nil
		}
	default:
		if c, ok := Convert(v, t); ok {
			return c, nil
		}
	}
	return nil, o.errorf("cannot cast '%s' to '%s'", v, o.TypeArg)
}

func foldInitialized(_ *OpInit, args []Init, _ Resolver) (Init, error) {
	return NewBit(!IsUnset(args[0])), nil
}
