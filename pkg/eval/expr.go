package eval

import (
	"github.com/raymyers/ralph-tblgen/pkg/ast"
	"github.com/raymyers/ralph-tblgen/pkg/diag"
	"github.com/raymyers/ralph-tblgen/pkg/record"
	"github.com/raymyers/ralph-tblgen/pkg/symtab"
)

// evalExpr builds the value of an expression in the current context.
// Operators whose operands are already known are folded on the spot.
func (e *Evaluator) evalExpr(x ast.Expr) (record.Init, error) {
	v, err := e.buildExpr(x)
	if err != nil {
		return nil, err
	}
	v, err = record.Fold(e.rk, v)
	if err != nil {
		return nil, diag.At(x.Pos(), err)
	}
	return v, nil
}

func (e *Evaluator) buildExpr(x ast.Expr) (record.Init, error) {
	switch n := x.(type) {
	case *ast.Unset:
		return record.Unset, nil
	case *ast.IntLit:
		return record.NewInt(n.Value), nil
	case *ast.BoolLit:
		if n.Value {
			return record.NewInt(1), nil
		}
		return record.NewInt(0), nil
	case *ast.StringLit:
		return &record.StringInit{Value: n.Value, Code: n.Code}, nil
	case *ast.Ident:
		return e.lookup(n)
	case *ast.BitsLit:
		return e.evalBits(n)
	case *ast.ListLit:
		return e.evalList(n)
	case *ast.DagLit:
		return e.evalDag(n)
	case *ast.ClassRef:
		return e.evalClassRef(n)
	case *ast.FieldAccess:
		rec, err := e.evalExpr(n.X)
		if err != nil {
			return nil, err
		}
		if _, ok := rec.Type().(record.RecordType); !ok && rec.IsConcrete() {
			return nil, diag.ErrorAt(n.Loc, diag.KindType, "cannot access field '%s' of '%s', it is not a record", n.Field, rec)
		}
		return &record.FieldInit{Rec: rec, Field: n.Field, Loc: n.Loc}, nil
	case *ast.BitSlice:
		v, err := e.evalExpr(n.X)
		if err != nil {
			return nil, err
		}
		ranges, err := e.evalRanges(n.Ranges)
		if err != nil {
			return nil, err
		}
		return &record.BitSliceInit{X: v, Ranges: ranges, Loc: n.Loc}, nil
	case *ast.ListSlice:
		v, err := e.evalExpr(n.X)
		if err != nil {
			return nil, err
		}
		ranges, err := e.evalRanges(n.Ranges)
		if err != nil {
			return nil, err
		}
		single := len(ranges) == 1 && ranges[0].End == nil
		return &record.ListSliceInit{X: v, Ranges: ranges, Single: single, Loc: n.Loc}, nil
	case *ast.Paste:
		return e.evalPaste(n)
	case *ast.BangOp:
		return e.evalBang(n)
	case *ast.RangeList:
		return nil, diag.ErrorAt(n.Loc, diag.KindSyntax, "a range is only allowed in foreach")
	}
	return nil, diag.ErrorAt(x.Pos(), diag.KindSyntax, "unexpected expression %T", x)
}

// lookup resolves an identifier. Local bindings are searched first, with
// the fields and template arguments of the current record taking their
// place between the body's own scopes and the enclosing ones. Identifiers
// in name mode stop there and otherwise stand for their own text.
func (e *Evaluator) lookup(id *ast.Ident) (record.Init, error) {
	sc := e.scope
	for ; sc != nil && !sc.IsGlobal(); sc = sc.Pop() {
		if v, ok := sc.Get(id.Name); ok {
			return v, nil
		}
		if sc.Kind() == symtab.ScopeBody {
			if v := e.recordValue(id.Name); v != nil {
				return v, nil
			}
		}
	}
	if id.NameMode {
		return record.NewString(id.Name), nil
	}
	if v, ok := e.rk.GetGlobal(id.Name); ok {
		return v, nil
	}
	if d := e.rk.GetDef(id.Name); d != nil {
		return &record.DefInit{Def: d}, nil
	}
	if id.Name == "NAME" && e.cur != nil {
		return &record.VarInit{Name: "NAME", T: record.StringType{}}, nil
	}
	return nil, diag.ErrorAt(id.Loc, diag.KindUndefinedSymbol, "variable not defined: '%s'", id.Name)
}

// recordValue references a template argument or field of the current
// record.
func (e *Evaluator) recordValue(name string) record.Init {
	if e.cur == nil {
		return nil
	}
	if e.cur.IsClass {
		if rv := e.cur.GetValue(e.cur.Name + ":" + name); rv != nil && rv.IsTemplateArg {
			return &record.VarInit{Name: rv.Name, T: rv.Type}
		}
	}
	if rv := e.cur.GetValue(name); rv != nil && !rv.IsTemplateArg {
		return &record.VarInit{Name: rv.Name, T: rv.Type}
	}
	return nil
}

func (e *Evaluator) resolveType(t *ast.TypeRef) (record.Type, error) {
	switch t.Kind {
	case ast.TypeBit:
		return record.BitType{}, nil
	case ast.TypeBits:
		return record.BitsType{Width: t.Width}, nil
	case ast.TypeInt:
		return record.IntType{}, nil
	case ast.TypeString:
		return record.StringType{}, nil
	case ast.TypeCode:
		return record.StringType{Code: true}, nil
	case ast.TypeDag:
		return record.DagType{}, nil
	case ast.TypeList:
		elem, err := e.resolveType(t.Elem)
		if err != nil {
			return nil, err
		}
		return record.ListType{Elem: elem}, nil
	case ast.TypeClass:
		if alias, ok := e.aliases[t.Name]; ok {
			return alias, nil
		}
		if c := e.rk.GetClass(t.Name); c != nil {
			return record.RecordType{Rec: c}, nil
		}
		return nil, diag.ErrorAt(t.Loc, diag.KindUndefinedSymbol, "unknown type '%s'", t.Name)
	}
	return nil, diag.ErrorAt(t.Loc, diag.KindSyntax, "unknown type kind %d", t.Kind)
}

// evalBits builds a bit sequence from its elements, written most
// significant first. Elements that are themselves bits contribute all of
// their bits.
func (e *Evaluator) evalBits(n *ast.BitsLit) (record.Init, error) {
	var msbFirst []record.Init
	for _, el := range n.Elems {
		v, err := e.evalExpr(el)
		if err != nil {
			return nil, err
		}
		if bt, ok := v.Type().(record.BitsType); ok {
			conv, _ := record.Convert(v, bt)
			if bits, ok := conv.(*record.BitsInit); ok {
				for i := len(bits.Bits) - 1; i >= 0; i-- {
					msbFirst = append(msbFirst, bits.Bits[i])
				}
				continue
			}
		}
		b, ok := record.Convert(v, record.BitType{})
		if !ok {
			return nil, diag.ErrorAt(el.Pos(), diag.KindType, "element '%s' of a bits value is not a bit", v)
		}
		msbFirst = append(msbFirst, b)
	}
	bits := make([]record.Init, len(msbFirst))
	for i, b := range msbFirst {
		bits[len(bits)-1-i] = b
	}
	return &record.BitsInit{Bits: bits}, nil
}

func (e *Evaluator) evalList(n *ast.ListLit) (record.Init, error) {
	var elemType record.Type
	if n.ElemType != nil {
		t, err := e.resolveType(n.ElemType)
		if err != nil {
			return nil, err
		}
		elemType = t
	}
	elems := make([]record.Init, len(n.Elems))
	for i, el := range n.Elems {
		v, err := e.evalExpr(el)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	if elemType == nil {
		return &record.ListInit{Elems: elems, Elem: commonType(elems)}, nil
	}
	for i, v := range elems {
		conv, ok := record.Convert(v, elemType)
		if !ok {
			return nil, diag.ErrorAt(n.Elems[i].Pos(), diag.KindType, "list element '%s' is not of type '%s'", v, elemType)
		}
		elems[i] = conv
	}
	return &record.ListInit{Elems: elems, Elem: elemType}, nil
}

// commonType infers the element type of an untyped list literal. Records
// share their most derived common class; anything else mixed is unknown.
func commonType(elems []record.Init) record.Type {
	if len(elems) == 0 {
		return nil
	}
	t := elems[0].Type()
	for _, v := range elems[1:] {
		u := v.Type()
		if record.SameType(t, u) {
			continue
		}
		rt, ok1 := t.(record.RecordType)
		ru, ok2 := u.(record.RecordType)
		if !ok1 || !ok2 {
			return nil
		}
		t = commonClass(rt.Rec, ru.Rec)
		if t == nil {
			return nil
		}
	}
	return t
}

func commonClass(a, b *record.Record) record.Type {
	if b.IsClass && (a == b || a.IsSubClassOf(b)) {
		return record.RecordType{Rec: b}
	}
	for i := len(a.SuperClasses) - 1; i >= 0; i-- {
		sc := a.SuperClasses[i]
		if b == sc || b.IsSubClassOf(sc) {
			return record.RecordType{Rec: sc}
		}
	}
	if a.IsClass && b.IsSubClassOf(a) {
		return record.RecordType{Rec: a}
	}
	return nil
}

func (e *Evaluator) evalDag(n *ast.DagLit) (record.Init, error) {
	var op record.Init
	if lit, ok := n.Op.(*ast.StringLit); ok {
		op = e.literalOp(lit)
	} else {
		v, err := e.evalExpr(n.Op)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(*record.StringInit); ok {
			v = e.rk.NewLiteralOp(s.Value)
		}
		op = v
	}
	d := &record.DagInit{Op: op, OpName: n.OpName, Args: make([]record.Init, len(n.Args)), Names: make([]string, len(n.Args))}
	for i, a := range n.Args {
		d.Names[i] = a.Name
		if a.Value == nil {
			d.Args[i] = record.Unset
			continue
		}
		v, err := e.evalExpr(a.Value)
		if err != nil {
			return nil, err
		}
		d.Args[i] = v
	}
	return d, nil
}

// literalOp gives each string literal written as a dag operator one
// identity, shared by every evaluation of that literal.
func (e *Evaluator) literalOp(lit *ast.StringLit) *record.LiteralOpInit {
	if op, ok := e.literalOps[lit]; ok {
		return op
	}
	op := e.rk.NewLiteralOp(lit.Value)
	e.literalOps[lit] = op
	return op
}

func (e *Evaluator) evalClassRef(n *ast.ClassRef) (record.Init, error) {
	c := e.rk.GetClass(n.Name)
	if c == nil {
		return nil, diag.ErrorAt(n.Loc, diag.KindUndefinedSymbol, "couldn't find class '%s'", n.Name)
	}
	args, err := e.classArgs(c, n.Args, n.Loc)
	if err != nil {
		return nil, err
	}
	// check the binding now so errors point at the instantiation
	if _, err := record.BindTemplateArgs(e.rk, c, args, n.Loc); err != nil {
		return nil, err
	}
	return &record.ClassInstInit{Class: c, Args: args, Loc: n.Loc}, nil
}

func (e *Evaluator) evalRanges(items []ast.RangeItem) ([]record.RangeInit, error) {
	out := make([]record.RangeInit, len(items))
	for i, it := range items {
		s, err := e.evalExpr(it.Start)
		if err != nil {
			return nil, err
		}
		out[i].Start = s
		if it.End != nil {
			end, err := e.evalExpr(it.End)
			if err != nil {
				return nil, err
			}
			out[i].End = end
		}
	}
	return out, nil
}

// evalPaste lowers a # b to !listconcat for lists and to !strconcat
// otherwise, casting non-string operands to string.
func (e *Evaluator) evalPaste(n *ast.Paste) (record.Init, error) {
	lhs, err := e.evalExpr(n.LHS)
	if err != nil {
		return nil, err
	}
	var rhs record.Init = record.NewString("")
	if n.RHS != nil {
		if rhs, err = e.evalExpr(n.RHS); err != nil {
			return nil, err
		}
	}
	if _, ok := lhs.Type().(record.ListType); ok {
		if n.RHS == nil {
			return lhs, nil
		}
		return record.NewOp("listconcat", nil, []record.Init{lhs, rhs}, nil, n.Loc)
	}
	l, err := e.asString(lhs, n.Loc)
	if err != nil {
		return nil, err
	}
	r, err := e.asString(rhs, n.Loc)
	if err != nil {
		return nil, err
	}
	return record.NewOp("strconcat", nil, []record.Init{l, r}, nil, n.Loc)
}

func (e *Evaluator) asString(v record.Init, loc diag.SourceLoc) (record.Init, error) {
	if _, ok := v.Type().(record.StringType); ok {
		return v, nil
	}
	return record.NewOp("cast", record.StringType{}, []record.Init{v}, nil, loc)
}

// evalBang builds an operator application. Operators that bind names
// evaluate their body in a scope where those names are variables.
func (e *Evaluator) evalBang(n *ast.BangOp) (record.Init, error) {
	if !record.IsOperator(n.Op) {
		return nil, diag.ErrorAt(n.Loc, diag.KindSyntax, "unknown operator '!%s'", n.Op)
	}
	var typeArg record.Type
	if n.TypeArg != nil {
		t, err := e.resolveType(n.TypeArg)
		if err != nil {
			return nil, err
		}
		typeArg = t
	}
	if record.BindsVars(n.Op) {
		return e.evalBinder(n)
	}
	args := make([]record.Init, len(n.Args))
	for i, a := range n.Args {
		v, err := e.evalExpr(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return record.NewOp(n.Op, typeArg, args, nil, n.Loc)
}

func (e *Evaluator) evalBinder(n *ast.BangOp) (record.Init, error) {
	var vars []string
	var seqExpr, initExpr, bodyExpr ast.Expr
	switch n.Op {
	case "foreach", "filter":
		if len(n.Args) != 3 {
			return nil, diag.ErrorAt(n.Loc, diag.KindType, "!%s expects 3 operands, got %d", n.Op, len(n.Args))
		}
		name, err := varName(n.Args[0])
		if err != nil {
			return nil, err
		}
		vars = []string{name}
		seqExpr, bodyExpr = n.Args[1], n.Args[2]
	case "foldl":
		if len(n.Args) != 5 {
			return nil, diag.ErrorAt(n.Loc, diag.KindType, "!foldl expects 5 operands, got %d", len(n.Args))
		}
		acc, err := varName(n.Args[2])
		if err != nil {
			return nil, err
		}
		elem, err := varName(n.Args[3])
		if err != nil {
			return nil, err
		}
		if acc == elem {
			return nil, diag.ErrorAt(n.Loc, diag.KindDuplicateSymbol, "!foldl accumulator and element have the same name '%s'", acc)
		}
		vars = []string{acc, elem}
		initExpr, seqExpr, bodyExpr = n.Args[0], n.Args[1], n.Args[4]
	}

	var args []record.Init
	var start record.Init
	if initExpr != nil {
		v, err := e.evalExpr(initExpr)
		if err != nil {
			return nil, err
		}
		start = v
		args = append(args, v)
	}
	seq, err := e.evalExpr(seqExpr)
	if err != nil {
		return nil, err
	}
	args = append(args, seq)

	var elemType record.Type
	switch st := seq.Type().(type) {
	case record.ListType:
		elemType = st.Elem
	}
	var body record.Init
	err = e.withScope(symtab.ScopeOperator, func() error {
		types := []record.Type{elemType}
		if n.Op == "foldl" {
			types = []record.Type{start.Type(), elemType}
		}
		for i, name := range vars {
			if err := e.scope.Define(name, &record.VarInit{Name: name, T: types[i]}); err != nil {
				return diag.At(n.Loc, err)
			}
		}
		b, err := e.buildExpr(bodyExpr)
		body = b
		return err
	})
	if err != nil {
		return nil, err
	}
	args = append(args, body)
	return record.NewOp(n.Op, nil, args, vars, n.Loc)
}

func varName(x ast.Expr) (string, error) {
	if id, ok := x.(*ast.Ident); ok {
		return id.Name, nil
	}
	return "", diag.ErrorAt(x.Pos(), diag.KindSyntax, "expected a variable name, got %s", ast.ExprString(x))
}

// mentionsNAME reports whether a def name refers to NAME explicitly.
func mentionsNAME(x ast.Expr) bool {
	switch n := x.(type) {
	case *ast.Ident:
		return n.Name == "NAME"
	case *ast.Paste:
		return mentionsNAME(n.LHS) || (n.RHS != nil && mentionsNAME(n.RHS))
	case *ast.BangOp:
		for _, a := range n.Args {
			if mentionsNAME(a) {
				return true
			}
		}
	case *ast.FieldAccess:
		return mentionsNAME(n.X)
	}
	return false
}

func intValue(v record.Init) (int64, bool) {
	switch x := v.(type) {
	case *record.IntInit:
		return x.Value, true
	case *record.BitInit:
		if x.Value {
			return 1, true
		}
		return 0, true
	case *record.BitsInit:
		return x.IntValue()
	}
	return 0, false
}

func foldRange(rk *record.RecordKeeper, ri record.RangeInit) (record.RangeInit, error) {
	s, err := record.FoldFinal(rk, ri.Start)
	if err != nil {
		return ri, err
	}
	ri.Start = s
	if ri.End != nil {
		if ri.End, err = record.FoldFinal(rk, ri.End); err != nil {
			return ri, err
		}
	}
	return ri, nil
}

// expandSigned expands foreach ranges, which unlike slices may be negative.
func expandSigned(ranges []record.RangeInit) ([]int64, bool, error) {
	var out []int64
	for _, ri := range ranges {
		s, ok := intValue(ri.Start)
		if !ok {
			return nil, false, nil
		}
		if ri.End == nil {
			out = append(out, s)
			continue
		}
		end, ok := intValue(ri.End)
		if !ok {
			return nil, false, nil
		}
		if s <= end {
			for i := s; i <= end; i++ {
				out = append(out, i)
			}
		} else {
			for i := s; i >= end; i-- {
				out = append(out, i)
			}
		}
	}
	return out, true, nil
}
