// Package eval walks a parsed TableGen file and builds its classes and defs
// in a record keeper.
package eval

import (
	"fmt"
	"io"
	"strconv"

	"github.com/raymyers/ralph-tblgen/pkg/ast"
	"github.com/raymyers/ralph-tblgen/pkg/diag"
	"github.com/raymyers/ralph-tblgen/pkg/record"
	"github.com/raymyers/ralph-tblgen/pkg/symtab"
)

// letValue is one `let` assignment waiting to be applied to the records
// defined in its scope.
type letValue struct {
	name  string
	bits  []int // nil for a whole-field assignment
	value record.Init
	loc   diag.SourceLoc
}

// defset collects the defs created while it is open.
type defset struct {
	elem record.Type
	defs []*record.Record
}

// Evaluator turns statements into records. It is single use: one
// Evaluator per compilation unit.
type Evaluator struct {
	rk    *record.RecordKeeper
	scope *symtab.Scope[record.Init]

	multiclasses map[string]*multiclass
	aliases      map[string]record.Type
	literalOps   map[*ast.StringLit]*record.LiteralOpInit

	lets    [][]letValue
	defsets []*defset

	cur   *record.Record // record whose body is being evaluated
	multi *expansion     // innermost multiclass being expanded

	trace io.Writer
}

// New creates an evaluator that fills rk.
func New(rk *record.RecordKeeper) *Evaluator {
	return &Evaluator{
		rk:           rk,
		scope:        symtab.NewGlobal[record.Init](),
		multiclasses: make(map[string]*multiclass),
		aliases:      make(map[string]record.Type),
		literalOps:   make(map[*ast.StringLit]*record.LiteralOpInit),
	}
}

// SetTrace makes the evaluator report every record it creates to w.
func (e *Evaluator) SetTrace(w io.Writer) {
	e.trace = w
}

// Keeper returns the record keeper being filled.
func (e *Evaluator) Keeper() *record.RecordKeeper {
	return e.rk
}

// EvalFile evaluates every statement of f in order. The first error stops
// evaluation.
func (e *Evaluator) EvalFile(f *ast.File) error {
	return e.evalStmts(f.Stmts)
}

func (e *Evaluator) evalStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := e.evalStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) evalStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.ClassStmt:
		return e.evalClass(s)
	case *ast.DefStmt:
		return e.evalDef(s)
	case *ast.DefmStmt:
		return e.evalDefm(s)
	case *ast.MulticlassStmt:
		return e.declareMulticlass(s)
	case *ast.DefvarStmt:
		return e.evalDefvar(s)
	case *ast.DefsetStmt:
		return e.evalDefset(s)
	case *ast.DeftypeStmt:
		return e.evalDeftype(s)
	case *ast.ForeachStmt:
		return e.evalForeach(s)
	case *ast.IfStmt:
		return e.evalIf(s)
	case *ast.LetStmt:
		return e.evalLet(s)
	case *ast.AssertStmt:
		return e.evalAssert(s)
	case *ast.DumpStmt:
		return e.evalDump(s)
	}
	return diag.ErrorAt(stmt.Pos(), diag.KindSyntax, "unexpected statement %T", stmt)
}

func (e *Evaluator) tracef(format string, args ...interface{}) {
	if e.trace != nil {
		fmt.Fprintf(e.trace, "ralph-tblgen: "+format+"\n", args...)
	}
}

// withScope runs fn inside a new scope of the given kind.
func (e *Evaluator) withScope(kind symtab.ScopeKind, fn func() error) error {
	e.scope = e.scope.Push(kind)
	defer func() { e.scope = e.scope.Pop() }()
	return fn()
}

// withRecord makes rec the current record while fn runs.
func (e *Evaluator) withRecord(rec *record.Record, fn func() error) error {
	saved := e.cur
	e.cur = rec
	defer func() { e.cur = saved }()
	return e.withScope(symtab.ScopeBody, fn)
}

func (e *Evaluator) evalClass(s *ast.ClassStmt) error {
	if _, ok := e.aliases[s.Name]; ok {
		return diag.ErrorAt(s.Loc, diag.KindDuplicateSymbol, "'%s' is already defined as a type alias", s.Name)
	}
	c := record.NewClass(s.Name, s.Loc)
	// registered first so the body may use the class as a type
	if err := e.rk.AddClass(c); err != nil {
		return err
	}
	e.tracef("class %s", s.Name)

	return e.withRecord(c, func() error {
		for _, p := range s.Params {
			t, err := e.resolveType(p.Type)
			if err != nil {
				return err
			}
			var def record.Init = record.Unset
			if p.Default != nil {
				if def, err = e.evalExpr(p.Default); err != nil {
					return err
				}
			}
			rv := &record.RecordVal{Name: s.Name + ":" + p.Name, Type: t, Loc: p.Loc}
			if err := rv.SetValue(def); err != nil {
				return diag.At(p.Loc, err)
			}
			if err := c.AddTemplateArg(rv); err != nil {
				return err
			}
		}
		return e.buildBody(c, s.Parents, s.Body)
	})
}

// buildBody adds the parents, the pending lets and the body items to rec.
func (e *Evaluator) buildBody(rec *record.Record, parents []ast.ParentRef, body *ast.Body) error {
	for _, p := range parents {
		if err := e.addParent(rec, p); err != nil {
			return err
		}
	}
	if err := e.applyLets(rec); err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	for _, item := range body.Items {
		if err := e.evalBodyItem(rec, item); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) addParent(rec *record.Record, p ast.ParentRef) error {
	if p.Name == rec.Name && rec.IsClass {
		return diag.ErrorAt(p.Loc, diag.KindType, "class '%s' cannot inherit from itself", rec.Name)
	}
	sc := e.rk.GetClass(p.Name)
	if sc == nil {
		if _, ok := e.multiclasses[p.Name]; ok {
			return diag.ErrorAt(p.Loc, diag.KindType, "'%s' is a multiclass; use defm to instantiate it", p.Name)
		}
		return diag.ErrorAt(p.Loc, diag.KindUndefinedSymbol, "couldn't find class '%s'", p.Name)
	}
	args, err := e.classArgs(sc, p.Args, p.Loc)
	if err != nil {
		return err
	}
	return rec.AddSuperClass(e.rk, sc, args, p.Loc)
}

// classArgs evaluates template arguments into one slot per template
// parameter of sc; a nil slot takes the default.
func (e *Evaluator) classArgs(sc *record.Record, args []ast.Arg, loc diag.SourceLoc) ([]record.Init, error) {
	slots := make([]record.Init, len(sc.TemplateArgs))
	for i, a := range args {
		idx := i
		if a.Name != "" {
			idx = indexOf(sc.TemplateArgs, sc.Name+":"+a.Name)
			if idx < 0 {
				return nil, diag.ErrorAt(loc, diag.KindType, "'%s' is not a template argument of '%s'", a.Name, sc.Name)
			}
			if slots[idx] != nil {
				return nil, diag.ErrorAt(loc, diag.KindType, "template argument '%s' of '%s' is given twice", a.Name, sc.Name)
			}
		} else if idx >= len(slots) {
			return nil, diag.ErrorAt(loc, diag.KindType, "too many template arguments for '%s': expected at most %d, got %d",
				sc.Name, len(slots), len(args))
		}
		v, err := e.evalExpr(a.Value)
		if err != nil {
			return nil, err
		}
		slots[idx] = v
	}
	return slots, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func (e *Evaluator) evalBodyItem(rec *record.Record, item ast.BodyItem) error {
	switch it := item.(type) {
	case *ast.FieldDecl:
		return e.evalFieldDecl(rec, it)
	case *ast.LetItem:
		lv, err := e.evalLetItem(*it)
		if err != nil {
			return err
		}
		return e.setField(rec, lv)
	case *ast.DefvarStmt:
		v, err := e.evalExpr(it.Value)
		if err != nil {
			return err
		}
		if err := e.scope.Define(it.Name, v); err != nil {
			return diag.At(it.Loc, err)
		}
		return nil
	case *ast.AssertStmt:
		cond, err := e.evalExpr(it.Cond)
		if err != nil {
			return err
		}
		msg, err := e.evalExpr(it.Msg)
		if err != nil {
			return err
		}
		rec.Asserts = append(rec.Asserts, record.Assertion{Loc: it.Loc, Cond: cond, Msg: msg})
		return nil
	case *ast.DumpStmt:
		msg, err := e.evalExpr(it.Msg)
		if err != nil {
			return err
		}
		rec.Dumps = append(rec.Dumps, record.Dump{Loc: it.Loc, Msg: msg})
		return nil
	}
	return diag.ErrorAt(item.Pos(), diag.KindSyntax, "unexpected body item %T", item)
}

func (e *Evaluator) evalFieldDecl(rec *record.Record, f *ast.FieldDecl) error {
	t, err := e.resolveType(f.Type)
	if err != nil {
		return err
	}
	var val record.Init = record.Unset
	if f.Value != nil {
		if val, err = e.evalExpr(f.Value); err != nil {
			return err
		}
	}
	if prev := rec.GetValue(f.Name); prev != nil {
		if prev.IsTemplateArg || !record.SameType(prev.Type, t) {
			return diag.ErrorAt(f.Loc, diag.KindType, "field '%s' of type '%s' is incompatible with previous definition of type '%s'",
				f.Name, t, prev.Type)
		}
		prev.IsField = prev.IsField || f.IsField
		return diag.At(f.Loc, prev.SetValue(val))
	}
	rv := &record.RecordVal{Name: f.Name, Type: t, IsField: f.IsField, Loc: f.Loc}
	if err := rv.SetValue(val); err != nil {
		return diag.At(f.Loc, err)
	}
	return rec.AddValue(rv)
}

func (e *Evaluator) evalLetItem(it ast.LetItem) (letValue, error) {
	lv := letValue{name: it.Name, loc: it.Loc}
	v, err := e.evalExpr(it.Value)
	if err != nil {
		return lv, err
	}
	lv.value = v
	if len(it.Bits) > 0 {
		ranges, err := e.evalRanges(it.Bits)
		if err != nil {
			return lv, err
		}
		idx, ok, err := record.ExpandRanges(ranges)
		if err != nil {
			return lv, diag.At(it.Loc, err)
		}
		if !ok {
			return lv, diag.ErrorAt(it.Loc, diag.KindType, "bit range of let '%s' is not constant", it.Name)
		}
		lv.bits = idx
	}
	return lv, nil
}

func (e *Evaluator) setField(rec *record.Record, lv letValue) error {
	rv := rec.GetValue(lv.name)
	if rv == nil || rv.IsTemplateArg {
		return diag.ErrorAt(lv.loc, diag.KindUndefinedSymbol, "value '%s' unknown in '%s'", lv.name, rec.Name)
	}
	if lv.bits != nil {
		return diag.At(lv.loc, rec.SetFieldBits(lv.name, lv.bits, lv.value))
	}
	return diag.At(lv.loc, rv.SetValue(lv.value))
}

func (e *Evaluator) applyLets(rec *record.Record) error {
	for _, frame := range e.lets {
		for _, lv := range frame {
			if err := e.setField(rec, lv); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Evaluator) evalLet(s *ast.LetStmt) error {
	frame := make([]letValue, 0, len(s.Items))
	for _, it := range s.Items {
		lv, err := e.evalLetItem(it)
		if err != nil {
			return err
		}
		frame = append(frame, lv)
	}
	e.lets = append(e.lets, frame)
	defer func() { e.lets = e.lets[:len(e.lets)-1] }()
	return e.withScope(symtab.ScopeBlock, func() error {
		return e.evalStmts(s.Stmts)
	})
}

// defName computes the name of a def or defm. Inside a multiclass a name
// that does not mention NAME is prefixed with it.
func (e *Evaluator) defName(name ast.Expr, loc diag.SourceLoc) (string, error) {
	if name == nil {
		return e.rk.NewAnonymousName(), nil
	}
	v, err := e.evalExpr(name)
	if err != nil {
		return "", err
	}
	v, err = record.FoldFinal(e.rk, v)
	if err != nil {
		return "", diag.At(loc, err)
	}
	var s string
	switch x := v.(type) {
	case *record.StringInit:
		s = x.Value
	case *record.IntInit:
		s = strconv.FormatInt(x.Value, 10)
	default:
		return "", diag.ErrorAt(loc, diag.KindType, "record name '%s' is not a string", v)
	}
	if e.multi != nil && !mentionsNAME(name) {
		s = e.multi.name + s
	}
	return s, nil
}

func (e *Evaluator) evalDef(s *ast.DefStmt) error {
	name, err := e.defName(s.Name, s.Loc)
	if err != nil {
		return err
	}
	if e.rk.GetDef(name) != nil {
		return diag.ErrorAt(s.Loc, diag.KindDuplicateSymbol, "def '%s' already defined", name)
	}
	def := record.NewDef(name, s.Loc)
	def.Anonymous = s.Name == nil
	err = e.withRecord(def, func() error {
		if err := e.buildBody(def, s.Parents, s.Body); err != nil {
			return err
		}
		if e.multi != nil {
			return e.multi.applyTrailing(e, def)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return e.finishDef(def)
}

// finishDef resolves and registers a complete def.
func (e *Evaluator) finishDef(def *record.Record) error {
	if err := e.rk.FinalizeDef(def); err != nil {
		return err
	}
	e.tracef("def %s", def.Name)
	for _, ds := range e.defsets {
		ds.defs = append(ds.defs, def)
	}
	return nil
}

func (e *Evaluator) evalDefvar(s *ast.DefvarStmt) error {
	v, err := e.evalExpr(s.Value)
	if err != nil {
		return err
	}
	if e.scope.IsGlobal() {
		if v, err = record.FoldFinal(e.rk, v); err != nil {
			return diag.At(s.Loc, err)
		}
		return e.rk.AddGlobal(s.Name, v, s.Loc)
	}
	if err := e.scope.Define(s.Name, v); err != nil {
		return diag.At(s.Loc, err)
	}
	return nil
}

func (e *Evaluator) evalDefset(s *ast.DefsetStmt) error {
	t, err := e.resolveType(s.Type)
	if err != nil {
		return err
	}
	lt, ok := t.(record.ListType)
	if !ok {
		return diag.ErrorAt(s.Loc, diag.KindType, "defset type must be a list, got '%s'", t)
	}
	ds := &defset{elem: lt.Elem}
	e.defsets = append(e.defsets, ds)
	err = e.withScope(symtab.ScopeBlock, func() error {
		return e.evalStmts(s.Stmts)
	})
	e.defsets = e.defsets[:len(e.defsets)-1]
	if err != nil {
		return err
	}

	elems := make([]record.Init, 0, len(ds.defs))
	for _, d := range ds.defs {
		v, ok := record.Convert(&record.DefInit{Def: d}, lt.Elem)
		if !ok {
			return diag.ErrorAt(d.Loc, diag.KindType, "def '%s' added to defset '%s' is not of type '%s'", d.Name, s.Name, lt.Elem)
		}
		elems = append(elems, v)
	}
	return e.rk.AddGlobal(s.Name, &record.ListInit{Elems: elems, Elem: lt.Elem}, s.Loc)
}

func (e *Evaluator) evalDeftype(s *ast.DeftypeStmt) error {
	if _, ok := e.aliases[s.Name]; ok {
		return diag.ErrorAt(s.Loc, diag.KindDuplicateSymbol, "type '%s' is already defined", s.Name)
	}
	if e.rk.GetClass(s.Name) != nil {
		return diag.ErrorAt(s.Loc, diag.KindDuplicateSymbol, "type alias '%s' conflicts with a class of the same name", s.Name)
	}
	t, err := e.resolveType(s.Type)
	if err != nil {
		return err
	}
	e.aliases[s.Name] = t
	return nil
}

func (e *Evaluator) evalForeach(s *ast.ForeachStmt) error {
	elems, err := e.iterValues(s.Iter)
	if err != nil {
		return err
	}
	for _, v := range elems {
		err := e.withScope(symtab.ScopeForeach, func() error {
			if err := e.scope.Define(s.Var, v); err != nil {
				return diag.At(s.Loc, err)
			}
			return e.evalStmts(s.Stmts)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// iterValues expands a foreach range list or list-valued expression.
func (e *Evaluator) iterValues(iter ast.Expr) ([]record.Init, error) {
	if rl, ok := iter.(*ast.RangeList); ok {
		ranges, err := e.evalRanges(rl.Items)
		if err != nil {
			return nil, err
		}
		for i := range ranges {
			if ranges[i], err = foldRange(e.rk, ranges[i]); err != nil {
				return nil, diag.At(rl.Loc, err)
			}
		}
		idx, ok, err := expandSigned(ranges)
		if err != nil {
			return nil, diag.At(rl.Loc, err)
		}
		if !ok {
			return nil, diag.ErrorAt(rl.Loc, diag.KindType, "foreach range is not constant")
		}
		out := make([]record.Init, len(idx))
		for i, n := range idx {
			out[i] = record.NewInt(n)
		}
		return out, nil
	}
	v, err := e.evalExpr(iter)
	if err != nil {
		return nil, err
	}
	v, err = record.FoldFinal(e.rk, v)
	if err != nil {
		return nil, diag.At(iter.Pos(), err)
	}
	list, ok := v.(*record.ListInit)
	if !ok {
		return nil, diag.ErrorAt(iter.Pos(), diag.KindType, "foreach expects a list or a range, got '%s'", v)
	}
	return list.Elems, nil
}

func (e *Evaluator) evalIf(s *ast.IfStmt) error {
	v, err := e.evalExpr(s.Cond)
	if err != nil {
		return err
	}
	v, err = record.FoldFinal(e.rk, v)
	if err != nil {
		return diag.At(s.Loc, err)
	}
	n, ok := intValue(v)
	if !ok {
		return diag.ErrorAt(s.Loc, diag.KindType, "if condition must be of type bit, bits, or int, got '%s'", v)
	}
	stmts := s.Else
	if n != 0 {
		stmts = s.Then
	}
	return e.withScope(symtab.ScopeBlock, func() error {
		return e.evalStmts(stmts)
	})
}

func (e *Evaluator) evalAssert(s *ast.AssertStmt) error {
	cond, err := e.evalFinal(s.Cond)
	if err != nil {
		return err
	}
	msg, err := e.evalFinal(s.Msg)
	if err != nil {
		return err
	}
	return record.CheckAssert(record.Assertion{Loc: s.Loc, Cond: cond, Msg: msg}, "")
}

func (e *Evaluator) evalDump(s *ast.DumpStmt) error {
	msg, err := e.evalFinal(s.Msg)
	if err != nil {
		return err
	}
	e.rk.RunDump(record.Dump{Loc: s.Loc, Msg: msg})
	return nil
}

// evalFinal evaluates an expression outside any record to a final value.
func (e *Evaluator) evalFinal(x ast.Expr) (record.Init, error) {
	v, err := e.evalExpr(x)
	if err != nil {
		return nil, err
	}
	v, err = record.FoldFinal(e.rk, v)
	if err != nil {
		return nil, diag.At(x.Pos(), err)
	}
	return v, nil
}
