package eval

import (
	"github.com/raymyers/ralph-tblgen/pkg/ast"
	"github.com/raymyers/ralph-tblgen/pkg/diag"
	"github.com/raymyers/ralph-tblgen/pkg/record"
	"github.com/raymyers/ralph-tblgen/pkg/symtab"
)

type mcParam struct {
	name string
	t    record.Type
	def  ast.Expr // nil when the argument is required
}

// multiclass keeps the statements of a multiclass so every defm can walk
// them again with its own arguments bound.
type multiclass struct {
	stmt   *ast.MulticlassStmt
	params []mcParam
	lets   [][]letValue // lets around the declaration
}

type trailingParent struct {
	class *record.Record
	args  []record.Init
	loc   diag.SourceLoc
}

// expansion is one defm being expanded. Defs created inside it get the
// trailing classes and the lets around the defm once their body is done,
// innermost defm first.
type expansion struct {
	name     string
	trailing []trailingParent
	lets     [][]letValue
	outer    *expansion
}

func (e *Evaluator) declareMulticlass(s *ast.MulticlassStmt) error {
	if _, ok := e.multiclasses[s.Name]; ok {
		return diag.ErrorAt(s.Loc, diag.KindDuplicateSymbol, "multiclass '%s' already defined", s.Name)
	}
	mc := &multiclass{stmt: s, lets: append([][]letValue(nil), e.lets...)}
	seen := make(map[string]bool)
	for _, p := range s.Params {
		if seen[p.Name] {
			return diag.ErrorAt(p.Loc, diag.KindDuplicateSymbol, "template argument '%s' of multiclass '%s' is declared twice", p.Name, s.Name)
		}
		seen[p.Name] = true
		t, err := e.resolveType(p.Type)
		if err != nil {
			return err
		}
		mc.params = append(mc.params, mcParam{name: p.Name, t: t, def: p.Default})
	}
	for _, p := range s.Parents {
		if _, ok := e.multiclasses[p.Name]; !ok {
			return diag.ErrorAt(p.Loc, diag.KindUndefinedSymbol, "couldn't find multiclass '%s'", p.Name)
		}
	}
	e.multiclasses[s.Name] = mc
	e.tracef("multiclass %s", s.Name)
	return nil
}

func (e *Evaluator) evalDefm(s *ast.DefmStmt) error {
	name, err := e.defName(s.Name, s.Loc)
	if err != nil {
		return err
	}

	var mcs []ast.ParentRef
	var trailing []trailingParent
	for _, p := range s.Parents {
		if _, ok := e.multiclasses[p.Name]; ok {
			if len(trailing) > 0 {
				return diag.ErrorAt(p.Loc, diag.KindSyntax, "multiclass '%s' must come before the classes of a defm", p.Name)
			}
			mcs = append(mcs, p)
			continue
		}
		c := e.rk.GetClass(p.Name)
		if c == nil {
			return diag.ErrorAt(p.Loc, diag.KindUndefinedSymbol, "couldn't find multiclass or class '%s'", p.Name)
		}
		args, err := e.classArgs(c, p.Args, p.Loc)
		if err != nil {
			return err
		}
		trailing = append(trailing, trailingParent{class: c, args: args, loc: p.Loc})
	}
	if len(mcs) == 0 {
		return diag.ErrorAt(s.Loc, diag.KindType, "defm '%s' does not instantiate a multiclass", name)
	}

	x := &expansion{
		name:     name,
		trailing: trailing,
		lets:     append([][]letValue(nil), e.lets...),
		outer:    e.multi,
	}
	e.tracef("defm %s", name)
	for _, p := range mcs {
		if err := e.expandMulticlass(x, p); err != nil {
			return err
		}
	}
	return nil
}

// expandMulticlass walks the body of the multiclass named by ref with its
// arguments bound. Parent multiclasses expand first under the same name.
func (e *Evaluator) expandMulticlass(x *expansion, ref ast.ParentRef) error {
	mc := e.multiclasses[ref.Name]
	slots, err := e.multiclassArgs(mc, ref)
	if err != nil {
		return err
	}

	savedMulti, savedLets := e.multi, e.lets
	e.multi = x
	e.lets = append([][]letValue(nil), mc.lets...)
	defer func() { e.multi, e.lets = savedMulti, savedLets }()

	return e.withScope(symtab.ScopeMulticlass, func() error {
		if err := e.scope.Define("NAME", record.NewString(x.name)); err != nil {
			return diag.At(ref.Loc, err)
		}
		for i, p := range mc.params {
			v := slots[i]
			if v == nil {
				if p.def == nil {
					return diag.ErrorAt(ref.Loc, diag.KindUnboundTemplateArgument,
						"value not specified for template argument '%s:%s'", mc.stmt.Name, p.name)
				}
				if v, err = e.evalExpr(p.def); err != nil {
					return err
				}
			}
			conv, ok := record.Convert(v, p.t)
			if !ok {
				return diag.ErrorAt(ref.Loc, diag.KindType, "value '%s' is not compatible with template argument '%s:%s' of type '%s'",
					v, mc.stmt.Name, p.name, p.t)
			}
			if err := e.scope.Define(p.name, conv); err != nil {
				return diag.At(ref.Loc, err)
			}
		}
		for _, parent := range mc.stmt.Parents {
			if err := e.expandMulticlass(x, parent); err != nil {
				return err
			}
		}
		return e.evalStmts(mc.stmt.Stmts)
	})
}

// multiclassArgs evaluates the arguments of a defm in the caller's scope,
// one slot per parameter.
func (e *Evaluator) multiclassArgs(mc *multiclass, ref ast.ParentRef) ([]record.Init, error) {
	slots := make([]record.Init, len(mc.params))
	for i, a := range ref.Args {
		idx := i
		if a.Name != "" {
			idx = -1
			for j, p := range mc.params {
				if p.name == a.Name {
					idx = j
				}
			}
			if idx < 0 {
				return nil, diag.ErrorAt(ref.Loc, diag.KindType, "'%s' is not a template argument of multiclass '%s'", a.Name, mc.stmt.Name)
			}
			if slots[idx] != nil {
				return nil, diag.ErrorAt(ref.Loc, diag.KindType, "template argument '%s' of '%s' is given twice", a.Name, mc.stmt.Name)
			}
		} else if idx >= len(slots) {
			return nil, diag.ErrorAt(ref.Loc, diag.KindType, "too many template arguments for multiclass '%s': expected at most %d, got %d",
				mc.stmt.Name, len(slots), len(ref.Args))
		}
		v, err := e.evalFinal(a.Value)
		if err != nil {
			return nil, err
		}
		slots[idx] = v
	}
	return slots, nil
}

// applyTrailing finishes a def created inside x: each enclosing defm adds
// its trailing classes and then its lets.
func (x *expansion) applyTrailing(e *Evaluator, def *record.Record) error {
	for ; x != nil; x = x.outer {
		for _, t := range x.trailing {
			if err := def.AddSuperClass(e.rk, t.class, t.args, t.loc); err != nil {
				return err
			}
		}
		for _, frame := range x.lets {
			for _, lv := range frame {
				if err := e.setField(def, lv); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
