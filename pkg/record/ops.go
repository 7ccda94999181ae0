package record

import (
	"strings"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// OpInit is a bang operator application. Operators that bind variables
// keep the names in Vars:
//
//	!foreach(x, list, expr)        Vars [x]        Args [list, expr]
//	!filter(x, list, pred)         Vars [x]        Args [list, pred]
//	!foldl(init, list, a, x, expr) Vars [a, x]     Args [init, list, expr]
//
// !cond stores its condition/value pairs flattened in Args.
type OpInit struct {
	Op      string
	TypeArg Type
	Args    []Init
	Vars    []string
	Loc     diag.SourceLoc
}

type foldFunc func(op *OpInit, args []Init, r Resolver) (Init, error)

type opSpec struct {
	min, max int // max < 0: variadic
	typeArg  int // 0 none, 1 optional, 2 required
	// tolerant operators fold even when a direct argument is unset
	tolerant bool
	fold     foldFunc
}

const (
	noType = iota
	optType
	needType
)

var opTable map[string]opSpec

func init() {
	opTable = map[string]opSpec{
		"add": {min: 2, max: -1, fold: foldArith},
		"mul": {min: 2, max: -1, fold: foldArith},
		"and": {min: 2, max: -1, fold: foldArith},
		"or":  {min: 2, max: -1, fold: foldArith},
		"xor": {min: 2, max: -1, fold: foldArith},
		"sub": {min: 2, max: 2, fold: foldArith},
		"div": {min: 2, max: 2, fold: foldArith},
		"shl": {min: 2, max: 2, fold: foldArith},
		"srl": {min: 2, max: 2, fold: foldArith},
		"sra": {min: 2, max: 2, fold: foldArith},

		"not":  {min: 1, max: 1, fold: foldNot},
		"log2": {min: 1, max: 1, fold: foldLog2},

		"eq": {min: 2, max: 2, fold: foldCompare},
		"ne": {min: 2, max: 2, fold: foldCompare},
		"lt": {min: 2, max: 2, fold: foldCompare},
		"le": {min: 2, max: 2, fold: foldCompare},
		"gt": {min: 2, max: 2, fold: foldCompare},
		"ge": {min: 2, max: 2, fold: foldCompare},

		"size":  {min: 1, max: 1, fold: foldSize},
		"empty": {min: 1, max: 1, fold: foldSize},
		"repr":  {min: 1, max: 1, tolerant: true, fold: foldRepr},

		"strconcat":  {min: 1, max: -1, fold: foldStrconcat},
		"subst":      {min: 3, max: 3, fold: foldSubst},
		"tolower":    {min: 1, max: 1, fold: foldCase},
		"toupper":    {min: 1, max: 1, fold: foldCase},
		"find":       {min: 2, max: 3, fold: foldFind},
		"substr":     {min: 2, max: 3, fold: foldSubstr},
		"interleave": {min: 2, max: 2, fold: foldInterleave},

		"listconcat":  {min: 1, max: -1, fold: foldListconcat},
		"listremove":  {min: 2, max: 2, fold: foldListremove},
		"listsplat":   {min: 2, max: 2, tolerant: true, fold: foldListsplat},
		"listflatten": {min: 1, max: 1, fold: foldListflatten},
		"head":        {min: 1, max: 1, fold: foldHeadTail},
		"tail":        {min: 1, max: 1, fold: foldHeadTail},
		"range":       {min: 1, max: 3, fold: foldRange},
		"foreach":     {min: 2, max: 2},
		"filter":      {min: 2, max: 2},
		"foldl":       {min: 3, max: 3},

		"dag":          {min: 3, max: 3, fold: foldDag},
		"con":          {min: 1, max: -1, fold: foldCon},
		"getdagarg":    {min: 2, max: 2, typeArg: needType, fold: foldGetdagarg},
		"getdagop":     {min: 1, max: 1, typeArg: optType, fold: foldGetdagop},
		"getdagopname": {min: 1, max: 1, fold: foldGetdagopname},
		"getdagname":   {min: 2, max: 2, fold: foldGetdagname},
		"setdagop":     {min: 2, max: 2, fold: foldSetdagop},
		"setdagopname": {min: 2, max: 2, fold: foldSetdagopname},
		"setdagarg":    {min: 3, max: 3, tolerant: true, fold: foldSetdagarg},
		"setdagname":   {min: 3, max: 3, fold: foldSetdagname},

		"if":          {min: 3, max: 3},
		"cond":        {min: 2, max: -1},
		"isa":         {min: 1, max: 1, typeArg: needType, fold: foldIsa},
		"exists":      {min: 1, max: 1, typeArg: needType, fold: foldExists},
		"cast":        {min: 1, max: 1, typeArg: needType, fold: foldCast},
		"initialized": {min: 1, max: 1, tolerant: true, fold: foldInitialized},
	}
}

// IsOperator reports whether name is a known bang operator.
func IsOperator(name string) bool {
	_, ok := opTable[name]
	return ok
}

// BindsVars reports whether the operator binds variable names.
func BindsVars(name string) bool {
	return name == "foreach" || name == "filter" || name == "foldl"
}

// NewOp builds an operator application after checking its arity and type
// argument.
func NewOp(name string, typeArg Type, args []Init, vars []string, loc diag.SourceLoc) (*OpInit, error) {
	spec, ok := opTable[name]
	if !ok {
		return nil, diag.ErrorAt(loc, diag.KindSyntax, "unknown operator '!%s'", name)
	}
	if len(args) < spec.min || (spec.max >= 0 && len(args) > spec.max) {
		return nil, diag.ErrorAt(loc, diag.KindType, "wrong number of operands to !%s: %d", name, len(args)+len(vars))
	}
	if name == "cond" && len(args)%2 != 0 {
		return nil, diag.ErrorAt(loc, diag.KindType, "!cond needs condition/value pairs")
	}
	if spec.typeArg == needType && typeArg == nil {
		return nil, diag.ErrorAt(loc, diag.KindType, "!%s requires a type argument", name)
	}
	if spec.typeArg == noType && typeArg != nil {
		return nil, diag.ErrorAt(loc, diag.KindType, "!%s does not take a type argument", name)
	}
	return &OpInit{Op: name, TypeArg: typeArg, Args: args, Vars: vars, Loc: loc}, nil
}

func (o *OpInit) String() string {
	var sb strings.Builder
	sb.WriteString("!" + o.Op)
	if o.TypeArg != nil {
		sb.WriteString("<" + o.TypeArg.String() + ">")
	}
	sb.WriteString("(")
	var parts []string
	switch o.Op {
	case "foreach", "filter":
		parts = []string{o.Vars[0], o.Args[0].String(), o.Args[1].String()}
	case "foldl":
		parts = []string{o.Args[0].String(), o.Args[1].String(), o.Vars[0], o.Vars[1], o.Args[2].String()}
	case "cond":
		for i := 0; i+1 < len(o.Args); i += 2 {
			parts = append(parts, o.Args[i].String()+": "+o.Args[i+1].String())
		}
	default:
		for _, a := range o.Args {
			parts = append(parts, a.String())
		}
	}
	sb.WriteString(strings.Join(parts, ", "))
	sb.WriteString(")")
	return sb.String()
}

func (*OpInit) IsConcrete() bool { return false }

func (o *OpInit) Type() Type {
	switch o.Op {
	case "add", "mul", "and", "or", "xor", "sub", "div", "shl", "srl", "sra", "log2", "size", "find":
		return IntType{}
	case "not", "eq", "ne", "lt", "le", "gt", "ge", "empty", "isa", "exists", "initialized":
		return BitType{}
	case "strconcat", "substr", "tolower", "toupper", "interleave", "repr", "getdagopname", "getdagname":
		return StringType{}
	case "listconcat", "listremove", "tail", "filter":
		return o.Args[0].Type()
	case "head":
		if lt, ok := o.Args[0].Type().(ListType); ok {
			return lt.Elem
		}
	case "listsplat":
		return ListType{Elem: o.Args[0].Type()}
	case "listflatten":
		if lt, ok := o.Args[0].Type().(ListType); ok {
			if inner, ok := lt.Elem.(ListType); ok {
				return inner
			}
		}
	case "range":
		return ListType{Elem: IntType{}}
	case "dag", "con", "setdagop", "setdagopname", "setdagarg", "setdagname":
		return DagType{}
	case "getdagarg", "getdagop", "cast":
		return o.TypeArg
	case "subst":
		return o.Args[2].Type()
	case "if":
		if t := o.Args[1].Type(); t != nil {
			return t
		}
		return o.Args[2].Type()
	case "cond":
		for i := 1; i < len(o.Args); i += 2 {
			if t := o.Args[i].Type(); t != nil {
				return t
			}
		}
	case "foreach":
		if _, ok := o.Args[0].Type().(DagType); ok {
			return DagType{}
		}
		return ListType{Elem: o.Args[1].Type()}
	case "foldl":
		return o.Args[0].Type()
	}
	return nil
}

func (o *OpInit) Resolve(r Resolver) (Init, error) {
	switch o.Op {
	case "if":
		return o.resolveIf(r)
	case "cond":
		return o.resolveCond(r)
	case "foreach", "filter":
		return o.resolveMap(r)
	case "foldl":
		return o.resolveFoldl(r)
	}

	args, changed, err := resolveAll(o.Args, r)
	if err != nil {
		return nil, err
	}
	spec := opTable[o.Op]
	foldable := true
	for _, a := range args {
		if !a.IsConcrete() {
			foldable = false
			break
		}
		if IsUnset(a) && !spec.tolerant {
			if r.IsFinal() {
				return nil, diag.ErrorAt(o.Loc, diag.KindType, "!%s applied to an uninitialized value in '%s'", o.Op, o)
			}
			foldable = false
			break
		}
	}
	if foldable {
		v, err := spec.fold(o, args, r)
		if err != nil {
			return nil, diag.At(o.Loc, err)
		}
		if v != nil {
			return v, nil
		}
	}
	if !changed {
		return o, nil
	}
	return o.with(args), nil
}

func (o *OpInit) with(args []Init) *OpInit {
	return &OpInit{Op: o.Op, TypeArg: o.TypeArg, Args: args, Vars: o.Vars, Loc: o.Loc}
}

func (o *OpInit) errorf(format string, args ...interface{}) error {
	return diag.ErrorAt(o.Loc, diag.KindType, "!"+o.Op+": "+format, args...)
}

// resolveIf evaluates only the branch that the condition selects. While the
// condition is symbolic both branches are resolved, and a branch that fails
// to resolve is kept as written.
func (o *OpInit) resolveIf(r Resolver) (Init, error) {
	cond, err := o.Args[0].Resolve(r)
	if err != nil {
		return nil, err
	}
	if n, ok := intOf(cond); ok {
		branch := o.Args[2]
		if n != 0 {
			branch = o.Args[1]
		}
		return branch.Resolve(r)
	}
	if IsUnset(cond) {
		if r.IsFinal() {
			return nil, o.errorf("condition is uninitialized")
		}
	} else if cond.IsConcrete() {
		return nil, o.errorf("condition must be of type bit, bits, or int, got '%s'", cond)
	}
	args := []Init{cond, o.Args[1], o.Args[2]}
	for i := 1; i <= 2; i++ {
		if v, err := o.Args[i].Resolve(r); err == nil {
			args[i] = v
		}
	}
	return o.with(args), nil
}

// resolveCond picks the value of the first true condition.
func (o *OpInit) resolveCond(r Resolver) (Init, error) {
	args := append([]Init(nil), o.Args...)
	symbolic := false
	for i := 0; i+1 < len(args); i += 2 {
		c, err := args[i].Resolve(r)
		if err != nil {
			return nil, err
		}
		args[i] = c
		if n, ok := intOf(c); ok && !symbolic {
			if n != 0 {
				return args[i+1].Resolve(r)
			}
			continue
		}
		if IsUnset(c) && r.IsFinal() {
			return nil, o.errorf("condition %d is uninitialized", i/2)
		}
		if !IsUnset(c) && c.IsConcrete() {
			if _, ok := intOf(c); !ok {
				return nil, o.errorf("condition must be of type bit, bits, or int, got '%s'", c)
			}
		}
		symbolic = true
		if v, err := args[i+1].Resolve(r); err == nil {
			args[i+1] = v
		}
	}
	if !symbolic {
		return nil, o.errorf("none of the conditions is true")
	}
	return o.with(args), nil
}

func (o *OpInit) bind(r Resolver, vals ...Init) Resolver {
	b := &bindResolver{outer: r, bindings: make(map[string]Init, len(o.Vars))}
	for i, name := range o.Vars {
		b.bindings[name] = vals[i]
	}
	return b
}

// resolveMap implements !foreach and !filter over a list, and !foreach
// over the arguments of a dag.
func (o *OpInit) resolveMap(r Resolver) (Init, error) {
	seq, err := o.Args[0].Resolve(r)
	if err != nil {
		return nil, err
	}
	body, err := o.Args[1].Resolve(NewShadowResolver(r, o.Vars...))
	if err != nil {
		return nil, err
	}
	keep := func() (Init, error) {
		if IsUnset(seq) && r.IsFinal() {
			return nil, o.errorf("list operand is uninitialized")
		}
		return o.with([]Init{seq, body}), nil
	}

	switch s := seq.(type) {
	case *ListInit:
		var out []Init
		for _, elem := range s.Elems {
			v, err := body.Resolve(o.bind(r, elem))
			if err != nil {
				return nil, diag.At(o.Loc, err)
			}
			if o.Op == "foreach" {
				out = append(out, v)
				continue
			}
			if IsUnset(v) || !v.IsConcrete() {
				if r.IsFinal() {
					return nil, o.errorf("predicate did not evaluate to a value: '%s'", v)
				}
				return keep()
			}
			n, ok := intOf(v)
			if !ok {
				return nil, o.errorf("predicate must be of type bit, bits, or int, got '%s'", v)
			}
			if n != 0 {
				out = append(out, elem)
			}
		}
		if o.Op == "filter" {
			return &ListInit{Elems: out, Elem: s.Elem}, nil
		}
		return NewList(out, body.Type()), nil
	case *DagInit:
		if o.Op != "foreach" {
			return nil, o.errorf("expected a list, got '%s'", seq)
		}
		nd := s.clone()
		for i, a := range s.Args {
			v, err := body.Resolve(o.bind(r, a))
			if err != nil {
				return nil, diag.At(o.Loc, err)
			}
			nd.Args[i] = v
		}
		return nd, nil
	}
	if seq.IsConcrete() && !IsUnset(seq) {
		return nil, o.errorf("expected a list, got '%s'", seq)
	}
	return keep()
}

func (o *OpInit) resolveFoldl(r Resolver) (Init, error) {
	start, err := o.Args[0].Resolve(r)
	if err != nil {
		return nil, err
	}
	seq, err := o.Args[1].Resolve(r)
	if err != nil {
		return nil, err
	}
	body, err := o.Args[2].Resolve(NewShadowResolver(r, o.Vars...))
	if err != nil {
		return nil, err
	}
	list, ok := seq.(*ListInit)
	if !ok {
		if seq.IsConcrete() && !IsUnset(seq) {
			return nil, o.errorf("expected a list, got '%s'", seq)
		}
		if IsUnset(seq) && r.IsFinal() {
			return nil, o.errorf("list operand is uninitialized")
		}
		return o.with([]Init{start, seq, body}), nil
	}
	acc := start
	for _, elem := range list.Elems {
		acc, err = body.Resolve(o.bind(r, acc, elem))
		if err != nil {
			return nil, diag.At(o.Loc, err)
		}
	}
	return acc, nil
}
