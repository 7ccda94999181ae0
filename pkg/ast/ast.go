// Package ast defines the abstract syntax tree for TableGen source.
package ast

import "github.com/raymyers/ralph-tblgen/pkg/diag"

// Node is the base interface for all AST nodes
type Node interface {
	Pos() diag.SourceLoc
	implAstNode()
}

// Expr is the interface for all expression nodes
type Expr interface {
	Node
	implAstExpr()
}

// Stmt is the interface for top-level and nested statements
type Stmt interface {
	Node
	implAstStmt()
}

// BodyItem is the interface for items inside a class or def body
type BodyItem interface {
	Node
	implBodyItem()
}

// TypeKind enumerates the type constructors
type TypeKind int

const (
	TypeBit TypeKind = iota
	TypeBits
	TypeInt
	TypeString
	TypeCode
	TypeList
	TypeDag
	TypeClass // a class name, or a deftype alias resolved later
)

// TypeRef is a written type
type TypeRef struct {
	Kind  TypeKind
	Width int      // bits<Width>
	Elem  *TypeRef // list<Elem>
	Name  string   // class or alias name
	Loc   diag.SourceLoc
}

// Arg is an argument of a template application: positional, or name=value
type Arg struct {
	Name  string
	Value Expr
}

// RangeItem is a single index (End == nil) or an inclusive range
type RangeItem struct {
	Start Expr
	End   Expr
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Unset is the uninitialized value ?
type Unset struct {
	Loc diag.SourceLoc
}

// IntLit is an integer literal
type IntLit struct {
	Value int64
	Loc   diag.SourceLoc
}

// StringLit is a string or [{code}] literal
type StringLit struct {
	Value string
	Code  bool
	Loc   diag.SourceLoc
}

// BoolLit is true or false
type BoolLit struct {
	Value bool
	Loc   diag.SourceLoc
}

// BitsLit is a {a, b, c} bit sequence, most significant bit first
type BitsLit struct {
	Elems []Expr
	Loc   diag.SourceLoc
}

// ListLit is a [a, b] list with an optional <type> suffix
type ListLit struct {
	Elems    []Expr
	ElemType *TypeRef
	Loc      diag.SourceLoc
}

// DagArg is one argument of a DAG literal; Value is nil for a bare $name
type DagArg struct {
	Value Expr
	Name  string
}

// DagLit is a (op arg:$name, ...) literal
type DagLit struct {
	Op     Expr
	OpName string
	Args   []DagArg
	Loc    diag.SourceLoc
}

// Ident is an identifier reference. NameMode marks identifiers parsed as
// part of an object name or on the right of a paste; they bind only to
// local names and otherwise stand for their own text.
type Ident struct {
	Name     string
	NameMode bool
	Loc      diag.SourceLoc
}

// ClassRef is an anonymous class instantiation Class<args>
type ClassRef struct {
	Name string
	Args []Arg
	Loc  diag.SourceLoc
}

// FieldAccess is x.field
type FieldAccess struct {
	X     Expr
	Field string
	Loc   diag.SourceLoc
}

// BitSlice is x{ranges}
type BitSlice struct {
	X      Expr
	Ranges []RangeItem
	Loc    diag.SourceLoc
}

// ListSlice is x[ranges]; a single non-range index selects one element
type ListSlice struct {
	X      Expr
	Ranges []RangeItem
	Loc    diag.SourceLoc
}

// Paste is lhs # rhs; RHS is nil for a trailing paste
type Paste struct {
	LHS Expr
	RHS Expr
	Loc diag.SourceLoc
}

// BangOp is a !op<type>(args) call
type BangOp struct {
	Op      string
	TypeArg *TypeRef
	Args    []Expr
	Loc     diag.SourceLoc
}

// RangeList is a foreach range such as 0-3 or {0-3, 7}
type RangeList struct {
	Items []RangeItem
	Loc   diag.SourceLoc
}

// ---------------------------------------------------------------------------
// Statements and body items
// ---------------------------------------------------------------------------

// TemplateParam is one template parameter with an optional default
type TemplateParam struct {
	Type    *TypeRef
	Name    string
	Default Expr
	Loc     diag.SourceLoc
}

// ParentRef is a superclass or multiclass reference with its arguments
type ParentRef struct {
	Name string
	Args []Arg
	Loc  diag.SourceLoc
}

// Body is a record body; Items is empty for `;` and `{}`
type Body struct {
	Items []BodyItem
}

// FieldDecl declares a field: [field] type name [= value];
type FieldDecl struct {
	Type    *TypeRef
	Name    string
	Value   Expr
	IsField bool
	Loc     diag.SourceLoc
}

// LetItem assigns an existing field, optionally a bit range of it
type LetItem struct {
	Name  string
	Bits  []RangeItem
	Value Expr
	Loc   diag.SourceLoc
}

// ClassStmt is a class declaration
type ClassStmt struct {
	Name    string
	Params  []TemplateParam
	Parents []ParentRef
	Body    *Body
	Loc     diag.SourceLoc
}

// DefStmt is a def; Name is nil for an anonymous def
type DefStmt struct {
	Name    Expr
	Parents []ParentRef
	Body    *Body
	Loc     diag.SourceLoc
}

// DefmStmt instantiates multiclasses (and trailing classes)
type DefmStmt struct {
	Name    Expr
	Parents []ParentRef
	Loc     diag.SourceLoc
}

// DefvarStmt binds a name to a value in the current scope
type DefvarStmt struct {
	Name  string
	Value Expr
	Loc   diag.SourceLoc
}

// DefsetStmt collects the defs created by its statements into a global list
type DefsetStmt struct {
	Type  *TypeRef
	Name  string
	Stmts []Stmt
	Loc   diag.SourceLoc
}

// DeftypeStmt names a type
type DeftypeStmt struct {
	Name string
	Type *TypeRef
	Loc  diag.SourceLoc
}

// MulticlassStmt declares a multiclass
type MulticlassStmt struct {
	Name    string
	Params  []TemplateParam
	Parents []ParentRef
	Stmts   []Stmt
	Loc     diag.SourceLoc
}

// ForeachStmt repeats its statements once per element of Iter
type ForeachStmt struct {
	Var   string
	Iter  Expr
	Stmts []Stmt
	Loc   diag.SourceLoc
}

// IfStmt selects statements on a condition
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
	Loc  diag.SourceLoc
}

// LetStmt applies field assignments to every record defined inside it
type LetStmt struct {
	Items []LetItem
	Stmts []Stmt
	Loc   diag.SourceLoc
}

// AssertStmt checks a condition
type AssertStmt struct {
	Cond Expr
	Msg  Expr
	Loc  diag.SourceLoc
}

// DumpStmt prints a message during evaluation
type DumpStmt struct {
	Msg Expr
	Loc diag.SourceLoc
}

// File is a parsed compilation unit
type File struct {
	Stmts []Stmt
}

// Positions
func (n *Unset) Pos() diag.SourceLoc          { return n.Loc }
func (n *IntLit) Pos() diag.SourceLoc         { return n.Loc }
func (n *StringLit) Pos() diag.SourceLoc      { return n.Loc }
func (n *BoolLit) Pos() diag.SourceLoc        { return n.Loc }
func (n *BitsLit) Pos() diag.SourceLoc        { return n.Loc }
func (n *ListLit) Pos() diag.SourceLoc        { return n.Loc }
func (n *DagLit) Pos() diag.SourceLoc         { return n.Loc }
func (n *Ident) Pos() diag.SourceLoc          { return n.Loc }
func (n *ClassRef) Pos() diag.SourceLoc       { return n.Loc }
func (n *FieldAccess) Pos() diag.SourceLoc    { return n.Loc }
func (n *BitSlice) Pos() diag.SourceLoc       { return n.Loc }
func (n *ListSlice) Pos() diag.SourceLoc      { return n.Loc }
func (n *Paste) Pos() diag.SourceLoc          { return n.Loc }
func (n *BangOp) Pos() diag.SourceLoc         { return n.Loc }
func (n *RangeList) Pos() diag.SourceLoc      { return n.Loc }
func (n *FieldDecl) Pos() diag.SourceLoc      { return n.Loc }
func (n *LetItem) Pos() diag.SourceLoc        { return n.Loc }
func (n *ClassStmt) Pos() diag.SourceLoc      { return n.Loc }
func (n *DefStmt) Pos() diag.SourceLoc        { return n.Loc }
func (n *DefmStmt) Pos() diag.SourceLoc       { return n.Loc }
func (n *DefvarStmt) Pos() diag.SourceLoc     { return n.Loc }
func (n *DefsetStmt) Pos() diag.SourceLoc     { return n.Loc }
func (n *DeftypeStmt) Pos() diag.SourceLoc    { return n.Loc }
func (n *MulticlassStmt) Pos() diag.SourceLoc { return n.Loc }
func (n *ForeachStmt) Pos() diag.SourceLoc    { return n.Loc }
func (n *IfStmt) Pos() diag.SourceLoc         { return n.Loc }
func (n *LetStmt) Pos() diag.SourceLoc        { return n.Loc }
func (n *AssertStmt) Pos() diag.SourceLoc     { return n.Loc }
func (n *DumpStmt) Pos() diag.SourceLoc       { return n.Loc }

// Marker methods for interface implementation
func (*Unset) implAstNode()       {}
func (*Unset) implAstExpr()       {}
func (*IntLit) implAstNode()      {}
func (*IntLit) implAstExpr()      {}
func (*StringLit) implAstNode()   {}
func (*StringLit) implAstExpr()   {}
func (*BoolLit) implAstNode()     {}
func (*BoolLit) implAstExpr()     {}
func (*BitsLit) implAstNode()     {}
func (*BitsLit) implAstExpr()     {}
func (*ListLit) implAstNode()     {}
func (*ListLit) implAstExpr()     {}
func (*DagLit) implAstNode()      {}
func (*DagLit) implAstExpr()      {}
func (*Ident) implAstNode()       {}
func (*Ident) implAstExpr()       {}
func (*ClassRef) implAstNode()    {}
func (*ClassRef) implAstExpr()    {}
func (*FieldAccess) implAstNode() {}
func (*FieldAccess) implAstExpr() {}
func (*BitSlice) implAstNode()    {}
func (*BitSlice) implAstExpr()    {}
func (*ListSlice) implAstNode()   {}
func (*ListSlice) implAstExpr()   {}
func (*Paste) implAstNode()       {}
func (*Paste) implAstExpr()       {}
func (*BangOp) implAstNode()      {}
func (*BangOp) implAstExpr()      {}
func (*RangeList) implAstNode()   {}
func (*RangeList) implAstExpr()   {}

func (*FieldDecl) implAstNode()   {}
func (*FieldDecl) implBodyItem()  {}
func (*LetItem) implAstNode()     {}
func (*LetItem) implBodyItem()    {}
func (*DefvarStmt) implBodyItem() {}
func (*AssertStmt) implBodyItem() {}
func (*DumpStmt) implBodyItem()   {}

func (*ClassStmt) implAstNode()      {}
func (*ClassStmt) implAstStmt()      {}
func (*DefStmt) implAstNode()        {}
func (*DefStmt) implAstStmt()        {}
func (*DefmStmt) implAstNode()       {}
func (*DefmStmt) implAstStmt()       {}
func (*DefvarStmt) implAstNode()     {}
func (*DefvarStmt) implAstStmt()     {}
func (*DefsetStmt) implAstNode()     {}
func (*DefsetStmt) implAstStmt()     {}
func (*DeftypeStmt) implAstNode()    {}
func (*DeftypeStmt) implAstStmt()    {}
func (*MulticlassStmt) implAstNode() {}
func (*MulticlassStmt) implAstStmt() {}
func (*ForeachStmt) implAstNode()    {}
func (*ForeachStmt) implAstStmt()    {}
func (*IfStmt) implAstNode()         {}
func (*IfStmt) implAstStmt()         {}
func (*LetStmt) implAstNode()        {}
func (*LetStmt) implAstStmt()        {}
func (*AssertStmt) implAstNode()     {}
func (*AssertStmt) implAstStmt()     {}
func (*DumpStmt) implAstNode()       {}
func (*DumpStmt) implAstStmt()       {}
