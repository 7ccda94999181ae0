// Package ast provides AST printing functionality
package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Printer outputs the AST as normalized TableGen source
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new AST printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 0}
}

// PrintFile prints a complete compilation unit
func (p *Printer) PrintFile(f *File) {
	for _, stmt := range f.Stmts {
		p.printStmt(stmt)
	}
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
}

func (p *Printer) printStmts(stmts []Stmt) {
	fmt.Fprintln(p.w, "{")
	p.indent++
	for _, s := range stmts {
		p.printStmt(s)
	}
	p.indent--
	p.writeIndent()
	fmt.Fprintln(p.w, "}")
}

func (p *Printer) printStmt(stmt Stmt) {
	p.writeIndent()
	switch s := stmt.(type) {
	case *ClassStmt:
		fmt.Fprintf(p.w, "class %s%s%s", s.Name, formatParams(s.Params), formatParents(s.Parents))
		p.printBody(s.Body)
	case *DefStmt:
		fmt.Fprint(p.w, "def")
		if s.Name != nil {
			fmt.Fprintf(p.w, " %s", ExprString(s.Name))
		}
		fmt.Fprint(p.w, formatParents(s.Parents))
		p.printBody(s.Body)
	case *DefmStmt:
		fmt.Fprint(p.w, "defm")
		if s.Name != nil {
			fmt.Fprintf(p.w, " %s", ExprString(s.Name))
		}
		fmt.Fprintf(p.w, "%s;\n", formatParents(s.Parents))
	case *DefvarStmt:
		fmt.Fprintf(p.w, "defvar %s = %s;\n", s.Name, ExprString(s.Value))
	case *DefsetStmt:
		fmt.Fprintf(p.w, "defset %s %s = ", s.Type, s.Name)
		p.printStmts(s.Stmts)
	case *DeftypeStmt:
		fmt.Fprintf(p.w, "deftype %s = %s;\n", s.Name, s.Type)
	case *MulticlassStmt:
		fmt.Fprintf(p.w, "multiclass %s%s%s ", s.Name, formatParams(s.Params), formatParents(s.Parents))
		p.printStmts(s.Stmts)
	case *ForeachStmt:
		fmt.Fprintf(p.w, "foreach %s = %s in ", s.Var, ExprString(s.Iter))
		p.printStmts(s.Stmts)
	case *IfStmt:
		fmt.Fprintf(p.w, "if %s then ", ExprString(s.Cond))
		p.printStmts(s.Then)
		if s.Else != nil {
			p.writeIndent()
			fmt.Fprint(p.w, "else ")
			p.printStmts(s.Else)
		}
	case *LetStmt:
		items := make([]string, len(s.Items))
		for i := range s.Items {
			items[i] = formatLetItem(&s.Items[i])
		}
		fmt.Fprintf(p.w, "let %s in ", strings.Join(items, ", "))
		p.printStmts(s.Stmts)
	case *AssertStmt:
		fmt.Fprintf(p.w, "assert %s, %s;\n", ExprString(s.Cond), ExprString(s.Msg))
	case *DumpStmt:
		fmt.Fprintf(p.w, "dump %s;\n", ExprString(s.Msg))
	default:
		fmt.Fprintf(p.w, "/* unknown statement %T */\n", stmt)
	}
}

func (p *Printer) printBody(b *Body) {
	if b == nil || len(b.Items) == 0 {
		fmt.Fprintln(p.w, ";")
		return
	}
	fmt.Fprintln(p.w, " {")
	p.indent++
	for _, item := range b.Items {
		p.writeIndent()
		switch it := item.(type) {
		case *FieldDecl:
			if it.IsField {
				fmt.Fprint(p.w, "field ")
			}
			fmt.Fprintf(p.w, "%s %s", it.Type, it.Name)
			if it.Value != nil {
				fmt.Fprintf(p.w, " = %s", ExprString(it.Value))
			}
			fmt.Fprintln(p.w, ";")
		case *LetItem:
			fmt.Fprintf(p.w, "let %s;\n", formatLetItem(it))
		case *DefvarStmt:
			fmt.Fprintf(p.w, "defvar %s = %s;\n", it.Name, ExprString(it.Value))
		case *AssertStmt:
			fmt.Fprintf(p.w, "assert %s, %s;\n", ExprString(it.Cond), ExprString(it.Msg))
		case *DumpStmt:
			fmt.Fprintf(p.w, "dump %s;\n", ExprString(it.Msg))
		default:
			fmt.Fprintf(p.w, "/* unknown body item %T */\n", item)
		}
	}
	p.indent--
	p.writeIndent()
	fmt.Fprintln(p.w, "}")
}

func formatLetItem(it *LetItem) string {
	name := it.Name
	if len(it.Bits) > 0 {
		name += "{" + formatRanges(it.Bits) + "}"
	}
	return fmt.Sprintf("%s = %s", name, ExprString(it.Value))
}

func formatParams(params []TemplateParam) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, len(params))
	for i, tp := range params {
		parts[i] = fmt.Sprintf("%s %s", tp.Type, tp.Name)
		if tp.Default != nil {
			parts[i] += " = " + ExprString(tp.Default)
		}
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

func formatParents(parents []ParentRef) string {
	if len(parents) == 0 {
		return ""
	}
	parts := make([]string, len(parents))
	for i, pr := range parents {
		parts[i] = pr.Name + formatArgs(pr.Args)
	}
	return " : " + strings.Join(parts, ", ")
}

func formatArgs(args []Arg) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		if a.Name != "" {
			parts[i] = a.Name + " = " + ExprString(a.Value)
		} else {
			parts[i] = ExprString(a.Value)
		}
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

func formatRanges(ranges []RangeItem) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		if r.End == nil {
			parts[i] = ExprString(r.Start)
		} else {
			parts[i] = ExprString(r.Start) + "..." + ExprString(r.End)
		}
	}
	return strings.Join(parts, ", ")
}

func (t *TypeRef) String() string {
	if t == nil {
		return "?"
	}
	switch t.Kind {
	case TypeBit:
		return "bit"
	case TypeBits:
		return fmt.Sprintf("bits<%d>", t.Width)
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	case TypeCode:
		return "code"
	case TypeList:
		return fmt.Sprintf("list<%s>", t.Elem)
	case TypeDag:
		return "dag"
	default:
		return t.Name
	}
}

// ExprString renders an expression in source form
func ExprString(e Expr) string {
	switch x := e.(type) {
	case nil:
		return ""
	case *Unset:
		return "?"
	case *IntLit:
		return strconv.FormatInt(x.Value, 10)
	case *StringLit:
		if x.Code {
			return "[{" + x.Value + "}]"
		}
		return strconv.Quote(x.Value)
	case *BoolLit:
		if x.Value {
			return "true"
		}
		return "false"
	case *BitsLit:
		return "{ " + joinExprs(x.Elems) + " }"
	case *ListLit:
		s := "[" + joinExprs(x.Elems) + "]"
		if x.ElemType != nil {
			s += "<" + x.ElemType.String() + ">"
		}
		return s
	case *DagLit:
		var sb strings.Builder
		sb.WriteString("(")
		sb.WriteString(ExprString(x.Op))
		if x.OpName != "" {
			sb.WriteString(":$" + x.OpName)
		}
		for i, a := range x.Args {
			if i == 0 {
				sb.WriteString(" ")
			} else {
				sb.WriteString(", ")
			}
			if a.Value != nil {
				sb.WriteString(ExprString(a.Value))
				if a.Name != "" {
					sb.WriteString(":")
				}
			}
			if a.Name != "" {
				sb.WriteString("$" + a.Name)
			}
		}
		sb.WriteString(")")
		return sb.String()
	case *Ident:
		return x.Name
	case *ClassRef:
		return x.Name + formatArgs(x.Args)
	case *FieldAccess:
		return ExprString(x.X) + "." + x.Field
	case *BitSlice:
		return ExprString(x.X) + "{" + formatRanges(x.Ranges) + "}"
	case *ListSlice:
		return ExprString(x.X) + "[" + formatRanges(x.Ranges) + "]"
	case *Paste:
		if x.RHS == nil {
			return ExprString(x.LHS) + "#"
		}
		return ExprString(x.LHS) + "#" + ExprString(x.RHS)
	case *BangOp:
		s := "!" + x.Op
		if x.TypeArg != nil {
			s += "<" + x.TypeArg.String() + ">"
		}
		if x.Op == "cond" {
			pairs := make([]string, 0, len(x.Args)/2)
			for i := 0; i+1 < len(x.Args); i += 2 {
				pairs = append(pairs, ExprString(x.Args[i])+" : "+ExprString(x.Args[i+1]))
			}
			return s + "(" + strings.Join(pairs, ", ") + ")"
		}
		return s + "(" + joinExprs(x.Args) + ")"
	case *RangeList:
		return "{" + formatRanges(x.Items) + "}"
	default:
		return fmt.Sprintf("/* %T */", e)
	}
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}
