package record

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs the records of a keeper in the textual dump format
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new record printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 1}
}

// PrintRecords prints the Classes section then the Defs section, each
// sorted by name.
func (p *Printer) PrintRecords(rk *RecordKeeper) {
	fmt.Fprintln(p.w, "------------- Classes -----------------")
	for _, c := range rk.Classes() {
		p.PrintRecord(c)
	}
	fmt.Fprintln(p.w, "------------- Defs -----------------")
	for _, d := range rk.Defs() {
		p.PrintRecord(d)
	}
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
}

// PrintRecord prints one class or def block.
func (p *Printer) PrintRecord(r *Record) {
	if r.IsClass {
		fmt.Fprintf(p.w, "class %s", r.Name)
		if len(r.TemplateArgs) > 0 {
			args := make([]string, len(r.TemplateArgs))
			for i, name := range r.TemplateArgs {
				args[i] = formatValue(r.GetValue(name))
			}
			fmt.Fprintf(p.w, "<%s>", strings.Join(args, ", "))
		}
		fmt.Fprint(p.w, " {")
		p.printParents(r.DirectSuperClasses)
	} else {
		fmt.Fprintf(p.w, "def %s {", r.Name)
		p.printParents(r.SuperClasses)
	}
	fmt.Fprintln(p.w)

	for _, rv := range r.Fields() {
		p.writeIndent()
		if rv.IsField {
			fmt.Fprint(p.w, "field ")
		}
		fmt.Fprintf(p.w, "%s;\n", formatValue(rv))
	}
	fmt.Fprintln(p.w, "}")
}

func (p *Printer) printParents(parents []*Record) {
	if len(parents) == 0 {
		return
	}
	fmt.Fprint(p.w, "\t//")
	for _, sc := range parents {
		fmt.Fprintf(p.w, " %s", sc.Name)
	}
}

func formatValue(rv *RecordVal) string {
	return fmt.Sprintf("%s %s = %s", typeName(rv.Type), rv.Name, rv.Value)
}

// FormatRecord renders one record block as PrintRecord would.
func FormatRecord(r *Record) string {
	var sb strings.Builder
	NewPrinter(&sb).PrintRecord(r)
	return sb.String()
}
