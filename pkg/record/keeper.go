package record

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// RecordKeeper owns every class, def and global variable of one run.
type RecordKeeper struct {
	classes    map[string]*Record
	classOrder []*Record
	defs       map[string]*Record
	defOrder   []*Record
	globals    map[string]Init

	anonCount    int
	literalCount int
	anonMemo     map[string]*Record

	// DumpOut receives the output of dump statements; nil discards it.
	DumpOut io.Writer
}

// NewRecordKeeper creates an empty keeper.
func NewRecordKeeper() *RecordKeeper {
	return &RecordKeeper{
		classes:  make(map[string]*Record),
		defs:     make(map[string]*Record),
		globals:  make(map[string]Init),
		anonMemo: make(map[string]*Record),
	}
}

// AddClass registers a class. Classes and defs live in separate namespaces.
func (rk *RecordKeeper) AddClass(c *Record) error {
	if prev, ok := rk.classes[c.Name]; ok {
		return diag.ErrorAt(c.Loc, diag.KindDuplicateSymbol, "class '%s' already defined at %s", c.Name, prev.Loc)
	}
	rk.classes[c.Name] = c
	rk.classOrder = append(rk.classOrder, c)
	return nil
}

// GetClass returns the class called name, or nil.
func (rk *RecordKeeper) GetClass(name string) *Record {
	return rk.classes[name]
}

// AddDef registers a finished def.
func (rk *RecordKeeper) AddDef(d *Record) error {
	if prev, ok := rk.defs[d.Name]; ok {
		return diag.ErrorAt(d.Loc, diag.KindDuplicateSymbol, "def '%s' already defined at %s", d.Name, prev.Loc)
	}
	if _, ok := rk.globals[d.Name]; ok {
		return diag.ErrorAt(d.Loc, diag.KindDuplicateSymbol, "def '%s' conflicts with a global variable of the same name", d.Name)
	}
	rk.defs[d.Name] = d
	rk.defOrder = append(rk.defOrder, d)
	return nil
}

// GetDef returns the def called name, or nil.
func (rk *RecordKeeper) GetDef(name string) *Record {
	return rk.defs[name]
}

// AddGlobal binds a top-level defvar or defset.
func (rk *RecordKeeper) AddGlobal(name string, v Init, loc diag.SourceLoc) error {
	if _, ok := rk.globals[name]; ok {
		return diag.ErrorAt(loc, diag.KindDuplicateSymbol, "global variable '%s' already defined", name)
	}
	if _, ok := rk.defs[name]; ok {
		return diag.ErrorAt(loc, diag.KindDuplicateSymbol, "global variable '%s' conflicts with a def of the same name", name)
	}
	rk.globals[name] = v
	return nil
}

// GetGlobal returns a global variable's value.
func (rk *RecordKeeper) GetGlobal(name string) (Init, bool) {
	v, ok := rk.globals[name]
	return v, ok
}

// Classes returns the classes sorted by name.
func (rk *RecordKeeper) Classes() []*Record {
	return sortedByName(rk.classOrder)
}

// Defs returns the defs sorted by name.
func (rk *RecordKeeper) Defs() []*Record {
	return sortedByName(rk.defOrder)
}

// DefsInOrder returns the defs in creation order.
func (rk *RecordKeeper) DefsInOrder() []*Record {
	return append([]*Record(nil), rk.defOrder...)
}

// DefsDerivedFrom returns the defs that inherit from the named class,
// sorted by name.
func (rk *RecordKeeper) DefsDerivedFrom(class string) []*Record {
	var out []*Record
	for _, d := range rk.defOrder {
		if d.IsSubClassOfName(class) {
			out = append(out, d)
		}
	}
	return sortedByName(out)
}

func sortedByName(in []*Record) []*Record {
	out := append([]*Record(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewLiteralOp gives a string used as a DAG operator its own identity.
func (rk *RecordKeeper) NewLiteralOp(text string) *LiteralOpInit {
	rk.literalCount++
	return &LiteralOpInit{Text: text, ID: rk.literalCount}
}

// NewAnonymousName returns the next anonymous_N name.
func (rk *RecordKeeper) NewAnonymousName() string {
	name := fmt.Sprintf("anonymous_%d", rk.anonCount)
	rk.anonCount++
	return name
}

// InstantiateAnonymous turns Class<args> used as a value into a def. The
// same class and arguments always yield the same def.
func (rk *RecordKeeper) InstantiateAnonymous(class *Record, args []Init, loc diag.SourceLoc) (*Record, error) {
	key := anonKey(class, args)
	if d, ok := rk.anonMemo[key]; ok {
		return d, nil
	}
	d := NewDef(rk.NewAnonymousName(), loc)
	d.Anonymous = true
	if err := d.AddSuperClass(rk, class, args, loc); err != nil {
		return nil, err
	}
	if err := rk.FinalizeDef(d); err != nil {
		return nil, err
	}
	rk.anonMemo[key] = d
	return d, nil
}

func anonKey(class *Record, args []Init) string {
	var sb strings.Builder
	sb.WriteString(class.Name)
	for _, a := range args {
		sb.WriteString("\x00")
		if a == nil {
			sb.WriteString("<default>")
			continue
		}
		sb.WriteString(a.String())
	}
	return sb.String()
}

// FinalizeDef resolves a def completely, checks that every field is
// concrete, runs its assertions and dumps, and registers it.
func (rk *RecordKeeper) FinalizeDef(d *Record) error {
	if prev, ok := rk.defs[d.Name]; ok {
		return diag.ErrorAt(d.Loc, diag.KindDuplicateSymbol, "def '%s' already defined at %s", d.Name, prev.Loc)
	}
	if err := d.ResolveReferences(NewRecordResolver(rk, d, true)); err != nil {
		return diag.At(d.Loc, err)
	}
	if err := d.CheckConcrete(); err != nil {
		return err
	}
	if err := d.CheckAsserts(); err != nil {
		return err
	}
	rk.emitDumps(d.Dumps)
	return rk.AddDef(d)
}

// RunDump writes one dump message.
func (rk *RecordKeeper) RunDump(d Dump) {
	rk.emitDumps([]Dump{d})
}

func (rk *RecordKeeper) emitDumps(dumps []Dump) {
	if rk.DumpOut == nil {
		return
	}
	for _, d := range dumps {
		msg := d.Msg.String()
		if s, ok := d.Msg.(*StringInit); ok {
			msg = s.Value
		}
		fmt.Fprintf(rk.DumpOut, "%s: note: %s\n", d.Loc, msg)
	}
}

func asDiag(err error) (*diag.Error, bool) {
	var de *diag.Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
