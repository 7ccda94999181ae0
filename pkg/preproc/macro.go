package preproc

import "sort"

// MacroTable holds the set of defined preprocessor symbols. TableGen macros
// carry no replacement text; they exist only to be tested by #ifdef.
type MacroTable struct {
	defined map[string]bool
}

// NewMacroTable creates an empty macro table.
func NewMacroTable() *MacroTable {
	return &MacroTable{defined: make(map[string]bool)}
}

// ApplyCmdlineDefines applies -D and -U options in order.
func (mt *MacroTable) ApplyCmdlineDefines(defines, undefines []string) {
	for _, d := range defines {
		mt.Define(d)
	}
	for _, u := range undefines {
		mt.Undefine(u)
	}
}

// Define marks name as defined.
func (mt *MacroTable) Define(name string) {
	mt.defined[name] = true
}

// Undefine removes name.
func (mt *MacroTable) Undefine(name string) {
	delete(mt.defined, name)
}

// IsDefined reports whether name is defined.
func (mt *MacroTable) IsDefined(name string) bool {
	return mt.defined[name]
}

// Names returns the defined names in sorted order.
func (mt *MacroTable) Names() []string {
	names := make([]string, 0, len(mt.defined))
	for name := range mt.defined {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
