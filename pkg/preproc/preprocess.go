// preprocess.go implements the main preprocessor driver with include processing.
package preproc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// Options configures the preprocessing step.
type Options struct {
	Defines      []string // -D names
	Undefines    []string // -U names
	IncludePaths []string // -I directories
}

// Result is the preprocessed unit: one text with every include inlined, and
// the origin of each of its lines.
type Result struct {
	Text  string
	Lines []diag.SourceLoc // Lines[i] is the origin of output line i+1
	Deps  []string         // included files, in first-inclusion order
}

// Loc maps a line/column of the preprocessed text back to its origin.
func (r *Result) Loc(line, column int) diag.SourceLoc {
	if line >= 1 && line <= len(r.Lines) {
		loc := r.Lines[line-1]
		loc.Column = column
		return loc
	}
	if len(r.Lines) > 0 {
		last := r.Lines[len(r.Lines)-1]
		return diag.SourceLoc{File: last.File, Line: last.Line + 1, Column: column}
	}
	return diag.SourceLoc{Line: line, Column: column}
}

// Format renders the text, optionally with # N "file" line markers
// wherever the origin is not the line after the previous one.
func (r *Result) Format(lineMarkers bool) string {
	if !lineMarkers {
		return r.Text
	}
	var sb strings.Builder
	lines := strings.SplitAfter(r.Text, "\n")
	var prev diag.SourceLoc
	for i, line := range lines {
		if line == "" {
			continue
		}
		if i < len(r.Lines) {
			loc := r.Lines[i]
			if loc.File != prev.File || loc.Line != prev.Line+1 {
				fmt.Fprintf(&sb, "# %d \"%s\"\n", loc.Line, loc.File)
			}
			prev = loc
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// Preprocessor is the main driver for TableGen preprocessing.
type Preprocessor struct {
	macros        *MacroTable
	conditional   *ConditionalProcessor
	resolver      *IncludeResolver
	opts          Options
	includeGuards map[string]string // file path -> guard macro name

	out   strings.Builder
	lines []diag.SourceLoc
	deps  []string
}

// NewPreprocessor creates a new preprocessor instance.
func NewPreprocessor(opts Options) *Preprocessor {
	macros := NewMacroTable()
	macros.ApplyCmdlineDefines(opts.Defines, opts.Undefines)

	resolver := NewIncludeResolver()
	for _, p := range opts.IncludePaths {
		resolver.AddUserPath(p)
	}

	return &Preprocessor{
		macros:        macros,
		conditional:   NewConditionalProcessor(macros),
		resolver:      resolver,
		opts:          opts,
		includeGuards: make(map[string]string),
	}
}

// PreprocessFile preprocesses a file and returns the result.
func (p *Preprocessor) PreprocessFile(filename string) (*Result, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, diag.Errorf(diag.KindPreprocess, "%v", errors.Wrapf(err, "could not read %s", filename))
	}

	if err := p.resolver.PushFile(filename); err != nil {
		return nil, err
	}
	defer p.resolver.PopFile()

	return p.run(string(content), filename)
}

// PreprocessString preprocesses source text, using filename for locations
// and for resolving includes relative to its directory.
func (p *Preprocessor) PreprocessString(source, filename string) (*Result, error) {
	return p.run(source, filename)
}

func (p *Preprocessor) run(source, filename string) (*Result, error) {
	p.out.Reset()
	p.lines = nil
	p.deps = nil

	p.resolver.SetCurrentFile(filename)
	if err := p.preprocessContent(source, filename); err != nil {
		return nil, err
	}
	return &Result{Text: p.out.String(), Lines: p.lines, Deps: p.deps}, nil
}

// GetMacros returns the macro table for inspection.
func (p *Preprocessor) GetMacros() *MacroTable {
	return p.macros
}

// preprocessContent is the main preprocessing loop over one file.
func (p *Preprocessor) preprocessContent(source, filename string) error {
	depth := p.conditional.Depth()
	var state lineState

	lines := strings.Split(source, "\n")
	// A trailing newline does not start another line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	for i, line := range lines {
		loc := diag.SourceLoc{File: filename, Line: i + 1, Column: 1}

		if state.atTopLevel() {
			handled, err := p.processDirective(line, loc)
			if err != nil {
				return err
			}
			if handled {
				continue
			}
		}

		state.scan(line)
		if p.conditional.IsActive() {
			p.out.WriteString(line)
			p.out.WriteByte('\n')
			p.lines = append(p.lines, loc)
		}
	}

	return p.conditional.CheckBalanced(depth)
}

// processDirective handles a line if it is a directive or an include.
// It reports whether the line was consumed.
func (p *Preprocessor) processDirective(line string, loc diag.SourceLoc) (bool, error) {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return false, nil
	}

	tokens := NewLexer(line, loc.File, loc.Line).AllTokens()

	// TableGen "include" statement, handled textually.
	if tokens[0].Type == PP_IDENTIFIER && tokens[0].Text == "include" &&
		len(tokens) > 1 && tokens[1].Type == PP_STRING {
		if !p.conditional.IsActive() {
			return true, nil
		}
		if len(tokens) > 2 && tokens[2].Type != PP_EOF {
			return true, diag.ErrorAt(tokens[2].Loc, diag.KindPreprocess, "unexpected text after include")
		}
		return true, p.processInclude(tokens[1], loc)
	}

	if tokens[0].Type != PP_HASH || len(tokens) < 2 || tokens[1].Type != PP_IDENTIFIER {
		return false, nil
	}

	name := tokens[1].Text
	args := tokens[2:]
	// Drop the trailing EOF.
	args = args[:len(args)-1]

	switch name {
	case "ifdef", "ifndef":
		macro, err := expectMacroName(name, args, loc)
		if err != nil {
			return true, err
		}
		if name == "ifdef" {
			p.conditional.ProcessIfdef(macro, loc)
		} else {
			p.conditional.ProcessIfndef(macro, loc)
		}
		return true, nil
	case "else":
		if err := expectNoArgs(name, args); err != nil {
			return true, err
		}
		if err := p.conditional.ProcessElse(); err != nil {
			return true, diag.ErrorAt(loc, diag.KindPreprocess, "%v", err)
		}
		return true, nil
	case "endif":
		if err := expectNoArgs(name, args); err != nil {
			return true, err
		}
		if err := p.conditional.ProcessEndif(); err != nil {
			return true, diag.ErrorAt(loc, diag.KindPreprocess, "%v", err)
		}
		return true, nil
	case "define", "undef":
		if !p.conditional.IsActive() {
			return true, nil
		}
		macro, err := expectMacroName(name, args, loc)
		if err != nil {
			return true, err
		}
		if name == "define" {
			p.macros.Define(macro)
		} else {
			p.macros.Undefine(macro)
		}
		return true, nil
	case "include":
		if !p.conditional.IsActive() {
			return true, nil
		}
		if len(args) != 1 || args[0].Type != PP_STRING {
			return true, diag.ErrorAt(loc, diag.KindPreprocess, "#include expects a quoted file name")
		}
		return true, p.processInclude(args[0], loc)
	}

	// Anything else starting with # is a paste operator in ordinary text.
	return false, nil
}

func expectMacroName(directive string, args []Token, loc diag.SourceLoc) (string, error) {
	if len(args) == 0 || args[0].Type != PP_IDENTIFIER {
		return "", diag.ErrorAt(loc, diag.KindPreprocess, "#%s expects a macro name", directive)
	}
	if len(args) > 1 {
		return "", diag.ErrorAt(args[1].Loc, diag.KindPreprocess, "only comments are allowed after #%s NAME", directive)
	}
	return args[0].Text, nil
}

func expectNoArgs(directive string, args []Token) error {
	if len(args) > 0 {
		return diag.ErrorAt(args[0].Loc, diag.KindPreprocess, "only comments are allowed after #%s", directive)
	}
	return nil
}

// processInclude inlines an included file.
func (p *Preprocessor) processInclude(nameTok Token, loc diag.SourceLoc) error {
	fileName, err := strconv.Unquote(nameTok.Text)
	if err != nil {
		fileName = strings.Trim(nameTok.Text, "\"")
	}
	if fileName == "" {
		return diag.ErrorAt(loc, diag.KindPreprocess, "empty include file name")
	}

	p.resolver.SetCurrentFile(loc.File)
	includePath, err := p.resolver.Resolve(fileName)
	if err != nil {
		return diag.ErrorAt(loc, diag.KindPreprocess, "%v", err)
	}

	// A guarded file whose guard is already defined contributes nothing.
	if guardMacro, ok := p.includeGuards[includePath]; ok {
		if p.macros.IsDefined(guardMacro) {
			return nil
		}
	}

	if p.resolver.IncludeDepth() >= MaxIncludeDepth {
		return diag.ErrorAt(loc, diag.KindPreprocess, "include nested too deeply")
	}

	if err := p.resolver.PushFile(includePath); err != nil {
		return diag.ErrorAt(loc, diag.KindPreprocess, "%v", err)
	}
	defer p.resolver.PopFile()

	content, err := os.ReadFile(includePath)
	if err != nil {
		return diag.ErrorAt(loc, diag.KindPreprocess, "%v", errors.Wrapf(err, "could not read %s", includePath))
	}

	if guardMacro := detectIncludeGuard(string(content)); guardMacro != "" {
		p.includeGuards[includePath] = guardMacro
	}
	p.addDep(includePath)

	oldDir := p.resolver.CurrentDir
	p.resolver.SetCurrentFile(includePath)
	defer func() { p.resolver.CurrentDir = oldDir }()

	return p.preprocessContent(string(content), displayPath(includePath))
}

func (p *Preprocessor) addDep(path string) {
	for _, d := range p.deps {
		if d == path {
			return
		}
	}
	p.deps = append(p.deps, path)
}

// displayPath shortens an absolute include path relative to the working
// directory when that is possible.
func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// detectIncludeGuard checks if a file starts with an #ifndef G / #define G
// pair. Returns the guard macro name if found, empty string otherwise.
func detectIncludeGuard(content string) string {
	var directives [][]Token
	var state lineState
	for i, line := range strings.Split(content, "\n") {
		if len(directives) == 2 {
			break
		}
		if !state.atTopLevel() {
			state.scan(line)
			continue
		}
		tokens := NewLexer(line, "", i+1).AllTokens()
		state.scan(line)
		if tokens[0].Type == PP_EOF {
			continue
		}
		if tokens[0].Type != PP_HASH {
			return ""
		}
		directives = append(directives, tokens)
	}

	if len(directives) < 2 {
		return ""
	}
	first, second := directives[0], directives[1]
	if len(first) < 3 || first[1].Text != "ifndef" || first[2].Type != PP_IDENTIFIER {
		return ""
	}
	if len(second) < 3 || second[1].Text != "define" || second[2].Text != first[2].Text {
		return ""
	}
	return first[2].Text
}
