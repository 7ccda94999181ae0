package preproc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

func TestPreprocessor_PlainText(t *testing.T) {
	pp := NewPreprocessor(Options{})

	result, err := pp.PreprocessString("def A;\ndef B;\n", "test.td")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "def A;\ndef B;\n" {
		t.Errorf("unexpected text %q", result.Text)
	}
	if len(result.Lines) != 2 || result.Lines[1].Line != 2 {
		t.Errorf("unexpected line map %v", result.Lines)
	}
}

func TestPreprocessor_Ifdef(t *testing.T) {
	pp := NewPreprocessor(Options{})

	source := `#define FEATURE
#ifdef FEATURE
def Enabled;
#else
def Disabled;
#endif
#ifndef FEATURE
def Missing;
#endif
`
	result, err := pp.PreprocessString(source, "test.td")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Text, "Enabled") {
		t.Errorf("expected 'Enabled' in output, got: %s", result.Text)
	}
	if strings.Contains(result.Text, "Disabled") || strings.Contains(result.Text, "Missing") {
		t.Errorf("inactive branches leaked into output: %s", result.Text)
	}
	// The surviving line keeps its original line number.
	if result.Lines[0].Line != 3 {
		t.Errorf("expected origin line 3, got %d", result.Lines[0].Line)
	}
}

func TestPreprocessor_CmdlineDefines(t *testing.T) {
	source := "#ifdef FAST\ndef Fast;\n#endif\n"

	pp := NewPreprocessor(Options{Defines: []string{"FAST"}})
	result, err := pp.PreprocessString(source, "test.td")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Text, "Fast") {
		t.Errorf("expected -D FAST to enable the block, got %q", result.Text)
	}

	pp = NewPreprocessor(Options{Defines: []string{"FAST"}, Undefines: []string{"FAST"}})
	result, err = pp.PreprocessString(source, "test.td")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(result.Text, "Fast") {
		t.Errorf("expected -U FAST to win, got %q", result.Text)
	}
}

func TestPreprocessor_NestedInactive(t *testing.T) {
	pp := NewPreprocessor(Options{})
	source := `#ifdef OUTER
#ifndef INNER
def Hidden;
#else
def AlsoHidden;
#endif
#else
def Shown;
#endif
`
	result, err := pp.PreprocessString(source, "test.td")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(result.Text, "Hidden") {
		t.Errorf("nested branch of inactive block leaked: %q", result.Text)
	}
	if !strings.Contains(result.Text, "Shown") {
		t.Errorf("expected else branch, got %q", result.Text)
	}
}

func TestPreprocessor_DirectivesInsideCommentsIgnored(t *testing.T) {
	pp := NewPreprocessor(Options{})
	source := `/*
#ifdef NOPE
*/
def A { code c = [{
#endif
}]; }
`
	result, err := pp.PreprocessString(source, "test.td")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Text, "#ifdef NOPE") || !strings.Contains(result.Text, "#endif") {
		t.Errorf("expected directive-looking text to pass through, got %q", result.Text)
	}
}

func TestPreprocessor_PasteAtLineStart(t *testing.T) {
	pp := NewPreprocessor(Options{})
	source := "def A {\n  string s = \"a\"\n    # \"b\";\n}\n"
	result, err := pp.PreprocessString(source, "test.td")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Text, "# \"b\"") {
		t.Errorf("paste line should be kept, got %q", result.Text)
	}
}

func TestPreprocessor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"unterminated", "#ifdef X\ndef A;\n", "unterminated conditional"},
		{"stray else", "#else\n", "#else without matching"},
		{"stray endif", "#endif\n", "#endif without matching"},
		{"duplicate else", "#ifdef X\n#else\n#else\n#endif\n", "duplicate #else"},
		{"missing name", "#ifdef\n#endif\n", "expects a macro name"},
		{"trailing tokens", "#define A B\n", "only comments are allowed"},
		{"missing include", "include \"nowhere.td\"\n", "could not find include file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := NewPreprocessor(Options{})
			_, err := pp.PreprocessString(tt.source, filepath.Join(t.TempDir(), "test.td"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !diag.IsKind(err, diag.KindPreprocess) {
				t.Errorf("expected PreprocessError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestPreprocessor_IncludeWithGuard(t *testing.T) {
	tmpDir := t.TempDir()

	header := `#ifndef COMMON_TD
#define COMMON_TD
class Common;
#endif
`
	if err := os.WriteFile(filepath.Join(tmpDir, "common.td"), []byte(header), 0644); err != nil {
		t.Fatal(err)
	}

	mainContent := `include "common.td"
#include "common.td"
def A : Common;
`
	mainFile := filepath.Join(tmpDir, "main.td")
	if err := os.WriteFile(mainFile, []byte(mainContent), 0644); err != nil {
		t.Fatal(err)
	}

	pp := NewPreprocessor(Options{})
	result, err := pp.PreprocessFile(mainFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := strings.Count(result.Text, "class Common;"); n != 1 {
		t.Errorf("expected guarded header once, got %d times in %q", n, result.Text)
	}
	if len(result.Deps) != 1 || filepath.Base(result.Deps[0]) != "common.td" {
		t.Errorf("unexpected deps %v", result.Deps)
	}

	// The header line maps back to the header file.
	idx := -1
	for i, line := range strings.Split(result.Text, "\n") {
		if line == "class Common;" {
			idx = i
		}
	}
	if idx < 0 || filepath.Base(result.Lines[idx].File) != "common.td" || result.Lines[idx].Line != 3 {
		t.Errorf("unexpected origin for header line: %v", result.Lines)
	}
}

func TestPreprocessor_IncludeSearchPath(t *testing.T) {
	tmpDir := t.TempDir()
	incDir := filepath.Join(tmpDir, "inc")
	if err := os.MkdirAll(incDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(incDir, "lib.td"), []byte("class Lib;\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pp := NewPreprocessor(Options{IncludePaths: []string{incDir}})
	result, err := pp.PreprocessString("include \"lib.td\"\ndef X : Lib;\n", filepath.Join(tmpDir, "main.td"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Text, "class Lib;") {
		t.Errorf("expected include from -I path, got %q", result.Text)
	}
}

func TestPreprocessor_CircularInclude(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "a.td"), []byte("include \"b.td\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "b.td"), []byte("include \"a.td\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pp := NewPreprocessor(Options{})
	_, err := pp.PreprocessFile(filepath.Join(tmpDir, "a.td"))
	if err == nil {
		t.Fatal("expected circular include error")
	}
	if !strings.Contains(err.Error(), "circular include") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPreprocessor_ConditionalAroundInclude(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "inner.td"), []byte("def Inner;\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pp := NewPreprocessor(Options{})
	source := "#ifndef SKIP\ninclude \"inner.td\"\n#endif\n"
	result, err := pp.PreprocessString(source, filepath.Join(tmpDir, "main.td"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Text, "def Inner;") {
		t.Errorf("expected included text, got %q", result.Text)
	}
}

func TestResultFormatLineMarkers(t *testing.T) {
	pp := NewPreprocessor(Options{})
	result, err := pp.PreprocessString("#ifdef X\n#endif\ndef A;\ndef B;\n", "m.td")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := result.Format(true)
	want := "# 3 \"m.td\"\ndef A;\ndef B;\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if result.Format(false) != result.Text {
		t.Error("Format(false) should return the plain text")
	}
}

func TestResultLoc(t *testing.T) {
	r := &Result{Lines: []diag.SourceLoc{{File: "a.td", Line: 4}}}
	if loc := r.Loc(1, 7); loc.File != "a.td" || loc.Line != 4 || loc.Column != 7 {
		t.Errorf("unexpected loc %+v", loc)
	}
	if loc := r.Loc(2, 1); loc.Line != 5 {
		t.Errorf("past-the-end line should follow the last one, got %+v", loc)
	}
}

func TestDetectIncludeGuard(t *testing.T) {
	if g := detectIncludeGuard("// header\n#ifndef G\n#define G\n#endif\n"); g != "G" {
		t.Errorf("expected guard G, got %q", g)
	}
	if g := detectIncludeGuard("#ifndef G\n#define H\n#endif\n"); g != "" {
		t.Errorf("mismatched guard should not be detected, got %q", g)
	}
	if g := detectIncludeGuard("class A;\n#ifndef G\n#define G\n"); g != "" {
		t.Errorf("guard must come first, got %q", g)
	}
}
