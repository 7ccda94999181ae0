package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

func resetFlags() {
	dParse = false
	lineMarkers = false
	verbose = false
	includePaths = nil
	defineFlags = nil
	undefineFlags = nil
	preprocessOnly = false
	emitFormat = "records"
	outputFile = ""
	configFile = ""
}

// writeFile creates name under dir with the given content and returns its path
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// execute runs the root command with args and returns stdout, stderr and the error
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(normalizeFlags(args))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	expectedFlags := []string{"dparse", "line-markers", "verbose", "include", "define", "undefine",
		"preprocess", "emit", "output", "config"}
	for _, flagName := range expectedFlags {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
	for _, short := range []string{"I", "D", "U", "E", "o"} {
		if cmd.Flags().ShorthandLookup(short) == nil {
			t.Errorf("expected flag -%s to exist", short)
		}
	}
}

func TestNormalizeFlags(t *testing.T) {
	tests := []struct {
		input    []string
		expected []string
	}{
		{[]string{"-dparse", "test.td"}, []string{"--dparse", "test.td"}},
		{[]string{"--dparse", "test.td"}, []string{"--dparse", "test.td"}},
		{[]string{"-emit=json", "test.td"}, []string{"--emit=json", "test.td"}},
		{[]string{"-E", "-I", "inc", "test.td"}, []string{"-E", "-I", "inc", "test.td"}},
		{[]string{"-verbose", "-o", "out.txt"}, []string{"--verbose", "-o", "out.txt"}},
	}

	for _, tt := range tests {
		result := normalizeFlags(tt.input)
		if strings.Join(result, " ") != strings.Join(tt.expected, " ") {
			t.Errorf("normalizeFlags(%v) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestNoArgsPrintsHelp(t *testing.T) {
	out, _, err := execute(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ralph-tblgen") {
		t.Errorf("expected help text, got %q", out)
	}
}

func TestEmitRecords(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "basic.td", "class C { int v = 1; }\ndef D : C;\n")

	out, errOut, err := execute(t, path)
	if err != nil {
		t.Fatalf("unexpected error: %v (stderr %q)", err, errOut)
	}
	expected := "------------- Classes -----------------\n" +
		"class C {\n  int v = 1;\n}\n" +
		"------------- Defs -----------------\n" +
		"def D {\t// C\n  int v = 1;\n}\n"
	if out != expected {
		t.Errorf("output mismatch\nexpected:\n%s\ngot:\n%s", expected, out)
	}
}

func TestDParseFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "parse.td", "def AddOp : ArithmeticOperator<\"add\">;\n")

	out, _, err := execute(t, "-dparse", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Parsing alone does not resolve the unknown parent
	if out != "def AddOp : ArithmeticOperator<\"add\">;\n" {
		t.Errorf("unexpected AST dump %q", out)
	}
}

func TestPreprocessOnlyHonorsDefines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cond.td", "#ifdef WIDE\ndef Wide;\n#else\ndef Narrow;\n#endif\n")

	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"-E", path}, "def Narrow;\n"},
		{[]string{"-E", "-D", "WIDE", path}, "def Wide;\n"},
		{[]string{"-E", "-D", "WIDE", "-U", "WIDE", path}, "def Narrow;\n"},
	}
	for _, tt := range tests {
		out, _, err := execute(t, tt.args...)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", tt.args, err)
		}
		if out != tt.expected {
			t.Errorf("%v: got %q, want %q", tt.args, out, tt.expected)
		}
	}
}

func TestLineMarkers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inc.td", "class Inc;\n")
	path := writeFile(t, dir, "main.td", "include \"inc.td\"\ndef D : Inc;\n")

	out, _, err := execute(t, "-E", "--line_markers", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "class Inc;\n") || !strings.Contains(out, "# 2 \""+path+"\"\ndef D : Inc;\n") {
		t.Errorf("unexpected line markers:\n%s", out)
	}
}

func TestIncludePath(t *testing.T) {
	dir := t.TempDir()
	incDir := filepath.Join(dir, "include")
	if err := os.Mkdir(incDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, incDir, "base.td", "class Base { int w = 4; }\n")
	path := writeFile(t, dir, "main.td", "include \"base.td\"\ndef X : Base;\n")

	if _, _, err := execute(t, path); err == nil {
		t.Error("expected an error without -I")
	}
	out, errOut, err := execute(t, "-I", incDir, path)
	if err != nil {
		t.Fatalf("unexpected error: %v (stderr %q)", err, errOut)
	}
	if !strings.Contains(out, "def X {\t// Base\n  int w = 4;\n}\n") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestEmitJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "json.td", "class C;\ndef D : C { int v = 3; }\n")

	out, _, err := execute(t, "--emit", "json", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	d, ok := doc["D"].(map[string]interface{})
	if !ok || d["v"] != float64(3) {
		t.Errorf("unexpected D: %v", doc["D"])
	}
}

func TestEmitYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "yaml.td", "def D { string s = \"x\"; }\n")

	out, _, err := execute(t, "-emit=yaml", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	d, ok := doc["D"].(map[string]interface{})
	if !ok || d["s"] != "x" {
		t.Errorf("unexpected D: %v", doc["D"])
	}
}

func TestUnknownEmitFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.td", "def D;\n")

	_, errOut, err := execute(t, "--emit", "xml", path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.HasPrefix(errOut, "ralph-tblgen: error: unknown --emit format") {
		t.Errorf("unexpected stderr %q", errOut)
	}
}

func TestOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.td", "def D;\n")
	outPath := filepath.Join(dir, "records.txt")

	out, _, err := execute(t, "-o", outPath, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if !strings.Contains(string(data), "def D {\n}\n") {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestFailedRunWritesNoOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.td", "def A;\ndef A;\n")
	outPath := filepath.Join(dir, "records.txt")

	out, errOut, err := execute(t, "-o", outPath, path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !diag.IsKind(err, diag.KindDuplicateSymbol) {
		t.Errorf("expected a duplicate symbol error, got %v", err)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Errorf("output file should not exist")
	}
	if !strings.HasPrefix(errOut, path+":2: error: ") {
		t.Errorf("unexpected stderr %q", errOut)
	}
}

func TestMissingFile(t *testing.T) {
	_, errOut, err := execute(t, filepath.Join(t.TempDir(), "missing.td"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(errOut, "could not read") {
		t.Errorf("unexpected stderr %q", errOut)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	incDir := filepath.Join(dir, "inc")
	if err := os.Mkdir(incDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, incDir, "base.td", "class Base;\n")
	path := writeFile(t, dir, "main.td", "include \"base.td\"\n#ifdef EXTRA\ndef Extra : Base;\n#endif\ndef D : Base;\n")
	config := writeFile(t, dir, "tblgen.yaml", "include_dirs:\n  - "+incDir+"\ndefines: [EXTRA]\nemit: json\n")

	out, errOut, err := execute(t, "--config", config, path)
	if err != nil {
		t.Fatalf("unexpected error: %v (stderr %q)", err, errOut)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("config emit format not applied: %v\n%s", err, out)
	}
	if _, ok := doc["Extra"]; !ok {
		t.Errorf("config defines not applied: %s", out)
	}

	// Command-line flags win over the config file
	out, _, err = execute(t, "--config", config, "--emit", "records", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "------------- Classes -----------------\n") {
		t.Errorf("--emit did not override config:\n%s", out)
	}
}

func TestBadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.td", "def D;\n")
	config := writeFile(t, dir, "bad.yaml", "defines: {not: [a list\n")

	_, errOut, err := execute(t, "--config", config, path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(errOut, "parsing config") {
		t.Errorf("unexpected stderr %q", errOut)
	}
}

func TestVerboseTrace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.td", "class C;\ndef D : C;\n")

	_, errOut, err := execute(t, "--verbose", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"ralph-tblgen: preprocessing " + path + "\n",
		"ralph-tblgen: parsed 2 statements\n",
		"ralph-tblgen: class C\n",
		"ralph-tblgen: def D\n",
		"ralph-tblgen: 1 classes, 1 defs\n",
	} {
		if !strings.Contains(errOut, want) {
			t.Errorf("trace missing %q:\n%s", want, errOut)
		}
	}
}

func TestDumpGoesToStderr(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.td", "dump \"hello\";\n")

	out, errOut, err := execute(t, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "hello") {
		t.Errorf("dump leaked to stdout: %q", out)
	}
	if !strings.Contains(errOut, "hello") {
		t.Errorf("dump missing from stderr: %q", errOut)
	}
}
