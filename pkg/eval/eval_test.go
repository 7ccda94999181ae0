package eval

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
	"github.com/raymyers/ralph-tblgen/pkg/parser"
	"github.com/raymyers/ralph-tblgen/pkg/record"
	"gopkg.in/yaml.v3"
)

// TestSpec is an input whose printed records must equal Output
type TestSpec struct {
	Name   string `yaml:"name"`
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// ErrorSpec is an input that must fail with the given error kind
type ErrorSpec struct {
	Name  string `yaml:"name"`
	Input string `yaml:"input"`
	Kind  string `yaml:"kind"`
	Error string `yaml:"error"`
}

// TestFile represents the eval.yaml file structure
type TestFile struct {
	Tests  []TestSpec  `yaml:"tests"`
	Errors []ErrorSpec `yaml:"errors"`
}

func loadTestFile(t *testing.T) TestFile {
	t.Helper()
	data, err := os.ReadFile("../../testdata/eval.yaml")
	if err != nil {
		t.Fatalf("failed to read eval.yaml: %v", err)
	}
	var testFile TestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse eval.yaml: %v", err)
	}
	return testFile
}

func evalSource(t *testing.T, src string) (*record.RecordKeeper, error) {
	t.Helper()
	file, err := parser.ParseString(src, nil)
	if err != nil {
		t.Fatalf("parser error: %v", err)
	}
	rk := record.NewRecordKeeper()
	return rk, New(rk).EvalFile(file)
}

func mustEval(t *testing.T, src string) *record.RecordKeeper {
	t.Helper()
	rk, err := evalSource(t, src)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	return rk
}

func fieldValue(t *testing.T, rk *record.RecordKeeper, def, field string) string {
	t.Helper()
	d := rk.GetDef(def)
	if d == nil {
		t.Fatalf("def %s not found", def)
	}
	rv := d.GetValue(field)
	if rv == nil {
		t.Fatalf("def %s has no field %s", def, field)
	}
	return rv.Value.String()
}

func TestEvalYAML(t *testing.T) {
	for _, tc := range loadTestFile(t).Tests {
		t.Run(tc.Name, func(t *testing.T) {
			rk := mustEval(t, tc.Input)
			var buf bytes.Buffer
			record.NewPrinter(&buf).PrintRecords(rk)
			if buf.String() != tc.Output {
				t.Errorf("output mismatch\nexpected:\n%s\ngot:\n%s", tc.Output, buf.String())
			}
		})
	}
}

func TestEvalErrorsYAML(t *testing.T) {
	for _, tc := range loadTestFile(t).Errors {
		t.Run(tc.Name, func(t *testing.T) {
			_, err := evalSource(t, tc.Input)
			if err == nil {
				t.Fatal("expected an error")
			}
			kind, ok := diag.KindOf(err)
			if !ok || kind.String() != tc.Kind {
				t.Errorf("expected %s, got %v", tc.Kind, err)
			}
			if !strings.Contains(err.Error(), tc.Error) {
				t.Errorf("expected %q in %q", tc.Error, err.Error())
			}
		})
	}
}

func TestNameRefersToDef(t *testing.T) {
	rk := mustEval(t, `
class Named { string n = NAME; }
def Foo : Named;
def Bar { string own = NAME; }
`)
	if got := fieldValue(t, rk, "Foo", "n"); got != `"Foo"` {
		t.Errorf("Foo.n = %s", got)
	}
	if got := fieldValue(t, rk, "Bar", "own"); got != `"Bar"` {
		t.Errorf("Bar.own = %s", got)
	}
}

func TestAnonymousClassInstance(t *testing.T) {
	rk := mustEval(t, `
class P<int x> { int v = !mul(x, 2); }
def U { int w = P<3>.v; }
def V { int w = P<3>.v; }
`)
	if got := fieldValue(t, rk, "U", "w"); got != "6" {
		t.Errorf("U.w = %s", got)
	}
	var anon int
	for _, d := range rk.Defs() {
		if strings.HasPrefix(d.Name, "anonymous_") {
			anon++
		}
	}
	if anon != 1 {
		t.Errorf("expected one anonymous def for P<3>, got %d", anon)
	}
}

func TestFieldsResolveLate(t *testing.T) {
	rk := mustEval(t, `
class Base {
  int size = 4;
  int bytes = !mul(size, 8);
}
def Small : Base;
def Big : Base { let size = 16; }
`)
	if got := fieldValue(t, rk, "Small", "bytes"); got != "32" {
		t.Errorf("Small.bytes = %s", got)
	}
	if got := fieldValue(t, rk, "Big", "bytes"); got != "128" {
		t.Errorf("Big.bytes = %s", got)
	}
}

// fieldListing renders a def's fields without its name or ancestors
func fieldListing(t *testing.T, rk *record.RecordKeeper, def string) string {
	t.Helper()
	d := rk.GetDef(def)
	if d == nil {
		t.Fatalf("def %s not found", def)
	}
	var lines []string
	for _, rv := range d.Fields() {
		lines = append(lines, rv.Type.String()+" "+rv.Name+" = "+rv.Value.String())
	}
	return strings.Join(lines, "; ")
}

func TestFlatteningMatchesHandFlattenedClass(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "let_in_grandchild",
			src: `
class A { int x = 1; }
class B : A { int y = !add(x, 1); }
class C : B { let x = 10; }
def Deep : C;
class Flat { int x = 10; int y = !add(x, 1); }
def Shallow : Flat;
`,
			want: "int x = 10; int y = 11",
		},
		{
			name: "forwarded_template_arguments",
			src: `
class A<int w> { int x = 1; int width = w; }
class B<int w> : A<w> { int y = !add(x, width); }
class C<int w> : B<!mul(w, 2)> { let x = 10; }
def Deep : C<4>;
class Flat<int w> { int x = 10; int width = w; int y = !add(x, width); }
def Shallow : Flat<8>;
`,
			want: "int x = 10; int width = 8; int y = 18",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rk := mustEval(t, tt.src)
			deep := fieldListing(t, rk, "Deep")
			shallow := fieldListing(t, rk, "Shallow")
			if deep != shallow {
				t.Errorf("hierarchy and flat class differ\ndeep:    %s\nshallow: %s", deep, shallow)
			}
			if deep != tt.want {
				t.Errorf("fields = %s, want %s", deep, tt.want)
			}
		})
	}
}

func TestDagLiteralsKeepIdentity(t *testing.T) {
	rk := mustEval(t, `
def ops;
def X {
  dag a = ("op" 1);
  dag b = ("op" 1);
  bit same = !eq(a, b);
  bit self = !eq(a, a);
  dag r = (ops 1:$x, 2);
  dag joined = !con(r, (ops 3));
}
`)
	if got := fieldValue(t, rk, "X", "same"); got != "0" {
		t.Errorf("distinct literal operators compared equal: %s", got)
	}
	if got := fieldValue(t, rk, "X", "self"); got != "1" {
		t.Errorf("a dag is not equal to itself: %s", got)
	}
	if got := fieldValue(t, rk, "X", "joined"); got != "(ops 1:$x, 2, 3)" {
		t.Errorf("joined = %s", got)
	}
}

func TestBangOperatorsBindVariables(t *testing.T) {
	rk := mustEval(t, `
def X {
  list<int> nums = [1, 2, 3, 4];
  list<int> doubled = !foreach(n, nums, !mul(n, 2));
  list<int> even = !filter(n, nums, !eq(!and(n, 1), 0));
  int sum = !foldl(0, nums, acc, n, !add(acc, n));
  string joined = !interleave(!foreach(n, nums, !cast<string>(n)), ",");
}
`)
	tests := map[string]string{
		"doubled": "[2, 4, 6, 8]",
		"even":    "[2, 4]",
		"sum":     "10",
		"joined":  `"1,2,3,4"`,
	}
	for field, want := range tests {
		if got := fieldValue(t, rk, "X", field); got != want {
			t.Errorf("%s = %s, want %s", field, got, want)
		}
	}
}

func TestLocalDefvarShadowsGlobal(t *testing.T) {
	rk := mustEval(t, `
defvar x = 1;
def A { int v = x; }
def B {
  defvar x = 2;
  int v = x;
}
foreach x = [3] in def C { int v = x; }
`)
	for def, want := range map[string]string{"A": "1", "B": "2", "C": "3"} {
		if got := fieldValue(t, rk, def, "v"); got != want {
			t.Errorf("%s.v = %s, want %s", def, got, want)
		}
	}
}

func TestForeachRanges(t *testing.T) {
	rk := mustEval(t, `
foreach i = {0-1, 5} in def R#i;
foreach j = 3-2 in def S#j;
`)
	var names []string
	for _, d := range rk.Defs() {
		names = append(names, d.Name)
	}
	if got := strings.Join(names, " "); got != "R0 R1 R5 S2 S3" {
		t.Errorf("defs = %s", got)
	}
}

func TestNestedMulticlass(t *testing.T) {
	rk := mustEval(t, `
class Inst<string n> { string Name = n; int Size = 0; }
class Wide { bit IsWide = 1; }
multiclass Base<string n> {
  def _r : Inst<n>;
}
multiclass Both<string n> : Base<n> {
  defm _w : Base<n # "w">, Wide;
  def NAME#_explicit : Inst<NAME>;
}
let Size = 8 in
defm X : Both<"x">;
`)
	want := []string{"X_explicit", "X_r", "X_w_r"}
	defs := rk.Defs()
	if len(defs) != len(want) {
		t.Fatalf("expected %d defs, got %d", len(want), len(defs))
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("def %d = %s, want %s", i, d.Name, want[i])
		}
		if got := fieldValue(t, rk, d.Name, "Size"); got != "8" {
			t.Errorf("%s.Size = %s, want 8", d.Name, got)
		}
	}
	if got := fieldValue(t, rk, "X_w_r", "Name"); got != `"xw"` {
		t.Errorf("X_w_r.Name = %s", got)
	}
	if rk.GetDef("X_w_r").GetValue("IsWide") == nil {
		t.Errorf("trailing class was not applied to X_w_r")
	}
	if rk.GetDef("X_r").GetValue("IsWide") != nil {
		t.Errorf("trailing class leaked to X_r")
	}
	if got := fieldValue(t, rk, "X_explicit", "Name"); got != `"X"` {
		t.Errorf("X_explicit.Name = %s", got)
	}
}

func TestMulticlassDefaultArguments(t *testing.T) {
	rk := mustEval(t, `
class Reg<int w> { int Width = w; }
multiclass Regs<int base, int wide = !mul(base, 2)> {
  def _n : Reg<base>;
  def _w : Reg<wide>;
}
defm A : Regs<8>;
defm B : Regs<8, 64>;
`)
	for def, want := range map[string]string{"A_n": "8", "A_w": "16", "B_w": "64"} {
		if got := fieldValue(t, rk, def, "Width"); got != want {
			t.Errorf("%s.Width = %s, want %s", def, got, want)
		}
	}
}

func TestDeftypeAlias(t *testing.T) {
	rk := mustEval(t, `
deftype Ints = list<int>;
def X { Ints v = [1, 2]; }
`)
	if got := fieldValue(t, rk, "X", "v"); got != "[1, 2]" {
		t.Errorf("X.v = %s", got)
	}
	if got := rk.GetDef("X").GetValue("v").Type.String(); got != "list<int>" {
		t.Errorf("type = %s", got)
	}
}

func TestDumpWritesNotes(t *testing.T) {
	file, err := parser.ParseString(`
dump "top";
def X { int a = 1; dump "a is " # !repr(a); }
`, nil)
	if err != nil {
		t.Fatal(err)
	}
	rk := record.NewRecordKeeper()
	var buf bytes.Buffer
	rk.DumpOut = &buf
	if err := New(rk).EvalFile(file); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "note: top\n") || !strings.Contains(out, "note: a is 1\n") {
		t.Errorf("dump output = %q", out)
	}
}

func TestTraceReportsRecords(t *testing.T) {
	file, err := parser.ParseString("class C; def D : C;", nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	ev := New(record.NewRecordKeeper())
	ev.SetTrace(&buf)
	if err := ev.EvalFile(file); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "ralph-tblgen: class C\nralph-tblgen: def D\n" {
		t.Errorf("trace = %q", got)
	}
}
