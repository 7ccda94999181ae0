package dump

import (
	"bytes"
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-tblgen/pkg/eval"
	"github.com/raymyers/ralph-tblgen/pkg/parser"
	"github.com/raymyers/ralph-tblgen/pkg/record"
)

const source = `
class Reg<int n> { int Num = n; }
class Special;
def ops;
def R0 : Reg<0>;
def R1 : Reg<1>, Special {
  field bits<2> Enc = 2;
  string Name = "r1";
  list<Reg> Alias = [R0];
  dag Pattern = (ops R0:$src, 7);
  int Unknown = ?;
}
`

func keeper(t *testing.T) *record.RecordKeeper {
	t.Helper()
	file, err := parser.ParseString(source, nil)
	if err != nil {
		t.Fatal(err)
	}
	rk := record.NewRecordKeeper()
	if err := eval.New(rk).EvalFile(file); err != nil {
		t.Fatal(err)
	}
	return rk
}

func TestJSONDump(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, keeper(t)); err != nil {
		t.Fatal(err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if doc["!tablegen_json_version"] != float64(1) {
		t.Errorf("version = %v", doc["!tablegen_json_version"])
	}

	instanceOf := doc["!instanceof"].(map[string]interface{})
	regs := instanceOf["Reg"].([]interface{})
	if len(regs) != 2 || regs[0] != "R0" || regs[1] != "R1" {
		t.Errorf("!instanceof Reg = %v", regs)
	}
	if special := instanceOf["Special"].([]interface{}); len(special) != 1 {
		t.Errorf("!instanceof Special = %v", special)
	}

	r1 := doc["R1"].(map[string]interface{})
	tests := []struct {
		key  string
		want string
	}{
		{"!name", `"R1"`},
		{"!anonymous", `false`},
		{"!fields", `["Enc"]`},
		{"!superclasses", `["Reg","Special"]`},
		{"Num", `1`},
		{"Enc", `[0,1]`},
		{"Name", `"r1"`},
		{"Alias", `[{"def":"R0","kind":"def","printable":"R0"}]`},
		{"Unknown", `null`},
		{"Pattern", `{"args":[[{"def":"R0","kind":"def","printable":"R0"},"src"],[7,null]],"kind":"dag","operator":{"def":"ops","kind":"def","printable":"ops"},"printable":"(ops R0:$src, 7)"}`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(r1[tt.key])
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != tt.want {
			t.Errorf("R1[%s] = %s, want %s", tt.key, got, tt.want)
		}
	}
}

func TestYAMLDumpMatchesJSON(t *testing.T) {
	rk := keeper(t)
	var buf bytes.Buffer
	if err := WriteYAML(&buf, rk); err != nil {
		t.Fatal(err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	r0, ok := doc["R0"].(map[string]interface{})
	if !ok {
		t.Fatalf("R0 missing from YAML dump:\n%s", buf.String())
	}
	if r0["Num"] != 0 {
		t.Errorf("R0.Num = %v", r0["Num"])
	}
	if doc["!tablegen_json_version"] != Version {
		t.Errorf("version = %v", doc["!tablegen_json_version"])
	}
}

func TestValueOfSymbolicReferences(t *testing.T) {
	v := Value(&record.VarInit{Name: "x", T: record.IntType{}}).(map[string]interface{})
	if v["kind"] != "var" || v["var"] != "x" {
		t.Errorf("var = %v", v)
	}
	c := Value(&record.FieldInit{Rec: &record.VarInit{Name: "r"}, Field: "f"}).(map[string]interface{})
	if c["kind"] != "complex" || c["printable"] != "r.f" {
		t.Errorf("complex = %v", c)
	}
}
