// Package dump renders the records of a keeper as a machine-readable
// document, in JSON or YAML.
//
// The document maps every def name to an object holding its fields plus
// the reserved keys !name, !anonymous, !fields and !superclasses. Two
// top-level keys are reserved as well: !tablegen_json_version and
// !instanceof, which lists the defs deriving from each class.
package dump

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-tblgen/pkg/record"
)

// Version is the value of !tablegen_json_version.
const Version = 1

// Document builds the dump of rk. Maps are used throughout so both
// encoders emit keys in sorted order.
func Document(rk *record.RecordKeeper) map[string]interface{} {
	doc := map[string]interface{}{
		"!tablegen_json_version": Version,
	}

	instanceOf := make(map[string][]string)
	for _, c := range rk.Classes() {
		instanceOf[c.Name] = []string{}
	}
	for _, d := range rk.Defs() {
		doc[d.Name] = defObject(d)
		for _, sc := range d.SuperClasses {
			instanceOf[sc.Name] = append(instanceOf[sc.Name], d.Name)
		}
	}
	doc["!instanceof"] = instanceOf
	return doc
}

func defObject(d *record.Record) map[string]interface{} {
	obj := map[string]interface{}{
		"!name":      d.Name,
		"!anonymous": d.Anonymous,
	}
	fields := []string{}
	for _, rv := range d.Fields() {
		obj[rv.Name] = Value(rv.Value)
		if rv.IsField {
			fields = append(fields, rv.Name)
		}
	}
	obj["!fields"] = fields

	supers := make([]string, len(d.SuperClasses))
	for i, sc := range d.SuperClasses {
		supers[i] = sc.Name
	}
	obj["!superclasses"] = supers
	return obj
}

// Value converts one record value. Scalars map to JSON scalars, bits to an
// array indexed from bit 0, and references to objects tagged by "kind".
func Value(v record.Init) interface{} {
	switch x := v.(type) {
	case *record.UnsetInit:
		return nil
	case *record.BitInit:
		if x.Value {
			return 1
		}
		return 0
	case *record.IntInit:
		return x.Value
	case *record.StringInit:
		return x.Value
	case *record.LiteralOpInit:
		return x.Text
	case *record.BitsInit:
		bits := make([]interface{}, len(x.Bits))
		for i, b := range x.Bits {
			bits[i] = Value(b)
		}
		return bits
	case *record.ListInit:
		elems := make([]interface{}, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = Value(e)
		}
		return elems
	case *record.DefInit:
		return map[string]interface{}{
			"kind":      "def",
			"def":       x.Def.Name,
			"printable": x.Def.Name,
		}
	case *record.DagInit:
		args := make([]interface{}, len(x.Args))
		for i, a := range x.Args {
			var name interface{}
			if x.Names[i] != "" {
				name = x.Names[i]
			}
			args[i] = []interface{}{Value(a), name}
		}
		return map[string]interface{}{
			"kind":      "dag",
			"operator":  Value(x.Op),
			"args":      args,
			"printable": x.String(),
		}
	case *record.VarInit:
		return map[string]interface{}{
			"kind":      "var",
			"var":       x.Name,
			"printable": x.String(),
		}
	case *record.VarBitInit:
		return map[string]interface{}{
			"kind":      "varbit",
			"var":       x.Var.String(),
			"index":     x.Bit,
			"printable": x.String(),
		}
	}
	return map[string]interface{}{
		"kind":      "complex",
		"printable": v.String(),
	}
}

// WriteJSON writes the dump of rk as indented JSON.
func WriteJSON(w io.Writer, rk *record.RecordKeeper) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(Document(rk)), "encoding JSON dump")
}

// WriteYAML writes the same document as WriteJSON in YAML.
func WriteYAML(w io.Writer, rk *record.RecordKeeper) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document(rk)); err != nil {
		return errors.Wrap(err, "encoding YAML dump")
	}
	return errors.Wrap(enc.Close(), "encoding YAML dump")
}
