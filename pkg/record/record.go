package record

import (
	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// RecordVal is one field (or template argument) of a record.
type RecordVal struct {
	Name          string
	Type          Type
	Value         Init
	IsField       bool // declared with the `field` keyword
	IsTemplateArg bool
	Loc           diag.SourceLoc
}

// SetValue stores v after converting it to the field's type.
func (rv *RecordVal) SetValue(v Init) error {
	conv, ok := Convert(v, rv.Type)
	if !ok {
		return diag.Errorf(diag.KindType, "field '%s' of type '%s' is incompatible with value '%s' of type '%s'",
			rv.Name, typeName(rv.Type), v, typeName(v.Type()))
	}
	rv.Value = conv
	return nil
}

// Assertion is an assert statement attached to a record.
type Assertion struct {
	Loc  diag.SourceLoc
	Cond Init
	Msg  Init
}

// Dump is a dump statement attached to a record.
type Dump struct {
	Loc diag.SourceLoc
	Msg Init
}

// Record is a class or a def.
type Record struct {
	Name      string
	Loc       diag.SourceLoc
	IsClass   bool
	Anonymous bool

	// TemplateArgs holds the qualified names (Class:arg) of the class
	// template arguments, in declaration order.
	TemplateArgs []string
	Values       []*RecordVal

	// SuperClasses lists every ancestor in resolution order.
	SuperClasses []*Record
	// DirectSuperClasses lists the parents written in the declaration.
	DirectSuperClasses []*Record

	Asserts []Assertion
	Dumps   []Dump
}

// NewClass creates an empty class record.
func NewClass(name string, loc diag.SourceLoc) *Record {
	return &Record{Name: name, Loc: loc, IsClass: true}
}

// NewDef creates an empty def record.
func NewDef(name string, loc diag.SourceLoc) *Record {
	return &Record{Name: name, Loc: loc}
}

// GetValue returns the field or template argument called name.
func (r *Record) GetValue(name string) *RecordVal {
	for _, v := range r.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// AddValue appends a new field. A field of the same name is a
// DuplicateSymbolError.
func (r *Record) AddValue(rv *RecordVal) error {
	if r.GetValue(rv.Name) != nil {
		return diag.ErrorAt(rv.Loc, diag.KindDuplicateSymbol, "field '%s' is already defined in '%s'", rv.Name, r.Name)
	}
	r.Values = append(r.Values, rv)
	return nil
}

// AddTemplateArg declares a template argument with its qualified name.
func (r *Record) AddTemplateArg(rv *RecordVal) error {
	rv.IsTemplateArg = true
	if err := r.AddValue(rv); err != nil {
		return err
	}
	r.TemplateArgs = append(r.TemplateArgs, rv.Name)
	return nil
}

// Fields returns the non-template-argument values in order.
func (r *Record) Fields() []*RecordVal {
	var out []*RecordVal
	for _, v := range r.Values {
		if !v.IsTemplateArg {
			out = append(out, v)
		}
	}
	return out
}

// IsSubClassOf reports whether c is an ancestor of r.
func (r *Record) IsSubClassOf(c *Record) bool {
	if c == nil {
		return false
	}
	for _, sc := range r.SuperClasses {
		if sc == c {
			return true
		}
	}
	return false
}

// IsSubClassOfName is IsSubClassOf by class name.
func (r *Record) IsSubClassOfName(name string) bool {
	for _, sc := range r.SuperClasses {
		if sc.Name == name {
			return true
		}
	}
	return false
}

// SetFieldBits assigns value to bits idx (written order, most significant
// first) of the field name, as in `let f{7-4} = v`.
func (r *Record) SetFieldBits(name string, idx []int, value Init) error {
	rv := r.GetValue(name)
	if rv == nil {
		return diag.Errorf(diag.KindUndefinedSymbol, "value '%s' unknown in '%s'", name, r.Name)
	}
	bt, ok := rv.Type.(BitsType)
	if !ok {
		return diag.Errorf(diag.KindType, "field '%s' of type '%s' cannot be assigned a bit range", name, typeName(rv.Type))
	}
	cur, ok := rv.Value.(*BitsInit)
	if !ok {
		cur = &BitsInit{Bits: make([]Init, bt.Width)}
		for i := range cur.Bits {
			if b, ok := bitOf(rv.Value, i); ok && !IsUnset(rv.Value) {
				cur.Bits[i] = b
			} else {
				cur.Bits[i] = Unset
			}
		}
	}
	conv, ok := Convert(value, BitsType{Width: len(idx)})
	if !ok {
		return diag.Errorf(diag.KindType, "value '%s' does not fit in %d bits of field '%s'", value, len(idx), name)
	}
	bits := &BitsInit{Bits: append([]Init(nil), cur.Bits...)}
	for i := range idx {
		bit := idx[len(idx)-1-i]
		if bit >= bt.Width {
			return diag.Errorf(diag.KindType, "bit %d is out of range for field '%s' of type '%s'", bit, name, bt)
		}
		if b, ok := conv.(*BitsInit); ok {
			bits.Bits[bit] = b.Bits[i]
		} else {
			bits.Bits[bit] = Unset
		}
	}
	rv.Value = bits
	return nil
}

// AddSuperClass makes r inherit from class sc instantiated with args (one
// slot per template argument; nil selects the default). Fields keep their
// first-declared position and take the most derived value; the template
// arguments of sc are substituted in every copied value.
func (r *Record) AddSuperClass(rk *RecordKeeper, sc *Record, args []Init, loc diag.SourceLoc) error {
	if !sc.IsClass {
		return diag.ErrorAt(loc, diag.KindType, "'%s' is not a class", sc.Name)
	}
	if sc == r {
		return diag.ErrorAt(loc, diag.KindType, "class '%s' cannot inherit from itself", r.Name)
	}
	if len(args) > len(sc.TemplateArgs) {
		return diag.ErrorAt(loc, diag.KindType, "too many template arguments for '%s': expected at most %d, got %d",
			sc.Name, len(sc.TemplateArgs), len(args))
	}

	m, err := BindTemplateArgs(rk, sc, args, loc)
	if err != nil {
		return err
	}

	for _, field := range sc.Values {
		if field.IsTemplateArg {
			continue
		}
		val, err := field.Value.Resolve(m)
		if err != nil {
			return diag.At(loc, err)
		}
		if existing := r.GetValue(field.Name); existing != nil {
			if existing.IsTemplateArg || !SameType(existing.Type, field.Type) {
				return diag.ErrorAt(loc, diag.KindType, "field '%s' of type '%s' conflicts with inherited field of type '%s' from '%s'",
					field.Name, typeName(existing.Type), typeName(field.Type), sc.Name)
			}
			if err := existing.SetValue(val); err != nil {
				return diag.At(loc, err)
			}
			continue
		}
		r.Values = append(r.Values, &RecordVal{
			Name:    field.Name,
			Type:    field.Type,
			Value:   val,
			IsField: field.IsField,
			Loc:     field.Loc,
		})
	}

	for _, a := range sc.Asserts {
		cond, err := a.Cond.Resolve(m)
		if err != nil {
			return diag.At(a.Loc, err)
		}
		msg, err := a.Msg.Resolve(m)
		if err != nil {
			return diag.At(a.Loc, err)
		}
		r.Asserts = append(r.Asserts, Assertion{Loc: a.Loc, Cond: cond, Msg: msg})
	}
	for _, d := range sc.Dumps {
		msg, err := d.Msg.Resolve(m)
		if err != nil {
			return diag.At(d.Loc, err)
		}
		r.Dumps = append(r.Dumps, Dump{Loc: d.Loc, Msg: msg})
	}

	for _, anc := range sc.SuperClasses {
		if r.IsSubClassOf(anc) {
			return diag.ErrorAt(loc, diag.KindDuplicateSymbol, "'%s' is already a subclass of '%s'", r.Name, anc.Name)
		}
		r.SuperClasses = append(r.SuperClasses, anc)
	}
	if r.IsSubClassOf(sc) {
		return diag.ErrorAt(loc, diag.KindDuplicateSymbol, "'%s' is already a subclass of '%s'", r.Name, sc.Name)
	}
	r.SuperClasses = append(r.SuperClasses, sc)
	r.DirectSuperClasses = append(r.DirectSuperClasses, sc)
	return nil
}

// BindTemplateArgs builds the resolver that substitutes the template
// arguments of class sc. Missing arguments take their declared default; an
// argument without one is an UnboundTemplateArgumentError.
func BindTemplateArgs(rk *RecordKeeper, sc *Record, args []Init, loc diag.SourceLoc) (*MapResolver, error) {
	m := NewMapResolver(rk)
	for i, name := range sc.TemplateArgs {
		rv := sc.GetValue(name)
		var val Init
		if i < len(args) && args[i] != nil {
			conv, ok := Convert(args[i], rv.Type)
			if !ok {
				return nil, diag.ErrorAt(loc, diag.KindType, "value '%s' of type '%s' is not compatible with template argument '%s' of type '%s'",
					args[i], typeName(args[i].Type()), name, typeName(rv.Type))
			}
			val = conv
		} else if !IsUnset(rv.Value) {
			val = rv.Value
		} else {
			return nil, diag.ErrorAt(loc, diag.KindUnboundTemplateArgument, "value not specified for template argument '%s'", name)
		}
		m.Set(name, val)
	}
	return m, nil
}

// ResolveReferences resolves every field, assertion and dump of r with res.
// Values are converted back to their declared types once they resolve.
func (r *Record) ResolveReferences(res Resolver) error {
	for _, rv := range r.Values {
		if rv.IsTemplateArg {
			continue
		}
		val, err := rv.Value.Resolve(res)
		if err != nil {
			return diag.At(rv.Loc, withRecord(err, r.Name))
		}
		if err := rv.SetValue(val); err != nil {
			return diag.At(rv.Loc, withRecord(err, r.Name))
		}
	}
	for i := range r.Asserts {
		a := &r.Asserts[i]
		cond, err := a.Cond.Resolve(res)
		if err != nil {
			return diag.At(a.Loc, withRecord(err, r.Name))
		}
		msg, err := a.Msg.Resolve(res)
		if err != nil {
			return diag.At(a.Loc, withRecord(err, r.Name))
		}
		a.Cond, a.Msg = cond, msg
	}
	for i := range r.Dumps {
		d := &r.Dumps[i]
		msg, err := d.Msg.Resolve(res)
		if err != nil {
			return diag.At(d.Loc, withRecord(err, r.Name))
		}
		d.Msg = msg
	}
	return nil
}

// CheckConcrete verifies that every field of a def has a final value.
func (r *Record) CheckConcrete() error {
	for _, rv := range r.Values {
		if rv.IsTemplateArg {
			continue
		}
		if !rv.Value.IsConcrete() {
			return diag.ErrorAt(rv.Loc, diag.KindType, "value of field '%s' in '%s' is not concrete: '%s'", rv.Name, r.Name, rv.Value)
		}
	}
	return nil
}

// CheckAsserts evaluates the record's assertions in order.
func (r *Record) CheckAsserts() error {
	for _, a := range r.Asserts {
		if err := CheckAssert(a, r.Name); err != nil {
			return err
		}
	}
	return nil
}

// CheckAssert evaluates one assertion; where names the record (or is empty
// at top level).
func CheckAssert(a Assertion, where string) error {
	n, ok := intOf(a.Cond)
	if !ok {
		return &diag.Error{Kind: diag.KindType, Loc: a.Loc, Record: where,
			Msg: "assert condition must be of type bit, bits, or int"}
	}
	if n != 0 {
		return nil
	}
	msg := a.Msg.String()
	if s, ok := a.Msg.(*StringInit); ok {
		msg = s.Value
	}
	text := "assertion failed: " + msg
	if where != "" {
		text = "assertion failed in '" + where + "': " + msg
	}
	return &diag.Error{Kind: diag.KindAssertionFailed, Loc: a.Loc, Record: where, Msg: text}
}

func withRecord(err error, name string) error {
	if de, ok := asDiag(err); ok && de.Record == "" {
		de.Record = name
	}
	return err
}
