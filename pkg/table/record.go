package table

import (
	"encoding/json"
	"fmt"
	"maps"

	"sheetsdb/pkg/schema"
)

// Record is one row of a table addressed by field name. It is a snapshot:
// later changes to the sheet are not reflected until the record is fetched
// again.
type Record struct {
	schema *schema.Schema
	values schema.NamedRow
	// Index is the 1-based table row the record was read from or written
	// to, or 0 if it has never been stored.
	Index int
}

// NewRecord builds a record without touching the store. Positional args fill
// columns in order, skipping those given in fields.
func (t *Table) NewRecord(args schema.Row, fields schema.NamedRow) (*Record, error) {
	named, err := t.schema.PrepareRow(args, nil, fields)
	if err != nil {
		return nil, err
	}
	return &Record{schema: t.schema, values: named}, nil
}

func (t *Table) recordFromRow(row schema.Row, index int) *Record {
	return &Record{schema: t.schema, values: t.schema.ToNamed(row), Index: index}
}

// Schema returns the record's schema.
func (r *Record) Schema() *schema.Schema { return r.schema }

// Get returns a field's value, or its default when unset. An empty cell
// counts as unset.
func (r *Record) Get(name string) (any, error) {
	c, err := r.schema.Column(name)
	if err != nil {
		return nil, err
	}
	if v := r.values[name]; !schema.IsUnset(v) {
		return v, nil
	}
	return c.DefaultValue(), nil
}

// Set assigns a field. Setting nil makes the field unset again.
func (r *Record) Set(name string, v any) error {
	if _, err := r.schema.Column(name); err != nil {
		return err
	}
	if v == nil {
		delete(r.values, name)
		return nil
	}
	r.values[name] = v
	return nil
}

// PK returns the primary-key value, or nil when the schema has no key or
// the key is unset.
func (r *Record) PK() any {
	pk, ok := r.schema.PrimaryKey()
	if !ok {
		return nil
	}
	return r.values[pk.Name]
}

// SetPK assigns the primary-key field.
func (r *Record) SetPK(v any) error {
	pk, err := r.schema.RequirePrimaryKey()
	if err != nil {
		return err
	}
	return r.Set(pk.Name, v)
}

// Named returns every field, with defaults substituted for unset ones.
func (r *Record) Named() schema.NamedRow {
	out := r.schema.InitNamedRow()
	for k, v := range r.values {
		if !schema.IsUnset(v) {
			out[k] = v
		}
	}
	return out
}

// Row returns the record laid out by order number.
func (r *Record) Row() schema.Row {
	// Every key in values was validated against the schema.
	row, _ := r.schema.ToPositional(r.Named())
	return row
}

// set returns the fields that were explicitly given a value.
func (r *Record) set() schema.NamedRow {
	return maps.Clone(r.values)
}

// Decode copies the record into a struct tagged with `sheet:"..."`.
func (r *Record) Decode(dst any) error {
	return r.schema.Decode(r.Named(), dst)
}

// Equal compares two records field by field through their text form, so a
// record built from native values equals the same record read back from
// the sheet.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.schema != o.schema {
		return false
	}
	a, b := r.Named(), o.Named()
	for k, v := range a {
		if schema.CanonicalKey(v) != schema.CanonicalKey(b[k]) {
			return false
		}
	}
	return true
}

func (r *Record) String() string {
	return fmt.Sprintf("%s(%v)", r.schema.Name(), r.PK())
}

// MarshalJSON encodes the record as an object of its fields.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Named())
}
