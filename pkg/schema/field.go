package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the value domain of a column. It only decides the zero value
// of a field and how text read back from the grid is converted; writes are
// never checked against it.
type FieldType int

const (
	TypeText FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
)

func (t FieldType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// ParseFieldType maps a config/tag spelling to a FieldType. Empty means text.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string", "str":
		return TypeText, nil
	case "int", "integer":
		return TypeInt, nil
	case "float", "number":
		return TypeFloat, nil
	case "bool", "boolean":
		return TypeBool, nil
	}
	return TypeText, fmt.Errorf("unknown field type %q", s)
}

// Field describes one column.
type Field struct {
	Name string
	Type FieldType
	// OrderNumber is the 1-based column position. Zero means "let the
	// resolver pick".
	OrderNumber int
	PrimaryKey  bool
	// Default overrides the zero value of Type when set.
	Default any
}

// FieldOption tweaks a declaration built by Column or PrimaryKey.
type FieldOption func(*Field)

// WithOrder pins the field to a column.
func WithOrder(n int) FieldOption {
	return func(f *Field) { f.OrderNumber = n }
}

// WithDefault sets the value substituted for unset cells.
func WithDefault(v any) FieldOption {
	return func(f *Field) { f.Default = v }
}

// Column declares a plain field.
func Column(name string, typ FieldType, opts ...FieldOption) Field {
	f := Field{Name: name, Type: typ}
	for _, o := range opts {
		o(&f)
	}
	return f
}

// PrimaryKey declares the identity field. Keys are generated as integers.
func PrimaryKey(name string, opts ...FieldOption) Field {
	f := Field{Name: name, Type: TypeInt, PrimaryKey: true}
	for _, o := range opts {
		o(&f)
	}
	return f
}

// DefaultValue returns the value an unset cell takes. Primary keys default
// to nil so that a missing identity never collides with a real one. Slice
// and map defaults come back as fresh copies.
func (f Field) DefaultValue() any {
	if f.Default != nil {
		return copyValue(f.Default)
	}
	if f.PrimaryKey {
		return nil
	}
	switch f.Type {
	case TypeInt:
		return 0
	case TypeFloat:
		return 0.0
	case TypeBool:
		return false
	}
	return ""
}

// Convert turns a cell value into the field's Go type. Text cells coming
// back from the grid are parsed; empty text becomes the default.
func (f Field) Convert(v any) (any, error) {
	if v == nil {
		return f.DefaultValue(), nil
	}
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	if s == "" {
		return f.DefaultValue(), nil
	}
	switch f.Type {
	case TypeInt:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return n, nil
	case TypeFloat:
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return n, nil
	case TypeBool:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return b, nil
	}
	return s, nil
}
