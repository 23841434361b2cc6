package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// TagName is the struct tag read by FromStruct and Decode.
//
//	type Person struct {
//		ID        int    `sheet:"id,pk"`
//		FirstName string `sheet:"first_name"`
//		Note      string `sheet:"note,order=5,default=n/a"`
//	}
const TagName = "sheet"

type structField struct {
	index []int
	decl  Field
}

// FromStruct derives declarations from the exported fields of a struct (or
// pointer to struct), in field order. Fields tagged "-" are skipped; an
// untagged field uses its Go name.
func FromStruct(v any) ([]Field, error) {
	sf, err := structFields(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	out := make([]Field, len(sf))
	for i, f := range sf {
		out[i] = f.decl
	}
	return out, nil
}

func structFields(t reflect.Type) ([]structField, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: expected a struct, got %v", ErrInvalidSchema, t)
	}
	var out []structField
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get(TagName)
		if tag == "-" {
			continue
		}
		decl, err := parseTag(f, tag)
		if err != nil {
			return nil, err
		}
		out = append(out, structField{index: f.Index, decl: decl})
	}
	return out, nil
}

func parseTag(f reflect.StructField, tag string) (Field, error) {
	parts := strings.Split(tag, ",")
	d := Field{Name: parts[0], Type: kindType(f.Type)}
	if d.Name == "" {
		d.Name = f.Name
	}
	for _, p := range parts[1:] {
		key, val, _ := strings.Cut(strings.TrimSpace(p), "=")
		switch key {
		case "pk":
			d.PrimaryKey = true
		case "order":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Field{}, fmt.Errorf("%w: field %s: bad order %q", ErrInvalidSchema, f.Name, val)
			}
			d.OrderNumber = n
		case "type":
			t, err := ParseFieldType(val)
			if err != nil {
				return Field{}, fmt.Errorf("%w: field %s: %v", ErrInvalidSchema, f.Name, err)
			}
			d.Type = t
		case "default":
			d.Default = val
		case "":
		default:
			return Field{}, fmt.Errorf("%w: field %s: unknown tag option %q", ErrInvalidSchema, f.Name, key)
		}
	}
	return d, nil
}

func kindType(t reflect.Type) FieldType {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Bool:
		return TypeBool
	}
	return TypeText
}

// Decode copies named values into the tagged fields of the struct dst points
// to, converting text cells through each column's type. Columns without a
// matching struct field are ignored.
func (s *Schema) Decode(named NamedRow, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode %s: destination must be a non-nil pointer", s.name)
	}
	sf, err := structFields(rv.Type())
	if err != nil {
		return err
	}
	elem := rv.Elem()
	for _, f := range sf {
		c, err := s.Column(f.decl.Name)
		if err != nil {
			continue
		}
		v, err := c.Convert(named[c.Name])
		if err != nil {
			return err
		}
		if err := assign(elem.FieldByIndex(f.index), v); err != nil {
			return fmt.Errorf("decode %s.%s: %w", s.name, c.Name, err)
		}
	}
	return nil
}

func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(CanonicalKey(v))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(CanonicalKey(v), 10, 64)
		if err != nil {
			return err
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(CanonicalKey(v), 10, 64)
		if err != nil {
			return err
		}
		dst.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(CanonicalKey(v), 64)
		if err != nil {
			return err
		}
		dst.SetFloat(n)
		return nil
	case reflect.Bool:
		b, err := strconv.ParseBool(CanonicalKey(v))
		if err != nil {
			return err
		}
		dst.SetBool(b)
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(dst.Type()) {
		return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
	}
	dst.Set(rv)
	return nil
}
