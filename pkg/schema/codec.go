package schema

import (
	"fmt"
	"reflect"
)

// InitListRow returns a fresh positional row holding every column's default.
// Gaps between order numbers stay nil. Slice and map defaults are copied too.
func (s *Schema) InitListRow() Row {
	out := make(Row, len(s.blankList))
	for i, v := range s.blankList {
		out[i] = copyValue(v)
	}
	return out
}

// InitNamedRow returns a fresh named row holding every column's default.
func (s *Schema) InitNamedRow() NamedRow {
	out := make(NamedRow, len(s.blankNamed))
	for k, v := range s.blankNamed {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies slices and maps. Scalars and pointers are returned
// as is.
func copyValue(v any) any {
	if v == nil {
		return nil
	}
	return deepCopy(reflect.ValueOf(v)).Interface()
}

func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(deepCopy(v.Elem()))
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out
	}
	return v
}

// ToNamed zips a positional row with the columns. Columns past the end of
// row are left out, and positions without a column are dropped.
func (s *Schema) ToNamed(row Row) NamedRow {
	out := make(NamedRow, min(len(row), len(s.columns)))
	for i, v := range row {
		c, ok := s.ColumnAt(i + 1)
		if !ok {
			continue
		}
		out[c.Name] = v
	}
	return out
}

// ToPositional lays a named row out by order number over a blank row.
func (s *Schema) ToPositional(named NamedRow) (Row, error) {
	out := s.InitListRow()
	for name, v := range named {
		c, err := s.Column(name)
		if err != nil {
			return nil, err
		}
		out[c.OrderNumber-1] = v
	}
	return out, nil
}

// PrepareRow merges positional args and named fields into one named row.
//
// Positional values fill the earliest columns not already given by name. A
// non-nil pk is stored under the primary-key field when the supplied values
// do not already cover every column and the key was not given by name.
func (s *Schema) PrepareRow(args Row, pk any, fields NamedRow) (NamedRow, error) {
	out := make(NamedRow, len(fields)+len(args)+1)
	for name, v := range fields {
		if _, ok := s.byName[name]; !ok {
			return nil, fmt.Errorf("%w: %s, schema %s", ErrUnknownField, name, s.name)
		}
		out[name] = v
	}
	if pk != nil && s.Len() > len(fields)+len(args) {
		if f, ok := s.PrimaryKey(); ok {
			if _, set := out[f.Name]; !set {
				out[f.Name] = pk
			}
		}
	}
	rest := args
	for _, c := range s.columns {
		if len(rest) == 0 {
			break
		}
		if _, set := out[c.Name]; set {
			continue
		}
		out[c.Name] = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrRowTooLong, []any(rest))
	}
	return out, nil
}

// PreparePositional is PrepareRow followed by ToPositional.
func (s *Schema) PreparePositional(args Row, pk any, fields NamedRow) (Row, error) {
	named, err := s.PrepareRow(args, pk, fields)
	if err != nil {
		return nil, err
	}
	return s.ToPositional(named)
}
