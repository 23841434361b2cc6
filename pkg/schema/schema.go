// Package schema resolves declared fields into an ordered column layout and
// converts rows between their positional and named forms.
package schema

import (
	"fmt"
	"sort"
)

// Row is a positional row: index i holds the column with order number i+1.
type Row []any

// NamedRow maps field names to values.
type NamedRow map[string]any

// Schema is the resolved column list of a record type. It is immutable once
// returned by Resolve.
type Schema struct {
	name    string
	columns []Field
	byName  map[string]int
	byOrder map[int]int
	pk      int

	blankList  Row
	blankNamed NamedRow
}

// Resolve assigns order numbers to decls and validates the result.
//
// Fields without an explicit order number take the lowest numbers not
// claimed by explicit ones, in declaration order.
func Resolve(name string, decls []Field) (*Schema, error) {
	if len(decls) == 0 {
		return nil, fmt.Errorf("%w: %s declares no fields", ErrInvalidSchema, name)
	}
	seen := make(map[string]bool, len(decls))
	explicit := make(map[int]string)
	highest := len(decls)
	pks := 0
	for _, d := range decls {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: %s has a field without a name", ErrInvalidSchema, name)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("%w: %s declares field %s twice", ErrInvalidSchema, name, d.Name)
		}
		seen[d.Name] = true
		if d.OrderNumber < 0 {
			return nil, fmt.Errorf("%w: field %s has negative order number %d", ErrInvalidSchema, d.Name, d.OrderNumber)
		}
		if d.OrderNumber > 0 {
			if other, ok := explicit[d.OrderNumber]; ok {
				return nil, fmt.Errorf("%w: fields %s and %s share order number %d", ErrInvalidSchema, other, d.Name, d.OrderNumber)
			}
			explicit[d.OrderNumber] = d.Name
			highest = max(highest, d.OrderNumber)
		}
		if d.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return nil, fmt.Errorf("%w: schema %s", ErrAmbiguousPrimaryKey, name)
	}

	free := make([]int, 0, highest)
	for i := 1; i <= highest; i++ {
		if _, ok := explicit[i]; !ok {
			free = append(free, i)
		}
	}

	columns := make([]Field, len(decls))
	for i, d := range decls {
		if d.OrderNumber == 0 {
			d.OrderNumber = free[0]
			free = free[1:]
		}
		columns[i] = d
	}
	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].OrderNumber < columns[j].OrderNumber
	})

	s := &Schema{
		name:    name,
		columns: columns,
		byName:  make(map[string]int, len(columns)),
		byOrder: make(map[int]int, len(columns)),
		pk:      -1,
	}
	for i, c := range columns {
		s.byName[c.Name] = i
		s.byOrder[c.OrderNumber] = i
		if c.PrimaryKey {
			s.pk = i
		}
	}
	s.blankList = make(Row, s.LastColumnNumber())
	s.blankNamed = make(NamedRow, len(columns))
	for _, c := range columns {
		s.blankList[c.OrderNumber-1] = c.DefaultValue()
		s.blankNamed[c.Name] = c.DefaultValue()
	}
	return s, nil
}

// Name is the record type name the schema was resolved for.
func (s *Schema) Name() string { return s.name }

// Len is the number of fields.
func (s *Schema) Len() int { return len(s.columns) }

// LastColumnNumber is the highest order number, i.e. the positional row width.
func (s *Schema) LastColumnNumber() int {
	return s.columns[len(s.columns)-1].OrderNumber
}

// Columns returns the fields sorted by order number.
func (s *Schema) Columns() []Field {
	out := make([]Field, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the field names sorted by order number.
func (s *Schema) Names() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Name
	}
	return out
}

// Column looks a field up by name.
func (s *Schema) Column(name string) (Field, error) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %s, schema %s", ErrUnknownField, name, s.name)
	}
	return s.columns[i], nil
}

// ColumnAt looks a field up by order number.
func (s *Schema) ColumnAt(order int) (Field, bool) {
	i, ok := s.byOrder[order]
	if !ok {
		return Field{}, false
	}
	return s.columns[i], true
}

// PrimaryKey returns the primary-key field, if any.
func (s *Schema) PrimaryKey() (Field, bool) {
	if s.pk < 0 {
		return Field{}, false
	}
	return s.columns[s.pk], true
}

// RequirePrimaryKey is PrimaryKey for callers that cannot work without one.
func (s *Schema) RequirePrimaryKey() (Field, error) {
	f, ok := s.PrimaryKey()
	if !ok {
		return Field{}, fmt.Errorf("%w: schema %s", ErrMissingPrimaryKey, s.name)
	}
	return f, nil
}

func (s *Schema) String() string { return s.name }
