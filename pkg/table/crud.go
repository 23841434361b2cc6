package table

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"sheetsdb/pkg/grid"
	"sheetsdb/pkg/schema"

	log "github.com/sirupsen/logrus"
)

// pkFilterAlias is accepted by UpdateOrInsert in place of the key field's name.
const pkFilterAlias = "pk"

type insertConfig struct {
	generatePK bool
}

// InsertOption configures Insert.
type InsertOption func(*insertConfig)

// GeneratePK controls key synthesis on Insert. When disabled, an explicit
// key is checked for uniqueness instead. A missing key is still generated.
func GeneratePK(on bool) InsertOption {
	return func(c *insertConfig) { c.generatePK = on }
}

// GeneratePK returns the smallest positive integer not used as a key, or
// nil when the schema has no primary key. It scans the whole key column.
// Two writers racing between the scan and their insert can pick the same key.
func (t *Table) GeneratePK(ctx context.Context) (any, error) {
	pk, ok := t.schema.PrimaryKey()
	if !ok {
		return nil, nil
	}
	existing, err := t.columnValues(ctx, pk)
	if err != nil {
		return nil, err
	}
	return schema.NextKey(existing), nil
}

// rowIndexForPK returns the 1-based table row holding key, or 0.
func (t *Table) rowIndexForPK(ctx context.Context, key any) (int, error) {
	pk, err := t.schema.RequirePrimaryKey()
	if err != nil {
		return 0, err
	}
	existing, err := t.columnValues(ctx, pk)
	if err != nil {
		return 0, err
	}
	want := schema.CanonicalKey(key)
	for i, v := range existing {
		if schema.CanonicalKey(v) == want {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (t *Table) readRow(ctx context.Context, index int) (schema.Row, error) {
	values, err := t.read(ctx, t.rowRange(index, 1))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return schema.Row(values[0]), nil
}

// Insert appends a row after the last one holding data and returns it as a
// record.
func (t *Table) Insert(ctx context.Context, args schema.Row, fields schema.NamedRow, opts ...InsertOption) (*Record, error) {
	cfg := insertConfig{generatePK: true}
	for _, o := range opts {
		o(&cfg)
	}
	fields = maps.Clone(fields)
	if fields == nil {
		fields = schema.NamedRow{}
	}
	pk, hasPK := t.schema.PrimaryKey()
	if hasPK && cfg.generatePK {
		if _, ok := fields[pk.Name]; !ok && len(args) < t.schema.Len() {
			key, err := t.GeneratePK(ctx)
			if err != nil {
				return nil, err
			}
			fields[pk.Name] = key
		}
	}
	row, err := t.schema.PreparePositional(args, nil, fields)
	if err != nil {
		return nil, err
	}
	if hasPK {
		slot := pk.OrderNumber - 1
		switch {
		case schema.IsUnset(row[slot]):
			key, err := t.GeneratePK(ctx)
			if err != nil {
				return nil, err
			}
			row[slot] = key
		case !cfg.generatePK:
			existing, err := t.columnValues(ctx, pk)
			if err != nil {
				return nil, err
			}
			want := schema.CanonicalKey(row[slot])
			for _, v := range existing {
				if schema.CanonicalKey(v) == want {
					return nil, fmt.Errorf("%w: %v", ErrDuplicatePrimaryKey, t.schema.ToNamed(row))
				}
			}
		}
	}

	n, err := t.Count(ctx)
	if err != nil {
		return nil, err
	}
	index := n + 1
	if err := t.write(ctx, t.rowRange(index, 1), [][]any{row}); err != nil {
		return nil, err
	}
	return t.recordFromRow(row, index), nil
}

// InsertMany appends positional rows in one batched write, without key
// generation, and returns the index following the appended block.
//
// Rows are positional, so their length is checked against the last order
// number rather than the field count: a schema with order gaps accepts
// rows as wide as its widest column. ErrRowTooLong lists only the rows
// that are too long, and nothing is written.
func (t *Table) InsertMany(ctx context.Context, rows []schema.Row) (int, error) {
	width := t.schema.LastColumnNumber()
	var long []schema.Row
	for _, row := range rows {
		if len(row) > width {
			long = append(long, row)
		}
	}
	if len(long) > 0 {
		return 0, fmt.Errorf("%w: %v", schema.ErrRowTooLong, long)
	}
	g, err := t.backend()
	if err != nil {
		return 0, err
	}
	n, err := t.Count(ctx)
	if err != nil {
		return 0, err
	}
	index := n + 1
	if len(rows) == 0 {
		return index, nil
	}
	updates := make([]grid.Update, len(rows))
	for i, row := range rows {
		updates[i] = grid.Update{Range: t.rowRange(index+i, 1), Values: [][]any{row}}
	}
	log.WithFields(log.Fields{"sheet": t.sheet, "from": index, "rows": len(rows)}).Debug("batch insert")
	if err := g.BatchWrite(ctx, t.sheet, updates); err != nil {
		return 0, fmt.Errorf("batch insert into %s: %w", t.sheet, err)
	}
	return index + len(rows), nil
}

// WithPK fetches the record holding key. It returns nil, nil when no row
// has that key.
func (t *Table) WithPK(ctx context.Context, key any) (*Record, error) {
	index, err := t.rowIndexForPK(ctx, key)
	if err != nil || index == 0 {
		return nil, err
	}
	row, err := t.readRow(ctx, index)
	if err != nil || len(row) == 0 {
		return nil, err
	}
	return t.recordFromRow(row, index), nil
}

// UpdateWithPK overwrites the given fields of the row holding key and keeps
// the others. The row is read and written back in two round trips.
func (t *Table) UpdateWithPK(ctx context.Context, key any, args schema.Row, fields schema.NamedRow) (*Record, error) {
	index, err := t.rowIndexForPK(ctx, key)
	if err != nil {
		return nil, err
	}
	if index == 0 {
		return nil, fmt.Errorf("%w for pk %v in %s", ErrRecordNotFound, key, t)
	}
	return t.update(ctx, index, key, args, fields)
}

// UpdateWithIndex is UpdateWithPK addressing the row by its 1-based table
// index instead of its key. The key is not looked up, so the row at index
// is updated even when its key cell is empty or duplicated elsewhere. An
// empty row gives ErrRecordNotFound.
func (t *Table) UpdateWithIndex(ctx context.Context, index int, args schema.Row, fields schema.NamedRow) (*Record, error) {
	if index < 1 {
		return nil, fmt.Errorf("%w at index %d in %s", ErrRecordNotFound, index, t)
	}
	return t.update(ctx, index, nil, args, fields)
}

func (t *Table) update(ctx context.Context, index int, key any, args schema.Row, fields schema.NamedRow) (*Record, error) {
	current, err := t.readRow(ctx, index)
	if err != nil {
		return nil, err
	}
	// Writing over a row that reads back empty would replace every
	// unnamed cell with a default.
	if len(current) == 0 {
		return nil, fmt.Errorf("%w: row %d of %s is empty", ErrRecordNotFound, index, t)
	}
	updates, err := t.schema.PrepareRow(args, key, fields)
	if err != nil {
		return nil, err
	}
	row := slices.Clone(current)
	for _, c := range t.schema.Columns() {
		v, ok := updates[c.Name]
		if !ok {
			continue
		}
		for len(row) < c.OrderNumber {
			row = append(row, nil)
		}
		row[c.OrderNumber-1] = v
	}
	if err := t.write(ctx, t.rowRange(index, 1), [][]any{row}); err != nil {
		return nil, err
	}
	return t.recordFromRow(row, index), nil
}

// UpdateOrInsert applies update to every row whose cells equal the filter
// values (compared as text), or only to the first one when firstOnly is set.
// When nothing matches, filter and update are merged and inserted. The
// filter key "pk" stands for the primary-key field.
func (t *Table) UpdateOrInsert(ctx context.Context, filter, update schema.NamedRow, firstOnly bool) ([]*Record, error) {
	pk, err := t.schema.RequirePrimaryKey()
	if err != nil {
		return nil, err
	}
	filter = maps.Clone(filter)
	if filter == nil {
		filter = schema.NamedRow{}
	}
	if v, ok := filter[pkFilterAlias]; ok && pk.Name != pkFilterAlias {
		delete(filter, pkFilterAlias)
		filter[pk.Name] = v
	}
	want := make(map[string]string, len(filter))
	for name, v := range filter {
		if _, err := t.schema.Column(name); err != nil {
			return nil, err
		}
		want[name] = schema.CanonicalKey(v)
	}

	rows, err := t.Values(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, row := range rows {
		named := t.schema.ToNamed(row)
		if !matches(named, want) {
			continue
		}
		rec, err := t.UpdateWithPK(ctx, named[pk.Name], nil, update)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
		if firstOnly {
			break
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	merged := filter
	maps.Copy(merged, update)
	rec, err := t.Insert(ctx, nil, merged)
	if err != nil {
		return nil, err
	}
	return []*Record{rec}, nil
}

func matches(named schema.NamedRow, want map[string]string) bool {
	for name, v := range want {
		if schema.CanonicalKey(named[name]) != v {
			return false
		}
	}
	return true
}

// Save stores rec under its key, generating one when it has none, and
// refreshes the record's key and index.
func (t *Table) Save(ctx context.Context, rec *Record) error {
	pk, err := t.schema.RequirePrimaryKey()
	if err != nil {
		return err
	}
	update := rec.set()
	key := rec.PK()
	if schema.IsUnset(key) {
		if key, err = t.GeneratePK(ctx); err != nil {
			return err
		}
		delete(update, pk.Name)
	}
	recs, err := t.UpdateOrInsert(ctx, schema.NamedRow{pk.Name: key}, update, false)
	if err != nil {
		return err
	}
	if err := rec.SetPK(key); err != nil {
		return err
	}
	rec.Index = recs[0].Index
	return nil
}
