// Package table maps records of a resolved schema onto a sheet of a grid
// store and implements the CRUD verbs as sequences of range reads and writes.
//
// Nothing here is atomic. Key generation and the write that claims the key
// are separate round trips, and updates read the row before writing it back,
// so concurrent writers to the same sheet can collide or lose updates.
package table

import (
	"context"
	"fmt"

	"sheetsdb/pkg/grid"
	"sheetsdb/pkg/schema"

	log "github.com/sirupsen/logrus"
)

const (
	defaultSheetRows = 100
	defaultSheetCols = 20
)

// Options places a table inside its sheet.
type Options struct {
	// SheetName defaults to the schema name.
	SheetName string
	// StartRow and StartColumn are the 1-based origin of the table. Zero means 1.
	StartRow    int
	StartColumn int
}

// Table binds a schema to a sheet.
type Table struct {
	schema   *schema.Schema
	store    grid.Store
	sheet    string
	startRow int
	startCol int
}

// New creates a table. store may be nil, in which case every verb fails
// with grid.ErrUnavailable.
func New(s *schema.Schema, store grid.Store, opts Options) *Table {
	t := &Table{
		schema:   s,
		store:    store,
		sheet:    opts.SheetName,
		startRow: max(opts.StartRow, 1),
		startCol: max(opts.StartColumn, 1),
	}
	if t.sheet == "" {
		t.sheet = s.Name()
	}
	return t
}

// Schema returns the table's schema.
func (t *Table) Schema() *schema.Schema { return t.schema }

// SheetName returns the sheet the table lives in.
func (t *Table) SheetName() string { return t.sheet }

func (t *Table) String() string {
	return fmt.Sprintf("%s(%s)", t.schema.Name(), t.sheet)
}

func (t *Table) backend() (grid.Store, error) {
	if t.store == nil {
		return nil, fmt.Errorf("%w: no store for %s", grid.ErrUnavailable, t)
	}
	return t.store, nil
}

func (t *Table) lastCol() int {
	return t.startCol + t.schema.LastColumnNumber() - 1
}

// tableRange covers every row of the table.
func (t *Table) tableRange() grid.Range {
	return grid.Range{FromRow: t.startRow, FromCol: t.startCol, ToCol: t.lastCol()}
}

// rowRange covers rows index..index+n-1, index being table-relative.
func (t *Table) rowRange(index, n int) grid.Range {
	row := t.startRow + index - 1
	return grid.Range{FromRow: row, FromCol: t.startCol, ToRow: row + n - 1, ToCol: t.lastCol()}
}

func (t *Table) read(ctx context.Context, r grid.Range) ([][]any, error) {
	g, err := t.backend()
	if err != nil {
		return nil, err
	}
	values, err := g.Values(ctx, t.sheet, r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.A1(t.sheet), err)
	}
	return values, nil
}

func (t *Table) write(ctx context.Context, r grid.Range, values [][]any) error {
	g, err := t.backend()
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"sheet": t.sheet,
		"range": r.String(),
		"rows":  len(values),
	}).Debug("writing range")
	if err := g.Write(ctx, t.sheet, r, values); err != nil {
		return fmt.Errorf("write %s: %w", r.A1(t.sheet), err)
	}
	return nil
}

// Values returns every row of the table.
func (t *Table) Values(ctx context.Context) ([]schema.Row, error) {
	values, err := t.read(ctx, t.tableRange())
	if err != nil {
		return nil, err
	}
	out := make([]schema.Row, len(values))
	for i, v := range values {
		out[i] = schema.Row(v)
	}
	return out, nil
}

// Records returns every row of the table as a record.
func (t *Table) Records(ctx context.Context) ([]*Record, error) {
	rows, err := t.Values(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, len(rows))
	for i, row := range rows {
		out[i] = t.recordFromRow(row, i+1)
	}
	return out, nil
}

// Count returns the number of rows holding data. It reads the whole table.
func (t *Table) Count(ctx context.Context) (int, error) {
	values, err := t.read(ctx, t.tableRange())
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

// ColumnValues returns the cells of one column, one per table row.
func (t *Table) ColumnValues(ctx context.Context, name string) ([]any, error) {
	c, err := t.schema.Column(name)
	if err != nil {
		return nil, err
	}
	return t.columnValues(ctx, c)
}

func (t *Table) columnValues(ctx context.Context, c schema.Field) ([]any, error) {
	values, err := t.read(ctx, grid.ColumnRange(t.startCol+c.OrderNumber-1, t.startRow))
	if err != nil {
		return nil, err
	}
	out := make([]any, len(values))
	for i, v := range values {
		if len(v) > 0 {
			out[i] = v[0]
		}
	}
	return out, nil
}

// Truncate clears every row of the table, leaving the sheet in place.
func (t *Table) Truncate(ctx context.Context) error {
	g, err := t.backend()
	if err != nil {
		return err
	}
	log.WithField("sheet", t.sheet).Info("truncating table")
	return g.Clear(ctx, t.sheet, t.tableRange())
}

// Exists reports whether the table's sheet exists.
func (t *Table) Exists(ctx context.Context) (bool, error) {
	g, err := t.backend()
	if err != nil {
		return false, err
	}
	return g.SheetExists(ctx, t.sheet)
}

// Create creates the table's sheet unless it already exists.
func (t *Table) Create(ctx context.Context) error {
	g, err := t.backend()
	if err != nil {
		return err
	}
	ok, err := g.SheetExists(ctx, t.sheet)
	if err != nil || ok {
		return err
	}
	log.WithField("sheet", t.sheet).Info("creating sheet")
	return g.CreateSheet(ctx, t.sheet, max(defaultSheetRows, t.startRow), max(defaultSheetCols, t.lastCol()))
}

// Drop deletes the table's sheet.
func (t *Table) Drop(ctx context.Context) error {
	g, err := t.backend()
	if err != nil {
		return err
	}
	log.WithField("sheet", t.sheet).Info("dropping sheet")
	return g.DropSheet(ctx, t.sheet)
}
