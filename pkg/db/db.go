// Package db opens the configured grid store and binds every configured
// table to it.
package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"sheetsdb/pkg/config"
	"sheetsdb/pkg/grid"
	"sheetsdb/pkg/schema"
	"sheetsdb/pkg/sheets"
	"sheetsdb/pkg/sqlitegrid"
	"sheetsdb/pkg/table"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// ErrUnknownTable is returned when a table name is not configured.
var ErrUnknownTable = errors.New("unknown table")

type DB struct {
	store  grid.Store
	tables map[string]*table.Table
	closer io.Closer
}

// Open connects to the backend selected in cfg and registers its tables in
// the process-wide schema registry. Extra options reach the Sheets client.
func Open(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (*DB, error) {
	store, closer, err := openStore(ctx, cfg.Store, opts...)
	if err != nil {
		return nil, err
	}
	d, err := New(store, schema.Default, cfg.Store.Tables)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}
	d.closer = closer
	log.WithFields(log.Fields{
		"backend": cfg.Store.Backend,
		"tables":  len(d.tables),
	}).Info("database opened")
	return d, nil
}

func openStore(ctx context.Context, s config.Store, opts ...option.ClientOption) (grid.Store, io.Closer, error) {
	switch s.Backend {
	case config.BackendSheets:
		backoff, err := s.Limits.Backoff()
		if err != nil {
			return nil, nil, err
		}
		c, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:     s.SpreadsheetID,
			CredentialsFile:   s.CredentialsFile,
			RequestsPerMinute: s.Limits.RequestsPerMinute,
			MaxRetries:        s.Limits.MaxRetries,
			MaxBackoff:        backoff,
			ValueInputOption:  s.ValueInput,
		}, opts...)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case config.BackendSQLite:
		st, err := sqlitegrid.Open(s.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case config.BackendMemory:
		return grid.NewMemory(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", s.Backend)
}

// New binds the configured tables to store, resolving their schemas through
// registry.
func New(store grid.Store, registry *schema.Registry, tables []config.TableConfig) (*DB, error) {
	d := &DB{store: store, tables: make(map[string]*table.Table, len(tables))}
	for _, tc := range tables {
		decls, err := tc.Declarations()
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", tc.Name, err)
		}
		s, err := registry.Register(tc.Name, decls...)
		if err != nil {
			return nil, err
		}
		d.tables[tc.Name] = table.New(s, store, table.Options{
			SheetName:   tc.SheetName,
			StartRow:    tc.StartRow,
			StartColumn: tc.StartColumn,
		})
	}
	return d, nil
}

func (d *DB) Store() grid.Store { return d.store }

// Table returns the configured table called name.
func (d *DB) Table(name string) (*table.Table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// Tables returns the configured table names in order.
func (d *DB) Tables() []string {
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateAll creates the sheet of every table that does not have one yet.
func (d *DB) CreateAll(ctx context.Context) error {
	for _, name := range d.Tables() {
		if err := d.tables[name].Create(ctx); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
	}
	return nil
}

func (d *DB) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}
