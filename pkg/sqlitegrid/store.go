// Package sqlitegrid keeps a grid.Store in a local SQLite file, one row per
// non-empty cell. It stands in for a spreadsheet when working offline.
package sqlitegrid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sheetsdb/pkg/grid"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS sheets (
		name      TEXT PRIMARY KEY,
		position  INTEGER NOT NULL,
		row_count INTEGER NOT NULL,
		col_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cells (
		sheet   TEXT NOT NULL,
		row_num INTEGER NOT NULL,
		col_num INTEGER NOT NULL,
		value   TEXT NOT NULL,
		PRIMARY KEY (sheet, row_num, col_num)
	);
`

type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize %s: %w", path, err)
	}
	log.WithField("path", path).Debug("opened sqlite grid")
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

func (s *Store) checkSheet(ctx context.Context, q queryer, sheet string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM sheets WHERE name = ?`, sheet).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", grid.ErrSheetNotFound, sheet)
	}
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Values(ctx context.Context, sheet string, r grid.Range) ([][]any, error) {
	if err := s.checkSheet(ctx, s.db, sheet); err != nil {
		return nil, err
	}
	fr, fc := r.Origin()
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_num, col_num, value FROM cells
		WHERE sheet = ? AND row_num >= ? AND col_num >= ?
			AND (? = 0 OR row_num <= ?) AND (? = 0 OR col_num <= ?)
		ORDER BY row_num, col_num`,
		sheet, fr, fc, r.ToRow, r.ToRow, r.ToCol, r.ToCol)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.A1(sheet), err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		var row, col int
		var value string
		if err := rows.Scan(&row, &col, &value); err != nil {
			return nil, err
		}
		i, j := row-fr, col-fc
		for len(out) <= i {
			out = append(out, nil)
		}
		for len(out[i]) <= j {
			out[i] = append(out[i], "")
		}
		out[i][j] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grid.Trim(out), nil
}

func (s *Store) Write(ctx context.Context, sheet string, r grid.Range, values [][]any) error {
	return s.BatchWrite(ctx, sheet, []grid.Update{{Range: r, Values: values}})
}

// BatchWrite applies every update in one transaction.
func (s *Store) BatchWrite(ctx context.Context, sheet string, updates []grid.Update) error {
	for _, u := range updates {
		fr, fc := u.Range.Origin()
		for i, row := range u.Values {
			for j := range row {
				if !u.Range.Contains(fr+i, fc+j) {
					return fmt.Errorf("values exceed range %s", u.Range)
				}
			}
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.checkSheet(ctx, tx, sheet); err != nil {
		return err
	}
	put, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO cells (sheet, row_num, col_num, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer put.Close()
	del, err := tx.PrepareContext(ctx, `DELETE FROM cells WHERE sheet = ? AND row_num = ? AND col_num = ?`)
	if err != nil {
		return err
	}
	defer del.Close()

	for _, u := range updates {
		fr, fc := u.Range.Origin()
		for i, row := range u.Values {
			for j, v := range row {
				text := grid.FormatCell(v)
				if text == "" {
					_, err = del.ExecContext(ctx, sheet, fr+i, fc+j)
				} else {
					_, err = put.ExecContext(ctx, sheet, fr+i, fc+j, text)
				}
				if err != nil {
					return fmt.Errorf("write %s: %w", u.Range.A1(sheet), err)
				}
			}
		}
	}
	return tx.Commit()
}

func (s *Store) Clear(ctx context.Context, sheet string, r grid.Range) error {
	if err := s.checkSheet(ctx, s.db, sheet); err != nil {
		return err
	}
	fr, fc := r.Origin()
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM cells
		WHERE sheet = ? AND row_num >= ? AND col_num >= ?
			AND (? = 0 OR row_num <= ?) AND (? = 0 OR col_num <= ?)`,
		sheet, fr, fc, r.ToRow, r.ToRow, r.ToCol, r.ToCol)
	return err
}

func (s *Store) SheetExists(ctx context.Context, sheet string) (bool, error) {
	err := s.checkSheet(ctx, s.db, sheet)
	if errors.Is(err, grid.ErrSheetNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) CreateSheet(ctx context.Context, sheet string, rows, cols int) error {
	ok, err := s.SheetExists(ctx, sheet)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", grid.ErrSheetExists, sheet)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sheets (name, position, row_count, col_count)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM sheets), ?, ?)`,
		sheet, rows, cols)
	return err
}

func (s *Store) DropSheet(ctx context.Context, sheet string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.checkSheet(ctx, tx, sheet); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ?`, sheet); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sheets WHERE name = ?`, sheet); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SheetNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sheets ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ grid.Store = (*Store)(nil)
