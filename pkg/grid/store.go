// Package grid defines the rectangular, range-addressable store records are
// kept in, and an in-memory implementation of it.
package grid

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when the store is missing or closed.
	ErrUnavailable = errors.New("backing store unavailable")
	// ErrSheetNotFound is returned when a sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrSheetExists is returned when creating a sheet that already exists.
	ErrSheetExists = errors.New("sheet already exists")
)

// Update is one entry of a batched write.
type Update struct {
	Range  Range
	Values [][]any
}

// Store is a sheet-organized grid of scalar cells.
//
// Values returns the block starting at the range's top-left cell, with
// trailing empty cells and rows trimmed; empty cells read back as "". Write
// places values with their top-left at the range's origin; nil clears a cell.
type Store interface {
	Values(ctx context.Context, sheet string, r Range) ([][]any, error)
	Write(ctx context.Context, sheet string, r Range, values [][]any) error
	BatchWrite(ctx context.Context, sheet string, updates []Update) error
	Clear(ctx context.Context, sheet string, r Range) error

	SheetExists(ctx context.Context, sheet string) (bool, error)
	CreateSheet(ctx context.Context, sheet string, rows, cols int) error
	DropSheet(ctx context.Context, sheet string) error
	SheetNames(ctx context.Context) ([]string, error)
}
