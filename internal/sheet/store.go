// Package sheet defines the backing-store contract for header-addressed tables.
//
// A sheet is a two-dimensional grid of scalar cells addressed by 1-based row
// and column numbers. Row 1 holds the column names. The query engine never
// talks to a concrete store directly; it receives a [Store] and a [Handle]
// explicitly, so the same engine runs over the in-memory, CSV and PostgreSQL
// implementations in the sub-packages.
package sheet

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Locate when no sheet has the requested name.
var ErrNotFound = errors.New("sheet not found")

// ErrExists is returned by Create when the name is taken.
var ErrExists = errors.New("sheet already exists")

// Value is a single cell: nil, string, a Go numeric kind, or bool.
type Value = any

// Handle identifies a located sheet within a store.
type Handle interface {
	Name() string
}

// Store is the minimum capability surface the query engine requires.
//
// All coordinates are 1-based. Reads outside the populated area return
// blank ("") cells rather than errors. LastRow and LastColumn report the
// last row/column containing a non-blank cell, or 0 for an empty sheet.
type Store interface {
	Locate(ctx context.Context, name string) (Handle, error)
	ReadRegion(ctx context.Context, h Handle, row, col, numRows, numCols int) ([][]Value, error)
	ReadCell(ctx context.Context, h Handle, row, col int) (Value, error)
	WriteRegion(ctx context.Context, h Handle, row, col int, grid [][]Value) error
	ClearRegion(ctx context.Context, h Handle, row, col, numRows, numCols int) error
	LastRow(ctx context.Context, h Handle) (int, error)
	LastColumn(ctx context.Context, h Handle) (int, error)
	DeleteRow(ctx context.Context, h Handle, row int) error
}

// Creator is implemented by stores that can create new sheets.
type Creator interface {
	Create(ctx context.Context, name string, header []string) (Handle, error)
}

// Lister is implemented by stores that can enumerate their sheets.
type Lister interface {
	Sheets(ctx context.Context) ([]string, error)
}

// named is the Handle used by the bundled stores.
type named string

func (n named) Name() string { return string(n) }

// NewHandle returns a Handle for the given sheet name.
func NewHandle(name string) Handle { return named(name) }
