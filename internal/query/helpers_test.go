package query

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/sheetq/internal/sheet"
	"github.com/JonMunkholm/sheetq/internal/sheet/memstore"
)

// peopleRows is the example table used throughout the package tests.
func peopleRows() [][]sheet.Value {
	return [][]sheet.Value{
		{"name", "age", "id", "is_active"},
		{"Alice", 28, 1, true},
		{"Bob", 35, 2, true},
		{"Charlie", 23, 3, false},
	}
}

// countingStore wraps a store and counts calls, optionally failing some.
type countingStore struct {
	sheet.Store
	cellReads   int
	deletedRows []int
	failDelete  int // 1-based call number to fail, 0 = never
	deleteCalls int
}

var errInjected = errors.New("injected failure")

func (c *countingStore) ReadCell(ctx context.Context, h sheet.Handle, row, col int) (sheet.Value, error) {
	c.cellReads++
	return c.Store.ReadCell(ctx, h, row, col)
}

func (c *countingStore) DeleteRow(ctx context.Context, h sheet.Handle, row int) error {
	c.deleteCalls++
	if c.failDelete == c.deleteCalls {
		return errInjected
	}
	c.deletedRows = append(c.deletedRows, row)
	return c.Store.DeleteRow(ctx, h, row)
}

// newPeople returns a manager over a fresh copy of peopleRows.
func newPeople(t *testing.T) (*Manager, *memstore.Store, *countingStore) {
	t.Helper()
	mem := memstore.New()
	mem.Load("people", peopleRows())
	cs := &countingStore{Store: mem}
	m, err := Open(context.Background(), cs, "people")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return m, mem, cs
}

func mustRows(t *testing.T, mem *memstore.Store) [][]sheet.Value {
	t.Helper()
	rows, err := mem.Rows("people")
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	return rows
}
