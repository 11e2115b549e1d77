// Package memstore is an in-memory sheet.Store. It is used by tests, by the
// CLI when working from a snapshot file, and by the server when
// STORE_BACKEND=memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// Store holds a workbook of named grids.
type Store struct {
	mu     sync.RWMutex
	sheets map[string]*sheet.Grid
}

// New returns an empty workbook.
func New() *Store {
	return &Store{sheets: make(map[string]*sheet.Grid)}
}

// Load replaces (or adds) a sheet with the given rows, header first.
func (s *Store) Load(name string, rows [][]sheet.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[name] = sheet.NewGrid(rows)
}

// Rows returns a copy of a sheet's populated area.
func (s *Store) Rows(name string) ([][]sheet.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheet.ErrNotFound, name)
	}
	return g.Rows(), nil
}

// Create adds an empty sheet with the given header row.
func (s *Store) Create(_ context.Context, name string, header []string) (sheet.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sheets[name]; exists {
		return nil, fmt.Errorf("%w: %s", sheet.ErrExists, name)
	}
	row := make([]sheet.Value, len(header))
	for i, h := range header {
		row[i] = h
	}
	s.sheets[name] = sheet.NewGrid([][]sheet.Value{row})
	return sheet.NewHandle(name), nil
}

// Sheets lists sheet names alphabetically.
func (s *Store) Sheets(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sheets))
	for n := range s.sheets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Locate(_ context.Context, name string) (sheet.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sheets[name]; !ok {
		return nil, fmt.Errorf("%w: %s", sheet.ErrNotFound, name)
	}
	return sheet.NewHandle(name), nil
}

func (s *Store) ReadRegion(_ context.Context, h sheet.Handle, row, col, numRows, numCols int) ([][]sheet.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.grid(h)
	if err != nil {
		return nil, err
	}
	return g.Region(row, col, numRows, numCols)
}

func (s *Store) ReadCell(_ context.Context, h sheet.Handle, row, col int) (sheet.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.grid(h)
	if err != nil {
		return nil, err
	}
	return g.Cell(row, col), nil
}

func (s *Store) WriteRegion(_ context.Context, h sheet.Handle, row, col int, values [][]sheet.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.grid(h)
	if err != nil {
		return err
	}
	return g.Write(row, col, values)
}

func (s *Store) ClearRegion(_ context.Context, h sheet.Handle, row, col, numRows, numCols int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.grid(h)
	if err != nil {
		return err
	}
	return g.Clear(row, col, numRows, numCols)
}

func (s *Store) LastRow(_ context.Context, h sheet.Handle) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.grid(h)
	if err != nil {
		return 0, err
	}
	return g.LastRow(), nil
}

func (s *Store) LastColumn(_ context.Context, h sheet.Handle) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.grid(h)
	if err != nil {
		return 0, err
	}
	return g.LastColumn(), nil
}

func (s *Store) DeleteRow(_ context.Context, h sheet.Handle, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.grid(h)
	if err != nil {
		return err
	}
	return g.DeleteRow(row)
}

// grid must be called with s.mu held.
func (s *Store) grid(h sheet.Handle) (*sheet.Grid, error) {
	g, ok := s.sheets[h.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheet.ErrNotFound, h.Name())
	}
	return g, nil
}
