// Package csvstore is a sheet.Store over a directory of CSV files, one file
// per sheet (<name>.csv). Sheets are read into memory on first use and every
// mutation rewrites the file, so the directory is always the source of truth
// between processes.
package csvstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/sheetq/internal/sheet"
)

const ext = ".csv"

// utf8BOM is stripped from the start of files exported by spreadsheet tools.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store is a CSV-directory workbook.
type Store struct {
	dir string

	mu     sync.Mutex
	sheets map[string]*sheet.Grid
}

// Open returns a store rooted at dir. The directory must exist.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open csv workbook: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open csv workbook: %s is not a directory", dir)
	}
	return &Store{dir: dir, sheets: make(map[string]*sheet.Grid)}, nil
}

// Dir returns the workbook directory.
func (s *Store) Dir() string { return s.dir }

// Sheets lists the CSV files in the directory, without extension.
func (s *Store) Sheets(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// Create writes a new CSV file holding only the header row.
func (s *Store) Create(_ context.Context, name string, header []string) (sheet.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", sheet.ErrExists, name)
	}
	row := make([]sheet.Value, len(header))
	for i, h := range header {
		row[i] = h
	}
	g := sheet.NewGrid([][]sheet.Value{row})
	if err := writeFile(path, g); err != nil {
		return nil, err
	}
	s.sheets[name] = g
	return sheet.NewHandle(name), nil
}

func (s *Store) Locate(_ context.Context, name string) (sheet.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.load(name); err != nil {
		return nil, err
	}
	return sheet.NewHandle(name), nil
}

func (s *Store) ReadRegion(_ context.Context, h sheet.Handle, row, col, numRows, numCols int) ([][]sheet.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.load(h.Name())
	if err != nil {
		return nil, err
	}
	return g.Region(row, col, numRows, numCols)
}

func (s *Store) ReadCell(_ context.Context, h sheet.Handle, row, col int) (sheet.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.load(h.Name())
	if err != nil {
		return nil, err
	}
	return g.Cell(row, col), nil
}

func (s *Store) WriteRegion(_ context.Context, h sheet.Handle, row, col int, values [][]sheet.Value) error {
	return s.mutate(h, func(g *sheet.Grid) error { return g.Write(row, col, values) })
}

func (s *Store) ClearRegion(_ context.Context, h sheet.Handle, row, col, numRows, numCols int) error {
	return s.mutate(h, func(g *sheet.Grid) error { return g.Clear(row, col, numRows, numCols) })
}

func (s *Store) DeleteRow(_ context.Context, h sheet.Handle, row int) error {
	return s.mutate(h, func(g *sheet.Grid) error { return g.DeleteRow(row) })
}

func (s *Store) LastRow(_ context.Context, h sheet.Handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.load(h.Name())
	if err != nil {
		return 0, err
	}
	return g.LastRow(), nil
}

func (s *Store) LastColumn(_ context.Context, h sheet.Handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.load(h.Name())
	if err != nil {
		return 0, err
	}
	return g.LastColumn(), nil
}

// mutate applies fn to the cached grid and rewrites the file.
func (s *Store) mutate(h sheet.Handle, fn func(*sheet.Grid) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.load(h.Name())
	if err != nil {
		return err
	}
	if err := fn(g); err != nil {
		return err
	}
	path, err := s.path(h.Name())
	if err != nil {
		return err
	}
	return writeFile(path, g)
}

// load must be called with s.mu held.
func (s *Store) load(name string) (*sheet.Grid, error) {
	if g, ok := s.sheets[name]; ok {
		return g, nil
	}
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sheet.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	g := sheet.NewGrid(rows)
	s.sheets[name] = g
	return g, nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid sheet name %q", name)
	}
	return filepath.Join(s.dir, name+ext), nil
}

func readRows(r io.Reader) ([][]sheet.Value, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(newUTF8Sanitizer(br))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([][]sheet.Value, len(records))
	for i, rec := range records {
		rows[i] = make([]sheet.Value, len(rec))
		for j, cell := range rec {
			if i == 0 {
				rows[i][j] = cell
				continue
			}
			rows[i][j] = sheet.Parse(cell)
		}
	}
	return rows, nil
}

func writeFile(path string, g *sheet.Grid) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	width := g.LastColumn()
	for _, row := range g.Rows() {
		rec := make([]string, width)
		for j := range rec {
			if j < len(row) {
				rec[j] = sheet.Format(row[j])
			}
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
