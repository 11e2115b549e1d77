package query

import (
	"context"

	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// HeaderIndex maps 1-based column positions to column names. Names need not
// be unique; Position resolves to the first match.
type HeaderIndex struct {
	names []string
}

// NewHeaderIndex builds an index from header names in column order.
func NewHeaderIndex(names []string) HeaderIndex {
	return HeaderIndex{names: append([]string(nil), names...)}
}

// ReadHeaders reads row 1 of the sheet, full width. Store errors are
// returned unchanged.
func ReadHeaders(ctx context.Context, store sheet.Store, h sheet.Handle) (HeaderIndex, error) {
	width, err := store.LastColumn(ctx, h)
	if err != nil {
		return HeaderIndex{}, err
	}
	if width == 0 {
		return HeaderIndex{}, nil
	}
	grid, err := store.ReadRegion(ctx, h, 1, 1, 1, width)
	if err != nil {
		return HeaderIndex{}, err
	}
	names := make([]string, width)
	if len(grid) > 0 {
		for i := 0; i < width && i < len(grid[0]); i++ {
			names[i] = sheet.Format(grid[0][i])
		}
	}
	return HeaderIndex{names: names}, nil
}

// Len returns the number of columns.
func (h HeaderIndex) Len() int { return len(h.names) }

// Name returns the name at pos, or "" when pos is out of range.
func (h HeaderIndex) Name(pos int) string {
	if pos < 1 || pos > len(h.names) {
		return ""
	}
	return h.names[pos-1]
}

// Position returns the first 1-based position whose name equals name.
func (h HeaderIndex) Position(name string) (int, bool) {
	for i, n := range h.names {
		if n == name {
			return i + 1, true
		}
	}
	return 0, false
}

// Has reports whether name is a header.
func (h HeaderIndex) Has(name string) bool {
	_, ok := h.Position(name)
	return ok
}

// Names returns the header names in column order.
func (h HeaderIndex) Names() []string {
	return append([]string(nil), h.names...)
}

// Map returns the position -> name mapping.
func (h HeaderIndex) Map() map[int]string {
	m := make(map[int]string, len(h.names))
	for i, n := range h.names {
		m[i+1] = n
	}
	return m
}

// Unknown returns the names that are not headers, deduplicated, in the
// order first seen.
func (h HeaderIndex) Unknown(names []string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, n := range names {
		if h.Has(n) || seen[n] {
			continue
		}
		seen[n] = true
		missing = append(missing, n)
	}
	return missing
}
