package query

// codec.go translates between positional rows and named records.
//
// Serialize is used for every write: each column takes the new value from the
// record, falls back to the value already in the row, and finally to blank.
// That three-tier fallback is what lets Update touch only the columns the
// caller named.

import (
	"sort"

	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// Record maps column names to cell values.
type Record map[string]sheet.Value

// Row is a positional row; index 0 is column 1.
type Row []sheet.Value

// Keys returns the record's column names sorted alphabetically.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Serialize lays rec out in header order. A column takes rec[name] when
// present and non-blank, else current[pos-1] when present, else "".
func Serialize(h HeaderIndex, rec Record, current Row) Row {
	out := make(Row, h.Len())
	for pos := 1; pos <= h.Len(); pos++ {
		name := h.Name(pos)
		if v, ok := rec[name]; ok && !sheet.IsBlank(v) {
			out[pos-1] = sheet.Normalize(v)
			continue
		}
		if pos-1 < len(current) && current[pos-1] != nil {
			out[pos-1] = current[pos-1]
			continue
		}
		out[pos-1] = ""
	}
	return out
}

// Deserialize builds a record restricted to requested (all headers when
// empty). Every requested name must be a header; otherwise an
// *UnknownColumnError lists all offenders. Values come from rec when present,
// else from current; a column with neither maps to nil.
func Deserialize(h HeaderIndex, rec Record, current Row, requested []string) (Record, error) {
	if err := unknownColumns(h, requested); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(requested))
	for _, n := range requested {
		want[n] = true
	}

	out := make(Record)
	for pos := 1; pos <= h.Len(); pos++ {
		name := h.Name(pos)
		if len(requested) > 0 && !want[name] {
			continue
		}
		if _, done := out[name]; done {
			continue
		}
		if v, ok := rec[name]; ok {
			out[name] = v
			continue
		}
		if pos-1 < len(current) {
			out[name] = current[pos-1]
			continue
		}
		out[name] = nil
	}
	return out, nil
}
