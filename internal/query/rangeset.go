package query

import (
	"fmt"
	"strconv"
)

// Location is an immutable 1-based rectangle in a sheet. The engine only
// produces single-row, full-width locations.
type Location struct {
	Row        int `json:"row"`
	Column     int `json:"column"`
	NumRows    int `json:"numRows"`
	NumColumns int `json:"numColumns"`
}

// RowLocation returns the location of a whole row of the given width.
func RowLocation(row, width int) Location {
	return Location{Row: row, Column: 1, NumRows: 1, NumColumns: width}
}

// String renders the location in A1 notation, e.g. "A2:D2".
func (l Location) String() string {
	start := ColumnLetter(l.Column) + strconv.Itoa(l.Row)
	if l.NumRows == 1 && l.NumColumns == 1 {
		return start
	}
	end := ColumnLetter(l.Column+l.NumColumns-1) + strconv.Itoa(l.Row+l.NumRows-1)
	return fmt.Sprintf("%s:%s", start, end)
}

// ColumnLetter converts a 1-based column number to its letter form
// (1 -> A, 27 -> AA).
func ColumnLetter(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// RangeSet is the ordered result of a filter, ascending by row.
type RangeSet []Location

// NewRangeSet builds a full-width location for each row.
func NewRangeSet(rows []int, width int) RangeSet {
	rs := make(RangeSet, len(rows))
	for i, r := range rows {
		rs[i] = RowLocation(r, width)
	}
	return rs
}

// Rows returns the row numbers in order.
func (rs RangeSet) Rows() []int {
	rows := make([]int, len(rs))
	for i, l := range rs {
		rows[i] = l.Row
	}
	return rows
}

// DeletionTargets returns the row numbers to delete, one at a time and in
// order, so that every location in rs is removed from a live sheet.
//
// Deleting row R shifts every row below R up by one. Processing rows in
// ascending order, the k-th deletion (0-based) therefore targets row - k.
func (rs RangeSet) DeletionTargets() []int {
	rows := rs.Rows()
	for i := 1; i < len(rows); i++ {
		if rows[i] <= rows[i-1] {
			panic("query: range set rows must be strictly ascending")
		}
	}
	targets := make([]int, len(rows))
	for k, r := range rows {
		targets[k] = r - k
	}
	return targets
}
