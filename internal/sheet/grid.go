package sheet

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned for coordinates or dimensions below 1.
var ErrInvalidRange = errors.New("invalid range")

// Grid is an in-memory cell matrix with spreadsheet semantics. It backs the
// memory and CSV stores. Rows may be ragged; missing cells read as "".
//
// Grid is not safe for concurrent use.
type Grid struct {
	cells [][]Value
}

// NewGrid returns a grid holding a copy of rows.
func NewGrid(rows [][]Value) *Grid {
	g := &Grid{}
	g.cells = make([][]Value, len(rows))
	for i, r := range rows {
		g.cells[i] = append([]Value(nil), r...)
	}
	return g
}

// Rows returns a copy of the populated area, trimmed to LastRow x LastColumn.
func (g *Grid) Rows() [][]Value {
	lr, lc := g.LastRow(), g.LastColumn()
	if lr == 0 {
		return nil
	}
	out, _ := g.Region(1, 1, lr, lc)
	return out
}

// Region returns numRows x numCols cells starting at (row, col).
func (g *Grid) Region(row, col, numRows, numCols int) ([][]Value, error) {
	if err := checkRange(row, col, numRows, numCols); err != nil {
		return nil, err
	}
	out := make([][]Value, numRows)
	for i := range out {
		out[i] = make([]Value, numCols)
		for j := range out[i] {
			out[i][j] = g.Cell(row+i, col+j)
		}
	}
	return out, nil
}

// Cell returns the value at (row, col), or "" when outside the grid.
func (g *Grid) Cell(row, col int) Value {
	if row < 1 || row > len(g.cells) {
		return ""
	}
	r := g.cells[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	if r[col-1] == nil {
		return ""
	}
	return r[col-1]
}

// Write stores values starting at (row, col), growing the grid as needed.
func (g *Grid) Write(row, col int, values [][]Value) error {
	if err := checkRange(row, col, 1, 1); err != nil {
		return err
	}
	for i, vals := range values {
		r := row + i
		for len(g.cells) < r {
			g.cells = append(g.cells, nil)
		}
		need := col - 1 + len(vals)
		for len(g.cells[r-1]) < need {
			g.cells[r-1] = append(g.cells[r-1], "")
		}
		for j, v := range vals {
			g.cells[r-1][col-1+j] = Normalize(v)
		}
	}
	return nil
}

// Clear blanks numRows x numCols cells starting at (row, col).
func (g *Grid) Clear(row, col, numRows, numCols int) error {
	if err := checkRange(row, col, numRows, numCols); err != nil {
		return err
	}
	for r := row; r < row+numRows && r <= len(g.cells); r++ {
		cells := g.cells[r-1]
		for c := col; c < col+numCols && c <= len(cells); c++ {
			cells[c-1] = ""
		}
	}
	return nil
}

// LastRow returns the last row holding a non-blank cell.
func (g *Grid) LastRow() int {
	for r := len(g.cells); r > 0; r-- {
		for _, v := range g.cells[r-1] {
			if !IsBlank(v) {
				return r
			}
		}
	}
	return 0
}

// LastColumn returns the last column holding a non-blank cell in any row.
func (g *Grid) LastColumn() int {
	last := 0
	for _, r := range g.cells {
		for c := len(r); c > last; c-- {
			if !IsBlank(r[c-1]) {
				last = c
				break
			}
		}
	}
	return last
}

// DeleteRow removes row, shifting every row below it up by one.
func (g *Grid) DeleteRow(row int) error {
	if row < 1 {
		return fmt.Errorf("%w: row %d", ErrInvalidRange, row)
	}
	if row > len(g.cells) {
		return nil
	}
	g.cells = append(g.cells[:row-1], g.cells[row:]...)
	return nil
}

func checkRange(row, col, numRows, numCols int) error {
	if row < 1 || col < 1 || numRows < 1 || numCols < 1 {
		return fmt.Errorf("%w: row=%d col=%d rows=%d cols=%d", ErrInvalidRange, row, col, numRows, numCols)
	}
	return nil
}
