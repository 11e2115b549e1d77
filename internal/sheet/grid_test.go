package sheet

import (
	"errors"
	"reflect"
	"testing"
)

func TestGrid_LastRowAndColumn(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]Value
		wantRow int
		wantCol int
	}{
		{"empty", nil, 0, 0},
		{"header only", [][]Value{{"a", "b"}}, 1, 2},
		{"ragged", [][]Value{{"a"}, {"x", "y", "z"}}, 2, 3},
		{"trailing blanks ignored", [][]Value{{"a", "b", ""}, {"", "", ""}}, 1, 2},
		{"nil cells are blank", [][]Value{{"a", nil}, {nil}}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGrid(tt.rows)
			if got := g.LastRow(); got != tt.wantRow {
				t.Errorf("LastRow() = %d, want %d", got, tt.wantRow)
			}
			if got := g.LastColumn(); got != tt.wantCol {
				t.Errorf("LastColumn() = %d, want %d", got, tt.wantCol)
			}
		})
	}
}

func TestGrid_RegionPadsOutside(t *testing.T) {
	g := NewGrid([][]Value{{"a", "b"}, {1}})

	got, err := g.Region(2, 1, 2, 3)
	if err != nil {
		t.Fatalf("Region() error = %v", err)
	}
	want := [][]Value{{1, "", ""}, {"", "", ""}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Region() = %v, want %v", got, want)
	}
}

func TestGrid_WriteGrows(t *testing.T) {
	g := NewGrid(nil)
	if err := g.Write(3, 2, [][]Value{{"x", nil}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := g.Cell(3, 2); got != "x" {
		t.Errorf("Cell(3,2) = %v, want x", got)
	}
	if got := g.Cell(3, 3); got != "" {
		t.Errorf("Cell(3,3) = %v, want blank", got)
	}
	if got := g.LastRow(); got != 3 {
		t.Errorf("LastRow() = %d, want 3", got)
	}
}

func TestGrid_DeleteRowShifts(t *testing.T) {
	g := NewGrid([][]Value{{"h"}, {"r2"}, {"r3"}, {"r4"}})
	if err := g.DeleteRow(2); err != nil {
		t.Fatalf("DeleteRow() error = %v", err)
	}
	want := [][]Value{{"h"}, {"r3"}, {"r4"}}
	if got := g.Rows(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rows() = %v, want %v", got, want)
	}
	if err := g.DeleteRow(10); err != nil {
		t.Errorf("DeleteRow(out of range) error = %v, want nil", err)
	}
}

func TestGrid_Clear(t *testing.T) {
	g := NewGrid([][]Value{{"h1", "h2"}, {"a", "b"}})
	if err := g.Clear(2, 1, 1, 2); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got := g.LastRow(); got != 1 {
		t.Errorf("LastRow() after Clear = %d, want 1", got)
	}
}

func TestGrid_InvalidRange(t *testing.T) {
	g := NewGrid(nil)
	if _, err := g.Region(0, 1, 1, 1); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Region(0,...) error = %v, want ErrInvalidRange", err)
	}
	if err := g.Write(1, 0, nil); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Write(1,0) error = %v, want ErrInvalidRange", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"", ""},
		{"Bob", "Bob"},
		{"35", 35},
		{"-2", -2},
		{"2.5", 2.5},
		{"007", "007"},
		{"1e3", "1e3"},
		{"TRUE", true},
		{"FALSE", false},
		{"true", "true"},
	}

	for _, tt := range tests {
		got := Parse(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
		if back := Format(got); back != tt.in {
			t.Errorf("Format(Parse(%q)) = %q", tt.in, back)
		}
	}
}
