package query

import (
	"reflect"
	"testing"
)

func TestLocation_String(t *testing.T) {
	tests := []struct {
		loc  Location
		want string
	}{
		{RowLocation(2, 4), "A2:D2"},
		{Location{Row: 5, Column: 3, NumRows: 1, NumColumns: 1}, "C5"},
		{Location{Row: 1, Column: 26, NumRows: 3, NumColumns: 2}, "Z1:AA3"},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.loc, got, tt.want)
		}
	}
}

func TestColumnLetter(t *testing.T) {
	tests := map[int]string{0: "", 1: "A", 26: "Z", 27: "AA", 52: "AZ", 53: "BA", 702: "ZZ", 703: "AAA"}
	for col, want := range tests {
		if got := ColumnLetter(col); got != want {
			t.Errorf("ColumnLetter(%d) = %q, want %q", col, got, want)
		}
	}
}

func TestDeletionTargets(t *testing.T) {
	tests := []struct {
		rows []int
		want []int
	}{
		{nil, []int{}},
		{[]int{3}, []int{3}},
		{[]int{2, 4}, []int{2, 3}},
		{[]int{2, 3, 4}, []int{2, 2, 2}},
		{[]int{5, 9, 10, 20}, []int{5, 8, 8, 17}},
	}
	for _, tt := range tests {
		got := NewRangeSet(tt.rows, 4).DeletionTargets()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DeletionTargets(%v) = %v, want %v", tt.rows, got, tt.want)
		}
	}
}

func TestDeletionTargets_RequiresAscending(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("DeletionTargets() on unsorted rows should panic")
		}
	}()
	NewRangeSet([]int{4, 2}, 4).DeletionTargets()
}
