package query

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestScan(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		where     Where
		wantRows  []int
		wantReads int
	}{
		{
			name:      "no conditions matches all",
			where:     Where{},
			wantRows:  []int{2, 3, 4},
			wantReads: 0,
		},
		{
			name:      "narrowing skips eliminated rows",
			where:     Where{}.Eq("name", "Bob").Op("age", OpGte, 30),
			wantRows:  []int{3},
			wantReads: 3 + 1,
		},
		{
			name:      "stops once nothing survives",
			where:     Where{}.Eq("name", "Zoe").Op("age", OpGte, 30),
			wantRows:  []int{},
			wantReads: 3,
		},
		{
			name:      "worst case reads every cell of every group",
			where:     Where{}.Op("age", OpGt, 0).Op("id", OpGt, 0),
			wantRows:  []int{2, 3, 4},
			wantReads: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, cs := newPeople(t)
			groups, err := Compile(tt.where, people)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}

			rows, err := Scan(ctx, cs, m.handle, groups, FirstDataRow, 4)
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if !reflect.DeepEqual(rows, tt.wantRows) {
				t.Errorf("rows = %v, want %v", rows, tt.wantRows)
			}
			if cs.cellReads != tt.wantReads {
				t.Errorf("cell reads = %d, want %d", cs.cellReads, tt.wantReads)
			}
		})
	}
}

func TestScan_EmptyRange(t *testing.T) {
	m, _, cs := newPeople(t)
	groups, _ := Compile(Where{}.Eq("name", "Bob"), people)

	rows, err := Scan(context.Background(), cs, m.handle, groups, FirstDataRow, 1)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %#v, want empty non-nil slice", rows)
	}
	if cs.cellReads != 0 {
		t.Errorf("cell reads = %d, want 0", cs.cellReads)
	}
}

func TestScan_Cancelled(t *testing.T) {
	m, _, cs := newPeople(t)
	groups, _ := Compile(Where{}.Eq("name", "Bob"), people)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, cs, m.handle, groups, FirstDataRow, 4)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
}
