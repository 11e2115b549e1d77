package csvstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/JonMunkholm/sheetq/internal/sheet"
)

const peopleCSV = "\xEF\xBB\xBFname,age,id,is_active\nAlice,28,1,TRUE\nBob,35,2,TRUE\nCharlie,23,3,FALSE\n"

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "people.csv"), []byte(peopleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestOpen_NotDirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	os.WriteFile(f, nil, 0o644)
	if _, err := Open(f); err == nil {
		t.Error("Open(file) expected error")
	}
}

func TestLocate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Locate(ctx, "people"); err != nil {
		t.Fatalf("Locate(people) error = %v", err)
	}
	if _, err := s.Locate(ctx, "nope"); !errors.Is(err, sheet.ErrNotFound) {
		t.Errorf("Locate(nope) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Locate(ctx, "../etc"); err == nil {
		t.Error("Locate(../etc) expected error")
	}
}

func TestReadTypedCells(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	h, _ := s.Locate(ctx, "people")

	got, err := s.ReadRegion(ctx, h, 1, 1, 2, 4)
	if err != nil {
		t.Fatalf("ReadRegion() error = %v", err)
	}
	want := [][]sheet.Value{
		{"name", "age", "id", "is_active"},
		{"Alice", 28, 1, true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadRegion() = %#v, want %#v", got, want)
	}
}

func TestWritePersists(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	h, _ := s.Locate(ctx, "people")

	if err := s.WriteRegion(ctx, h, 5, 1, [][]sheet.Value{{"Zoe", 30, "", ""}}); err != nil {
		t.Fatalf("WriteRegion() error = %v", err)
	}
	if err := s.DeleteRow(ctx, h, 2); err != nil {
		t.Fatalf("DeleteRow() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), "people.csv"))
	if err != nil {
		t.Fatal(err)
	}
	want := "name,age,id,is_active\nBob,35,2,TRUE\nCharlie,23,3,FALSE\nZoe,30,,\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}

	// A fresh store over the same directory sees the change.
	fresh, _ := Open(s.Dir())
	h2, _ := fresh.Locate(ctx, "people")
	lr, _ := fresh.LastRow(ctx, h2)
	if lr != 4 {
		t.Errorf("LastRow() = %d, want 4", lr)
	}
}

func TestCreateAndList(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "orders", []string{"id", "total"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.Create(ctx, "orders", []string{"id"}); !errors.Is(err, sheet.ErrExists) {
		t.Errorf("Create() duplicate error = %v, want ErrExists", err)
	}
	names, err := s.Sheets(ctx)
	if err != nil {
		t.Fatalf("Sheets() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"orders", "people"}) {
		t.Errorf("Sheets() = %v", names)
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii", "name,age\n", "name,age\n"},
		{"valid multibyte", "caf\xC3\xA9,\xE2\x82\xAC5\n", "café,€5\n"},
		{"latin1 byte", "caf\xE9\n", "caf?\n"},
		{"lone continuation", "a\x80b", "a?b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newUTF8Sanitizer(strings.NewReader(tt.in)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitRune(t *testing.T) {
	// One byte per Read splits every multi-byte rune across calls.
	got, err := io.ReadAll(newUTF8Sanitizer(iotest.OneByteReader(strings.NewReader("\xE2\x82\xAC and caf\xC3\xA9"))))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != "€ and café" {
		t.Errorf("got %q", got)
	}
}
