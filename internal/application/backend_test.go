package application

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetq/internal/config"
	"github.com/JonMunkholm/sheetq/internal/query"
	"github.com/JonMunkholm/sheetq/internal/sheet"
)

func TestOpenBackend_MemorySnapshot(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Store: config.StoreConfig{
		Backend:  config.BackendMemory,
		Snapshot: filepath.Join(t.TempDir(), "book.snap"),
	}}

	b, err := OpenBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	svc := NewService(b, cfg)
	if err := svc.CreateSheet(ctx, "tasks", []string{"title", "done"}); err != nil {
		t.Fatalf("CreateSheet() error = %v", err)
	}
	if err := svc.Append(ctx, "tasks", query.Record{"title": "write docs", "done": false}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	info, err := NewService(reopened, cfg).Describe(ctx, "tasks")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if info.Rows != 1 {
		t.Errorf("restored rows = %d, want 1", info.Rows)
	}
}

func TestOpenBackend_CSV(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.BackendCSV, Dir: dir}}

	b, err := OpenBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	if b.Kind != config.BackendCSV {
		t.Errorf("Kind = %q", b.Kind)
	}
	if _, ok := b.Store.(sheet.Creator); !ok {
		t.Error("csv store does not implement sheet.Creator")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	cfg.Store.Dir = filepath.Join(dir, "missing")
	if _, err := OpenBackend(context.Background(), cfg); err == nil {
		t.Error("OpenBackend() on missing dir succeeded")
	}
}

func TestOpenBackend_Unknown(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "sqlite"}}
	if _, err := OpenBackend(context.Background(), cfg); err == nil {
		t.Error("OpenBackend() with unknown backend succeeded")
	}
}

func TestNewService_AppliesLimits(t *testing.T) {
	cfg := &config.Config{
		Store:  config.StoreConfig{Backend: config.BackendMemory},
		Cursor: config.CursorConfig{TTL: time.Minute, Max: 1},
		Query:  config.QueryConfig{MaxConcurrent: 3},
	}
	b, err := OpenBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	svc := NewService(b, cfg)
	if got := svc.Scans().Status().MaxConcurrent; got != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", got)
	}
}
