// Package application wires configuration to a running sheet store and
// service. Both the HTTP server and the CLI start through here.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetq/internal/config"
	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/sheet"
	"github.com/JonMunkholm/sheetq/internal/sheet/csvstore"
	"github.com/JonMunkholm/sheetq/internal/sheet/memstore"
	"github.com/JonMunkholm/sheetq/internal/sheet/pgstore"
)

// Backend is an opened sheet store plus whatever it needs on shutdown.
type Backend struct {
	Store sheet.Store
	Kind  string

	close func() error
}

// Close releases the store. For the memory backend with a snapshot path
// this is where the snapshot is written.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens the store selected by cfg.Store.Backend.
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return openMemory(cfg.Store.Snapshot)
	case config.BackendCSV:
		store, err := csvstore.Open(cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		slog.Info("opened csv workbook", "dir", store.Dir())
		return &Backend{Store: store, Kind: config.BackendCSV}, nil
	case config.BackendPostgres:
		return openPostgres(ctx, cfg.Database)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func openMemory(snapshot string) (*Backend, error) {
	if snapshot == "" {
		return &Backend{Store: memstore.New(), Kind: config.BackendMemory}, nil
	}

	store, err := memstore.OpenFile(snapshot)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot %s: %w", snapshot, err)
	}
	names, _ := store.Sheets(context.Background())
	slog.Info("restored snapshot", "path", snapshot, "sheets", len(names))

	return &Backend{
		Store: store,
		Kind:  config.BackendMemory,
		close: func() error {
			if err := store.SaveFile(snapshot); err != nil {
				return fmt.Errorf("save snapshot %s: %w", snapshot, err)
			}
			slog.Info("snapshot saved", "path", snapshot)
			return nil
		},
	}, nil
}

func openPostgres(ctx context.Context, dbCfg config.DatabaseConfig) (*Backend, error) {
	poolConfig, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(dbCfg.MaxConns)
	poolConfig.MinConns = int32(dbCfg.MinConns)
	poolConfig.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dbCfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := pgstore.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(dbCfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	return &Backend{
		Store: store,
		Kind:  config.BackendPostgres,
		close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

// NewService builds the service over b with the cursor and query limits
// from cfg.
func NewService(b *Backend, cfg *config.Config) *core.Service {
	return core.NewService(b.Store, core.Options{
		CursorTTL:          cfg.Cursor.TTL,
		MaxCursors:         cfg.Cursor.Max,
		MaxConcurrentScans: cfg.Query.MaxConcurrent,
		ScanWait:           cfg.Query.MaxWait,
		Timeout:            cfg.Query.Timeout,
	})
}
