package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetq/internal/logging"
	"github.com/JonMunkholm/sheetq/internal/query"
	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// ErrUnsupported is returned when the store lacks an optional capability
// (listing or creating sheets).
var ErrUnsupported = errors.New("operation not supported by store")

// Options configures a Service. Zero values fall back to the defaults below.
type Options struct {
	CursorTTL          time.Duration // idle lifetime of a cursor (default: 15m)
	MaxCursors         int           // live cursor cap (default: 1000)
	MaxConcurrentScans int           // parallel filter scans (default: 8)
	ScanWait           time.Duration // wait for a scan slot (default: 5s)
	Timeout            time.Duration // per-operation deadline, 0 = none
}

const (
	DefaultCursorTTL  = 15 * time.Minute
	DefaultMaxCursors = 1000
)

// Service is the entry point for the HTTP handlers and the CLI. It owns the
// sheet store, the cursor registry and the per-sheet locks that give the
// query engine its single-writer guarantee.
type Service struct {
	store sheet.Store
	opts  Options
	scans *ScanLimiter
	now   func() time.Time

	mu      sync.Mutex
	cursors map[string]*cursor
	locks   map[string]*sync.Mutex
}

// NewService creates a Service over store.
func NewService(store sheet.Store, opts Options) *Service {
	if opts.CursorTTL <= 0 {
		opts.CursorTTL = DefaultCursorTTL
	}
	if opts.MaxCursors <= 0 {
		opts.MaxCursors = DefaultMaxCursors
	}
	return &Service{
		store:   store,
		opts:    opts,
		scans:   NewScanLimiter(opts.MaxConcurrentScans, opts.ScanWait),
		now:     time.Now,
		cursors: make(map[string]*cursor),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Store returns the backing store.
func (s *Service) Store() sheet.Store { return s.store }

// Scans returns the scan limiter, for status reporting and drain on shutdown.
func (s *Service) Scans() *ScanLimiter { return s.scans }

// SheetInfo describes one sheet for listings.
type SheetInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"` // data rows, header excluded
}

// ListSheets returns every sheet with its header and data row count.
func (s *Service) ListSheets(ctx context.Context) ([]SheetInfo, error) {
	lister, ok := s.store.(sheet.Lister)
	if !ok {
		return nil, fmt.Errorf("list sheets: %w", ErrUnsupported)
	}
	names, err := lister.Sheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}

	infos := make([]SheetInfo, 0, len(names))
	for _, name := range names {
		info, err := s.Describe(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Describe returns the header and data row count of one sheet.
func (s *Service) Describe(ctx context.Context, name string) (SheetInfo, error) {
	var info SheetInfo
	err := s.withSheet(ctx, name, func(ctx context.Context, m *query.Manager) error {
		h, err := m.Headers(ctx)
		if err != nil {
			return err
		}
		last, err := s.store.LastRow(ctx, m.Handle())
		if err != nil {
			return err
		}
		info = SheetInfo{Name: m.Name(), Columns: h.Names(), Rows: max(last-1, 0)}
		return nil
	})
	return info, err
}

// CreateSheet creates an empty sheet with the given header row.
func (s *Service) CreateSheet(ctx context.Context, name string, header []string) error {
	creator, ok := s.store.(sheet.Creator)
	if !ok {
		return fmt.Errorf("create sheet: %w", ErrUnsupported)
	}
	if len(header) == 0 {
		return fmt.Errorf("%w: header must name at least one column", ErrInvalidRequest)
	}

	lock := s.sheetLock(name)
	lock.Lock()
	defer lock.Unlock()

	if _, err := creator.Create(ctx, name, header); err != nil {
		return err
	}
	logging.WithFields(ctx, "sheet", name).Info("sheet created", "columns", len(header))
	return nil
}

// QueryResult is a stateless filter-and-fetch result.
type QueryResult struct {
	Sheet   string         `json:"sheet"`
	Where   query.Where    `json:"where"`
	Ranges  []string       `json:"ranges"`
	Records []query.Record `json:"records"`
}

// Query filters name by where and fetches fields (all columns when empty)
// without keeping a cursor.
func (s *Service) Query(ctx context.Context, name string, where query.Where, fields []string) (*QueryResult, error) {
	var res *QueryResult
	err := s.withSheet(ctx, name, func(ctx context.Context, m *query.Manager) error {
		if err := s.filter(ctx, m, where); err != nil {
			return err
		}
		recs, err := m.Fetch(ctx, fields...)
		if err != nil {
			return err
		}
		res = &QueryResult{
			Sheet:   m.Name(),
			Where:   m.Where(),
			Ranges:  a1(m.Ranges()),
			Records: recs,
		}
		return nil
	})
	return res, err
}

// Append adds rec below the last populated row of name.
func (s *Service) Append(ctx context.Context, name string, rec query.Record) error {
	return s.withSheet(ctx, name, func(ctx context.Context, m *query.Manager) error {
		if err := m.Append(ctx, rec); err != nil {
			return err
		}
		logging.WithFields(ctx, "sheet", name).Info("row appended", requestAttrs(ctx)...)
		return nil
	})
}

// Prepend inserts rec as the first data row of name.
func (s *Service) Prepend(ctx context.Context, name string, rec query.Record) error {
	return s.withSheet(ctx, name, func(ctx context.Context, m *query.Manager) error {
		if err := m.Prepend(ctx, rec); err != nil {
			return err
		}
		logging.WithFields(ctx, "sheet", name).Info("row prepended", requestAttrs(ctx)...)
		return nil
	})
}

// UpdateWhere merges rec into every row of name matching where and returns
// the number of rows touched.
func (s *Service) UpdateWhere(ctx context.Context, name string, where query.Where, rec query.Record) (int, error) {
	var n int
	err := s.withSheet(ctx, name, func(ctx context.Context, m *query.Manager) error {
		if err := s.filter(ctx, m, where); err != nil {
			return err
		}
		if err := m.Update(ctx, rec); err != nil {
			return err
		}
		n = m.Len()
		logging.WithFields(ctx, "sheet", name).Info("rows updated",
			append([]any{"rows", n}, requestAttrs(ctx)...)...)
		return nil
	})
	return n, err
}

// DeleteWhere deletes every row of name matching where and returns the
// number of rows deleted.
func (s *Service) DeleteWhere(ctx context.Context, name string, where query.Where) (int, error) {
	var n int
	err := s.withSheet(ctx, name, func(ctx context.Context, m *query.Manager) error {
		if err := s.filter(ctx, m, where); err != nil {
			return err
		}
		var err error
		n, err = m.DeleteRows(ctx)
		logDeleted(ctx, logging.WithFields(ctx, "sheet", name), n, err)
		return err
	})
	return n, err
}

// withSheet opens a short-lived manager on name and runs fn under the
// sheet's lock.
func (s *Service) withSheet(ctx context.Context, name string, fn func(context.Context, *query.Manager) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Locate first so unknown names never get a lock entry.
	if _, err := s.store.Locate(ctx, name); err != nil {
		return err
	}

	lock := s.sheetLock(name)
	lock.Lock()
	defer lock.Unlock()

	m, err := query.Open(ctx, s.store, name, query.WithLogger(logging.FromContext(ctx)))
	if err != nil {
		return err
	}
	return fn(ctx, m)
}

// filter runs m.Filter inside a scan slot.
func (s *Service) filter(ctx context.Context, m *query.Manager, where query.Where) error {
	if err := s.scans.Acquire(ctx); err != nil {
		return err
	}
	defer s.scans.Release()
	return m.Filter(ctx, where)
}

// refresh runs m.Refresh inside a scan slot.
func (s *Service) refresh(ctx context.Context, m *query.Manager) error {
	if !m.Filtered() {
		return nil
	}
	if err := s.scans.Acquire(ctx); err != nil {
		return err
	}
	defer s.scans.Release()
	return m.Refresh(ctx)
}

// sheetLock returns the mutex serializing engine access to one sheet.
func (s *Service) sheetLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// logDeleted reports a delete. A partial delete is a warning carrying the
// number of rows removed before the failure.
func logDeleted(ctx context.Context, log *slog.Logger, n int, err error) {
	attrs := append([]any{"rows", n}, requestAttrs(ctx)...)
	if err != nil {
		log.Warn("row deletion stopped", append(attrs, "error", err)...)
		return
	}
	log.Info("rows deleted", attrs...)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// a1 renders a range set in A1 notation.
func a1(rs query.RangeSet) []string {
	out := make([]string, len(rs))
	for i, loc := range rs {
		out[i] = loc.String()
	}
	return out
}
