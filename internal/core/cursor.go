package core

// cursor.go keeps query managers alive between requests.
//
// A cursor is a query.Manager bound to one sheet plus bookkeeping. HTTP
// clients open a cursor, filter it, then fetch/update/delete against the
// stored range set across several requests. Every cursor operation runs
// under the sheet's lock, so two cursors on the same sheet never interleave
// engine calls. Row numbers held by other cursors still go stale after a
// delete or prepend; clients call refresh to re-run their where-clause.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetq/internal/logging"
	"github.com/JonMunkholm/sheetq/internal/metrics"
	"github.com/JonMunkholm/sheetq/internal/query"
)

var (
	// ErrCursorNotFound is returned for unknown, closed or expired cursor ids.
	ErrCursorNotFound = errors.New("cursor not found")

	// ErrTooManyCursors is returned by OpenCursor when MaxCursors are live.
	ErrTooManyCursors = errors.New("too many open cursors")
)

// UpsertMode selects what an upsert does when the cursor matched nothing.
type UpsertMode string

const (
	UpsertAppend  UpsertMode = "append"
	UpsertPrepend UpsertMode = "prepend"
)

// ParseUpsertMode accepts "append" (the default when empty) or "prepend".
func ParseUpsertMode(s string) (UpsertMode, error) {
	switch UpsertMode(s) {
	case "", UpsertAppend:
		return UpsertAppend, nil
	case UpsertPrepend:
		return UpsertPrepend, nil
	}
	return "", fmt.Errorf("%w: upsert mode must be append or prepend, got %q", ErrInvalidRequest, s)
}

type cursor struct {
	id       string
	sheet    string
	mgr      *query.Manager
	created  time.Time
	lastUsed time.Time
}

// CursorInfo is the externally visible state of a cursor.
type CursorInfo struct {
	ID        string      `json:"id"`
	Sheet     string      `json:"sheet"`
	Filtered  bool        `json:"filtered"`
	Where     query.Where `json:"where,omitempty"`
	Ranges    []string    `json:"ranges"`
	Rows      int         `json:"rows"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// OpenCursor creates an unfiltered cursor on sheet.
func (s *Service) OpenCursor(ctx context.Context, sheetName string) (CursorInfo, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := uuid.New().String()
	m, err := query.Open(ctx, s.store, sheetName,
		query.WithLogger(slog.Default().With("cursor_id", id)))
	if err != nil {
		return CursorInfo{}, err
	}

	now := s.now()
	c := &cursor{id: id, sheet: sheetName, mgr: m, created: now, lastUsed: now}

	s.mu.Lock()
	if len(s.cursors) >= s.opts.MaxCursors {
		s.mu.Unlock()
		return CursorInfo{}, ErrTooManyCursors
	}
	s.cursors[id] = c
	open := len(s.cursors)
	s.mu.Unlock()

	metrics.OpenCursors.Set(float64(open))
	logging.WithFields(ctx, "cursor_id", id, "sheet", sheetName).Debug("cursor opened")
	return s.info(c), nil
}

// Cursor returns the state of an open cursor.
func (s *Service) Cursor(id string) (CursorInfo, error) {
	c, err := s.lookup(id)
	if err != nil {
		return CursorInfo{}, err
	}
	lock := s.sheetLock(c.sheet)
	lock.Lock()
	defer lock.Unlock()
	return s.info(c), nil
}

// CloseCursor drops a cursor. Closing an unknown id returns ErrCursorNotFound.
func (s *Service) CloseCursor(id string) error {
	s.mu.Lock()
	_, ok := s.cursors[id]
	delete(s.cursors, id)
	open := len(s.cursors)
	s.mu.Unlock()

	if !ok {
		return ErrCursorNotFound
	}
	metrics.OpenCursors.Set(float64(open))
	return nil
}

// CursorCount returns the number of live cursors.
func (s *Service) CursorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cursors)
}

// CursorFilter replaces the cursor's range set with the rows matching where.
func (s *Service) CursorFilter(ctx context.Context, id string, where query.Where) (CursorInfo, error) {
	return s.withCursor(ctx, id, func(ctx context.Context, c *cursor) error {
		return s.filter(ctx, c.mgr, where)
	})
}

// CursorRefresh re-runs the cursor's stored where-clause.
func (s *Service) CursorRefresh(ctx context.Context, id string) (CursorInfo, error) {
	return s.withCursor(ctx, id, func(ctx context.Context, c *cursor) error {
		return s.refresh(ctx, c.mgr)
	})
}

// CursorClear drops the cursor's range set and where-clause.
func (s *Service) CursorClear(ctx context.Context, id string) (CursorInfo, error) {
	return s.withCursor(ctx, id, func(_ context.Context, c *cursor) error {
		c.mgr.Clear()
		return nil
	})
}

// CursorFetch returns the cursor's rows restricted to fields.
func (s *Service) CursorFetch(ctx context.Context, id string, fields []string) ([]query.Record, error) {
	var recs []query.Record
	_, err := s.withCursor(ctx, id, func(ctx context.Context, c *cursor) error {
		var err error
		recs, err = c.mgr.Fetch(ctx, fields...)
		return err
	})
	return recs, err
}

// CursorUpdate merges rec into every row of the cursor's range set.
func (s *Service) CursorUpdate(ctx context.Context, id string, rec query.Record) (CursorInfo, error) {
	return s.withCursor(ctx, id, func(ctx context.Context, c *cursor) error {
		if err := c.mgr.Update(ctx, rec); err != nil {
			return err
		}
		logging.WithFields(ctx, "cursor_id", id, "sheet", c.sheet).Info("rows updated",
			append([]any{"rows", c.mgr.Len()}, requestAttrs(ctx)...)...)
		return nil
	})
}

// CursorDelete deletes every row of the cursor's range set. The where-clause
// is kept, so a later refresh finds any rows that match again.
func (s *Service) CursorDelete(ctx context.Context, id string) (int, CursorInfo, error) {
	var n int
	info, err := s.withCursor(ctx, id, func(ctx context.Context, c *cursor) error {
		var err error
		n, err = c.mgr.DeleteRows(ctx)
		logDeleted(ctx, logging.WithFields(ctx, "cursor_id", id, "sheet", c.sheet), n, err)
		return err
	})
	return n, info, err
}

// CursorUpsert updates the cursor's rows, or inserts rec per mode when the
// range set is empty.
func (s *Service) CursorUpsert(ctx context.Context, id string, rec query.Record, mode UpsertMode) (query.Outcome, CursorInfo, error) {
	var out query.Outcome
	info, err := s.withCursor(ctx, id, func(ctx context.Context, c *cursor) error {
		var err error
		if mode == UpsertPrepend {
			out, err = c.mgr.UpdateOrPrepend(ctx, rec)
		} else {
			out, err = c.mgr.UpdateOrAppend(ctx, rec)
		}
		if err != nil {
			return err
		}
		logging.WithFields(ctx, "cursor_id", id, "sheet", c.sheet).Info("row upserted",
			append([]any{"outcome", out}, requestAttrs(ctx)...)...)
		return nil
	})
	return out, info, err
}

// withCursor runs fn on cursor id under its sheet's lock and returns the
// cursor state afterwards, also on error.
func (s *Service) withCursor(ctx context.Context, id string, fn func(context.Context, *cursor) error) (CursorInfo, error) {
	c, err := s.lookup(id)
	if err != nil {
		return CursorInfo{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lock := s.sheetLock(c.sheet)
	lock.Lock()
	defer lock.Unlock()

	err = fn(ctx, c)
	return s.info(c), err
}

// lookup finds a live cursor and marks it used.
func (s *Service) lookup(id string) (*cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cursors[id]
	if !ok {
		return nil, ErrCursorNotFound
	}
	now := s.now()
	if now.Sub(c.lastUsed) > s.opts.CursorTTL {
		delete(s.cursors, id)
		metrics.OpenCursors.Set(float64(len(s.cursors)))
		return nil, ErrCursorNotFound
	}
	c.lastUsed = now
	return c, nil
}

// info snapshots c. The caller holds the sheet lock.
func (s *Service) info(c *cursor) CursorInfo {
	s.mu.Lock()
	lastUsed := c.lastUsed
	s.mu.Unlock()

	return CursorInfo{
		ID:        c.id,
		Sheet:     c.sheet,
		Filtered:  c.mgr.Filtered(),
		Where:     c.mgr.Where(),
		Ranges:    a1(c.mgr.Ranges()),
		Rows:      c.mgr.Len(),
		CreatedAt: c.created,
		ExpiresAt: lastUsed.Add(s.opts.CursorTTL),
	}
}

// SweepCursors drops cursors idle for longer than the TTL and returns how
// many were removed.
func (s *Service) SweepCursors() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, c := range s.cursors {
		if now.Sub(c.lastUsed) > s.opts.CursorTTL {
			delete(s.cursors, id)
			n++
		}
	}
	metrics.OpenCursors.Set(float64(len(s.cursors)))
	return n
}
