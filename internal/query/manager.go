package query

// manager.go binds the engine to one sheet.
//
// A Manager is either unfiltered (no where-clause, empty range set) or
// filtered (range set from the last Filter). Every read or write works on the
// rows in the current range set. Headers are re-read on every operation, so
// a column rename or insertion made elsewhere is picked up immediately; row
// numbers are not, which is what Refresh is for.
//
// A Manager is not safe for concurrent use. Callers sharing a sheet across
// goroutines must serialize access themselves.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sheetq/internal/metrics"
	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// Outcome reports which branch an upsert took.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeAppended  Outcome = "appended"
	OutcomePrepended Outcome = "prepended"
)

// Manager runs filters and mutations against one sheet.
type Manager struct {
	store  sheet.Store
	handle sheet.Handle
	logger *slog.Logger

	ranges RangeSet
	where  Where
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Open locates name in store. It fails with sheet.ErrNotFound (wrapped)
// when the sheet does not exist.
func Open(ctx context.Context, store sheet.Store, name string, opts ...Option) (*Manager, error) {
	h, err := store.Locate(ctx, name)
	if err != nil {
		return nil, err
	}
	m := &Manager{store: store, handle: h, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("sheet", h.Name())
	return m, nil
}

// Name returns the sheet name.
func (m *Manager) Name() string { return m.handle.Name() }

// Handle returns the located sheet handle.
func (m *Manager) Handle() sheet.Handle { return m.handle }

// Ranges returns a copy of the current range set.
func (m *Manager) Ranges() RangeSet { return append(RangeSet(nil), m.ranges...) }

// Where returns the stored where-clause, nil when unfiltered.
func (m *Manager) Where() Where { return m.where }

// Len returns the number of rows in the range set.
func (m *Manager) Len() int { return len(m.ranges) }

// Filtered reports whether a where-clause is stored.
func (m *Manager) Filtered() bool { return m.where != nil }

// Headers reads the current header row.
func (m *Manager) Headers(ctx context.Context) (HeaderIndex, error) {
	return ReadHeaders(ctx, m.store, m.handle)
}

// Filter replaces the range set with the rows matching w and stores w for
// Refresh. On error the previous state is kept.
func (m *Manager) Filter(ctx context.Context, w Where) (err error) {
	defer metrics.ObserveOperation("filter", time.Now(), &err)

	h, err := m.Headers(ctx)
	if err != nil {
		return err
	}
	groups, err := Compile(w, h)
	if err != nil {
		return err
	}
	last, err := m.store.LastRow(ctx, m.handle)
	if err != nil {
		return err
	}
	rows, err := Scan(ctx, m.store, m.handle, groups, FirstDataRow, last)
	if err != nil {
		return err
	}

	if w == nil {
		w = Where{}
	}
	m.ranges = NewRangeSet(rows, h.Len())
	m.where = w
	metrics.RowsMatched.Observe(float64(len(rows)))
	m.logger.Debug("filter applied", "columns", w.Columns(), "matched", len(rows))
	return nil
}

// Refresh re-runs the stored where-clause. It is a no-op when unfiltered.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.where == nil {
		return nil
	}
	return m.Filter(ctx, m.where)
}

// Clear drops the range set and where-clause.
func (m *Manager) Clear() {
	m.ranges = nil
	m.where = nil
}

// Fetch returns one record per location, restricted to names (all columns
// when empty). An empty range set yields an empty slice.
func (m *Manager) Fetch(ctx context.Context, names ...string) (recs []Record, err error) {
	defer metrics.ObserveOperation("fetch", time.Now(), &err)

	recs = make([]Record, 0, len(m.ranges))
	if len(m.ranges) == 0 {
		return recs, nil
	}

	h, err := m.Headers(ctx)
	if err != nil {
		return nil, err
	}
	if err := unknownColumns(h, names); err != nil {
		return nil, err
	}

	for _, loc := range m.ranges {
		row, err := m.readRow(ctx, loc, h.Len())
		if err != nil {
			return nil, err
		}
		rec, err := Deserialize(h, nil, row, names)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Update merges rec into every row of the range set. Columns not named in
// rec keep their current values. Rows already written stay written if a
// later write fails.
func (m *Manager) Update(ctx context.Context, rec Record) (err error) {
	defer metrics.ObserveOperation("update", time.Now(), &err)

	if len(m.ranges) == 0 {
		return nil
	}
	h, err := m.Headers(ctx)
	if err != nil {
		return err
	}
	if err := unknownColumns(h, rec.Keys()); err != nil {
		return err
	}

	for _, loc := range m.ranges {
		current, err := m.readRow(ctx, loc, h.Len())
		if err != nil {
			return err
		}
		out := Serialize(h, rec, current)
		if err := m.store.WriteRegion(ctx, m.handle, loc.Row, loc.Column, [][]sheet.Value{out}); err != nil {
			return err
		}
	}
	m.logger.Debug("rows updated", "rows", len(m.ranges), "columns", rec.Keys())
	return nil
}

// DeleteRows deletes every row in the range set and empties it. The
// where-clause is kept so Refresh can re-run it. Any other Manager on the
// same sheet holds stale row numbers afterwards and must Refresh.
func (m *Manager) DeleteRows(ctx context.Context) (n int, err error) {
	defer metrics.ObserveOperation("delete", time.Now(), &err)

	for _, row := range m.ranges.DeletionTargets() {
		if err := m.store.DeleteRow(ctx, m.handle, row); err != nil {
			// Keep the rows not yet deleted, renumbered to where they now live.
			rest := make(RangeSet, 0, len(m.ranges)-n)
			for _, loc := range m.ranges[n:] {
				loc.Row -= n
				rest = append(rest, loc)
			}
			m.ranges = rest
			return n, err
		}
		n++
	}
	m.ranges = nil
	if n > 0 {
		m.logger.Debug("rows deleted", "rows", n)
	}
	return n, nil
}

// Append writes rec as a new row below the last populated row. Columns not
// named in rec are blank.
func (m *Manager) Append(ctx context.Context, rec Record) (err error) {
	defer metrics.ObserveOperation("append", time.Now(), &err)

	h, err := m.Headers(ctx)
	if err != nil {
		return err
	}
	if err := unknownColumns(h, rec.Keys()); err != nil {
		return err
	}
	last, err := m.store.LastRow(ctx, m.handle)
	if err != nil {
		return err
	}
	row := Serialize(h, rec, nil)
	if err := m.store.WriteRegion(ctx, m.handle, last+1, 1, [][]sheet.Value{row}); err != nil {
		return err
	}
	m.logger.Debug("row appended", "row", last+1)
	return nil
}

// Prepend inserts rec as the first data row. The whole data block is read
// and rewritten one row lower, so the cost is O(rows x columns).
func (m *Manager) Prepend(ctx context.Context, rec Record) (err error) {
	defer metrics.ObserveOperation("prepend", time.Now(), &err)

	h, err := m.Headers(ctx)
	if err != nil {
		return err
	}
	if err := unknownColumns(h, rec.Keys()); err != nil {
		return err
	}
	last, err := m.store.LastRow(ctx, m.handle)
	if err != nil {
		return err
	}
	width, err := m.store.LastColumn(ctx, m.handle)
	if err != nil {
		return err
	}

	row := Serialize(h, rec, nil)
	if width < len(row) {
		width = len(row)
	}
	first := make([]sheet.Value, width)
	for i := range first {
		first[i] = ""
	}
	copy(first, row)

	block := [][]sheet.Value{first}
	if last >= FirstDataRow {
		data, err := m.store.ReadRegion(ctx, m.handle, FirstDataRow, 1, last-FirstDataRow+1, width)
		if err != nil {
			return err
		}
		block = append(block, data...)
	}
	if err := m.store.WriteRegion(ctx, m.handle, FirstDataRow, 1, block); err != nil {
		return err
	}
	m.logger.Debug("row prepended", "rows_shifted", len(block)-1)
	return nil
}

// UpdateOrAppend updates the range set when it is non-empty and appends rec
// otherwise.
func (m *Manager) UpdateOrAppend(ctx context.Context, rec Record) (Outcome, error) {
	if len(m.ranges) > 0 {
		return OutcomeUpdated, m.Update(ctx, rec)
	}
	return OutcomeAppended, m.Append(ctx, rec)
}

// UpdateOrPrepend updates the range set when it is non-empty and prepends
// rec otherwise.
func (m *Manager) UpdateOrPrepend(ctx context.Context, rec Record) (Outcome, error) {
	if len(m.ranges) > 0 {
		return OutcomeUpdated, m.Update(ctx, rec)
	}
	return OutcomePrepended, m.Prepend(ctx, rec)
}

// readRow reads the row at loc, at least width columns wide so columns added
// after the filter ran are read too.
func (m *Manager) readRow(ctx context.Context, loc Location, width int) (Row, error) {
	grid, err := m.store.ReadRegion(ctx, m.handle, loc.Row, loc.Column, loc.NumRows, max(loc.NumColumns, width))
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty read at %s", loc)
	}
	return Row(grid[0]), nil
}
