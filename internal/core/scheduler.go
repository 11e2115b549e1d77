package core

// scheduler.go runs background maintenance for the service.
//
// Currently this is the cursor sweeper, which drops cursors idle for longer
// than the configured TTL. Expired cursors are also rejected lazily on
// lookup; the sweeper only bounds the memory held by abandoned ones.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when StartCursorSweeper gets a non-positive
// interval.
const DefaultSweepInterval = time.Minute

// StartCursorSweeper periodically removes expired cursors. It blocks until
// ctx is cancelled, so run it in its own goroutine.
func (s *Service) StartCursorSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("cursor sweeper started",
		"interval", interval,
		"ttl", s.opts.CursorTTL,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cursor sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

// runSweep performs one sweep and logs what it removed.
func (s *Service) runSweep() {
	start := time.Now()
	removed := s.SweepCursors()
	if removed == 0 {
		return
	}
	slog.Info("expired cursors removed",
		"removed", removed,
		"open", s.CursorCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
