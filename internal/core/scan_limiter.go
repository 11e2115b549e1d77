package core

// scan_limiter.go bounds how many filter scans run at once.
//
// A scan costs one store read per candidate row per where-clause column, so
// a handful of wide filters over a large sheet can saturate the backing
// store. The limiter is a semaphore: when all slots are busy a scan waits up
// to maxWait before failing with ErrTooManyScans. Locks on different sheets
// do not serialize scans, which is why this is separate from the sheet locks.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyScans is returned when all scan slots stay occupied for the
// whole wait. Clients should retry after a short delay.
var ErrTooManyScans = errors.New("too many concurrent scans, please try again later")

// DefaultMaxConcurrentScans is the default number of parallel scans.
const DefaultMaxConcurrentScans = 8

// DefaultScanWait is how long to wait for a slot before rejecting.
const DefaultScanWait = 5 * time.Second

// ScanLimiter limits concurrent filter scans.
type ScanLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewScanLimiter allows at most maxConcurrent simultaneous scans.
func NewScanLimiter(maxConcurrent int, maxWait time.Duration) *ScanLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentScans
	}
	if maxWait <= 0 {
		maxWait = DefaultScanWait
	}

	return &ScanLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot, waiting up to maxWait. The caller must Release
// after a nil return.
func (l *ScanLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Distinguish the caller giving up from our own wait expiring.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyScans
	}
}

// TryAcquire takes a slot without blocking.
func (l *ScanLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *ScanLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of running scans.
func (l *ScanLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no scan is running or ctx is done. Used on
// shutdown so in-flight writes triggered by a filter finish first.
func (l *ScanLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ScanLimiterStatus is a snapshot of the limiter for the health endpoint.
type ScanLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *ScanLimiter) Status() ScanLimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return ScanLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
