package web

import (
	"testing"
	"time"
)

func TestRateLimiter_PerIP(t *testing.T) {
	rl := newRateLimiter(1, 2, time.Minute)

	if !rl.allow("10.0.0.1") || !rl.allow("10.0.0.1") {
		t.Fatal("burst requests rejected")
	}
	if rl.allow("10.0.0.1") {
		t.Error("request over burst allowed")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("second client shares first client's bucket")
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := newRateLimiter(60, 1, time.Minute)
	rl.allow("10.0.0.1")
	rl.allow("10.0.0.2")

	if n := rl.prune(time.Now()); n != 0 {
		t.Errorf("prune(now) removed %d, want 0", n)
	}
	if n := rl.prune(time.Now().Add(2 * time.Minute)); n != 2 {
		t.Errorf("prune(later) removed %d, want 2", n)
	}
}
