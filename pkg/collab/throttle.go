package collab

import (
	"sync"
	"time"
)

// throttle rate-limits a stream of calls to at most one per interval.
// The first call in a quiet period runs immediately; calls arriving inside
// the interval collapse into one trailing run of the latest function, so the
// newest payload always wins and nothing stalls forever.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	pending  *time.Timer
	fn       func()
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval}
}

// do runs fn now if the interval has elapsed, otherwise replaces the pending
// trailing run with fn.
func (t *throttle) do(fn func()) {
	t.mu.Lock()
	now := time.Now()
	if t.pending == nil && now.Sub(t.last) >= t.interval {
		t.last = now
		t.mu.Unlock()
		fn()
		return
	}

	t.fn = fn
	if t.pending == nil {
		wait := t.interval - now.Sub(t.last)
		if wait < 0 {
			wait = 0
		}
		t.pending = time.AfterFunc(wait, t.fire)
	}
	t.mu.Unlock()
}

func (t *throttle) fire() {
	t.mu.Lock()
	fn := t.fn
	t.fn = nil
	t.pending = nil
	t.last = time.Now()
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// stop drops any pending trailing run.
func (t *throttle) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
		t.fn = nil
	}
}
