package autosave

import (
	"sync"
	"time"
)

// debounceTask is an owned, cancellable scheduled task. Schedule resets the
// countdown; Cancel drops any pending run; FlushNow cancels the countdown and
// runs the task synchronously. One instance belongs to one coordinator.
type debounceTask struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
}

func newDebounceTask(delay time.Duration, fn func()) *debounceTask {
	return &debounceTask{delay: delay, fn: fn}
}

// schedule arms (or re-arms) the countdown. Each call resets the timer, so
// the task fires only after a quiet interval.
func (d *debounceTask) schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// cancel drops any pending run. Safe to call when nothing is scheduled.
func (d *debounceTask) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// flushNow cancels the countdown and runs the task synchronously.
func (d *debounceTask) flushNow() {
	d.cancel()
	d.fn()
}

// pending reports whether a run is currently scheduled.
func (d *debounceTask) pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
