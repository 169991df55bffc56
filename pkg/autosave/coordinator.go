package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/store"
)

// =============================================================================
// Save Status
// =============================================================================

// Status kinds reported by the coordinator.
const (
	StatusLoading = "loading"
	StatusSaving  = "saving"
	StatusSaved   = "saved"
	StatusUnsaved = "unsaved"
	StatusError   = "error"
)

// Status is the coordinator's externally visible save state.
type Status struct {
	Kind    string    `json:"kind"`
	SavedAt time.Time `json:"savedAt,omitempty"`
	Message string    `json:"message,omitempty"` // error detail when Kind is "error"
}

// =============================================================================
// AutoSaveCoordinator
// =============================================================================

// DefaultDebounce is the quiet interval before a pending change is flushed.
const DefaultDebounce = 3 * time.Second

// DefaultWriteTimeout bounds one persistence write.
const DefaultWriteTimeout = 30 * time.Second

// Options configures a Coordinator.
type Options struct {
	// Primary is the durable store. Required; its failure is a save failure.
	Primary store.Store

	// Secondary is the fast cache written after the primary. Optional; its
	// failure is logged and does not fail the save.
	Secondary store.Store

	// Debounce is the quiet interval before a flush. Zero defaults to
	// DefaultDebounce.
	Debounce time.Duration

	// WriteTimeout bounds one persistence write. Zero defaults to
	// DefaultWriteTimeout.
	WriteTimeout time.Duration

	// Logger for write outcomes. Nil falls back to log.Default().
	Logger *log.Logger
}

// Coordinator debounces change notifications and flushes the board state to
// the persistence stores, reporting status transitions to subscribers.
type Coordinator struct {
	state        *BoardStateStore
	primary      store.Store
	secondary    store.Store
	projectID    string
	writeTimeout time.Duration
	logger       *log.Logger

	debounce *debounceTask

	mu       sync.Mutex
	inFlight bool
	queued   bool
	status   Status
	subs     map[int]func(Status)
	nextSub  int
	closed   bool
}

// NewCoordinator creates a coordinator for one project's board state.
func NewCoordinator(state *BoardStateStore, projectID string, opts Options) *Coordinator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &Coordinator{
		state:        state,
		primary:      opts.Primary,
		secondary:    opts.Secondary,
		projectID:    projectID,
		writeTimeout: writeTimeout,
		logger:       logger,
		status:       Status{Kind: StatusLoading},
		subs:         map[int]func(Status){},
	}
	c.debounce = newDebounceTask(debounce, c.flush)
	return c
}

// Hydrate loads the persisted board into the state store and moves the
// status out of loading.
func (c *Coordinator) Hydrate(ctx context.Context) error {
	if err := c.state.Hydrate(ctx); err != nil {
		c.setStatus(Status{Kind: StatusError, Message: err.Error()})
		return err
	}
	c.setStatus(Status{Kind: StatusSaved, SavedAt: time.Now().UTC()})
	return nil
}

// NotifyChange records a renderer change event and re-arms the debounce
// countdown. Every call resets the timer; a burst of edits produces one
// write after the quiet interval.
func (c *Coordinator) NotifyChange(elements []board.Element, viewState board.ViewState, files map[string]board.EmbeddedFile) {
	dirty := c.state.UpdateLocal(elements, viewState, files)
	if !dirty {
		return
	}
	c.setStatus(Status{Kind: StatusUnsaved})
	c.Save()
}

// Save schedules a debounced flush. Each call resets the countdown.
func (c *Coordinator) Save() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.debounce.schedule()
}

// ForceSave cancels any pending debounced write and persists synchronously.
// Used on manual save and on close-with-unsaved-changes confirmation.
func (c *Coordinator) ForceSave(ctx context.Context) error {
	c.debounce.cancel()
	return c.persist(ctx)
}

// Status returns the current save status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers a status-change callback and returns an unsubscribe
// function. The callback runs on the goroutine that caused the transition;
// it must not block.
func (c *Coordinator) Subscribe(fn func(Status)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close cancels any pending debounced write. A write already in flight
// completes; no new writes start. Pair with ForceSave first when unsaved
// changes must not be lost.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.debounce.cancel()
}

// flush is the debounce callback: run one persist cycle in the background.
func (c *Coordinator) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()
	if err := c.persist(ctx); err != nil {
		c.logger.Error("autosave failed", "project", c.projectID, "err", err)
	}
}

// persist writes the current board state through the store stack, honoring
// the single-in-flight contract: a concurrent caller queues exactly one
// follow-up write instead of racing.
func (c *Coordinator) persist(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.queued = true
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	c.mu.Unlock()

	var lastErr error
	for {
		lastErr = c.persistOnce(ctx)

		c.mu.Lock()
		if c.queued {
			c.queued = false
			c.mu.Unlock()
			continue
		}
		c.inFlight = false
		c.mu.Unlock()
		return lastErr
	}
}

// persistOnce performs one dual write of the current snapshot.
func (c *Coordinator) persistOnce(ctx context.Context) error {
	if !c.state.HasUnsavedChanges() {
		return nil
	}

	snap, fingerprint := c.state.forSave()
	c.setStatus(Status{Kind: StatusSaving})

	if err := c.primary.Save(ctx, c.projectID, snap); err != nil {
		c.setStatus(Status{Kind: StatusError, Message: err.Error()})
		return err
	}
	if c.secondary != nil {
		if err := c.secondary.Save(ctx, c.projectID, snap); err != nil {
			c.logger.Warn("secondary store write failed", "project", c.projectID, "err", err)
		}
	}

	c.state.markSaved(fingerprint)
	if c.state.HasUnsavedChanges() {
		c.setStatus(Status{Kind: StatusUnsaved})
	} else {
		c.setStatus(Status{Kind: StatusSaved, SavedAt: time.Now().UTC()})
	}
	return nil
}

// setStatus records a status transition and notifies subscribers.
func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	fns := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
