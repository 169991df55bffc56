package autosave

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/errors"
	"github.com/partboard/partboard/pkg/store"
)

func elementsV(version int) []board.Element {
	return []board.Element{{ID: "e1", Type: board.TypeRectangle, Version: version}}
}

// =============================================================================
// debounceTask
// =============================================================================

func TestDebounceScheduleResetsCountdown(t *testing.T) {
	var fired atomic.Int32
	d := newDebounceTask(50*time.Millisecond, func() { fired.Add(1) })

	// Re-arm three times in quick succession; only one run should happen.
	d.schedule()
	time.Sleep(10 * time.Millisecond)
	d.schedule()
	time.Sleep(10 * time.Millisecond)
	d.schedule()

	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
}

func TestDebounceCancel(t *testing.T) {
	var fired atomic.Int32
	d := newDebounceTask(30*time.Millisecond, func() { fired.Add(1) })

	d.schedule()
	if !d.pending() {
		t.Error("expected a pending run after schedule")
	}
	d.cancel()
	if d.pending() {
		t.Error("cancel should drop the pending run")
	}

	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("cancelled task should not fire")
	}
}

func TestDebounceFlushNow(t *testing.T) {
	var fired atomic.Int32
	d := newDebounceTask(time.Hour, func() { fired.Add(1) })

	d.schedule()
	d.flushNow()

	if fired.Load() != 1 {
		t.Errorf("fired %d times, want 1 (synchronous)", fired.Load())
	}
	if d.pending() {
		t.Error("flushNow should clear the scheduled run")
	}
}

// =============================================================================
// BoardStateStore
// =============================================================================

func TestStateStoreHydrateMissingRow(t *testing.T) {
	s := NewBoardStateStore(store.NewMemoryStore(), "p1")

	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate should substitute an empty board: %v", err)
	}
	if !s.InitialData().IsEmpty() {
		t.Error("hydrated board should be empty")
	}
	if s.HasUnsavedChanges() {
		t.Error("fresh hydration should be clean")
	}
}

func TestStateStoreUpdateLocalMarksDirty(t *testing.T) {
	s := NewBoardStateStore(store.NewMemoryStore(), "p1")
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	if dirty := s.UpdateLocal(elementsV(1), board.ViewState{}, nil); !dirty {
		t.Error("new elements should mark the board dirty")
	}
	if !s.HasUnsavedChanges() {
		t.Error("HasUnsavedChanges should reflect the edit")
	}
}

func TestStateStoreUpdateLocalIdenticalSetStaysClean(t *testing.T) {
	backend := store.NewMemoryStore()
	snap := board.NewSnapshot(elementsV(1), board.ViewState{Zoom: 1})
	if err := backend.Save(context.Background(), "p1", snap); err != nil {
		t.Fatal(err)
	}

	s := NewBoardStateStore(backend, "p1")
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Same (id, version) fingerprint as the persisted set: view-state-only
	// churn does not mark dirty.
	if dirty := s.UpdateLocal(elementsV(1), board.ViewState{ScrollX: 99}, nil); dirty {
		t.Error("fingerprint-identical update should not mark dirty")
	}
	// A version bump does.
	if dirty := s.UpdateLocal(elementsV(2), board.ViewState{}, nil); !dirty {
		t.Error("version bump should mark dirty")
	}
}

func TestStateStoreFetchBoardReplacesLocal(t *testing.T) {
	backend := store.NewMemoryStore()
	if err := backend.Save(context.Background(), "p1", board.NewSnapshot(elementsV(5), board.ViewState{})); err != nil {
		t.Fatal(err)
	}

	s := NewBoardStateStore(backend, "p1")
	s.UpdateLocal(elementsV(1), board.ViewState{}, nil)

	snap, err := s.FetchBoard(context.Background())
	if err != nil {
		t.Fatalf("FetchBoard: %v", err)
	}
	if len(snap.Elements) != 1 || snap.Elements[0].Version != 5 {
		t.Errorf("fetched snapshot should replace local state, got %+v", snap.Elements)
	}
	if s.HasUnsavedChanges() {
		t.Error("fetch should reset the dirty flag")
	}
}

// =============================================================================
// Coordinator
// =============================================================================

func testCoordinator(t *testing.T, primary, secondary store.Store, debounce time.Duration) *Coordinator {
	t.Helper()
	state := NewBoardStateStore(primary, "p1")
	c := NewCoordinator(state, "p1", Options{
		Primary:   primary,
		Secondary: secondary,
		Debounce:  debounce,
	})
	if err := c.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCoordinatorDebouncedSave(t *testing.T) {
	primary := store.NewMemoryStore()
	c := testCoordinator(t, primary, nil, 30*time.Millisecond)

	c.NotifyChange(elementsV(1), board.ViewState{}, nil)
	c.NotifyChange(elementsV(2), board.ViewState{}, nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status().Kind == StatusSaved {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	row, err := primary.Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("expected a persisted row: %v", err)
	}
	if row.Snapshot.Elements[0].Version != 2 {
		t.Errorf("persisted version = %d, want the latest edit", row.Snapshot.Elements[0].Version)
	}
	if c.Status().SavedAt.IsZero() {
		t.Error("saved status should carry a timestamp")
	}
}

func TestCoordinatorForceSaveBypassesDebounce(t *testing.T) {
	primary := store.NewMemoryStore()
	c := testCoordinator(t, primary, nil, time.Hour)

	c.NotifyChange(elementsV(1), board.ViewState{}, nil)
	if c.Status().Kind != StatusUnsaved {
		t.Fatalf("status = %q, want unsaved", c.Status().Kind)
	}

	if err := c.ForceSave(context.Background()); err != nil {
		t.Fatalf("ForceSave: %v", err)
	}
	if _, err := primary.Load(context.Background(), "p1"); err != nil {
		t.Errorf("force save should persist immediately: %v", err)
	}
	if c.debounce.pending() {
		t.Error("force save should cancel the pending debounced write")
	}
	if c.Status().Kind != StatusSaved {
		t.Errorf("status = %q, want saved", c.Status().Kind)
	}
}

func TestCoordinatorCleanBoardSkipsWrite(t *testing.T) {
	primary := store.NewMemoryStore()
	c := testCoordinator(t, primary, nil, time.Hour)

	if err := c.ForceSave(context.Background()); err != nil {
		t.Fatalf("ForceSave on clean board: %v", err)
	}
	if _, err := primary.Load(context.Background(), "p1"); !errors.Is(err, errors.ErrCodeBoardNotFound) {
		t.Error("clean board should not write a row")
	}
}

// failStore fails every Save.
type failStore struct{ store.Store }

func (f failStore) Save(ctx context.Context, projectID string, snapshot *board.Snapshot) error {
	return errors.New(errors.ErrCodeSaveFailed, "disk on fire")
}

func TestCoordinatorPrimaryFailureReportsError(t *testing.T) {
	c := testCoordinator(t, failStore{store.NewMemoryStore()}, nil, time.Hour)

	c.NotifyChange(elementsV(1), board.ViewState{}, nil)
	if err := c.ForceSave(context.Background()); err == nil {
		t.Fatal("expected save failure")
	}

	s := c.Status()
	if s.Kind != StatusError || s.Message == "" {
		t.Errorf("status = %+v, want error with message", s)
	}
}

func TestCoordinatorSecondaryFailureIsNonFatal(t *testing.T) {
	primary := store.NewMemoryStore()
	c := testCoordinator(t, primary, failStore{store.NewMemoryStore()}, time.Hour)

	c.NotifyChange(elementsV(1), board.ViewState{}, nil)
	if err := c.ForceSave(context.Background()); err != nil {
		t.Fatalf("secondary failure should not fail the save: %v", err)
	}
	if c.Status().Kind != StatusSaved {
		t.Errorf("status = %q, want saved", c.Status().Kind)
	}
}

// slowStore blocks Save until released, counting invocations.
type slowStore struct {
	*store.MemoryStore
	gate  chan struct{}
	saves atomic.Int32
}

func (s *slowStore) Save(ctx context.Context, projectID string, snapshot *board.Snapshot) error {
	s.saves.Add(1)
	<-s.gate
	return s.MemoryStore.Save(ctx, projectID, snapshot)
}

func TestCoordinatorQueuesOneFollowUpWrite(t *testing.T) {
	primary := &slowStore{MemoryStore: store.NewMemoryStore(), gate: make(chan struct{}, 10)}
	c := testCoordinator(t, primary, nil, time.Hour)

	c.NotifyChange(elementsV(1), board.ViewState{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.ForceSave(context.Background())
	}()

	// Wait for the first write to start, then land two more edits while it
	// is in flight.
	deadline := time.Now().Add(2 * time.Second)
	for primary.saves.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.NotifyChange(elementsV(2), board.ViewState{}, nil)
	c.NotifyChange(elementsV(3), board.ViewState{}, nil)
	_ = c.ForceSave(context.Background()) // queued behind the in-flight write

	primary.gate <- struct{}{}
	primary.gate <- struct{}{}
	wg.Wait()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status().Kind == StatusSaved && !c.state.HasUnsavedChanges() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Exactly one follow-up write: two edits during flight collapse into it.
	if got := primary.saves.Load(); got != 2 {
		t.Errorf("writes = %d, want 2 (one in flight + one queued)", got)
	}
	row, err := primary.Load(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if row.Snapshot.Elements[0].Version != 3 {
		t.Errorf("final persisted version = %d, want 3", row.Snapshot.Elements[0].Version)
	}
}

func TestCoordinatorSubscribe(t *testing.T) {
	c := testCoordinator(t, store.NewMemoryStore(), nil, time.Hour)

	var mu sync.Mutex
	var kinds []string
	unsub := c.Subscribe(func(s Status) {
		mu.Lock()
		kinds = append(kinds, s.Kind)
		mu.Unlock()
	})

	c.NotifyChange(elementsV(1), board.ViewState{}, nil)
	if err := c.ForceSave(context.Background()); err != nil {
		t.Fatal(err)
	}
	unsub()
	c.NotifyChange(elementsV(2), board.ViewState{}, nil)

	mu.Lock()
	defer mu.Unlock()
	want := []string{StatusUnsaved, StatusSaving, StatusSaved}
	if len(kinds) != len(want) {
		t.Fatalf("transitions = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, kinds[i], want[i])
		}
	}
}
