// Package autosave keeps the in-memory board state and persists it with a
// debounced dual-write: every renderer change event lands in the
// BoardStateStore immediately, and the AutoSaveCoordinator flushes to the
// backing stores after a quiet interval.
//
// # Concurrency Contract
//
// At most one persistence write is in flight per board. A change arriving
// while a write runs queues exactly one follow-up write; no write is dropped
// and no two writes race on the same snapshot. Local edits are always applied
// immediately; persistence may lag by up to one debounce window.
package autosave

import (
	"context"
	"sync"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/errors"
	"github.com/partboard/partboard/pkg/store"
)

// =============================================================================
// BoardStateStore - Latest Known Snapshot
// =============================================================================

// BoardStateStore holds the latest known snapshot for one project plus the
// unsaved-changes flag. Safe for concurrent use.
type BoardStateStore struct {
	mu        sync.Mutex
	projectID string
	backend   store.Store

	snapshot *board.Snapshot
	savedFP  string // fingerprint of the last persisted element set
	dirty    bool
}

// NewBoardStateStore creates a state store bound to one project and its
// persistence backend.
func NewBoardStateStore(backend store.Store, projectID string) *BoardStateStore {
	return &BoardStateStore{
		projectID: projectID,
		backend:   backend,
		snapshot:  board.NewSnapshot(nil, board.ViewState{Zoom: 1}),
	}
}

// Hydrate loads the persisted snapshot into memory. A missing or malformed
// row hydrates as an empty board rather than failing; the renderer must
// always have something to boot from.
func (s *BoardStateStore) Hydrate(ctx context.Context) error {
	snap, err := s.loadDefensive(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.savedFP = snap.Fingerprint()
	s.dirty = false
	return nil
}

// UpdateLocal records a renderer change event. Always accepted; marks the
// board dirty unless the incoming element set fingerprints identically to the
// last persisted one. Returns whether the board is now dirty.
func (s *BoardStateStore) UpdateLocal(elements []board.Element, viewState board.ViewState, files map[string]board.EmbeddedFile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if files == nil {
		files = map[string]board.EmbeddedFile{}
	}
	s.snapshot = &board.Snapshot{Elements: elements, AppState: viewState, Files: files}

	if board.Fingerprint(elements) != s.savedFP {
		s.dirty = true
	}
	return s.dirty
}

// InitialData returns the last hydrated snapshot for the renderer to
// bootstrap from.
func (s *BoardStateStore) InitialData() *board.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// FetchBoard reloads the persisted snapshot, replacing local state.
// Used for manual retry after a save error.
func (s *BoardStateStore) FetchBoard(ctx context.Context) (*board.Snapshot, error) {
	snap, err := s.loadDefensive(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.savedFP = snap.Fingerprint()
	s.dirty = false
	return snap, nil
}

// HasUnsavedChanges reports whether local state diverges from the last
// persisted write.
func (s *BoardStateStore) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// forSave returns the snapshot to persist and its fingerprint.
func (s *BoardStateStore) forSave() (*board.Snapshot, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.snapshot.Fingerprint()
}

// markSaved records a successful persist of the element set with the given
// fingerprint. The dirty flag clears only when no newer local edit arrived
// while the write was in flight.
func (s *BoardStateStore) markSaved(fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedFP = fingerprint
	if s.snapshot.Fingerprint() == fingerprint {
		s.dirty = false
	}
}

// loadDefensive fetches the persisted row, substituting an empty board when
// no row exists. Other backend failures propagate.
func (s *BoardStateStore) loadDefensive(ctx context.Context) (*board.Snapshot, error) {
	row, err := s.backend.Load(ctx, s.projectID)
	if err != nil {
		if errors.Is(err, errors.ErrCodeBoardNotFound) {
			return board.NewSnapshot(nil, board.ViewState{Zoom: 1}), nil
		}
		return nil, err
	}
	snap := row.Snapshot
	if snap.Files == nil {
		snap.Files = map[string]board.EmbeddedFile{}
	}
	return &snap, nil
}
