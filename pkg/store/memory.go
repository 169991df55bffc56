package store

import (
	"context"
	"sync"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/errors"
)

// MemoryStore is an in-memory store for tests and ephemeral usage.
// Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Row
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]Row{}}
}

// Load fetches the persisted board for a project.
func (s *MemoryStore) Load(ctx context.Context, projectID string) (*Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[projectID]
	if !ok {
		return nil, errors.New(errors.ErrCodeBoardNotFound, "no board for project %s", projectID)
	}
	return &row, nil
}

// Save upserts the board for a project.
func (s *MemoryStore) Save(ctx context.Context, projectID string, snapshot *board.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[projectID] = newRow(projectID, snapshot)
	return nil
}

// Delete removes the board for a project.
func (s *MemoryStore) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, projectID)
	return nil
}

// Close does nothing for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
