// Package store persists board snapshots keyed by project id.
//
// Four backends share one interface: an in-memory map for tests, a file store
// for CLI usage, MongoDB for the hosted service, and Redis for the low-latency
// cache in front of it. Callers hold the Store interface and never know which
// backend they got.
package store

import (
	"context"
	"time"

	"github.com/partboard/partboard/pkg/board"
)

// Row is one persisted board: the snapshot fields flattened alongside the
// write metadata, so the stored shape is
// {projectId, elements, appState, files, updatedAt}.
type Row struct {
	ProjectID      string `json:"projectId" bson:"_id"`
	board.Snapshot `bson:",inline"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updated_at"`
}

// newRow builds a row for persisting, stamping UpdatedAt.
func newRow(projectID string, snapshot *board.Snapshot) Row {
	row := Row{ProjectID: projectID, UpdatedAt: time.Now().UTC()}
	if snapshot != nil {
		row.Snapshot = *snapshot
	}
	return row
}

// Store persists board snapshots keyed by project id.
//
// Load returns a BOARD_NOT_FOUND error when no row exists for the project;
// use errors.Is with errors.ErrCodeBoardNotFound to branch on it.
type Store interface {
	// Load fetches the persisted board for a project.
	Load(ctx context.Context, projectID string) (*Row, error)

	// Save upserts the board for a project, stamping UpdatedAt.
	Save(ctx context.Context, projectID string, snapshot *board.Snapshot) error

	// Delete removes the board for a project. Deleting a missing row is a no-op.
	Delete(ctx context.Context, projectID string) error

	// Close releases backend resources.
	Close() error
}
