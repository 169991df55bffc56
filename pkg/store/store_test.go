package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/errors"
)

func sampleSnapshot() *board.Snapshot {
	return board.NewSnapshot([]board.Element{
		{ID: "e1", Type: board.TypeRectangle, X: 10, Y: 20, Width: 100, Height: 50, Version: 1},
		{ID: "e2", Type: board.TypeText, Text: "hello", Version: 3},
	}, board.ViewState{Zoom: 1, Theme: board.ThemeLight})
}

// roundTrip exercises the Store contract shared by every backend.
func roundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	if !errors.Is(err, errors.ErrCodeBoardNotFound) {
		t.Errorf("Load missing: code = %q, want BOARD_NOT_FOUND", errors.GetCode(err))
	}

	snap := sampleSnapshot()
	if err := s.Save(ctx, "p1", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	row, err := s.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if row.ProjectID != "p1" {
		t.Errorf("ProjectID = %q", row.ProjectID)
	}
	if row.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped")
	}
	if got := row.Snapshot.Fingerprint(); got != snap.Fingerprint() {
		t.Errorf("snapshot fingerprint changed across persistence: %q vs %q", got, snap.Fingerprint())
	}

	// Upsert replaces.
	snap.Elements[0].Version = 2
	if err := s.Save(ctx, "p1", snap); err != nil {
		t.Fatalf("Save (upsert): %v", err)
	}
	row, err = s.Load(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if row.Snapshot.Elements[0].Version != 2 {
		t.Errorf("upsert did not replace: version = %d", row.Snapshot.Elements[0].Version)
	}

	if err := s.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, "p1"); !errors.Is(err, errors.ErrCodeBoardNotFound) {
		t.Error("deleted row should be gone")
	}

	// Deleting a missing row is a no-op.
	if err := s.Delete(ctx, "p1"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	roundTrip(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	roundTrip(t, s)
}

func TestFileStoreHashedPaths(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	// Hostile project ids must not escape the store directory.
	ctx := context.Background()
	if err := s.Save(ctx, "../../etc/passwd", sampleSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	row, err := s.Load(ctx, "../../etc/passwd")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if row.ProjectID != "../../etc/passwd" {
		t.Errorf("ProjectID = %q", row.ProjectID)
	}
}

func TestRowPersistsFlat(t *testing.T) {
	data, err := json.Marshal(newRow("p1", sampleSnapshot()))
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}

	// The snapshot fields live at the top level of the stored row.
	for _, key := range []string{"projectId", "elements", "appState", "files", "updatedAt"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("row is missing top-level %q", key)
		}
	}
	if _, ok := raw["snapshot"]; ok {
		t.Error("row nests the snapshot instead of flattening it")
	}

	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		t.Fatal(err)
	}
	if len(row.Elements) != 2 || row.AppState.Zoom != 1 {
		t.Errorf("flat row did not round-trip: %d elements, zoom %v",
			len(row.Elements), row.AppState.Zoom)
	}
}
