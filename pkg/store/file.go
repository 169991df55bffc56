package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/errors"
)

// FileStore persists boards as JSON files in a directory for CLI usage.
// Rows are written atomically via a temp file plus rename.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-based store in the given directory.
// The directory is created if it doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create store directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Load fetches the persisted board for a project.
func (s *FileStore) Load(ctx context.Context, projectID string) (*Row, error) {
	data, err := os.ReadFile(s.path(projectID))
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeBoardNotFound, "no board for project %s", projectID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read board for project %s", projectID)
	}

	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "decode board for project %s", projectID)
	}
	return &row, nil
}

// Save upserts the board for a project.
func (s *FileStore) Save(ctx context.Context, projectID string, snapshot *board.Snapshot) error {
	data, err := json.MarshalIndent(newRow(projectID, snapshot), "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode board for project %s", projectID)
	}

	path := s.path(projectID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create board directory")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeSaveFailed, err, "write board for project %s", projectID)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(errors.ErrCodeSaveFailed, err, "finalize board for project %s", projectID)
	}
	return nil
}

// Delete removes the board for a project.
func (s *FileStore) Delete(ctx context.Context, projectID string) error {
	err := os.Remove(s.path(projectID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close does nothing for the file store.
func (s *FileStore) Close() error { return nil }

// path converts a project id to a file path. The id is hashed so arbitrary
// ids never escape the store directory, with a two-char subdirectory for
// distribution.
func (s *FileStore) path(projectID string) string {
	sum := sha256.Sum256([]byte(projectID))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, hash[:2], hash[2:]+".json")
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
