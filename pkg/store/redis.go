package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/errors"
)

// RedisStore persists boards in Redis as JSON values. Used as the fast layer
// of the dual-write autosave path; rows carry an optional TTL so the cache
// cannot grow without bound.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a Redis-backed store. A zero ttl means rows never
// expire.
func NewRedisStore(opts *redis.Options, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: redis.NewClient(opts), ttl: ttl}
}

// NewRedisStoreFromClient wraps an existing client, sharing its connection
// pool with other Redis consumers.
func NewRedisStoreFromClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Ping verifies Redis connectivity. Useful for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Load fetches the persisted board for a project.
func (s *RedisStore) Load(ctx context.Context, projectID string) (*Row, error) {
	data, err := s.rdb.Get(ctx, boardKey(projectID)).Bytes()
	if err == redis.Nil {
		return nil, errors.New(errors.ErrCodeBoardNotFound, "no board for project %s", projectID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load board for project %s", projectID)
	}

	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "decode board for project %s", projectID)
	}
	return &row, nil
}

// Save upserts the board for a project.
func (s *RedisStore) Save(ctx context.Context, projectID string, snapshot *board.Snapshot) error {
	data, err := json.Marshal(newRow(projectID, snapshot))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode board for project %s", projectID)
	}
	if err := s.rdb.Set(ctx, boardKey(projectID), data, s.ttl).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeSaveFailed, err, "save board for project %s", projectID)
	}
	return nil
}

// Delete removes the board for a project.
func (s *RedisStore) Delete(ctx context.Context, projectID string) error {
	if err := s.rdb.Del(ctx, boardKey(projectID)).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete board for project %s", projectID)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// boardKey namespaces a project's board row.
func boardKey(projectID string) string {
	return "partboard:board:" + projectID
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
