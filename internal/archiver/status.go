// Package archiver orchestrates archival of entries and their media:
// validation, container pushes, member job scheduling, and the
// changed-since-archival query.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// InflightStatusStore answers status questions about media jobs that are
// queued or running but not yet durably recorded. The durable side of the
// status lives on the media rows themselves; the reconciler consults both
// through this split instead of reading two backends ad hoc.
type InflightStatusStore interface {
	// IntendedArchiveDate returns the archive date a pending job will write
	// on success, or nil when no job intent is recorded.
	IntendedArchiveDate(ctx context.Context, mediaID string) (*time.Time, error)
}

// jobKeyPrefix namespaces the per-media job keys. The key derived from a
// media id is the serialization boundary for enqueue attempts.
const jobKeyPrefix = "archivesync:job:"

// jobKeyRetention bounds how long a job intent is kept. Failed jobs keep
// their media row for inspection; the intent key only covers the in-flight
// window.
const jobKeyRetention = 24 * time.Hour

// RedisInflightStore records job intents in Redis. The SETNX acquire is the
// atomic check-and-set that guarantees at most one in-flight job per media
// item across concurrent dispatchers.
type RedisInflightStore struct {
	client redis.UniversalClient
}

// NewRedisInflightStore creates the store.
func NewRedisInflightStore(client redis.UniversalClient) *RedisInflightStore {
	return &RedisInflightStore{client: client}
}

// JobKey returns the stable job key for a media item.
func JobKey(mediaID string) string {
	return jobKeyPrefix + mediaID
}

// TryAcquire records a job intent for a media item. Reports false when an
// intent already exists, making a concurrent second enqueue a no-op.
func (s *RedisInflightStore) TryAcquire(ctx context.Context, mediaID string, intended time.Time) (bool, error) {
	ok, err := s.client.SetNX(ctx, JobKey(mediaID), intended.UTC().Format(time.RFC3339Nano), jobKeyRetention).Result()
	if err != nil {
		return false, fmt.Errorf("acquire job key: %w", err)
	}
	return ok, nil
}

// Release removes a job intent after the job reached a terminal state.
func (s *RedisInflightStore) Release(ctx context.Context, mediaID string) error {
	if err := s.client.Del(ctx, JobKey(mediaID)).Err(); err != nil {
		return fmt.Errorf("release job key: %w", err)
	}
	return nil
}

// IntendedArchiveDate implements InflightStatusStore.
func (s *RedisInflightStore) IntendedArchiveDate(ctx context.Context, mediaID string) (*time.Time, error) {
	val, err := s.client.Get(ctx, JobKey(mediaID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job intent: %w", err)
	}

	t, parseErr := time.Parse(time.RFC3339Nano, val)
	if parseErr != nil {
		return nil, fmt.Errorf("parse job intent: %w", parseErr)
	}
	return &t, nil
}
