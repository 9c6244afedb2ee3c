package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openfolio/archivesync/internal/logger"
)

// trackedKinds drives GetStats aggregation.
var trackedKinds = []ObjectKind{KindContainer, KindMember}

// RedisTracker implements Tracker using Redis counters.
type RedisTracker struct {
	client redis.UniversalClient
	keys   *RedisKeys
	logger logger.Logger
}

// NewRedisTracker creates a new tracker.
func NewRedisTracker(client redis.UniversalClient, log logger.Logger) *RedisTracker {
	return &RedisTracker{
		client: client,
		keys:   NewRedisKeys(KeyPrefixMetrics),
		logger: log,
	}
}

// IncrementArchived increments the success counter for a kind.
func (t *RedisTracker) IncrementArchived(ctx context.Context, kind ObjectKind) error {
	return t.increment(ctx, t.keys.Archived(kind), kind, "archived")
}

// IncrementRejected increments the validation rejection counter for a kind.
func (t *RedisTracker) IncrementRejected(ctx context.Context, kind ObjectKind) error {
	return t.increment(ctx, t.keys.Rejected(kind), kind, "rejected")
}

// IncrementErrors increments the push error counter for a kind.
func (t *RedisTracker) IncrementErrors(ctx context.Context, kind ObjectKind) error {
	return t.increment(ctx, t.keys.Errors(kind), kind, "errors")
}

func (t *RedisTracker) increment(ctx context.Context, key string, kind ObjectKind, counter string) error {
	ttl := MetricsTTLDays * 24 * time.Hour

	// Pipeline keeps INCR and EXPIRE atomic
	pipe := t.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("failed to increment counter",
			logger.String("counter", counter),
			logger.String("kind", string(kind)),
			logger.String("redis_key", key),
			logger.Error(err),
		)
		return fmt.Errorf("increment %s counter: %w", counter, err)
	}
	return nil
}

// AddRecentPush records an archived object in the recent pushes list.
func (t *RedisTracker) AddRecentPush(ctx context.Context, push RecentPush) error {
	data, err := json.Marshal(push)
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	ttl := RecentPushesTTLDays * 24 * time.Hour

	// LPUSH, LTRIM and EXPIRE run as one pipeline
	pipe := t.client.Pipeline()
	pipe.LPush(ctx, KeyRecentPushes, data)
	pipe.LTrim(ctx, KeyRecentPushes, 0, MaxRecentPushes-1)
	pipe.Expire(ctx, KeyRecentPushes, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("failed to add recent push",
			logger.String("pid", push.PID),
			logger.String("kind", string(push.Kind)),
			logger.Error(err),
		)
		return fmt.Errorf("add recent push: %w", err)
	}
	return nil
}

// GetStats returns aggregated statistics using one pipelined read.
func (t *RedisTracker) GetStats(ctx context.Context) (*Stats, error) {
	pipe := t.client.Pipeline()

	archivedCmds := make(map[ObjectKind]*redis.StringCmd)
	rejectedCmds := make(map[ObjectKind]*redis.StringCmd)
	errorCmds := make(map[ObjectKind]*redis.StringCmd)

	for _, kind := range trackedKinds {
		archivedCmds[kind] = pipe.Get(ctx, t.keys.Archived(kind))
		rejectedCmds[kind] = pipe.Get(ctx, t.keys.Rejected(kind))
		errorCmds[kind] = pipe.Get(ctx, t.keys.Errors(kind))
	}
	lastPushCmd := pipe.Get(ctx, KeyLastPush)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("execute pipeline: %w", err)
	}

	stats := &Stats{
		Kinds: make([]KindStats, 0, len(trackedKinds)),
	}

	for _, kind := range trackedKinds {
		ks := KindStats{Name: kind}

		// Missing keys count as zero
		if v, err := archivedCmds[kind].Int64(); err == nil {
			ks.Archived = v
			stats.TotalArchived += v
		}
		if v, err := rejectedCmds[kind].Int64(); err == nil {
			ks.Rejected = v
			stats.TotalRejected += v
		}
		if v, err := errorCmds[kind].Int64(); err == nil {
			ks.Errors = v
			stats.TotalErrors += v
		}

		stats.Kinds = append(stats.Kinds, ks)
	}

	if lastPushStr, err := lastPushCmd.Result(); err == nil && lastPushStr != "" {
		if lastPush, parseErr := time.Parse(time.RFC3339, lastPushStr); parseErr == nil {
			stats.LastPush = lastPush
		}
	}

	return stats, nil
}

// GetRecentPushes returns recently archived objects.
func (t *RedisTracker) GetRecentPushes(ctx context.Context, limit int) ([]RecentPush, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxRecentPushes {
		limit = MaxRecentPushes
	}

	results, err := t.client.LRange(ctx, KeyRecentPushes, 0, int64(limit-1)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []RecentPush{}, nil
		}
		return nil, fmt.Errorf("get recent pushes: %w", err)
	}

	pushes := make([]RecentPush, 0, len(results))
	for _, result := range results {
		var push RecentPush
		if unmarshalErr := json.Unmarshal([]byte(result), &push); unmarshalErr != nil {
			t.logger.Warn("failed to unmarshal recent push", logger.Error(unmarshalErr))
			continue
		}
		pushes = append(pushes, push)
	}
	return pushes, nil
}

// UpdateLastPush updates the last successful push timestamp.
func (t *RedisTracker) UpdateLastPush(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)

	// Last push never expires
	if err := t.client.Set(ctx, KeyLastPush, now, 0).Err(); err != nil {
		t.logger.Warn("failed to update last push", logger.Error(err))
		return fmt.Errorf("update last push: %w", err)
	}
	return nil
}
