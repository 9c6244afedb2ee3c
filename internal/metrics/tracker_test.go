package metrics_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/archivesync/internal/logger"
	"github.com/openfolio/archivesync/internal/metrics"
)

func newTestTracker(t *testing.T) (*metrics.RedisTracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return metrics.NewRedisTracker(client, logger.NewNopLogger()), mr
}

func TestIncrementAndGetStats(t *testing.T) {
	t.Helper()

	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.IncrementArchived(ctx, metrics.KindContainer))
	require.NoError(t, tracker.IncrementArchived(ctx, metrics.KindMember))
	require.NoError(t, tracker.IncrementArchived(ctx, metrics.KindMember))
	require.NoError(t, tracker.IncrementRejected(ctx, metrics.KindContainer))
	require.NoError(t, tracker.IncrementErrors(ctx, metrics.KindMember))

	stats, err := tracker.GetStats(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.TotalArchived)
	assert.EqualValues(t, 1, stats.TotalRejected)
	assert.EqualValues(t, 1, stats.TotalErrors)

	byName := make(map[metrics.ObjectKind]metrics.KindStats)
	for _, ks := range stats.Kinds {
		byName[ks.Name] = ks
	}
	assert.EqualValues(t, 1, byName[metrics.KindContainer].Archived)
	assert.EqualValues(t, 2, byName[metrics.KindMember].Archived)
	assert.EqualValues(t, 1, byName[metrics.KindMember].Errors)
}

func TestGetStats_EmptyCountsAsZero(t *testing.T) {
	t.Helper()

	tracker, _ := newTestTracker(t)

	stats, err := tracker.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalArchived)
	assert.Len(t, stats.Kinds, 2)
	assert.True(t, stats.LastPush.IsZero())
}

func TestRecentPushes_NewestFirstAndTrimmed(t *testing.T) {
	t.Helper()

	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	for i := range metrics.MaxRecentPushes + 5 {
		push := metrics.RecentPush{
			PID:        fmt.Sprintf("o:%d", i),
			EntryID:    "e1",
			Kind:       metrics.KindMember,
			ArchivedAt: time.Now().UTC(),
		}
		require.NoError(t, tracker.AddRecentPush(ctx, push))
	}

	pushes, err := tracker.GetRecentPushes(ctx, metrics.MaxRecentPushes*2)
	require.NoError(t, err)
	require.Len(t, pushes, metrics.MaxRecentPushes)
	assert.Equal(t, fmt.Sprintf("o:%d", metrics.MaxRecentPushes+4), pushes[0].PID)
}

func TestGetRecentPushes_SkipsCorruptPayloads(t *testing.T) {
	t.Helper()

	tracker, mr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.AddRecentPush(ctx, metrics.RecentPush{PID: "o:1", EntryID: "e1", Kind: metrics.KindContainer}))
	_, err := mr.Lpush(metrics.KeyRecentPushes, "{not json")
	require.NoError(t, err)

	pushes, err := tracker.GetRecentPushes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pushes, 1)
	assert.Equal(t, "o:1", pushes[0].PID)
}

func TestUpdateLastPush(t *testing.T) {
	t.Helper()

	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.UpdateLastPush(ctx))

	stats, err := tracker.GetStats(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), stats.LastPush, time.Minute)
}
