package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/openfolio/archivesync/internal/logger"
	"github.com/openfolio/archivesync/internal/metrics"
)

type stubQueueStats struct {
	stats map[string]any
	err   error
}

func (s *stubQueueStats) GetStats(context.Context) (map[string]any, error) {
	return s.stats, s.err
}

type stubOutcomeTracker struct {
	stats  *metrics.Stats
	pushes []metrics.RecentPush
	limit  int
}

func (s *stubOutcomeTracker) IncrementArchived(context.Context, metrics.ObjectKind) error { return nil }
func (s *stubOutcomeTracker) IncrementRejected(context.Context, metrics.ObjectKind) error { return nil }
func (s *stubOutcomeTracker) IncrementErrors(context.Context, metrics.ObjectKind) error   { return nil }
func (s *stubOutcomeTracker) AddRecentPush(context.Context, metrics.RecentPush) error     { return nil }
func (s *stubOutcomeTracker) GetStats(context.Context) (*metrics.Stats, error) {
	return s.stats, nil
}
func (s *stubOutcomeTracker) GetRecentPushes(_ context.Context, limit int) ([]metrics.RecentPush, error) {
	s.limit = limit
	return s.pushes, nil
}
func (s *stubOutcomeTracker) UpdateLastPush(context.Context) error { return nil }

func statsRouter(worker QueueStatsProvider, tracker metrics.Tracker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := &Router{worker: worker, tracker: tracker, logger: logger.NewNopLogger()}
	router := gin.New()
	router.GET("/stats", r.getStats)
	router.GET("/stats/recent", r.getRecentPushes)
	return router
}

func TestGetStats_CombinesQueueAndOutcomes(t *testing.T) {
	t.Helper()

	router := statsRouter(
		&stubQueueStats{stats: map[string]any{"queued": 3}},
		&stubOutcomeTracker{stats: &metrics.Stats{TotalArchived: 7}},
	)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queued":3`)
	assert.Contains(t, rec.Body.String(), `"total_archived":7`)
}

func TestGetStats_QueueFailure(t *testing.T) {
	t.Helper()

	router := statsRouter(
		&stubQueueStats{err: errors.New("db down")},
		&stubOutcomeTracker{stats: &metrics.Stats{}},
	)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestGetRecentPushes_Limit(t *testing.T) {
	t.Helper()

	tracker := &stubOutcomeTracker{pushes: []metrics.RecentPush{{PID: "o:1"}}}
	router := statsRouter(&stubQueueStats{}, tracker)

	req := httptest.NewRequest(http.MethodGet, "/stats/recent?limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, tracker.limit)
	assert.Contains(t, rec.Body.String(), `"o:1"`)
}

func TestGetRecentPushes_InvalidLimit(t *testing.T) {
	t.Helper()

	router := statsRouter(&stubQueueStats{}, &stubOutcomeTracker{})

	req := httptest.NewRequest(http.MethodGet, "/stats/recent?limit=zero", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
