package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openfolio/archivesync/internal/logger"
)

const defaultRecentLimit = 20

// getStats handles GET /api/v1/stats. It combines the durable queue
// counts with the Redis outcome counters so the dashboard sees both the
// backlog and the recent throughput in one call.
func (r *Router) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	queue, err := r.worker.GetStats(ctx)
	if err != nil {
		r.logger.Error("failed to load queue stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	outcomes, err := r.tracker.GetStats(ctx)
	if err != nil {
		r.logger.Error("failed to load outcome stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue":    queue,
		"outcomes": outcomes,
	})
}

// getRecentPushes handles GET /api/v1/stats/recent?limit=N
func (r *Router) getRecentPushes(c *gin.Context) {
	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	pushes, err := r.tracker.GetRecentPushes(c.Request.Context(), limit)
	if err != nil {
		r.logger.Error("failed to load recent pushes", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load recent pushes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pushes": pushes})
}
