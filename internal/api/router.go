package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/openfolio/archivesync/internal/archiver"
	"github.com/openfolio/archivesync/internal/config"
	"github.com/openfolio/archivesync/internal/database"
	"github.com/openfolio/archivesync/internal/logger"
	"github.com/openfolio/archivesync/internal/metrics"
)

// Health constants.
const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
	serviceVersion       = "1.0.0"
)

// QueueStatsProvider exposes the worker's queue statistics.
type QueueStatsProvider interface {
	GetStats(ctx context.Context) (map[string]any, error)
}

// Router holds the API dependencies
type Router struct {
	cfg         *config.Config
	db          *sqlx.DB
	redisClient *redis.Client
	entries     *database.EntryRepository
	controller  *archiver.Controller
	reconciler  *archiver.Reconciler
	worker      QueueStatsProvider
	tracker     metrics.Tracker
	logger      logger.Logger
}

// NewRouter creates a new API router
func NewRouter(
	cfg *config.Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	entries *database.EntryRepository,
	controller *archiver.Controller,
	reconciler *archiver.Reconciler,
	worker QueueStatsProvider,
	tracker metrics.Tracker,
	log logger.Logger,
) *Router {
	return &Router{
		cfg:         cfg,
		db:          db,
		redisClient: redisClient,
		entries:     entries,
		controller:  controller,
		reconciler:  reconciler,
		worker:      worker,
		tracker:     tracker,
		logger:      log,
	}
}

// SetupRoutes builds the gin engine with middleware and all routes.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health check (public, no auth)
	router.GET("/health", r.healthCheck)

	r.setupServiceRoutes(router)

	return router
}

// setupServiceRoutes configures the authenticated API routes.
func (r *Router) setupServiceRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(r.cfg.Auth.JWTSecret))

	// Archival operations on an entry and its media
	entries := v1.Group("/entries")
	entries.POST("/:id/archive", r.pushArchive)
	entries.POST("/:id/archive/update", r.updateArchive)
	entries.POST("/:id/archive/validate", r.validateArchive)
	entries.GET("/:id/archive/changed", r.archiveChanged)

	// Stats
	stats := v1.Group("/stats")
	stats.GET("", r.getStats)
	stats.GET("/recent", r.getRecentPushes)
}

// healthCheck returns the service health status
func (r *Router) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "archivesync",
		"version": serviceVersion,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbConnected := true
	if err := r.db.PingContext(ctx); err != nil {
		dbConnected = false
		health["status"] = healthStatusDegraded
	}
	health["database"] = gin.H{
		"connected": dbConnected,
	}

	redisHealth := r.checkRedisHealth(ctx)
	health["redis"] = redisHealth

	if connected, ok := redisHealth["connected"].(bool); ok && !connected {
		if health["status"] == healthStatusHealthy {
			health["status"] = healthStatusDegraded
		}
	}

	c.JSON(http.StatusOK, health)
}

// checkRedisHealth checks Redis connection and returns health info
func (r *Router) checkRedisHealth(ctx context.Context) gin.H {
	if r.redisClient == nil {
		return gin.H{
			"connected": false,
			"error":     "Redis client not initialized",
		}
	}

	redisHealth := gin.H{"connected": true}
	if err := r.redisClient.Ping(ctx).Err(); err != nil {
		redisHealth["connected"] = false
		redisHealth["error"] = err.Error()
	}
	return redisHealth
}
