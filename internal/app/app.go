// Package app provides the main application lifecycle management for the
// archivesync service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/openfolio/archivesync/internal/api"
	"github.com/openfolio/archivesync/internal/archiver"
	"github.com/openfolio/archivesync/internal/config"
	"github.com/openfolio/archivesync/internal/database"
	"github.com/openfolio/archivesync/internal/logger"
	"github.com/openfolio/archivesync/internal/metrics"
	"github.com/openfolio/archivesync/internal/phaidra"
	"github.com/openfolio/archivesync/internal/redis"
	"github.com/openfolio/archivesync/internal/storage"
	"github.com/openfolio/archivesync/internal/vocabulary"
	"github.com/openfolio/archivesync/internal/worker"
)

const (
	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

// App represents the archivesync application with all its dependencies
type App struct {
	config      *config.Config
	logger      logger.Logger
	db          *sqlx.DB
	redisClient *goredis.Client
	mediaWorker *worker.MediaWorker
	httpServer  *http.Server
	version     string
	configPath  string
}

// Options contains configuration for creating a new App
type Options struct {
	ConfigPath string
	Version    string
}

// New creates a new App instance with all dependencies initialized
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "archivesync"),
		logger.String("version", opts.Version),
	)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to Postgres: %w", err)
	}

	if err := database.RunMigrations(cfg.Database, appLogger); err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		_ = appLogger.Sync()
		return nil, err
	}

	// Repositories
	entries := database.NewEntryRepository(db)
	media := database.NewMediaRepository(db)

	// External clients
	archiveClient, err := phaidra.NewClient(&cfg.Archive, appLogger)
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("create archive client: %w", err)
	}
	vocabClient, err := vocabulary.NewClient(&cfg.Vocabulary, appLogger)
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("create vocabulary client: %w", err)
	}

	// Archival pipeline
	inflight := archiver.NewRedisInflightStore(redisClient)
	tracker := metrics.NewRedisTracker(redisClient, appLogger)
	dispatcher := worker.NewDispatcher(media, inflight, appLogger)
	reconciler := archiver.NewReconciler(media, inflight)
	controller := archiver.NewController(entries, media, vocabClient, archiveClient, dispatcher, tracker, appLogger)

	files := storage.NewLocalStore(cfg.Storage.MediaDir)
	mediaWorker := worker.NewMediaWorker(media, entries, archiveClient, files, inflight, tracker, worker.MediaWorkerConfig{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		PushTimeout:  cfg.Worker.PushTimeout,
	}, appLogger)

	router := api.NewRouter(cfg, db, redisClient, entries, controller, reconciler, mediaWorker, tracker, appLogger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		config:      cfg,
		logger:      appLogger,
		db:          db,
		redisClient: redisClient,
		mediaWorker: mediaWorker,
		httpServer:  httpServer,
		version:     opts.Version,
		configPath:  opts.ConfigPath,
	}, nil
}

// Run starts the worker and HTTP server and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	a.mediaWorker.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening",
			logger.String("address", a.config.Server.Address),
			logger.Bool("debug", a.config.Debug),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	return a.waitForShutdown(workerCancel, serverErr)
}

// waitForShutdown handles graceful shutdown
func (a *App) waitForShutdown(workerCancel context.CancelFunc, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down gracefully",
			logger.String("signal", sig.String()),
		)

	case err := <-serverErr:
		if err != nil {
			a.logger.Error("Server error", logger.Error(err))
			shutdownErr = err
		}
	}

	workerCancel()
	a.mediaWorker.Stop()
	a.shutdownHTTPServer()

	a.logger.Info("Service stopped")
	return shutdownErr
}

// shutdownHTTPServer gracefully shuts down the HTTP server
func (a *App) shutdownHTTPServer() {
	if a.httpServer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", logger.Error(err))
	} else {
		a.logger.Info("HTTP server stopped")
	}
}

// Close cleans up resources
func (a *App) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", logger.Error(err))
		}
	}
	return a.logger.Sync()
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.logger
}
