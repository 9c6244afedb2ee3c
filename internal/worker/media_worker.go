package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfolio/archivesync/internal/archiver"
	"github.com/openfolio/archivesync/internal/database"
	"github.com/openfolio/archivesync/internal/domain"
	"github.com/openfolio/archivesync/internal/logger"
	"github.com/openfolio/archivesync/internal/metadata"
	"github.com/openfolio/archivesync/internal/metrics"
	"github.com/openfolio/archivesync/internal/phaidra"
	"github.com/openfolio/archivesync/internal/storage"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 50
	defaultPushTimeout  = 2 * time.Minute
	staleProgressAge    = 10 * time.Minute
	retryBatchDivisor   = 2 // Retry batch = batchSize / divisor
)

// MemberClient is the slice of the archive client the worker needs.
type MemberClient interface {
	CreateMember(ctx context.Context, doc metadata.Document, fileName string, file io.Reader) (*phaidra.Result, error)
	UpdateMember(ctx context.Context, pid string, doc metadata.Document) error
	Link(ctx context.Context, containerPID, memberPID string) error
	ObjectURI(pid string) string
}

// MediaWorker polls for queued media jobs and pushes each item to the
// archive as a member of its entry's container.
type MediaWorker struct {
	media    *database.MediaRepository
	entries  *database.EntryRepository
	archive  MemberClient
	files    storage.FileStore
	inflight *archiver.RedisInflightStore
	tracker  metrics.Tracker
	logger   logger.Logger
	tracer   trace.Tracer

	pollInterval time.Duration
	batchSize    int
	pushTimeout  time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// MediaWorkerConfig holds configuration options.
type MediaWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	PushTimeout  time.Duration
}

// NewMediaWorker creates a new media worker.
func NewMediaWorker(
	media *database.MediaRepository,
	entries *database.EntryRepository,
	archive MemberClient,
	files storage.FileStore,
	inflight *archiver.RedisInflightStore,
	tracker metrics.Tracker,
	cfg MediaWorkerConfig,
	log logger.Logger,
) *MediaWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = defaultPushTimeout
	}

	return &MediaWorker{
		media:        media,
		entries:      entries,
		archive:      archive,
		files:        files,
		inflight:     inflight,
		tracker:      tracker,
		logger:       log,
		tracer:       otel.Tracer("media-worker"),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		pushTimeout:  cfg.PushTimeout,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the polling loop.
func (w *MediaWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.wg.Add(1)
	go w.runRecovery(ctx)

	w.logger.Info("media worker started",
		logger.Duration("poll_interval", w.pollInterval),
		logger.Int("batch_size", w.batchSize))
}

// Stop gracefully stops the worker.
func (w *MediaWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("media worker stopped")
}

// IsRunning returns whether the worker is currently running.
func (w *MediaWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *MediaWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.processOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.processOnce(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *MediaWorker) processOnce(ctx context.Context) {
	queued, err := w.media.ClaimQueued(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to claim queued media", logger.Error(err))
	} else if len(queued) > 0 {
		w.logger.Debug("processing queued media", logger.Int("count", len(queued)))
		w.pushBatch(ctx, queued)
	}

	// Reduced batch for retries so fresh jobs keep priority
	retryable, err := w.media.ClaimRetryable(ctx, w.batchSize/retryBatchDivisor)
	if err != nil {
		w.logger.Error("failed to claim retryable media", logger.Error(err))
	} else if len(retryable) > 0 {
		w.logger.Debug("processing retryable media", logger.Int("count", len(retryable)))
		w.pushBatch(ctx, retryable)
	}
}

func (w *MediaWorker) pushBatch(ctx context.Context, items []domain.Media) {
	for i := range items {
		w.pushOne(ctx, &items[i])
	}
}

func (w *MediaWorker) pushOne(ctx context.Context, m *domain.Media) {
	ctx, span := w.tracer.Start(ctx, "media.push",
		trace.WithAttributes(
			attribute.String("media_id", m.ID),
			attribute.String("entry_id", m.EntryID),
			attribute.Int("retry_count", m.RetryCount),
		))
	defer span.End()

	entry, err := w.entries.GetByID(ctx, m.EntryID)
	if err != nil {
		w.handlePushError(ctx, m, fmt.Errorf("load entry: %w", err))
		return
	}

	// The container must be durably archived before any member push. A
	// job observed here without a container PID is a sequencing bug, so
	// fail it without touching the archive at all.
	if !entry.Archived() {
		w.handlePushError(ctx, m, fmt.Errorf("entry %s: %w", entry.ID, domain.ErrContainerNotArchived))
		return
	}

	doc := metadata.TranslateMedia(m, entry)

	pushCtx, cancel := context.WithTimeout(ctx, w.pushTimeout)
	defer cancel()

	var result *phaidra.Result
	if m.Archived() {
		if err := w.archive.UpdateMember(pushCtx, *m.ArchiveID, doc); err != nil {
			w.handlePushError(ctx, m, err)
			return
		}
		// The stored URI wins; without one it is rebuilt from the PID so
		// MarkArchived never blanks the column.
		uri := w.archive.ObjectURI(*m.ArchiveID)
		if m.ArchiveURI != nil && *m.ArchiveURI != "" {
			uri = *m.ArchiveURI
		}
		result = &phaidra.Result{PID: *m.ArchiveID, URI: uri}
	} else {
		result, err = w.createMember(pushCtx, m, entry, doc)
		if err != nil {
			w.handlePushError(ctx, m, err)
			return
		}
	}

	archivedAt := w.archivedAt(ctx, m)
	if markErr := w.media.MarkArchived(ctx, m.ID, result.PID, result.URI, archivedAt); markErr != nil {
		w.logger.Error("failed to mark media as archived",
			logger.String("media_id", m.ID),
			logger.Error(markErr))
		// The archive accepted the push; the row recovers through the
		// regular update path once it is touched again.
	}

	if relErr := w.inflight.Release(ctx, m.ID); relErr != nil {
		w.logger.Warn("release job key",
			logger.String("media_id", m.ID),
			logger.Error(relErr))
	}

	_ = w.tracker.IncrementArchived(ctx, metrics.KindMember)
	_ = w.tracker.AddRecentPush(ctx, metrics.RecentPush{
		PID:        result.PID,
		EntryID:    m.EntryID,
		MediaID:    m.ID,
		Kind:       metrics.KindMember,
		ArchivedAt: archivedAt,
	})
	_ = w.tracker.UpdateLastPush(ctx)

	w.logger.Debug("media pushed to archive",
		logger.String("media_id", m.ID),
		logger.String("pid", result.PID),
		logger.Int("retry_count", m.RetryCount))
}

func (w *MediaWorker) createMember(ctx context.Context, m *domain.Media, entry *domain.Entry, doc metadata.Document) (*phaidra.Result, error) {
	file, err := w.files.Open(m)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	result, err := w.archive.CreateMember(ctx, doc, m.FileName, file)
	if err != nil {
		return nil, err
	}

	if err := w.archive.Link(ctx, *entry.ArchiveID, result.PID); err != nil {
		return nil, fmt.Errorf("link member %s to container %s: %w", result.PID, *entry.ArchiveID, err)
	}
	return result, nil
}

// archivedAt prefers the archive date recorded at enqueue time so that the
// durable row matches the intent concurrent readers have been seeing.
func (w *MediaWorker) archivedAt(ctx context.Context, m *domain.Media) time.Time {
	intended, err := w.inflight.IntendedArchiveDate(ctx, m.ID)
	if err != nil {
		w.logger.Warn("read job intent",
			logger.String("media_id", m.ID),
			logger.Error(err))
	}
	if intended != nil {
		return *intended
	}
	return time.Now().UTC()
}

func (w *MediaWorker) handlePushError(ctx context.Context, m *domain.Media, err error) {
	var markErr error
	if errors.Is(err, phaidra.ErrAuthFailed) {
		// Credentials are broken for every job, not just this one.
		// Retrying cannot help until an operator fixes the account, so the
		// row is parked instead of scheduled for backoff.
		w.logger.Error("archive authentication failed, operator attention required",
			logger.String("media_id", m.ID),
			logger.Error(err))
		markErr = w.media.MarkFailedPermanent(ctx, m.ID, err.Error())
	} else {
		w.logger.Error("failed to push media to archive",
			logger.String("media_id", m.ID),
			logger.String("entry_id", m.EntryID),
			logger.Int("retry_count", m.RetryCount),
			logger.Error(err))
		markErr = w.media.MarkFailed(ctx, m.ID, err.Error())
	}

	_ = w.tracker.IncrementErrors(ctx, metrics.KindMember)

	if markErr != nil {
		w.logger.Error("failed to mark media as failed",
			logger.String("media_id", m.ID),
			logger.Error(markErr))
	}

	if relErr := w.inflight.Release(ctx, m.ID); relErr != nil {
		w.logger.Warn("release job key",
			logger.String("media_id", m.ID),
			logger.Error(relErr))
	}
}

// runRecovery resets media rows stuck in progress back to their queued
// state. This handles jobs claimed by a worker that crashed mid-push.
func (w *MediaWorker) runRecovery(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reset, err := w.media.ResetStale(ctx, staleProgressAge)
			if err != nil {
				w.logger.Error("media recovery failed", logger.Error(err))
			} else if reset > 0 {
				w.logger.Warn("recovered stale media jobs",
					logger.Int64("reset", reset))
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// GetStats returns current worker statistics.
func (w *MediaWorker) GetStats(ctx context.Context) (map[string]any, error) {
	stats, err := w.media.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"not_archived":     stats.NotArchived,
		"queued":           stats.Queued,
		"in_progress":      stats.InProgress,
		"archived":         stats.Archived,
		"failed_retryable": stats.FailedRetry,
		"failed_exhausted": stats.FailedFinal,
		"poll_interval":    w.pollInterval.String(),
		"batch_size":       w.batchSize,
		"running":          w.IsRunning(),
	}, nil
}
