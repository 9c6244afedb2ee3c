// Package worker provides the background machinery that pushes media
// items to the archive: a dispatcher that turns media into durable jobs
// and a polling worker that executes them.
package worker

import (
	"context"
	"time"

	"github.com/openfolio/archivesync/internal/archiver"
	"github.com/openfolio/archivesync/internal/database"
	"github.com/openfolio/archivesync/internal/domain"
	"github.com/openfolio/archivesync/internal/logger"
)

// Dispatcher enqueues archival jobs for media items. A job is represented
// twice: as a durable status transition on the media row and as a short
// lived job key holding the intended archive date. At most one job per
// media item can be in flight at any time; the job key write is the
// serialization point for concurrent enqueue attempts.
type Dispatcher struct {
	media    *database.MediaRepository
	inflight *archiver.RedisInflightStore
	logger   logger.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(media *database.MediaRepository, inflight *archiver.RedisInflightStore, log logger.Logger) *Dispatcher {
	return &Dispatcher{media: media, inflight: inflight, logger: log}
}

// Enqueue schedules one job per media item that is not already queued or
// running. It returns the number of jobs actually created. Items that lose
// the enqueue race are skipped silently; the winning job covers them.
func (d *Dispatcher) Enqueue(ctx context.Context, items []domain.Media) (int, error) {
	enqueued := 0
	for i := range items {
		ok, err := d.enqueueOne(ctx, &items[i])
		if err != nil {
			return enqueued, err
		}
		if ok {
			enqueued++
		}
	}
	return enqueued, nil
}

func (d *Dispatcher) enqueueOne(ctx context.Context, m *domain.Media) (bool, error) {
	if !m.NeedsEnqueue() {
		return false, nil
	}

	intended := time.Now().UTC()
	acquired, err := d.inflight.TryAcquire(ctx, m.ID, intended)
	if err != nil {
		return false, err
	}
	if !acquired {
		// A job intent already exists, so a job is queued or running.
		return false, nil
	}

	status, changed, err := d.media.MarkQueued(ctx, m.ID)
	if err != nil {
		// Leave the job key in place so the next recovery pass can see
		// there was an intent; it expires on its own.
		return false, err
	}
	if !changed {
		// The row was already queued or running. Our intent does not
		// describe that job, so drop it rather than misreport its date.
		if relErr := d.inflight.Release(ctx, m.ID); relErr != nil {
			d.logger.Warn("release redundant job key",
				logger.String("media_id", m.ID),
				logger.Error(relErr))
		}
		return false, nil
	}

	d.logger.Debug("media job enqueued",
		logger.String("media_id", m.ID),
		logger.String("entry_id", m.EntryID),
		logger.String("status", string(status)))
	return true, nil
}
