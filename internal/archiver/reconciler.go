package archiver

import (
	"context"
	"fmt"
	"time"

	"github.com/openfolio/archivesync/internal/database"
	"github.com/openfolio/archivesync/internal/domain"
)

// Reconciler answers whether an entry or any of its archived media has
// changed since it was last archived. It is read-only and independent of
// the push path.
type Reconciler struct {
	media    *database.MediaRepository
	inflight InflightStatusStore
}

// NewReconciler creates a reconciler.
func NewReconciler(media *database.MediaRepository, inflight InflightStatusStore) *Reconciler {
	return &Reconciler{media: media, inflight: inflight}
}

// HasChanged reports whether the entry or any archived media item changed
// after its last archival. The result is tri-state: nil means the entry was
// never archived or the comparison is indeterminate; an indeterminate
// comparison is never guessed to be false. The thresholds fuzz the
// timestamp comparisons to absorb clock skew from near-simultaneous save
// and push.
func (r *Reconciler) HasChanged(ctx context.Context, entry *domain.Entry, entryThreshold, assetThreshold time.Duration) (*bool, error) {
	if entry.ArchiveDate == nil {
		return nil, nil
	}

	// Cheapest positive signal first: the entry itself.
	if entry.DateChanged.After(entry.ArchiveDate.Add(entryThreshold)) {
		return boolPtr(true), nil
	}

	items, err := r.media.ListByEntry(ctx, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("list media for reconciliation: %w", err)
	}

	indeterminate := false
	for i := range items {
		changed, known, itemErr := r.mediaChanged(ctx, &items[i], assetThreshold)
		if itemErr != nil {
			return nil, itemErr
		}
		if changed {
			return boolPtr(true), nil
		}
		if !known {
			indeterminate = true
		}
	}

	if indeterminate {
		return nil, nil
	}
	return boolPtr(false), nil
}

// mediaChanged compares one media item's modification time against its
// archival reference point. For items with a job still in flight the
// reference is the job's intended archive date, since the durable row has
// not been updated yet. Returns (changed, known).
func (r *Reconciler) mediaChanged(ctx context.Context, m *domain.Media, threshold time.Duration) (bool, bool, error) {
	if m.ArchiveStatus.Pending() {
		intent, err := r.inflight.IntendedArchiveDate(ctx, m.ID)
		if err != nil {
			return false, false, fmt.Errorf("read job intent for media %s: %w", m.ID, err)
		}
		if intent == nil {
			return false, false, nil
		}
		return m.DateChanged.After(intent.Add(threshold)), true, nil
	}

	if m.Archived() {
		if m.ArchiveDate == nil {
			return false, false, nil
		}
		return m.DateChanged.After(m.ArchiveDate.Add(threshold)), true, nil
	}

	// Never archived and no job in flight: not part of the archived set.
	return false, true, nil
}

func boolPtr(v bool) *bool {
	return &v
}
