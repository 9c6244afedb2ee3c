package metrics

import (
	"context"
)

// Tracker records archival outcomes for the stats endpoint.
// An interface so handlers and workers can be tested with a stub.
type Tracker interface {
	// IncrementArchived increments the success counter for a kind
	IncrementArchived(ctx context.Context, kind ObjectKind) error
	// IncrementRejected increments the validation rejection counter for a kind
	IncrementRejected(ctx context.Context, kind ObjectKind) error
	// IncrementErrors increments the push error counter for a kind
	IncrementErrors(ctx context.Context, kind ObjectKind) error
	// AddRecentPush records an archived object in the recent pushes list
	AddRecentPush(ctx context.Context, push RecentPush) error
	// GetStats returns aggregated statistics
	GetStats(ctx context.Context) (*Stats, error)
	// GetRecentPushes returns recently archived objects
	GetRecentPushes(ctx context.Context, limit int) ([]RecentPush, error)
	// UpdateLastPush updates the last successful push timestamp
	UpdateLastPush(ctx context.Context) error
}
