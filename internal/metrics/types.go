package metrics

import "time"

// RecentPush represents a recently archived object
type RecentPush struct {
	PID        string     `json:"pid"`
	EntryID    string     `json:"entry_id"`
	MediaID    string     `json:"media_id,omitempty"`
	Kind       ObjectKind `json:"kind"`
	ArchivedAt time.Time  `json:"archived_at"`
}

// Stats represents aggregated archival statistics
type Stats struct {
	TotalArchived int64       `json:"total_archived"`
	TotalRejected int64       `json:"total_rejected"`
	TotalErrors   int64       `json:"total_errors"`
	Kinds         []KindStats `json:"kinds"`
	LastPush      time.Time   `json:"last_push"`
}

// KindStats represents statistics for one object kind
type KindStats struct {
	Name     ObjectKind `json:"name"`
	Archived int64      `json:"archived"`
	Rejected int64      `json:"rejected"`
	Errors   int64      `json:"errors"`
}
