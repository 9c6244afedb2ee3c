package domain

import (
	"time"
)

// ArchiveStatus represents the archival lifecycle state of a media item.
type ArchiveStatus string

const (
	StatusNotArchived  ArchiveStatus = "not_archived"
	StatusToBeArchived ArchiveStatus = "to_be_archived"
	StatusInProgress   ArchiveStatus = "in_progress"
	StatusArchived     ArchiveStatus = "archived"
	StatusArchiveError ArchiveStatus = "archive_error"
	StatusInUpdate     ArchiveStatus = "in_update"
)

// Pending reports whether a job for this status is queued or running.
func (s ArchiveStatus) Pending() bool {
	return s == StatusToBeArchived || s == StatusInProgress || s == StatusInUpdate
}

// Media is a file attached to exactly one entry.
type Media struct {
	ID       string   `db:"id"        json:"id"`
	EntryID  string   `db:"entry_id"  json:"entry_id"`
	FileName string   `db:"file_name" json:"file_name"`
	MimeType string   `db:"mime_type" json:"mime_type"`
	License  *Concept `json:"license,omitempty"`

	ArchiveID     *string       `db:"archive_id"     json:"archive_id,omitempty"`
	ArchiveURI    *string       `db:"archive_uri"    json:"archive_uri,omitempty"`
	ArchiveDate   *time.Time    `db:"archive_date"   json:"archive_date,omitempty"`
	ArchiveStatus ArchiveStatus `db:"archive_status" json:"archive_status"`

	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int     `db:"retry_count"   json:"retry_count"`
	MaxRetries   int     `db:"max_retries"   json:"max_retries"`

	DateChanged time.Time `db:"date_changed" json:"date_changed"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// Archived reports whether the media item has ever been pushed to the
// archive.
func (m *Media) Archived() bool {
	return m.ArchiveID != nil && *m.ArchiveID != ""
}

// NeedsEnqueue reports whether a new archival job may be scheduled. Items
// with a queued or running job are skipped; already-archived items re-enter
// through the update path.
func (m *Media) NeedsEnqueue() bool {
	switch m.ArchiveStatus {
	case StatusToBeArchived, StatusInProgress, StatusInUpdate:
		return false
	default:
		return true
	}
}

// ShouldRetry reports whether the item's job can be retried.
func (m *Media) ShouldRetry() bool {
	return m.RetryCount < m.MaxRetries
}

// IsExhausted reports whether all retries have been used up.
func (m *Media) IsExhausted() bool {
	return m.RetryCount >= m.MaxRetries
}
