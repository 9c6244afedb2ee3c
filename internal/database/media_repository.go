package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openfolio/archivesync/internal/domain"
)

// mediaSelectList is the column list for SELECT/RETURNING on media (single
// source for schema changes).
const mediaSelectList = `id, entry_id, file_name, mime_type, license,
			archive_id, archive_uri, archive_date, archive_status,
			error_message, retry_count, max_retries,
			date_changed, created_at, updated_at`

// MediaRepository manages media rows and their archival status in
// PostgreSQL. Status transitions are expressed as compare-and-set queries so
// that concurrent dispatchers and workers never double-claim an item.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository creates a new repository.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// GetByID retrieves a media item by ID.
func (r *MediaRepository) GetByID(ctx context.Context, id string) (*domain.Media, error) {
	query := `SELECT ` + mediaSelectList + ` FROM media WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	return m, nil
}

// ListByEntry returns all media items belonging to an entry.
func (r *MediaRepository) ListByEntry(ctx context.Context, entryID string) ([]domain.Media, error) {
	query := `SELECT ` + mediaSelectList + ` FROM media WHERE entry_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	return scanMediaRows(rows)
}

// MarkQueued transitions an item to its queued state: to_be_archived for
// first-time archival, in_update for items already archived. Items with a
// queued or running job are left untouched and reported as skipped.
// Each enqueue starts a fresh retry budget.
// The check-and-set is a single UPDATE, atomic under concurrent enqueues.
func (r *MediaRepository) MarkQueued(ctx context.Context, id string) (domain.ArchiveStatus, bool, error) {
	query := `
		UPDATE media
		SET archive_status = CASE
		        WHEN archive_status = 'archived' THEN 'in_update'
		        ELSE 'to_be_archived'
		    END,
		    error_message = NULL,
		    retry_count = 0,
		    next_retry_at = NULL,
		    updated_at = NOW()
		WHERE id = $1
		  AND archive_status NOT IN ('to_be_archived', 'in_progress', 'in_update')
		RETURNING archive_status`

	var status domain.ArchiveStatus
	err := r.db.QueryRowContext(ctx, query, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		// Already queued, running, or missing; the caller treats this as a
		// no-op.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mark queued: %w", err)
	}
	return status, true, nil
}

// ClaimQueued claims up to limit queued items for processing, moving them to
// in_progress. Uses FOR UPDATE SKIP LOCKED for concurrent worker safety.
func (r *MediaRepository) ClaimQueued(ctx context.Context, limit int) ([]domain.Media, error) {
	query := `
		UPDATE media
		SET archive_status = 'in_progress', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM media
			WHERE archive_status IN ('to_be_archived', 'in_update')
			ORDER BY updated_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + mediaSelectList

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim queued: %w", err)
	}
	defer rows.Close()

	return scanMediaRows(rows)
}

// ClaimRetryable claims failed items whose backoff has elapsed and which
// still have retries left.
func (r *MediaRepository) ClaimRetryable(ctx context.Context, limit int) ([]domain.Media, error) {
	query := `
		UPDATE media
		SET archive_status = 'in_progress', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM media
			WHERE archive_status = 'archive_error'
			  AND retry_count < max_retries
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY next_retry_at ASC NULLS FIRST
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + mediaSelectList

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim retryable: %w", err)
	}
	defer rows.Close()

	return scanMediaRows(rows)
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row
// was affected.
func (r *MediaRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkArchived records a successful member push. The archive id is only
// written on first success.
func (r *MediaRepository) MarkArchived(ctx context.Context, id, pid, uri string, archivedAt time.Time) error {
	query := `
		UPDATE media
		SET archive_status = 'archived',
		    archive_id = COALESCE(archive_id, $2),
		    archive_uri = $3,
		    archive_date = $4,
		    error_message = NULL,
		    retry_count = 0,
		    next_retry_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id, pid, uri, archivedAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark archived: %w", err)
	}
	return nil
}

// MarkFailed records a failed push with retry scheduling. Failed rows are
// kept for inspection; backoff doubles per attempt: 1min, 2min, 4min, ...
func (r *MediaRepository) MarkFailed(ctx context.Context, id, errorMsg string) error {
	query := `
		UPDATE media
		SET archive_status = 'archive_error',
		    error_message = $2,
		    retry_count = retry_count + 1,
		    next_retry_at = NOW() + (INTERVAL '1 minute' * POWER(2, retry_count)),
		    updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id, errorMsg); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// MarkFailedPermanent records a failure that retrying cannot fix, such as
// rejected archive credentials. The row is parked with its retries
// exhausted so ClaimRetryable never picks it up again; a fresh operator
// push through MarkQueued starts over with a clean retry budget.
func (r *MediaRepository) MarkFailedPermanent(ctx context.Context, id, errorMsg string) error {
	query := `
		UPDATE media
		SET archive_status = 'archive_error',
		    error_message = $2,
		    retry_count = max_retries,
		    next_retry_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id, errorMsg); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark failed permanent: %w", err)
	}
	return nil
}

// ResetStale resets in_progress items whose worker died back to
// to_be_archived so they can be claimed again.
func (r *MediaRepository) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE media
		SET archive_status = 'to_be_archived', updated_at = NOW()
		WHERE archive_status = 'in_progress'
		  AND updated_at < NOW() - $1::interval`

	result, err := r.db.ExecContext(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reset stale: %w", err)
	}
	return result.RowsAffected()
}

// ArchiveStats holds per-status counts for monitoring.
type ArchiveStats struct {
	NotArchived  int64 `json:"not_archived"`
	Queued       int64 `json:"queued"`
	InProgress   int64 `json:"in_progress"`
	Archived     int64 `json:"archived"`
	FailedRetry  int64 `json:"failed_retryable"`
	FailedFinal  int64 `json:"failed_exhausted"`
}

// GetStats returns archival statistics across all media items.
func (r *MediaRepository) GetStats(ctx context.Context) (*ArchiveStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE archive_status = 'not_archived') as not_archived,
			COUNT(*) FILTER (WHERE archive_status IN ('to_be_archived', 'in_update')) as queued,
			COUNT(*) FILTER (WHERE archive_status = 'in_progress') as in_progress,
			COUNT(*) FILTER (WHERE archive_status = 'archived') as archived,
			COUNT(*) FILTER (WHERE archive_status = 'archive_error' AND retry_count < max_retries) as failed_retryable,
			COUNT(*) FILTER (WHERE archive_status = 'archive_error' AND retry_count >= max_retries) as failed_exhausted
		FROM media`

	var stats ArchiveStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.NotArchived,
		&stats.Queued,
		&stats.InProgress,
		&stats.Archived,
		&stats.FailedRetry,
		&stats.FailedFinal,
	)
	if err != nil {
		return nil, fmt.Errorf("get archive stats: %w", err)
	}
	return &stats, nil
}

const initialMediaCapacity = 50

func scanMedia(row rowScanner) (*domain.Media, error) {
	var m domain.Media
	var licenseJSON []byte

	err := row.Scan(
		&m.ID, &m.EntryID, &m.FileName, &m.MimeType, &licenseJSON,
		&m.ArchiveID, &m.ArchiveURI, &m.ArchiveDate, &m.ArchiveStatus,
		&m.ErrorMessage, &m.RetryCount, &m.MaxRetries,
		&m.DateChanged, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(licenseJSON) > 0 {
		if err := json.Unmarshal(licenseJSON, &m.License); err != nil {
			return nil, fmt.Errorf("decode media license: %w", err)
		}
	}
	return &m, nil
}

func scanMediaRows(rows *sql.Rows) ([]domain.Media, error) {
	items := make([]domain.Media, 0, initialMediaCapacity)
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}
