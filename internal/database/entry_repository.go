package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openfolio/archivesync/internal/domain"
)

// entrySelectList is the column list for SELECT on entries (single source
// for schema changes).
const entrySelectList = `id, owner_id, title, subtitle, type, data, texts, keywords,
			archive_id, archive_uri, archive_date, date_changed, created_at`

// EntryRepository manages entry rows in PostgreSQL.
type EntryRepository struct {
	db *sqlx.DB
}

// NewEntryRepository creates a new repository.
func NewEntryRepository(db *sqlx.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// GetByID retrieves an entry by ID.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	query := `SELECT ` + entrySelectList + ` FROM entries WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// SetArchived records a successful container push. The archive id is only
// written on first success; subsequent pushes update uri and date only.
func (r *EntryRepository) SetArchived(ctx context.Context, id, pid, uri string, archivedAt time.Time) error {
	query := `
		UPDATE entries
		SET archive_id = COALESCE(archive_id, $2),
		    archive_uri = $3,
		    archive_date = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, pid, uri, archivedAt)
	if err != nil {
		return fmt.Errorf("set archived: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.Entry, error) {
	var e domain.Entry
	var typeJSON, dataJSON, textsJSON []byte
	var keywords pq.StringArray

	err := row.Scan(
		&e.ID, &e.OwnerID, &e.Title, &e.Subtitle, &typeJSON, &dataJSON, &textsJSON, &keywords,
		&e.ArchiveID, &e.ArchiveURI, &e.ArchiveDate, &e.DateChanged, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Keywords = keywords
	if len(typeJSON) > 0 {
		if err := json.Unmarshal(typeJSON, &e.Type); err != nil {
			return nil, fmt.Errorf("decode entry type: %w", err)
		}
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
			return nil, fmt.Errorf("decode entry data: %w", err)
		}
	}
	if len(textsJSON) > 0 {
		if err := json.Unmarshal(textsJSON, &e.Texts); err != nil {
			return nil, fmt.Errorf("decode entry texts: %w", err)
		}
	}
	return &e, nil
}
