package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/archivesync/internal/database"
	"github.com/openfolio/archivesync/internal/domain"
)

var entryColumns = []string{
	"id", "owner_id", "title", "subtitle", "type", "data", "texts", "keywords",
	"archive_id", "archive_uri", "archive_date", "date_changed", "created_at",
}

func newEntryRepo(t *testing.T) (*database.EntryRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return database.NewEntryRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestEntryGetByID_DecodesJSONColumns(t *testing.T) {
	t.Helper()

	repo, mock := newEntryRepo(t)
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM entries WHERE id").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(entryColumns).AddRow(
			"e1", "owner-1", "Field Recordings", "Vol. 2",
			[]byte(`{"source":"https://voc.openfolio.org/types/thesis"}`),
			[]byte(`{"language":"de"}`),
			[]byte(`[{"type":"abstract","data":[{"language":"de","text":"Kurzfassung"}]}]`),
			`{sound,archive}`,
			nil, nil, nil, now, now,
		))

	entry, err := repo.GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Field Recordings", entry.Title)
	require.NotNil(t, entry.Type)
	assert.Equal(t, "https://voc.openfolio.org/types/thesis", entry.Type.Source)
	assert.Equal(t, "de", entry.Data.Language)
	require.Len(t, entry.Texts, 1)
	assert.Equal(t, []string{"sound", "archive"}, entry.Keywords)
	assert.False(t, entry.Archived())
}

func TestEntryGetByID_NotFound(t *testing.T) {
	t.Helper()

	repo, mock := newEntryRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM entries WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(entryColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetArchived_WritesIdentifiers(t *testing.T) {
	t.Helper()

	repo, mock := newEntryRepo(t)
	archivedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE entries").
		WithArgs("e1", "o:100", "https://archive.example.org/detail/o:100", archivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetArchived(context.Background(), "e1", "o:100",
		"https://archive.example.org/detail/o:100", archivedAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetArchived_MissingEntry(t *testing.T) {
	t.Helper()

	repo, mock := newEntryRepo(t)
	mock.ExpectExec("UPDATE entries").
		WithArgs("missing", "o:100", "https://archive.example.org/detail/o:100", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetArchived(context.Background(), "missing", "o:100",
		"https://archive.example.org/detail/o:100", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
