package archiver_test

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/archivesync/internal/archiver"
	"github.com/openfolio/archivesync/internal/database"
	"github.com/openfolio/archivesync/internal/domain"
)

var mediaColumns = []string{
	"id", "entry_id", "file_name", "mime_type", "license",
	"archive_id", "archive_uri", "archive_date", "archive_status",
	"error_message", "retry_count", "max_retries",
	"date_changed", "created_at", "updated_at",
}

// fakeInflight serves job intents from a fixed map.
type fakeInflight struct {
	intents map[string]time.Time
}

func (f *fakeInflight) IntendedArchiveDate(_ context.Context, mediaID string) (*time.Time, error) {
	if intent, ok := f.intents[mediaID]; ok {
		return &intent, nil
	}
	return nil, nil
}

func newMockRepo(t *testing.T) (*database.MediaRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewMediaRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func mediaRow(id string, status domain.ArchiveStatus, archiveDate *time.Time, dateChanged time.Time) []driverValue {
	var archiveID any
	if status == domain.StatusArchived || archiveDate != nil {
		archiveID = "o:" + id
	}
	var archDate any
	if archiveDate != nil {
		archDate = *archiveDate
	}
	now := time.Now()
	return []driverValue{
		id, "e1", id + ".pdf", "application/pdf", nil,
		archiveID, nil, archDate, string(status),
		nil, 0, 5,
		dateChanged, now, now,
	}
}

type driverValue = driver.Value

func expectListByEntry(mock sqlmock.Sqlmock, rows ...[]driverValue) {
	result := sqlmock.NewRows(mediaColumns)
	for _, r := range rows {
		result.AddRow(r...)
	}
	mock.ExpectQuery("SELECT (.+) FROM media WHERE entry_id").
		WithArgs("e1").
		WillReturnRows(result)
}

func archivedEntry(archiveDate, dateChanged time.Time) *domain.Entry {
	pid := "o:100"
	return &domain.Entry{
		ID:          "e1",
		ArchiveID:   &pid,
		ArchiveDate: &archiveDate,
		DateChanged: dateChanged,
	}
}

func TestHasChanged_NeverArchivedIsIndeterminate(t *testing.T) {
	t.Helper()

	repo, _ := newMockRepo(t)
	r := archiver.NewReconciler(repo, &fakeInflight{})

	changed, err := r.HasChanged(context.Background(), &domain.Entry{ID: "e1"}, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, changed)
}

func TestHasChanged_EntryThresholds(t *testing.T) {
	t.Helper()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		dateChanged time.Time
		threshold   time.Duration
		wantChanged bool // true means short-circuit without touching media
	}{
		{
			name:        "changed one second after archival",
			dateChanged: base.Add(1 * time.Second),
			threshold:   0,
			wantChanged: true,
		},
		{
			name:        "change within threshold is absorbed",
			dateChanged: base.Add(1 * time.Second),
			threshold:   2 * time.Second,
			wantChanged: false,
		},
		{
			name:        "changed before archival",
			dateChanged: base.Add(-1 * time.Second),
			threshold:   0,
			wantChanged: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			r := archiver.NewReconciler(repo, &fakeInflight{})

			if !tc.wantChanged {
				expectListByEntry(mock) // no media
			}

			changed, err := r.HasChanged(context.Background(), archivedEntry(base, tc.dateChanged), tc.threshold, 0)
			require.NoError(t, err)
			require.NotNil(t, changed)
			assert.Equal(t, tc.wantChanged, *changed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHasChanged_ArchivedMediaDiverged(t *testing.T) {
	t.Helper()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mediaArchived := base.Add(-time.Hour)

	repo, mock := newMockRepo(t)
	expectListByEntry(mock,
		mediaRow("m1", domain.StatusArchived, &mediaArchived, mediaArchived.Add(time.Minute)),
	)

	r := archiver.NewReconciler(repo, &fakeInflight{})
	changed, err := r.HasChanged(context.Background(), archivedEntry(base, base.Add(-time.Minute)), 0, 0)
	require.NoError(t, err)
	require.NotNil(t, changed)
	assert.True(t, *changed)
}

func TestHasChanged_PendingMediaWithoutIntentIsIndeterminate(t *testing.T) {
	t.Helper()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	repo, mock := newMockRepo(t)
	expectListByEntry(mock,
		mediaRow("m1", domain.StatusToBeArchived, nil, base),
	)

	r := archiver.NewReconciler(repo, &fakeInflight{})
	changed, err := r.HasChanged(context.Background(), archivedEntry(base, base.Add(-time.Minute)), 0, 0)
	require.NoError(t, err)
	assert.Nil(t, changed)
}

func TestHasChanged_PendingMediaComparedAgainstJobIntent(t *testing.T) {
	t.Helper()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		intent      time.Time
		dateChanged time.Time
		want        bool
	}{
		{
			name:        "job intent covers the change",
			intent:      base,
			dateChanged: base.Add(-time.Second),
			want:        false,
		},
		{
			name:        "changed after job intent",
			intent:      base,
			dateChanged: base.Add(time.Second),
			want:        true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			expectListByEntry(mock,
				mediaRow("m1", domain.StatusInUpdate, nil, tc.dateChanged),
			)

			inflight := &fakeInflight{intents: map[string]time.Time{"m1": tc.intent}}
			r := archiver.NewReconciler(repo, inflight)

			changed, err := r.HasChanged(context.Background(), archivedEntry(base, base.Add(-time.Minute)), 0, 0)
			require.NoError(t, err)
			require.NotNil(t, changed)
			assert.Equal(t, tc.want, *changed)
		})
	}
}

func TestHasChanged_UnarchivedMediaDoesNotCount(t *testing.T) {
	t.Helper()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	repo, mock := newMockRepo(t)
	expectListByEntry(mock,
		mediaRow("m1", domain.StatusNotArchived, nil, base.Add(time.Hour)),
	)

	r := archiver.NewReconciler(repo, &fakeInflight{})
	changed, err := r.HasChanged(context.Background(), archivedEntry(base, base.Add(-time.Minute)), 0, 0)
	require.NoError(t, err)
	require.NotNil(t, changed)
	assert.False(t, *changed)
}
