package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/openfolio/archivesync/internal/domain"
	"github.com/openfolio/archivesync/internal/phaidra"
)

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestHandleArchiveError_StatusMapping(t *testing.T) {
	t.Helper()

	verr := domain.NewValidationError()
	verr.Add("title", "title is required")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"validation", verr, http.StatusUnprocessableEntity, "title is required"},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "Entry not found"},
		{"not owner", domain.ErrNotOwner, http.StatusForbidden, "Not the owner"},
		{"container missing", domain.ErrContainerNotArchived, http.StatusInternalServerError, "no archived container"},
		{"archive auth", phaidra.ErrAuthFailed, http.StatusBadGateway, "Archive backend"},
		{"archive down", phaidra.ErrUnavailable, http.StatusBadGateway, "Archive backend"},
		{"empty pid", phaidra.ErrEmptyPID, http.StatusBadGateway, "Archive backend"},
		{"wrapped", errors.New("disk full"), http.StatusInternalServerError, "Archival operation failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := testContext(t)
			handleArchiveError(c, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
		})
	}
}

func TestHandleArchiveError_DoesNotLeakArchiveDetails(t *testing.T) {
	t.Helper()

	c, rec := testContext(t)
	handleArchiveError(c, errors.New("basic auth archiver:hunter2 rejected"))

	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestParseUUID(t *testing.T) {
	t.Helper()

	c, rec := testContext(t)
	c.Params = gin.Params{{Key: "id", Value: "b1a2c3d4-e5f6-4789-9abc-def012345678"}}

	id, ok := parseUUID(c, "id", "entry")
	assert.True(t, ok)
	assert.Equal(t, "b1a2c3d4-e5f6-4789-9abc-def012345678", id)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseUUID_Invalid(t *testing.T) {
	t.Helper()

	c, rec := testContext(t)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	_, ok := parseUUID(c, "id", "entry")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid entry ID format")
}

func TestParseThreshold(t *testing.T) {
	t.Helper()

	tests := []struct {
		name    string
		query   string
		want    time.Duration
		wantOK  bool
	}{
		{"absent", "", 0, true},
		{"valid", "entry_threshold=30s", 30 * time.Second, true},
		{"negative", "entry_threshold=-5s", 0, false},
		{"garbage", "entry_threshold=soon", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := testContext(t)
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)

			got, ok := parseThreshold(c, "entry_threshold")
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
			if !tc.wantOK {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			}
		})
	}
}
