package vocabulary_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/archivesync/internal/config"
	"github.com/openfolio/archivesync/internal/logger"
	"github.com/openfolio/archivesync/internal/vocabulary"
)

func newTestClient(t *testing.T, handler http.Handler) *vocabulary.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := vocabulary.NewClient(&config.VocabularyConfig{
		URL:       server.URL,
		Timeout:   2 * time.Second,
		CacheSize: 16,
	}, logger.NewNopLogger())
	require.NoError(t, err)
	return client
}

func TestSameAs_FetchesAndCaches(t *testing.T) {
	t.Helper()

	requests := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/api/v1/concepts", r.URL.Path)
		assert.Equal(t, "https://voc.openfolio.org/roles/director", r.URL.Query().Get("uri"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"concept": map[string]any{
				"uri":     r.URL.Query().Get("uri"),
				"same_as": []string{"http://id.loc.gov/vocabulary/relators/drt"},
			},
		})
	}))

	ctx := context.Background()
	uri := "https://voc.openfolio.org/roles/director"

	sameAs, err := client.SameAs(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://id.loc.gov/vocabulary/relators/drt"}, sameAs)

	// Second lookup is served from cache.
	_, err = client.SameAs(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestSameAs_EmptySameAsIsNotAnError(t *testing.T) {
	t.Helper()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"concept": map[string]any{"uri": r.URL.Query().Get("uri")},
		})
	}))

	sameAs, err := client.SameAs(context.Background(), "https://voc.openfolio.org/roles/performer")
	require.NoError(t, err)
	assert.NotNil(t, sameAs)
	assert.Empty(t, sameAs)
}

func TestSameAs_UpstreamErrorIsReturnedNotSwallowed(t *testing.T) {
	t.Helper()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.SameAs(context.Background(), "https://voc.openfolio.org/roles/director")
	assert.Error(t, err)
}

func TestSameAs_FailedLookupIsNotCached(t *testing.T) {
	t.Helper()

	requests := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"concept": map[string]any{
				"uri":     r.URL.Query().Get("uri"),
				"same_as": []string{"http://id.loc.gov/vocabulary/relators/edt"},
			},
		})
	}))

	ctx := context.Background()
	uri := "https://voc.openfolio.org/roles/editor"

	_, err := client.SameAs(ctx, uri)
	require.Error(t, err)

	sameAs, err := client.SameAs(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://id.loc.gov/vocabulary/relators/edt"}, sameAs)
	assert.Equal(t, 2, requests)
}
