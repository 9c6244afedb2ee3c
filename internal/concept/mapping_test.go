package concept_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/archivesync/internal/concept"
	"github.com/openfolio/archivesync/internal/domain"
)

type fakeLookup struct {
	sameAs map[string][]string
	err    error
	calls  int
}

func (f *fakeLookup) SameAs(_ context.Context, uri string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sameAs[uri], nil
}

func TestBuildMapping_ResolvesContributorRoles(t *testing.T) {
	t.Helper()

	lookup := &fakeLookup{sameAs: map[string][]string{
		"https://voc.openfolio.org/roles/director": {
			"http://id.loc.gov/vocabulary/relators/drt",
			"https://www.wikidata.org/wiki/Q3455803",
		},
		"https://voc.openfolio.org/roles/editor": {
			"http://id.loc.gov/vocabulary/relators/edt",
		},
	}}

	entry := &domain.Entry{
		Data: domain.EntryData{
			Contributors: []domain.Contributor{
				{Label: "A", Roles: []domain.Role{{Source: "https://voc.openfolio.org/roles/director"}}},
				{Label: "B", Roles: []domain.Role{{Source: "https://voc.openfolio.org/roles/editor"}}},
			},
		},
	}

	m, err := concept.BuildMapping(context.Background(), lookup, entry)
	require.NoError(t, err)

	// Non-relator same-as URIs are filtered out.
	assert.Equal(t, []string{"drt"}, m.CodesFor("https://voc.openfolio.org/roles/director"))
	assert.Equal(t, []string{"drt", "edt"}, m.AllCodes())
	assert.Equal(t, 2, m.Len())
}

func TestAddURI_IdempotentPerURI(t *testing.T) {
	t.Helper()

	lookup := &fakeLookup{sameAs: map[string][]string{
		"https://voc.openfolio.org/roles/editor": {"http://id.loc.gov/vocabulary/relators/edt"},
	}}

	m, err := concept.BuildMapping(context.Background(), lookup, &domain.Entry{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.AddURI(ctx, "https://voc.openfolio.org/roles/editor"))
	require.NoError(t, m.AddURI(ctx, "https://voc.openfolio.org/roles/editor"))

	assert.Equal(t, 1, lookup.calls)
	assert.Equal(t, []string{"edt"}, m.AllCodes())
}

func TestAddURI_LookupFailureFailsTheBuild(t *testing.T) {
	t.Helper()

	lookupErr := errors.New("vocabulary unreachable")
	lookup := &fakeLookup{err: lookupErr}

	entry := &domain.Entry{
		Data: domain.EntryData{
			Authors: []domain.Contributor{
				{Label: "A", Roles: []domain.Role{{Source: "https://voc.openfolio.org/roles/author"}}},
			},
		},
	}

	_, err := concept.BuildMapping(context.Background(), lookup, entry)
	assert.ErrorIs(t, err, lookupErr)
}

func TestMapping_UnmappedRoleYieldsEmptyCodes(t *testing.T) {
	t.Helper()

	lookup := &fakeLookup{sameAs: map[string][]string{
		"https://voc.openfolio.org/roles/performer": {
			"https://www.wikidata.org/wiki/Q2259451", // no relator equivalent
		},
	}}

	m, err := concept.BuildMapping(context.Background(), lookup, &domain.Entry{
		Data: domain.EntryData{
			Contributors: []domain.Contributor{
				{Label: "P", Roles: []domain.Role{{Source: "https://voc.openfolio.org/roles/performer"}}},
			},
		},
	})
	require.NoError(t, err)

	// Known URI, but it resolves to no relator code; the group simply
	// never materializes.
	assert.Empty(t, m.CodesFor("https://voc.openfolio.org/roles/performer"))
	assert.Empty(t, m.AllCodes())
	assert.Equal(t, 1, m.Len())
}

func TestURIsFor_ReverseLookup(t *testing.T) {
	t.Helper()

	lookup := &fakeLookup{sameAs: map[string][]string{
		"https://voc.openfolio.org/roles/photographer": {"http://id.loc.gov/vocabulary/relators/pht"},
		"https://voc.openfolio.org/roles/camera":       {"http://id.loc.gov/vocabulary/relators/pht"},
	}}

	m, err := concept.BuildMapping(context.Background(), lookup, &domain.Entry{})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, m.AddURIs(ctx,
		"https://voc.openfolio.org/roles/photographer",
		"https://voc.openfolio.org/roles/camera",
	))

	assert.Equal(t, []string{
		"https://voc.openfolio.org/roles/photographer",
		"https://voc.openfolio.org/roles/camera",
	}, m.URIsFor("pht"))
	assert.Equal(t, []string{"pht"}, m.AllCodes())
}
