// Package concept resolves local role URIs to the archive's relator codes.
package concept

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfolio/archivesync/internal/domain"
)

// RelatorPrefix is the URI prefix of the library relator vocabulary
// recognized by the archive.
const RelatorPrefix = "http://id.loc.gov/vocabulary/relators/"

// Lookup fetches a concept's same-as equivalent URIs.
type Lookup interface {
	SameAs(ctx context.Context, uri string) ([]string, error)
}

// Mapping is the resolved table from local role URIs to archive relator
// codes for one archival attempt. It is read-only for translation code; new
// URIs are added through AddURI/AddURIs before translation starts. Not
// persisted: the upstream vocabulary may change between attempts.
type Mapping struct {
	lookup Lookup
	codes  map[string][]string // role URI -> relator codes
	order  []string            // role URIs in insertion order
}

// BuildMapping resolves every role URI used by the entry's contributors.
// A lookup failure for any URI fails the whole build: dropping a role here
// would silently drop a contributor from the archived record.
func BuildMapping(ctx context.Context, lookup Lookup, entry *domain.Entry) (*Mapping, error) {
	m := &Mapping{
		lookup: lookup,
		codes:  make(map[string][]string),
	}
	if err := m.AddURIs(ctx, entry.ContributorRoleURIs()...); err != nil {
		return nil, err
	}
	return m, nil
}

// AddURI resolves one role URI and records its relator codes. Adding a URI
// that is already mapped is a no-op.
func (m *Mapping) AddURI(ctx context.Context, uri string) error {
	if uri == "" {
		return nil
	}
	if _, ok := m.codes[uri]; ok {
		return nil
	}

	sameAs, err := m.lookup.SameAs(ctx, uri)
	if err != nil {
		return fmt.Errorf("resolve role %q: %w", uri, err)
	}

	m.codes[uri] = relatorCodes(sameAs)
	m.order = append(m.order, uri)
	return nil
}

// AddURIs resolves a set of role URIs, idempotently.
func (m *Mapping) AddURIs(ctx context.Context, uris ...string) error {
	for _, uri := range uris {
		if err := m.AddURI(ctx, uri); err != nil {
			return err
		}
	}
	return nil
}

// CodesFor returns the relator codes mapped to a role URI. Unknown URIs
// yield an empty slice.
func (m *Mapping) CodesFor(uri string) []string {
	return m.codes[uri]
}

// URIsFor returns the role URIs that map to a relator code.
func (m *Mapping) URIsFor(code string) []string {
	var uris []string
	for _, uri := range m.order {
		for _, c := range m.codes[uri] {
			if c == code {
				uris = append(uris, uri)
				break
			}
		}
	}
	return uris
}

// AllCodes returns the deduplicated set of relator codes in first-seen
// order.
func (m *Mapping) AllCodes() []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, uri := range m.order {
		for _, c := range m.codes[uri] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			codes = append(codes, c)
		}
	}
	return codes
}

// Len returns the number of mapped role URIs.
func (m *Mapping) Len() int {
	return len(m.codes)
}

// relatorCodes filters same-as URIs down to relator codes recognized by the
// archive.
func relatorCodes(sameAs []string) []string {
	var codes []string
	for _, uri := range sameAs {
		if rest, ok := strings.CutPrefix(uri, RelatorPrefix); ok && rest != "" {
			codes = append(codes, rest)
		}
	}
	if codes == nil {
		codes = []string{}
	}
	return codes
}
