// Package metadata translates entries and media items into the archive's
// role-keyed metadata representation, and archive validation errors back
// into local field paths.
package metadata

import (
	"github.com/openfolio/archivesync/internal/domain"
)

// Archive document field keys. The archive speaks a JSON-LD-shaped
// vocabulary; contributor groups are keyed by relator code under the
// RolePrefix.
const (
	KeyTitle    = "dce:title"
	KeyGenre    = "edm:hasType"
	KeySubject  = "dce:subject"
	KeyLanguage = "dcterms:language"
	KeyNote     = "bf:note"
	KeySpatial  = "dcterms:spatial"
	KeyURL      = "schema:url"
	KeyLicense  = "edm:rights"
	KeyMimeType = "ebucore:hasMimeType"

	RolePrefix = "role:"

	// RoleAuthor and RoleSupervisor are the relator codes of the statically
	// translated contributor roles.
	RoleAuthor     = "aut"
	RoleSupervisor = "ths"
)

// RoleKey returns the document key of a relator code's contributor group.
func RoleKey(code string) string {
	return RolePrefix + code
}

// Profile names a set of translation and validation rules.
type Profile string

const (
	ProfileDefault Profile = "default"
	ProfileThesis  Profile = "thesis"
)

// TypeThesisURI is the local vocabulary URI of the thesis entry type.
const TypeThesisURI = "https://voc.openfolio.org/types/thesis"

// ProfileFor selects the metadata profile for an entry based on its type
// concept.
func ProfileFor(entry *domain.Entry) Profile {
	if entry.Type != nil && entry.Type.Source == TypeThesisURI {
		return ProfileThesis
	}
	return ProfileDefault
}

// Document is the archive-side metadata representation. Every value is a
// repeated group ([]any) so that translation units can merge into existing
// groups without overwriting them.
type Document map[string]any

// Group returns the repeated group stored under key, or nil.
func (d Document) Group(key string) []any {
	group, _ := d[key].([]any)
	return group
}

// SetGroup stores a repeated group under key, replacing any previous value.
func (d Document) SetGroup(key string, group []any) {
	d[key] = group
}

// MergePersons adds persons to the group under key without dropping entries
// supplied by earlier merges. Adding a person already present in the group
// is a no-op, so a contributor reached through two role URIs mapping to the
// same relator code appears exactly once.
func (d Document) MergePersons(key string, persons []any) {
	group := d.Group(key)
	for _, p := range persons {
		if !containsPerson(group, p) {
			group = append(group, p)
		}
	}
	d.SetGroup(key, group)
}

// Person builds the archive's person object for a contributor. Free-text
// contributors with no resolvable identity still translate into a minimal
// person carrying only a display name.
func Person(c domain.Contributor) map[string]any {
	p := map[string]any{
		"@type": "schema:Person",
		"schema:name": []any{
			map[string]any{"@value": c.Label},
		},
	}
	if c.Source != "" {
		p["skos:exactMatch"] = []any{
			map[string]any{"@value": c.Source, "@type": "ids:uri"},
		}
	}
	return p
}

func containsPerson(group []any, person any) bool {
	pm, ok := person.(map[string]any)
	if !ok {
		return false
	}
	for _, g := range group {
		gm, ok := g.(map[string]any)
		if !ok {
			continue
		}
		if personIdentity(gm) == personIdentity(pm) {
			return true
		}
	}
	return false
}

// personIdentity derives a comparison key from a person object: the
// identity URI when present, the display name otherwise.
func personIdentity(p map[string]any) string {
	if matches, ok := p["skos:exactMatch"].([]any); ok && len(matches) > 0 {
		if m, ok := matches[0].(map[string]any); ok {
			if v, ok := m["@value"].(string); ok && v != "" {
				return "uri:" + v
			}
		}
	}
	if names, ok := p["schema:name"].([]any); ok && len(names) > 0 {
		if n, ok := names[0].(map[string]any); ok {
			if v, ok := n["@value"].(string); ok {
				return "name:" + v
			}
		}
	}
	return ""
}
