// Package domain contains the core domain models for the archivesync service.
package domain

import (
	"time"
)

// Concept is a controlled-vocabulary reference: a source URI plus its
// localized labels.
type Concept struct {
	Source string            `db:"source" json:"source"`
	Labels map[string]string `json:"label,omitempty"`
}

// Role is a contributor role, referencing a local vocabulary URI.
type Role struct {
	Source string            `json:"source"`
	Labels map[string]string `json:"label,omitempty"`
}

// Contributor is a person attached to an entry. Source is the contributor's
// identity URI and may be empty for free-text contributors; Label is the
// display name.
type Contributor struct {
	Label  string `json:"label"`
	Source string `json:"source,omitempty"`
	Roles  []Role `json:"roles,omitempty"`
}

// LocalizedText is one language-tagged text fragment.
type LocalizedText struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// Text is a typed group of language-tagged texts, e.g. an abstract in
// several languages.
type Text struct {
	Kind  string          `json:"type"`
	Items []LocalizedText `json:"data"`
}

// EntryData is the free-form, JSON-shaped payload of an entry. Only the
// fields relevant to archival are modeled; unknown keys are dropped on scan.
type EntryData struct {
	Authors      []Contributor `json:"authors,omitempty"`
	Contributors []Contributor `json:"contributors,omitempty"`
	Date         string        `json:"date,omitempty"`
	Location     string        `json:"location,omitempty"`
	URL          string        `json:"url,omitempty"`
	Language     string        `json:"language,omitempty"`
}

// Entry is a local portfolio record representing one creative or academic
// work.
type Entry struct {
	ID       string    `db:"id"        json:"id"`
	OwnerID  string    `db:"owner_id"  json:"owner_id"`
	Title    string    `db:"title"     json:"title"`
	Subtitle string    `db:"subtitle"  json:"subtitle,omitempty"`
	Type     *Concept  `json:"type,omitempty"`
	Data     EntryData `json:"data"`
	Texts    []Text    `json:"texts,omitempty"`
	Keywords []string  `json:"keywords,omitempty"`

	ArchiveID   *string    `db:"archive_id"   json:"archive_id,omitempty"`
	ArchiveURI  *string    `db:"archive_uri"  json:"archive_uri,omitempty"`
	ArchiveDate *time.Time `db:"archive_date" json:"archive_date,omitempty"`

	DateChanged time.Time `db:"date_changed" json:"date_changed"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

// Archived reports whether the entry has ever been pushed to the archive.
func (e *Entry) Archived() bool {
	return e.ArchiveID != nil && *e.ArchiveID != ""
}

// AllContributors returns authors and contributors as one list, authors
// first.
func (e *Entry) AllContributors() []Contributor {
	out := make([]Contributor, 0, len(e.Data.Authors)+len(e.Data.Contributors))
	out = append(out, e.Data.Authors...)
	out = append(out, e.Data.Contributors...)
	return out
}

// ContributorRoleURIs returns the deduplicated set of role URIs used by the
// entry's contributors, in first-seen order.
func (e *Entry) ContributorRoleURIs() []string {
	seen := make(map[string]struct{})
	var uris []string
	for _, c := range e.AllContributors() {
		for _, r := range c.Roles {
			if r.Source == "" {
				continue
			}
			if _, ok := seen[r.Source]; ok {
				continue
			}
			seen[r.Source] = struct{}{}
			uris = append(uris, r.Source)
		}
	}
	return uris
}
