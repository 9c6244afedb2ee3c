package metadata

import (
	"errors"
	"fmt"

	"github.com/openfolio/archivesync/internal/domain"
)

// RoleAdvisorURI is the local vocabulary URI of the advisor role; in the
// thesis profile it translates to the archive's supervisor group.
const RoleAdvisorURI = "https://voc.openfolio.org/roles/advisor"

// ErrMissingRequired is returned by a translation unit when strict
// translation was requested and required local data is absent or malformed.
var ErrMissingRequired = errors.New("required value missing")

// Unit is one independently testable translation step targeting a single
// document field. TranslateData must produce a deterministic, possibly
// empty fragment; it never fails for missing optional data. TranslateErrors
// is the mirror: it rekeys the archive's messages for this field onto the
// local field path.
type Unit interface {
	Key() string
	TranslateData(entry *domain.Entry, doc Document, strict bool) error
	TranslateErrors(msgs []string, verr *domain.ValidationError)
}

// unitBase carries the target key and the local field path the unit's
// errors translate back to.
type unitBase struct {
	key       string
	localPath string
}

func (u unitBase) Key() string { return u.key }

func (u unitBase) TranslateErrors(msgs []string, verr *domain.ValidationError) {
	for _, msg := range msgs {
		verr.Add(u.localPath, msg)
	}
}

// titleUnit translates the entry title and subtitle.
type titleUnit struct{ unitBase }

func newTitleUnit() titleUnit {
	return titleUnit{unitBase{key: KeyTitle, localPath: "title"}}
}

func (u titleUnit) TranslateData(entry *domain.Entry, doc Document, strict bool) error {
	if entry.Title == "" {
		if strict {
			return fmt.Errorf("title: %w", ErrMissingRequired)
		}
		doc.SetGroup(u.key, []any{})
		return nil
	}

	title := map[string]any{
		"@type": "bf:Title",
		"bf:mainTitle": []any{
			map[string]any{"@value": entry.Title, "@language": LangUndetermined},
		},
	}
	if entry.Subtitle != "" {
		title["bf:subtitle"] = []any{
			map[string]any{"@value": entry.Subtitle, "@language": LangUndetermined},
		}
	}
	doc.SetGroup(u.key, []any{title})
	return nil
}

// genreUnit translates the entry type into the genre concept group. An
// entry without a type yields an empty group, not a missing key.
type genreUnit struct{ unitBase }

func newGenreUnit() genreUnit {
	return genreUnit{unitBase{key: KeyGenre, localPath: "type"}}
}

func (u genreUnit) TranslateData(entry *domain.Entry, doc Document, _ bool) error {
	if entry.Type == nil || entry.Type.Source == "" {
		doc.SetGroup(u.key, []any{})
		return nil
	}

	labels := make([]any, 0, len(entry.Type.Labels))
	for lang, label := range entry.Type.Labels {
		labels = append(labels, map[string]any{"@value": label, "@language": LanguageCode(lang)})
	}
	doc.SetGroup(u.key, []any{
		map[string]any{
			"@type":           "skos:Concept",
			"skos:prefLabel":  labels,
			"skos:exactMatch": []any{entry.Type.Source},
		},
	})
	return nil
}

// subjectUnit translates keywords.
type subjectUnit struct{ unitBase }

func newSubjectUnit() subjectUnit {
	return subjectUnit{unitBase{key: KeySubject, localPath: "keywords"}}
}

func (u subjectUnit) TranslateData(entry *domain.Entry, doc Document, _ bool) error {
	subjects := make([]any, 0, len(entry.Keywords))
	for _, kw := range entry.Keywords {
		if kw == "" {
			continue
		}
		subjects = append(subjects, map[string]any{
			"@value": kw, "@language": LangUndetermined,
		})
	}
	doc.SetGroup(u.key, subjects)
	return nil
}

// languageUnit translates the entry language, mapping 2-letter codes to the
// archive's 3-letter codes with the undetermined fallback.
type languageUnit struct{ unitBase }

func newLanguageUnit() languageUnit {
	return languageUnit{unitBase{key: KeyLanguage, localPath: "data.language"}}
}

func (u languageUnit) TranslateData(entry *domain.Entry, doc Document, _ bool) error {
	if entry.Data.Language == "" {
		doc.SetGroup(u.key, []any{})
		return nil
	}
	doc.SetGroup(u.key, []any{LanguageCode(entry.Data.Language)})
	return nil
}

// textsUnit translates typed, language-tagged texts into notes. A text item
// whose language code is unknown is kept under the undetermined marker,
// never dropped.
type textsUnit struct{ unitBase }

func newTextsUnit() textsUnit {
	return textsUnit{unitBase{key: KeyNote, localPath: "texts"}}
}

func (u textsUnit) TranslateData(entry *domain.Entry, doc Document, _ bool) error {
	var notes []any
	for _, text := range entry.Texts {
		noteType := "bf:Note"
		if text.Kind == "abstract" {
			noteType = "bf:Summary"
		}
		for _, item := range text.Items {
			if item.Text == "" {
				continue
			}
			notes = append(notes, map[string]any{
				"@type": noteType,
				"skos:prefLabel": []any{
					map[string]any{
						"@value":    item.Text,
						"@language": LanguageCode(item.Language),
					},
				},
			})
		}
	}
	if notes == nil {
		notes = []any{}
	}
	doc.SetGroup(u.key, notes)
	return nil
}

// spatialUnit translates the location field.
type spatialUnit struct{ unitBase }

func newSpatialUnit() spatialUnit {
	return spatialUnit{unitBase{key: KeySpatial, localPath: "data.location"}}
}

func (u spatialUnit) TranslateData(entry *domain.Entry, doc Document, _ bool) error {
	if entry.Data.Location == "" {
		doc.SetGroup(u.key, []any{})
		return nil
	}
	doc.SetGroup(u.key, []any{
		map[string]any{
			"@type":          "schema:Place",
			"skos:prefLabel": []any{map[string]any{"@value": entry.Data.Location}},
		},
	})
	return nil
}

// urlUnit translates the entry URL.
type urlUnit struct{ unitBase }

func newURLUnit() urlUnit {
	return urlUnit{unitBase{key: KeyURL, localPath: "data.url"}}
}

func (u urlUnit) TranslateData(entry *domain.Entry, doc Document, _ bool) error {
	if entry.Data.URL == "" {
		doc.SetGroup(u.key, []any{})
		return nil
	}
	doc.SetGroup(u.key, []any{entry.Data.URL})
	return nil
}

// authorsUnit translates the static author list.
type authorsUnit struct{ unitBase }

func newAuthorsUnit() authorsUnit {
	return authorsUnit{unitBase{key: RoleKey(RoleAuthor), localPath: "data.authors"}}
}

func (u authorsUnit) TranslateData(entry *domain.Entry, doc Document, _ bool) error {
	persons := make([]any, 0, len(entry.Data.Authors))
	for _, author := range entry.Data.Authors {
		persons = append(persons, Person(author))
	}
	if doc.Group(u.key) == nil {
		doc.SetGroup(u.key, []any{})
	}
	doc.MergePersons(u.key, persons)
	return nil
}

// supervisorUnit translates contributors carrying the advisor role into the
// archive's supervisor group (thesis profile).
type supervisorUnit struct{ unitBase }

func newSupervisorUnit() supervisorUnit {
	return supervisorUnit{unitBase{key: RoleKey(RoleSupervisor), localPath: "data.contributors"}}
}

func (u supervisorUnit) TranslateData(entry *domain.Entry, doc Document, _ bool) error {
	var persons []any
	for _, c := range entry.Data.Contributors {
		for _, role := range c.Roles {
			if role.Source == RoleAdvisorURI {
				persons = append(persons, Person(c))
				break
			}
		}
	}
	if doc.Group(u.key) == nil {
		doc.SetGroup(u.key, []any{})
	}
	doc.MergePersons(u.key, persons)
	return nil
}

// roleResolver narrows concept.Mapping to what dynamic units need.
type roleResolver interface {
	CodesFor(uri string) []string
}

// dynamicRoleUnit translates contributors whose roles resolve to one
// relator code. A contributor whose role maps to several codes appears
// under every matching group; merges never drop earlier entries.
type dynamicRoleUnit struct {
	unitBase
	code    string
	mapping roleResolver
}

func newDynamicRoleUnit(code string, mapping roleResolver) dynamicRoleUnit {
	return dynamicRoleUnit{
		unitBase: unitBase{key: RoleKey(code), localPath: "data.contributors"},
		code:     code,
		mapping:  mapping,
	}
}

func (u dynamicRoleUnit) TranslateData(entry *domain.Entry, doc Document, _ bool) error {
	var persons []any
	for _, c := range entry.AllContributors() {
		for _, role := range c.Roles {
			if u.roleMatches(role.Source) {
				persons = append(persons, Person(c))
				break
			}
		}
	}
	if doc.Group(u.key) == nil {
		doc.SetGroup(u.key, []any{})
	}
	doc.MergePersons(u.key, persons)
	return nil
}

func (u dynamicRoleUnit) roleMatches(roleURI string) bool {
	for _, code := range u.mapping.CodesFor(roleURI) {
		if code == u.code {
			return true
		}
	}
	return false
}
