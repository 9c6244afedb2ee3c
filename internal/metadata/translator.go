package metadata

import (
	"fmt"
	"sort"

	"github.com/openfolio/archivesync/internal/concept"
	"github.com/openfolio/archivesync/internal/domain"
)

// Translator composes translation units for one profile and one concept
// mapping, valid for a single archival attempt. Profile differences are
// expressed by swapping entries in the unit list, not by inheritance.
type Translator struct {
	profile Profile
	units   []Unit
	byKey   map[string]Unit
}

// NewTranslator builds the unit list for a profile. Dynamic role units are
// appended for every relator code in the mapping unless that code is
// already covered by a static unit, so a static rule is never overridden by
// a dynamically discovered one.
func NewTranslator(profile Profile, mapping *concept.Mapping) *Translator {
	units := []Unit{
		newTitleUnit(),
		newGenreUnit(),
		newSubjectUnit(),
		newLanguageUnit(),
		newTextsUnit(),
		newSpatialUnit(),
		newURLUnit(),
		newAuthorsUnit(),
	}
	if profile == ProfileThesis {
		units = append(units, newSupervisorUnit())
	}

	static := make(map[string]struct{}, len(units))
	for _, u := range units {
		static[u.Key()] = struct{}{}
	}

	if mapping != nil {
		for _, code := range mapping.AllCodes() {
			if _, ok := static[RoleKey(code)]; ok {
				continue
			}
			units = append(units, newDynamicRoleUnit(code, mapping))
		}
	}

	byKey := make(map[string]Unit, len(units))
	for _, u := range units {
		byKey[u.Key()] = u
	}

	return &Translator{profile: profile, units: units, byKey: byKey}
}

// Profile returns the profile this translator was built for.
func (t *Translator) Profile() Profile {
	return t.profile
}

// Keys returns the document keys of all units in translation order.
func (t *Translator) Keys() []string {
	keys := make([]string, 0, len(t.units))
	for _, u := range t.units {
		keys = append(keys, u.Key())
	}
	return keys
}

// TranslateData maps an entry to the archive document. With strict set,
// units may fail on malformed required data; otherwise missing data yields
// empty groups.
func (t *Translator) TranslateData(entry *domain.Entry, strict bool) (Document, error) {
	doc := make(Document, len(t.units))
	for _, u := range t.units {
		if err := u.TranslateData(entry, doc, strict); err != nil {
			return nil, fmt.Errorf("translate %s: %w", u.Key(), err)
		}
	}
	return doc, nil
}

// TranslateErrors maps archive validation errors, keyed by document field,
// back to local field paths. Consumers of the result never see
// archive-internal key names. An error key no unit knows is an internal
// translation error, not a user-facing validation error.
func (t *Translator) TranslateErrors(archiveErrs map[string][]string) (*domain.ValidationError, error) {
	verr := domain.NewValidationError()

	var unknown []string
	for key, msgs := range archiveErrs {
		unit, ok := t.byKey[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		unit.TranslateErrors(msgs, verr)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unhandled error keys %v", domain.ErrBadTranslation, unknown)
	}

	return verr, nil
}

// TranslateMedia maps a media item to its member document.
func TranslateMedia(media *domain.Media, entry *domain.Entry) Document {
	doc := make(Document)

	name := media.FileName
	doc.SetGroup(KeyTitle, []any{
		map[string]any{
			"@type": "bf:Title",
			"bf:mainTitle": []any{
				map[string]any{"@value": name, "@language": LangUndetermined},
			},
		},
	})
	doc.SetGroup(KeyMimeType, []any{media.MimeType})

	if media.License != nil && media.License.Source != "" {
		doc.SetGroup(KeyLicense, []any{media.License.Source})
	} else {
		doc.SetGroup(KeyLicense, []any{})
	}

	// Members inherit the container language so archive-side search groups
	// them with their entry.
	if entry != nil && entry.Data.Language != "" {
		doc.SetGroup(KeyLanguage, []any{LanguageCode(entry.Data.Language)})
	}

	return doc
}
