package schema

import (
	"context"
	"fmt"

	"github.com/openfolio/archivesync/internal/concept"
	"github.com/openfolio/archivesync/internal/metadata"
)

// Build constructs the validation schema for one archival attempt. Static
// profile fields are registered first; then the concept mapping is extended
// with the profile's must-use roles, and one optional repeated-person field
// is added per relator code not already statically defined.
func Build(ctx context.Context, profile metadata.Profile, mapping *concept.Mapping) (*Schema, error) {
	s := New()

	switch profile {
	case metadata.ProfileThesis:
		addThesisFields(s)
	default:
		addDefaultFields(s)
	}

	if mapping != nil {
		if err := mapping.AddURIs(ctx, mustUseRoles(profile)...); err != nil {
			return nil, fmt.Errorf("extend mapping with must-use roles: %w", err)
		}
		for _, code := range mapping.AllCodes() {
			s.AddField(Field{
				Key:      metadata.RoleKey(code),
				Validate: validPersonGroup,
			})
		}
	}

	return s, nil
}

// mustUseRoles lists role URIs a profile's schema always carries, whether
// or not the entry currently uses them.
func mustUseRoles(profile metadata.Profile) []string {
	if profile == metadata.ProfileThesis {
		return []string{metadata.RoleAdvisorURI}
	}
	return nil
}

// addDefaultFields registers the Default profile: a title is mandatory, the
// genre concept is checked only when present.
func addDefaultFields(s *Schema) {
	s.AddField(Field{Key: metadata.KeyTitle, Required: true, Validate: validTitleGroup})
	s.AddField(Field{Key: metadata.KeyGenre, Validate: validConceptGroup})
	s.AddField(Field{Key: metadata.KeySubject})
	s.AddField(Field{Key: metadata.KeyLanguage})
	s.AddField(Field{Key: metadata.KeyNote})
	s.AddField(Field{Key: metadata.KeySpatial})
	s.AddField(Field{Key: metadata.KeyURL})
	s.AddField(Field{Key: metadata.RoleKey(metadata.RoleAuthor), Validate: validPersonGroup})
}

// addThesisFields registers the Thesis profile: everything the Default
// profile requires plus at least one author, at least one supervisor, a
// recognized language, and English and German abstracts.
func addThesisFields(s *Schema) {
	s.AddField(Field{Key: metadata.KeyTitle, Required: true, Validate: validTitleGroup})
	s.AddField(Field{Key: metadata.KeyGenre, Validate: validConceptGroup})
	s.AddField(Field{Key: metadata.KeySubject})
	s.AddField(Field{Key: metadata.KeyLanguage, Required: true, Validate: thesisLanguage})
	s.AddField(Field{Key: metadata.KeyNote, Validate: thesisAbstracts})
	s.AddField(Field{Key: metadata.KeySpatial})
	s.AddField(Field{Key: metadata.KeyURL})
	s.AddField(Field{
		Key:      metadata.RoleKey(metadata.RoleAuthor),
		Validate: requiredPersonGroup("at least one author is required"),
	})
	s.AddField(Field{
		Key:      metadata.RoleKey(metadata.RoleSupervisor),
		Validate: requiredPersonGroup("at least one supervisor is required"),
	})
}

func validTitleGroup(group []any) []string {
	var msgs []string
	for _, item := range group {
		title, ok := item.(map[string]any)
		if !ok {
			msgs = append(msgs, "malformed title")
			continue
		}
		if !hasNonEmptyValue(title["bf:mainTitle"]) {
			msgs = append(msgs, "main title must not be empty")
		}
	}
	return msgs
}

func validConceptGroup(group []any) []string {
	var msgs []string
	for _, item := range group {
		c, ok := item.(map[string]any)
		if !ok {
			msgs = append(msgs, "malformed concept")
			continue
		}
		matches, _ := c["skos:exactMatch"].([]any)
		if len(matches) == 0 {
			msgs = append(msgs, "concept must carry a source URI")
		}
	}
	return msgs
}

func validPersonGroup(group []any) []string {
	var msgs []string
	for _, item := range group {
		p, ok := item.(map[string]any)
		if !ok {
			msgs = append(msgs, "malformed person")
			continue
		}
		if !hasNonEmptyValue(p["schema:name"]) {
			msgs = append(msgs, "person must carry a name")
		}
	}
	return msgs
}

// requiredPersonGroup validates person shape and demands at least one
// member with the given message.
func requiredPersonGroup(msg string) Validator {
	return func(group []any) []string {
		if len(group) == 0 {
			return []string{msg}
		}
		return validPersonGroup(group)
	}
}

func thesisLanguage(group []any) []string {
	var msgs []string
	for _, item := range group {
		code, ok := item.(string)
		if !ok || !metadata.RecognizedLanguageCode(code) {
			msgs = append(msgs, "language is not recognized")
		}
	}
	return msgs
}

// thesisAbstracts demands at least one English and one German abstract.
func thesisAbstracts(group []any) []string {
	var hasEnglish, hasGerman bool
	for _, item := range group {
		note, ok := item.(map[string]any)
		if !ok || note["@type"] != "bf:Summary" {
			continue
		}
		switch noteLanguage(note) {
		case "eng":
			hasEnglish = true
		case "ger":
			hasGerman = true
		}
	}

	var msgs []string
	if !hasEnglish {
		msgs = append(msgs, "missing English abstract")
	}
	if !hasGerman {
		msgs = append(msgs, "missing German abstract")
	}
	return msgs
}

func noteLanguage(note map[string]any) string {
	labels, _ := note["skos:prefLabel"].([]any)
	for _, l := range labels {
		if label, ok := l.(map[string]any); ok {
			if lang, ok := label["@language"].(string); ok {
				return lang
			}
		}
	}
	return ""
}

func hasNonEmptyValue(v any) bool {
	items, _ := v.([]any)
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			if s, ok := m["@value"].(string); ok && s != "" {
				return true
			}
		}
	}
	return false
}
