// Package schema constructs the per-attempt validation schema for archive
// documents. A schema is an explicit registry from field key to descriptor;
// profile-dependent static fields are inserted first, dynamic role fields
// afterwards with skip-if-present semantics, so a hand-written rule is
// never overridden by a dynamically discovered field.
package schema

import (
	"github.com/openfolio/archivesync/internal/metadata"
)

// Errors is a validation result mirroring the document shape: field key to
// messages. Absence of errors is an explicitly empty map, never nil, so
// translation code can iterate safely.
type Errors map[string][]string

// NewErrors returns an empty, non-nil error structure.
func NewErrors() Errors {
	return make(Errors)
}

// Add appends a message for a field key.
func (e Errors) Add(key, msg string) {
	e[key] = append(e[key], msg)
}

// Empty reports whether no messages were collected.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Validator checks one field's repeated group and returns messages.
type Validator func(group []any) []string

// Field describes one schema field.
type Field struct {
	Key      string
	Required bool
	Validate Validator
}

// Schema is an ordered field registry.
type Schema struct {
	order  []string
	fields map[string]Field
}

// New creates an empty schema.
func New() *Schema {
	return &Schema{fields: make(map[string]Field)}
}

// AddField inserts a field descriptor. A field whose key is already defined
// is skipped; the first (static) definition wins. Reports whether the field
// was inserted.
func (s *Schema) AddField(f Field) bool {
	if _, ok := s.fields[f.Key]; ok {
		return false
	}
	s.fields[f.Key] = f
	s.order = append(s.order, f.Key)
	return true
}

// Has reports whether a field key is defined.
func (s *Schema) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

// Keys returns the field keys in registration order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Validate checks a document against the registry. The result is always
// non-nil; an empty result means the document is valid.
func (s *Schema) Validate(doc metadata.Document) Errors {
	errs := NewErrors()
	for _, key := range s.order {
		f := s.fields[key]
		group := doc.Group(key)

		if f.Required && len(group) == 0 {
			errs.Add(key, "is required")
			continue
		}
		if f.Validate != nil {
			for _, msg := range f.Validate(group) {
				errs.Add(key, msg)
			}
		}
	}
	return errs
}
