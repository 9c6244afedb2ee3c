package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when an entity is not found in the database.
	ErrNotFound = errors.New("entity not found")

	// ErrNotOwner is returned when the requesting user does not own the
	// entry being archived.
	ErrNotOwner = errors.New("user does not own entry")

	// ErrContainerNotArchived is returned when a member push is attempted
	// while the owning entry has no archive id. This is a caller ordering
	// bug, never user input, and must abort the operation.
	ErrContainerNotArchived = errors.New("entry has no archive id, container must be archived first")

	// ErrBadTranslation is returned when data from the archive arrives in a
	// shape a translator unit does not know. Archive-internal vocabulary
	// must not leak into user-facing messages.
	ErrBadTranslation = errors.New("unexpected archive data shape")
)

// ValidationError aggregates per-field validation messages, keyed by local
// field path.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty validation error ready to collect
// field messages.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add appends a message for a field.
func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

// Merge copies all messages from other into e.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		e.Fields[field] = append(e.Fields[field], msgs...)
	}
}

// Empty reports whether no field messages were collected.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}
