// Package validation carries field level validation failures that callers can
// surface to users.
package validation

import (
	"errors"
	"sort"
	"strings"
)

// Error maps field names to human readable problems.
type Error struct {
	FieldErrors map[string]string
}

// New returns an Error with a single field problem.
func New(field, message string) *Error {
	e := &Error{}
	e.Add(field, message)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil || len(e.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a field level problem.
func (e *Error) Add(field, message string) {
	if e.FieldErrors == nil {
		e.FieldErrors = make(map[string]string)
	}
	e.FieldErrors[field] = message
}

// HasErrors reports whether any field problem was recorded.
func (e *Error) HasErrors() bool {
	return e != nil && len(e.FieldErrors) > 0
}

// OrNil returns e as an error only when it holds problems.
func (e *Error) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// As extracts a validation error from err.
func As(err error) (*Error, bool) {
	var v *Error
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
