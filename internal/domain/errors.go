package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRow marks a row with no content. Callers skip it without counting an error.
	ErrEmptyRow = errors.New("empty row")

	// ErrPersistenceConflict is a row-level write failure (constraint or type
	// violation). The row is dropped and ingestion continues.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// ErrPersistenceUnavailable means the store cannot be reached. Ingestion aborts.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// MalformedRecordError describes a row that could not be normalized.
type MalformedRecordError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("malformed %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed %s %q: %s", e.Field, e.Value, e.Reason)
}

func malformed(field, value, reason string) error {
	return &MalformedRecordError{Field: field, Value: value, Reason: reason}
}

// IsMalformed reports whether err is (or wraps) a MalformedRecordError.
func IsMalformed(err error) bool {
	var m *MalformedRecordError
	return errors.As(err, &m)
}
