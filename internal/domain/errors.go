package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch workflow failures
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"      // bad URL or quality, the client's fault
	KindSourceUnavailable ErrorKind = "source_unavailable" // metadata resolution failed
	KindFetchFailed       ErrorKind = "fetch_failed"       // transfer exhausted its attempts
	KindEmptyArtifact     ErrorKind = "empty_artifact"     // zero-byte or missing output
)

// FetchError is a classified workflow error
type FetchError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewFetchError creates a classified error
func NewFetchError(kind ErrorKind, op string, err error) *FetchError {
	return &FetchError{Kind: kind, Op: op, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first FetchError in err's chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")
