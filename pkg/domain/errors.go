package domain

import (
	"errors"
	"fmt"
)

// ErrMissingSubject is returned when an operation needs a subject and none is set.
// Loaders treat it as "disabled" rather than surfacing it.
var ErrMissingSubject = errors.New("missing subject")

// ErrDecodeFailure is reported when a structure payload cannot be decoded to text.
// It is always recovered locally (logged, empty text substituted).
var ErrDecodeFailure = errors.New("structure payload could not be decoded")

// ErrFetchFailure marks a network or service failure from a fetch collaborator.
var ErrFetchFailure = errors.New("fetch failed")

// ErrSurfaceFailure marks a failure reported by the rendering surface itself.
var ErrSurfaceFailure = errors.New("rendering surface failure")

// ErrSubjectNotFound is returned by fetchers when the service does not know the subject.
var ErrSubjectNotFound = errors.New("subject not found")

// ErrRequestNotFound is returned by a RequestStore when no request is remembered for a subject.
var ErrRequestNotFound = errors.New("trajectory request not found")

// ErrSubjectMismatch is returned when payloads of two different subjects would be combined.
var ErrSubjectMismatch = errors.New("payloads belong to different subjects")

// FetchError describes a failed call to a fetch collaborator.
// It matches both ErrFetchFailure and the underlying cause with errors.Is.
type FetchError struct {
	Op         string // "structure" or "trajectory"
	Subject    Subject
	StatusCode int // HTTP status, 0 when the failure happened before a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s for %q: status %d: %v", e.Op, e.Subject, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s for %q: %v", e.Op, e.Subject, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailure, e.Err}
}

// SurfaceError wraps a message reported by the rendering surface.
func SurfaceError(message string) error {
	if message == "" {
		return ErrSurfaceFailure
	}
	return fmt.Errorf("%w: %s", ErrSurfaceFailure, message)
}
