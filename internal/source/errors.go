package source

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch is wrapped when a remote source cannot be downloaded or
	// returns an empty body.
	ErrFetch = errors.New("failed to fetch source")

	// ErrSourceNotFound is wrapped when a file source is missing or unreadable.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrInvalidSource is wrapped when a remote location is not a valid URL.
	ErrInvalidSource = errors.New("invalid source URL")

	// ErrBodyTooLarge is wrapped when a document exceeds the body size limit.
	ErrBodyTooLarge = errors.New("document exceeds size limit")
)

// SourceError reports that links could not be loaded from a source.
// It is fatal: no link is verified when loading fails.
type SourceError struct {
	// Source is the location that failed to load.
	Source string

	// Err is the underlying failure, wrapping one of the sentinels above.
	Err error
}

// Error implements error.
func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying failure.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsSourceError reports whether err is or wraps a *SourceError.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
