package report

import "fmt"

// WriteError is returned when a report cannot be persisted.
// The in-memory report stays valid.
type WriteError struct {
	// Destination is the path that could not be written.
	Destination string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write report to %s: %v", e.Destination, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Err
}
