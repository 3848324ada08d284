package verify

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrHTTPStatus is wrapped when a response arrives with status 400 or above.
	ErrHTTPStatus = errors.New("unsuccessful HTTP status")

	// ErrInvalidURL is wrapped when no request can be built for the URL.
	ErrInvalidURL = errors.New("invalid URL")
)

// NetworkCheckError describes why a single link check failed.
// It is recorded on the link and never aborts a scan.
type NetworkCheckError struct {
	// URL is the checked URL.
	URL string

	// StatusCode is the response status, zero when no response arrived.
	StatusCode int

	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *NetworkCheckError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("check %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("check %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying failure.
func (e *NetworkCheckError) Unwrap() error {
	return e.Err
}
