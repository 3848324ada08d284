package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// The scan command wraps them as "configuration error: ...".
var (
	// ErrNoSource is returned when neither a URL nor a file path is given.
	ErrNoSource = errors.New("no source specified: provide a URL or a file path")

	// ErrInvalidTimeout is returned when the per-request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidBaseDomain is returned when the base domain is not an
	// http(s) scheme and host such as https://example.com.
	ErrInvalidBaseDomain = errors.New("invalid base domain: must be http:// or https:// followed by a host only")

	// ErrInvalidMaxRedirects is returned when the redirect limit is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingTransports is returned when both --proxy and --tor are set.
	ErrConflictingTransports = errors.New("conflicting transports: --proxy and --tor cannot be used together")
)
