package model

import "fmt"

// Scheme describes how a discovered link was classified.
type Scheme int

const (
	// SchemeFragment is an in-page anchor such as "#top".
	// Fragments are never verified over the network.
	SchemeFragment Scheme = iota

	// SchemeHTTP is an absolute URL using plain http.
	// It is verified, and reported as insecure regardless of its reachability.
	SchemeHTTP

	// SchemeHTTPS is an absolute https URL, or a root-relative path
	// resolved against the base domain.
	SchemeHTTPS

	// SchemeUnresolved covers everything else: relative paths without a
	// leading slash, mailto:, javascript:, and root-relative paths when no
	// base domain is known.
	SchemeUnresolved
)

// String returns the lower-case name of the scheme.
func (s Scheme) String() string {
	switch s {
	case SchemeFragment:
		return "fragment"
	case SchemeHTTP:
		return "http"
	case SchemeHTTPS:
		return "https"
	case SchemeUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// Type returns the value persisted in the "type" field of a record.
// Only http and https have a type; the second return value is false for
// fragments and unresolved links, which are persisted as null.
func (s Scheme) Type() (string, bool) {
	switch s {
	case SchemeHTTP:
		return "http", true
	case SchemeHTTPS:
		return "https", true
	default:
		return "", false
	}
}

// MarshalText encodes the scheme as its name.
func (s Scheme) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a scheme name produced by MarshalText.
func (s *Scheme) UnmarshalText(text []byte) error {
	switch string(text) {
	case "fragment":
		*s = SchemeFragment
	case "http":
		*s = SchemeHTTP
	case "https":
		*s = SchemeHTTPS
	case "unresolved":
		*s = SchemeUnresolved
	default:
		return fmt.Errorf("unknown scheme %q", text)
	}
	return nil
}

// Testable reports whether links of this scheme are checked over the network.
func (s Scheme) Testable() bool {
	return s == SchemeHTTP || s == SchemeHTTPS
}

// Reachability is the tri-state verification result of a link.
type Reachability int

const (
	// ReachUnknown means the link was not (or not yet) verified.
	ReachUnknown Reachability = iota
	// ReachTrue means the link answered with a status below 400.
	ReachTrue
	// ReachFalse means the request failed or answered with 400 or above.
	ReachFalse
)

// String returns a human-readable representation of the reachability.
func (r Reachability) String() string {
	switch r {
	case ReachTrue:
		return "reachable"
	case ReachFalse:
		return "unreachable"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reachability as its name.
func (r Reachability) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reachability name produced by MarshalText.
func (r *Reachability) UnmarshalText(text []byte) error {
	switch string(text) {
	case "reachable":
		*r = ReachTrue
	case "unreachable":
		*r = ReachFalse
	case "unknown":
		*r = ReachUnknown
	default:
		return fmt.Errorf("unknown reachability %q", text)
	}
	return nil
}

// Bool converts the reachability into the nullable form used in records.
func (r Reachability) Bool() *bool {
	switch r {
	case ReachTrue:
		v := true
		return &v
	case ReachFalse:
		v := false
		return &v
	default:
		return nil
	}
}

// ReachabilityOf converts the nullable record form back into a Reachability.
func ReachabilityOf(b *bool) Reachability {
	if b == nil {
		return ReachUnknown
	}
	if *b {
		return ReachTrue
	}
	return ReachFalse
}

// Link describes one discovered link: its raw text, how it was classified,
// and, for http and https links, whether it is reachable.
//
// Link is a value type. Verification returns an updated copy through
// WithReachability instead of mutating a shared instance.
type Link struct {
	// Index is the zero-based position at which the link was discovered.
	// It is used to restore discovery order after parallel verification.
	Index int `json:"index"`

	// RawText is the link exactly as extracted from the source.
	RawText string `json:"rawText"`

	// ResolvedURL is the URL that verification targets. It equals RawText
	// except for root-relative links, which are prefixed with the base domain.
	ResolvedURL string `json:"resolvedUrl"`

	// Scheme is the classification of the link.
	Scheme Scheme `json:"scheme"`

	// Reachable is the verification result. It starts as ReachUnknown and
	// is set at most once.
	Reachable Reachability `json:"reachable"`

	// StatusCode is the final HTTP status, zero when no response arrived.
	StatusCode int `json:"statusCode,omitempty"`

	// Err holds the failure that made the link unreachable, if any.
	// It is kept in memory for presentation and never persisted.
	Err error `json:"-"`
}

// WithReachability returns a copy of the link with the verification result
// applied. A link whose reachability is already decided is returned unchanged,
// as is a fragment or unresolved link.
func (l Link) WithReachability(r Reachability, statusCode int, err error) Link {
	if l.Reachable != ReachUnknown || !l.Scheme.Testable() {
		return l
	}
	l.Reachable = r
	l.StatusCode = statusCode
	l.Err = err
	return l
}

// IsBroken reports whether the link was verified and found unreachable.
func (l Link) IsBroken() bool {
	return l.Reachable == ReachFalse
}

// IsInsecure reports whether the link uses plain http.
func (l Link) IsInsecure() bool {
	return l.Scheme == SchemeHTTP
}
