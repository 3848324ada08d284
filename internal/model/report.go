package model

import (
	"strings"
	"time"
)

// ScanReport is the frozen result of one scan.
// It is produced by Aggregator.Finalize and never modified afterwards.
type ScanReport struct {
	// Source is the location that was scanned.
	Source string `json:"source"`

	// SourceKind is "url" or "file".
	SourceKind string `json:"sourceKind"`

	// BaseDomain is the domain used to resolve root-relative links.
	BaseDomain string `json:"baseDomain,omitempty"`

	// Links holds every discovered link in discovery order.
	// Duplicates are preserved: the same URL found twice appears twice.
	Links []Link `json:"links"`

	// BrokenLinks is the subsequence of Links that were verified unreachable.
	BrokenLinks []Link `json:"brokenLinks"`

	// InsecureLinks is the subsequence of Links that use plain http.
	InsecureLinks []Link `json:"insecureLinks"`

	// TotalCount is len(Links).
	TotalCount int `json:"totalCount"`

	// StartedAt is when the scan started.
	StartedAt time.Time `json:"startedAt"`

	// Elapsed is the wall-clock duration from scan start to finalization.
	Elapsed time.Duration `json:"elapsed"`

	// Interrupted is true when the scan was cancelled before every link
	// was verified. The report then covers only the links processed so far.
	Interrupted bool `json:"interrupted,omitempty"`

	// Digest is a SHA3-256 fingerprint of the ordered resolved URLs.
	// Two scans with the same digest discovered the same link list.
	Digest string `json:"digest"`
}

// ReachableCount returns the number of links verified reachable.
func (r *ScanReport) ReachableCount() int {
	n := 0
	for _, l := range r.Links {
		if l.Reachable == ReachTrue {
			n++
		}
	}
	return n
}

// UnverifiedCount returns the number of links never checked over the network.
func (r *ScanReport) UnverifiedCount() int {
	n := 0
	for _, l := range r.Links {
		if l.Reachable == ReachUnknown {
			n++
		}
	}
	return n
}

// HasBrokenLinks reports whether at least one link is broken.
func (r *ScanReport) HasBrokenLinks() bool {
	return len(r.BrokenLinks) > 0
}

// Record is the persisted form of a Link: one JSON object per line.
// Field order matches the on-disk format: accessible, type, url.
type Record struct {
	// Accessible is true, false, or null for links that were not verified.
	Accessible *bool `json:"accessible"`

	// Type is "http", "https", or null for fragments and unresolved links.
	Type *string `json:"type"`

	// URL is the resolved URL of the link.
	URL string `json:"url"`
}

// NewRecord converts a link into its persisted form.
func NewRecord(l Link) Record {
	rec := Record{
		Accessible: l.Reachable.Bool(),
		URL:        l.ResolvedURL,
	}
	if t, ok := l.Scheme.Type(); ok {
		rec.Type = &t
	}
	return rec
}

// Link reconstructs a link from its persisted form.
// A null type maps back to SchemeFragment for "#..." URLs and to
// SchemeUnresolved otherwise.
func (r Record) Link() Link {
	l := Link{
		RawText:     r.URL,
		ResolvedURL: r.URL,
		Reachable:   ReachabilityOf(r.Accessible),
	}
	switch {
	case r.Type != nil && *r.Type == "http":
		l.Scheme = SchemeHTTP
	case r.Type != nil && *r.Type == "https":
		l.Scheme = SchemeHTTPS
	case strings.HasPrefix(r.URL, "#"):
		l.Scheme = SchemeFragment
	default:
		l.Scheme = SchemeUnresolved
	}
	return l
}
