package model

import (
	"encoding/hex"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
)

// Scan is the working state of a scan while the pipeline runs.
// Pipeline steps fill it in order: RawLinks, then Links, then Results.
type Scan struct {
	// Source is the scanned source.
	Source Source

	// RawLinks holds the strings extracted by the loader, in discovery order.
	RawLinks []string

	// Links holds the classified links, in discovery order.
	Links []Link

	// Loaded is true once the source was read successfully.
	Loaded bool

	// Results collects verified links.
	Results *Aggregator
}

// NewScan creates a scan for the given source with an empty aggregator.
func NewScan(src Source) *Scan {
	return &Scan{
		Source:  src,
		Results: NewAggregator(src),
	}
}

// Aggregator collects processed links and produces the final ScanReport.
// Add is safe for concurrent use by verification workers.
type Aggregator struct {
	mu          sync.Mutex
	source      Source
	startedAt   time.Time
	links       []Link
	interrupted bool
	report      *ScanReport
	now         func() time.Time
}

// NewAggregator creates an aggregator and starts the scan clock.
func NewAggregator(src Source) *Aggregator {
	return &Aggregator{
		source:    src,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Add records one processed link. Links added after Finalize are ignored.
func (a *Aggregator) Add(l Link) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.report != nil {
		return
	}
	a.links = append(a.links, l)
}

// Len returns the number of links added so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.links)
}

// MarkInterrupted flags the scan as cancelled before completion.
func (a *Aggregator) MarkInterrupted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interrupted = true
}

// Finalize freezes the collected links into a ScanReport.
//
// Links are ordered by discovery index, so the report is identical whether
// the links were verified sequentially or by a worker pool. The broken and
// insecure views are filters over that ordered list. Calling Finalize again
// returns the same report.
func (a *Aggregator) Finalize() *ScanReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.report != nil {
		return a.report
	}

	links := slices.Clone(a.links)
	slices.SortStableFunc(links, func(x, y Link) int {
		return x.Index - y.Index
	})

	a.report = &ScanReport{
		Source:        a.source.Location,
		SourceKind:    a.source.Kind.String(),
		BaseDomain:    a.source.BaseDomain,
		Links:         links,
		BrokenLinks:   filterLinks(links, Link.IsBroken),
		InsecureLinks: filterLinks(links, Link.IsInsecure),
		TotalCount:    len(links),
		StartedAt:     a.startedAt,
		Elapsed:       a.now().Sub(a.startedAt),
		Interrupted:   a.interrupted,
		Digest:        LinkDigest(links),
	}
	return a.report
}

// filterLinks returns the links matching keep, preserving order.
func filterLinks(links []Link, keep func(Link) bool) []Link {
	out := make([]Link, 0, len(links))
	for _, l := range links {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// LinkDigest returns the hex SHA3-256 of the resolved URLs, newline separated.
func LinkDigest(links []Link) string {
	h := sha3.New256()
	for _, l := range links {
		h.Write([]byte(l.ResolvedURL))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
