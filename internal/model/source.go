package model

import "regexp"

// SourceKind distinguishes a live webpage from a local text file.
type SourceKind int

const (
	// SourceFile is a local file scanned for absolute URLs.
	SourceFile SourceKind = iota
	// SourceRemote is a webpage whose anchor elements are extracted.
	SourceRemote
)

// String returns a human-readable representation of the source kind.
func (k SourceKind) String() string {
	if k == SourceRemote {
		return "url"
	}
	return "file"
}

// remotePattern decides whether a location is fetched over the network.
var remotePattern = regexp.MustCompile(`^https?://`)

// Source is where links are discovered. It is immutable after NewSource.
type Source struct {
	// Location is the URL or file path given by the user.
	Location string

	// Kind is SourceRemote when Location starts with http:// or https://.
	Kind SourceKind

	// BaseDomain is the scheme and host used to resolve root-relative links.
	// It may be empty for file sources.
	BaseDomain string
}

// NewSource creates a Source for the given location.
// The base domain is stored as given; callers derive it for remote sources.
func NewSource(location, baseDomain string) Source {
	kind := SourceFile
	if remotePattern.MatchString(location) {
		kind = SourceRemote
	}
	return Source{
		Location:   location,
		Kind:       kind,
		BaseDomain: baseDomain,
	}
}

// IsRemote reports whether the source is a webpage.
func (s Source) IsRemote() bool {
	return s.Kind == SourceRemote
}
