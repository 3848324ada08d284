package model

// LineSeverity tags one line of console output about a link.
// The core only assigns severities; the report package decides how each
// one is rendered.
type LineSeverity int

const (
	// LineChecked marks a link that was verified reachable.
	LineChecked LineSeverity = iota

	// LineBroken marks a link that was verified unreachable.
	LineBroken

	// LineInsecure marks a link that uses plain http. It is reported in
	// addition to LineChecked or LineBroken.
	LineInsecure

	// LineSkipped marks a fragment or unresolved link that was not verified.
	LineSkipped
)

// String returns the label of the severity.
func (s LineSeverity) String() string {
	switch s {
	case LineChecked:
		return "checked"
	case LineBroken:
		return "broken"
	case LineInsecure:
		return "http"
	case LineSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SeveritiesOf returns the tags for a processed link, primary tag first.
// An insecure link carries LineInsecure after its primary tag.
func SeveritiesOf(l Link) []LineSeverity {
	var primary LineSeverity
	switch l.Reachable {
	case ReachTrue:
		primary = LineChecked
	case ReachFalse:
		primary = LineBroken
	default:
		primary = LineSkipped
	}
	if l.IsInsecure() {
		return []LineSeverity{primary, LineInsecure}
	}
	return []LineSeverity{primary}
}
