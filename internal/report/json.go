package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/linkscan/internal/model"
)

// JSONWriter outputs the full report as one JSON document.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string

	// version is embedded in the output wrapper.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the linkscan version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report wrapped with version and summary.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// Summary holds the headline numbers of a report.
type Summary struct {
	Total          int     `json:"total"`
	Reachable      int     `json:"reachable"`
	Broken         int     `json:"broken"`
	Insecure       int     `json:"insecure"`
	Unverified     int     `json:"unverified"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	Interrupted    bool    `json:"interrupted,omitempty"`
}

// NewSummary computes the summary of a report.
func NewSummary(report *model.ScanReport) Summary {
	return Summary{
		Total:          report.TotalCount,
		Reachable:      report.ReachableCount(),
		Broken:         len(report.BrokenLinks),
		Insecure:       len(report.InsecureLinks),
		Unverified:     report.UnverifiedCount(),
		ElapsedSeconds: report.Elapsed.Seconds(),
		Interrupted:    report.Interrupted,
	}
}

// JSONReport is the document written by JSONWriter.
type JSONReport struct {
	// Version is the linkscan version that generated this report.
	Version string `json:"version,omitempty"`

	// Summary holds the headline numbers.
	Summary Summary `json:"summary"`

	// Report is the full scan report.
	Report *model.ScanReport `json:"report"`
}

// NewJSONReport wraps a report with version information.
func NewJSONReport(report *model.ScanReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: NewSummary(report),
		Report:  report,
	}
}
