package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/nao1215/linkscan/internal/model"
)

const sectionRule = "+-+-+-+"

// ConsoleWriter prints labelled per-link lines while a scan runs and a
// summary once it is finalized.
//
// Severities are mapped to labels and colors here; the core only tags
// links with model.LineSeverity values.
type ConsoleWriter struct {
	baseWriter

	mu          sync.Mutex
	styles      map[model.LineSeverity]lipgloss.Style
	heading     lipgloss.Style
	showSkipped bool
}

// ConsoleWriterOption configures a ConsoleWriter.
type ConsoleWriterOption func(*ConsoleWriter)

// WithColor enables or disables colored labels.
func WithColor(enabled bool) ConsoleWriterOption {
	return func(w *ConsoleWriter) {
		if !enabled {
			plain := lipgloss.NewStyle()
			for sev := range w.styles {
				w.styles[sev] = plain
			}
			w.heading = plain
		}
	}
}

// WithShowSkipped prints a line for fragment and unresolved links too.
func WithShowSkipped(show bool) ConsoleWriterOption {
	return func(w *ConsoleWriter) {
		w.showSkipped = show
	}
}

// NewConsoleWriter creates a ConsoleWriter that outputs to the given writer.
func NewConsoleWriter(output io.Writer, opts ...ConsoleWriterOption) *ConsoleWriter {
	renderer := lipgloss.NewRenderer(output)
	w := &ConsoleWriter{
		baseWriter: newBaseWriter(output),
		styles: map[model.LineSeverity]lipgloss.Style{
			model.LineChecked:  renderer.NewStyle().Foreground(lipgloss.Color("10")),
			model.LineBroken:   renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			model.LineInsecure: renderer.NewStyle().Foreground(lipgloss.Color("11")),
			model.LineSkipped:  renderer.NewStyle().Foreground(lipgloss.Color("242")),
		},
		heading: renderer.NewStyle().Bold(true),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Label returns the bracketed console label for a severity, e.g. "[ BROKEN ]".
func Label(sev model.LineSeverity) string {
	return "[ " + strings.ToUpper(sev.String()) + " ]"
}

// WriteLink prints one line for a processed link. Fragment and unresolved
// links are skipped unless WithShowSkipped is set. Safe for concurrent use.
func (w *ConsoleWriter) WriteLink(l model.Link) (int, error) {
	sevs := model.SeveritiesOf(l)
	if sevs[0] == model.LineSkipped && !w.showSkipped {
		return 0, nil
	}

	line := w.labels(sevs) + " | " + l.ResolvedURL
	if l.IsBroken() && l.Err != nil {
		line += " (" + l.Err.Error() + ")"
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return fmt.Fprintln(w.output, line)
}

// Write prints the end-of-run summary: broken links, insecure links, the
// scanned source, elapsed time and total count.
func (w *ConsoleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(w.heading.Render(sectionRule + " SUMMARY " + sectionRule))
	sb.WriteString("\n")

	w.writeSection(&sb, "BROKEN LINKS", model.LineBroken, report.BrokenLinks)
	w.writeSection(&sb, "HTTP LINKS", model.LineInsecure, report.InsecureLinks)

	sb.WriteString("\n")
	if report.Interrupted {
		sb.WriteString(w.styles[model.LineBroken].Render("scan interrupted: the report covers only the links processed so far"))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("scanned links from '%s'\n", report.Source))
	sb.WriteString(fmt.Sprintf("it took total '%5.2f' second to scan links.\n", report.Elapsed.Seconds()))
	sb.WriteString(fmt.Sprintf("scanned total '%d' links.\n", report.TotalCount))

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.output.Write([]byte(sb.String()))
}

func (w *ConsoleWriter) writeSection(sb *strings.Builder, title string, sev model.LineSeverity, links []model.Link) {
	sb.WriteString("\n")
	sb.WriteString(w.heading.Render(sectionRule + " " + title + " " + sectionRule))
	sb.WriteString("\n")
	for _, l := range links {
		sb.WriteString(w.styles[sev].Render(Label(sev)))
		sb.WriteString(" | ")
		sb.WriteString(l.ResolvedURL)
		sb.WriteString("\n")
	}
}

func (w *ConsoleWriter) labels(sevs []model.LineSeverity) string {
	parts := make([]string, len(sevs))
	for i, sev := range sevs {
		parts[i] = w.styles[sev].Render(Label(sev))
	}
	return strings.Join(parts, " ")
}
