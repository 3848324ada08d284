package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/linkscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format for sharing, e.g. as a
// CI job summary.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := NewSummary(report)

	w.writeHeader(md, report)
	w.writeSummary(md, summary)
	w.writeLinkTable(md, "Broken Links", report.BrokenLinks, "No broken links found.")
	w.writeLinkTable(md, "HTTP Links", report.InsecureLinks, "Every checked link uses https.")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Link Scan Report")
	md.PlainText("")

	status := "✅ Complete"
	if report.Interrupted {
		status = "⚠️ Interrupted (partial results)"
	}

	rows := [][]string{
		{"Source", "`" + report.Source + "`"},
		{"Source Kind", report.SourceKind},
	}
	if report.BaseDomain != "" {
		rows = append(rows, []string{"Base Domain", "`" + report.BaseDomain + "`"})
	}
	rows = append(rows,
		[]string{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Elapsed", fmt.Sprintf("%.2fs", report.Elapsed.Seconds())},
		[]string{"Status", status},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Result", "Count"},
		Rows: [][]string{
			{"🟢 Reachable", FormatCount(s.Reachable)},
			{"🔴 Broken", FormatCount(s.Broken)},
			{"⚪ Not checked", FormatCount(s.Unverified)},
			{"🟡 Plain http", FormatCount(s.Insecure)},
			{"**Total**", "**" + FormatCount(s.Total) + "**"},
		},
	})
	md.PlainText("")

	if s.Total > 0 {
		w.writePieChart(md, s)
	}

	switch {
	case s.Broken > 0:
		md.Cautionf("%d broken link(s) found.", s.Broken)
	case s.Insecure > 0:
		md.Warningf("No broken links, but %d link(s) use plain http.", s.Insecure)
	default:
		md.Tip("No broken or insecure links found.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Link Status"),
		piechart.WithShowData(true),
	)

	if s.Reachable > 0 {
		chart.LabelAndIntValue("Reachable", uint64(s.Reachable))
	}
	if s.Broken > 0 {
		chart.LabelAndIntValue("Broken", uint64(s.Broken))
	}
	if s.Unverified > 0 {
		chart.LabelAndIntValue("Not checked", uint64(s.Unverified))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeLinkTable(md *markdown.Markdown, title string, links []model.Link, empty string) {
	md.H2(title)
	md.PlainText("")

	if len(links) == 0 {
		md.PlainText(empty)
		md.PlainText("")
		return
	}

	rows := make([][]string, len(links))
	for i, l := range links {
		status := "-"
		if l.StatusCode > 0 {
			status = strconv.Itoa(l.StatusCode)
		}
		rows[i] = []string{
			strconv.Itoa(l.Index + 1),
			truncateString(l.ResolvedURL, 80),
			l.Reachable.String(),
			status,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "URL", "Reachable", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [linkscan](https://github.com/nao1215/linkscan)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
