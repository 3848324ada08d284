package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/linkscan/internal/config"
	"github.com/nao1215/linkscan/internal/database"
	"github.com/nao1215/linkscan/internal/model"
	"github.com/nao1215/linkscan/internal/report"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// Constants for trend direction.
const (
	trendWorsened  = "worsened"
	trendImproved  = "improved"
	trendUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [source]",
		Short: "Compare scan results with historical data",
		Long: `Compare displays differences between two recorded scans of the same source.

Every 'linkscan scan' is recorded in a local history database. Compare shows:
- Newly broken links that were reachable before
- Fixed links that were broken before
- Links added to or removed from the source

By default the latest scan is compared with the one before it.

Examples:
  # Compare the latest two scans of a page
  linkscan compare https://example.com

  # List all scan history for a source
  linkscan compare --list https://example.com

  # Compare with a specific historical scan by ID
  linkscan compare --with-scan-id 5 https://example.com

  # Compare with the first scan after a date
  linkscan compare --since "2025-01-01" https://example.com

  # Show how one link behaved across all scans
  linkscan compare --link https://example.com/about

  # List all scanned sources in the database
  linkscan compare --list-sources`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the specified source")
	cmd.Flags().BoolP("list-sources", "L", false,
		"List all scanned sources in the database")
	cmd.Flags().String("link", "",
		"Show the recorded status of one link URL across all scans")

	// Comparison target flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first scan after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// compareOptions holds the parsed flags of the compare command.
type compareOptions struct {
	source         string
	listSources    bool
	listHistory    bool
	link           string
	withScanID     int64
	sinceDate      string
	jsonOutput     bool
	markdownOutput bool
	dbDir          string
}

// parseCompareOptions reads and validates the compare flags.
func parseCompareOptions(cmd *cobra.Command, args []string) (*compareOptions, error) {
	flags := cmd.Flags()
	opts := &compareOptions{}
	var err error

	if opts.listSources, err = flags.GetBool("list-sources"); err != nil {
		return nil, err
	}
	if opts.listHistory, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if opts.link, err = flags.GetString("link"); err != nil {
		return nil, err
	}
	if opts.withScanID, err = flags.GetInt64("with-scan-id"); err != nil {
		return nil, err
	}
	if opts.sinceDate, err = flags.GetString("since"); err != nil {
		return nil, err
	}
	if opts.jsonOutput, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdownOutput, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}

	if opts.jsonOutput && opts.markdownOutput {
		return nil, fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}

	if len(args) > 0 {
		opts.source = args[0]
	}
	if opts.source == "" && !opts.listSources && opts.link == "" {
		return nil, errors.New("source is required (use --list-sources to see scanned sources)")
	}
	return opts, nil
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Validate arguments before opening the database.
	opts, err := parseCompareOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.listSources:
		return listScannedSources(ctx, out, db)
	case opts.link != "":
		return showLinkHistory(ctx, out, db, opts.link)
	case opts.listHistory:
		return listScanHistory(ctx, out, db, opts.source)
	default:
		return runComparison(ctx, out, db, opts)
	}
}

// listScannedSources lists all sources that have scan records in the database.
func listScannedSources(ctx context.Context, out io.Writer, db *database.HistoryDB) error {
	sources, err := db.ListScannedSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if len(sources) == 0 {
		fmt.Fprintln(out, "No scanned sources found in the database.")
		fmt.Fprintln(out, "\nUse 'linkscan scan <url-or-file>' to scan a source.")
		return nil
	}

	fmt.Fprintf(out, "Scanned sources (%d):\n\n", len(sources))
	for _, src := range sources {
		fmt.Fprintf(out, "  • %s\n", src)
	}
	fmt.Fprintln(out, "\nUse 'linkscan compare --list <source>' to see scan history for a source.")

	return nil
}

// listScanHistory lists all scan records for a source.
func listScanHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, src string) error {
	scans, err := db.GetScanHistoryWithMetadata(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(scans) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", src)
		fmt.Fprintln(out, "\nUse 'linkscan scan' to scan this source.")
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", src, len(scans))
	fmt.Fprintf(out, "  %-6s  %-20s  %s\n", "ID", "Date", "Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, meta := range scans {
		fmt.Fprintf(out, "  %-6d  %-20s  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			formatScanSummary(meta),
		)
	}

	fmt.Fprintln(out, "\nUse 'linkscan compare <source>' to compare the latest two scans.")
	fmt.Fprintln(out, "Use 'linkscan compare --with-scan-id <id> <source>' to compare with a specific scan.")

	return nil
}

// formatScanSummary formats stored scan counts into a short string.
func formatScanSummary(meta database.ScanMetadata) string {
	s := fmt.Sprintf("links:%d broken:%d http:%d", meta.Total, meta.Broken, meta.Insecure)
	if meta.Interrupted {
		s += " (interrupted)"
	}
	return s
}

// showLinkHistory prints the recorded status of one URL across all scans.
func showLinkHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, url string) error {
	history, err := db.GetLinkHistory(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to get link history: %w", err)
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No recorded checks found for %s\n", url)
		return nil
	}

	fmt.Fprintf(out, "History of %s (%d checks):\n\n", url, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %-12s  %-6s  %s\n", "ID", "Date", "Reachable", "Status", "Source")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, h := range history {
		status := "-"
		if h.StatusCode > 0 {
			status = strconv.Itoa(h.StatusCode)
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-12s  %-6s  %s\n",
			h.ScanID,
			h.Timestamp.Local().Format("2006-01-02 15:04:05"),
			h.Reachable.String(),
			status,
			h.Source,
		)
	}
	return nil
}

// runComparison performs the actual comparison between scan reports.
func runComparison(ctx context.Context, out io.Writer, db *database.HistoryDB, opts *compareOptions) error {
	reports, err := db.GetScanHistory(ctx, opts.source)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", opts.source)
	}

	if len(reports) < 2 && opts.withScanID == 0 && opts.sinceDate == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
	}

	// Latest report is always the current one
	currentReport := reports[0]
	var previousReport *model.ScanReport

	switch {
	case opts.withScanID > 0:
		previousReport, err = db.GetScanReportByID(ctx, opts.withScanID)
		if err != nil {
			return fmt.Errorf("failed to get scan with ID %d: %w", opts.withScanID, err)
		}
		if previousReport == nil {
			return fmt.Errorf("scan with ID %d not found", opts.withScanID)
		}
		if previousReport.Source != opts.source {
			return fmt.Errorf("scan ID %d belongs to %s, not %s", opts.withScanID, previousReport.Source, opts.source)
		}
	case opts.sinceDate != "":
		parsedDate, err := time.Parse("2006-01-02", opts.sinceDate)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Reports are newest first; walk backwards to find the oldest match.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].StartedAt.Before(parsedDate) {
				previousReport = reports[i]
				break
			}
		}
		if previousReport == nil {
			return fmt.Errorf("no scans found since %s", opts.sinceDate)
		}
		if previousReport == currentReport {
			return fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", opts.sinceDate)
		}
	default:
		previousReport = reports[1]
	}

	comparison := compareReports(previousReport, currentReport)

	switch {
	case opts.jsonOutput:
		return outputComparisonJSON(out, comparison)
	case opts.markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// ComparisonResult holds the result of comparing two scan reports.
type ComparisonResult struct {
	// Source is the scanned location.
	Source string `json:"source"`

	// PreviousScan and CurrentScan summarize the compared scans.
	PreviousScan ScanSummary `json:"previous_scan"`
	CurrentScan  ScanSummary `json:"current_scan"`

	// NewlyBroken lists URLs that are broken now but were not broken before.
	NewlyBroken []string `json:"newly_broken,omitempty"`

	// Fixed lists URLs that were broken before and are no longer broken.
	Fixed []string `json:"fixed,omitempty"`

	// Added lists URLs found only in the current scan.
	Added []string `json:"added,omitempty"`

	// Removed lists URLs found only in the previous scan.
	Removed []string `json:"removed,omitempty"`

	// UnchangedCount is the number of URLs present in both scans.
	UnchangedCount int `json:"unchanged_count"`

	// SameLinkList is true when both scans discovered the same ordered links.
	SameLinkList bool `json:"same_link_list"`

	// Trend describes the change in broken links.
	Trend Trend `json:"trend"`
}

// ScanSummary contains metadata about a scan for comparison display.
type ScanSummary struct {
	DateScanned time.Time `json:"date_scanned"`
	Total       int       `json:"total"`
	Broken      int       `json:"broken"`
	Insecure    int       `json:"insecure"`
	Interrupted bool      `json:"interrupted,omitempty"`
}

// Trend describes the change between two scans.
type Trend struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction     string `json:"direction"`
	TotalDelta    int    `json:"total_delta"`
	BrokenDelta   int    `json:"broken_delta"`
	InsecureDelta int    `json:"insecure_delta"`
}

// newScanSummary extracts comparison metadata from a report.
func newScanSummary(r *model.ScanReport) ScanSummary {
	return ScanSummary{
		DateScanned: r.StartedAt,
		Total:       r.TotalCount,
		Broken:      len(r.BrokenLinks),
		Insecure:    len(r.InsecureLinks),
		Interrupted: r.Interrupted,
	}
}

// linkStates maps each resolved URL of a report to whether any occurrence
// of it is broken. Links without a resolved URL are skipped.
func linkStates(r *model.ScanReport) map[string]bool {
	states := make(map[string]bool, len(r.Links))
	for _, l := range r.Links {
		if l.ResolvedURL == "" {
			continue
		}
		states[l.ResolvedURL] = states[l.ResolvedURL] || l.IsBroken()
	}
	return states
}

// compareReports compares two scan reports and generates a comparison result.
func compareReports(previous, current *model.ScanReport) *ComparisonResult {
	result := &ComparisonResult{
		Source:       current.Source,
		PreviousScan: newScanSummary(previous),
		CurrentScan:  newScanSummary(current),
		SameLinkList: previous.Digest != "" && previous.Digest == current.Digest,
	}

	previousStates := linkStates(previous)
	currentStates := linkStates(current)

	for url, broken := range currentStates {
		wasBroken, existed := previousStates[url]
		if !existed {
			result.Added = append(result.Added, url)
			if broken {
				result.NewlyBroken = append(result.NewlyBroken, url)
			}
			continue
		}
		result.UnchangedCount++
		switch {
		case broken && !wasBroken:
			result.NewlyBroken = append(result.NewlyBroken, url)
		case !broken && wasBroken:
			result.Fixed = append(result.Fixed, url)
		}
	}

	for url := range previousStates {
		if _, exists := currentStates[url]; !exists {
			result.Removed = append(result.Removed, url)
		}
	}

	slices.Sort(result.NewlyBroken)
	slices.Sort(result.Fixed)
	slices.Sort(result.Added)
	slices.Sort(result.Removed)

	result.Trend = calculateTrend(result.PreviousScan, result.CurrentScan)
	return result
}

// calculateTrend calculates the change between two scans. Broken links
// decide the direction; insecure links break ties.
func calculateTrend(previous, current ScanSummary) Trend {
	trend := Trend{
		TotalDelta:    current.Total - previous.Total,
		BrokenDelta:   current.Broken - previous.Broken,
		InsecureDelta: current.Insecure - previous.Insecure,
	}

	switch {
	case trend.BrokenDelta < 0, trend.BrokenDelta == 0 && trend.InsecureDelta < 0:
		trend.Direction = trendImproved
	case trend.BrokenDelta > 0, trend.BrokenDelta == 0 && trend.InsecureDelta > 0:
		trend.Direction = trendWorsened
	default:
		trend.Direction = trendUnchanged
	}
	return trend
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Scan Comparison: " + result.Source)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Status:** %s", formatTrendDirection(result.Trend.Direction))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{
				"Date",
				result.PreviousScan.DateScanned.Local().Format("2006-01-02 15:04"),
				result.CurrentScan.DateScanned.Local().Format("2006-01-02 15:04"),
				"-",
			},
			{
				"Links",
				report.FormatCount(result.PreviousScan.Total),
				report.FormatCount(result.CurrentScan.Total),
				formatDelta(result.Trend.TotalDelta),
			},
			{
				"Broken",
				report.FormatCount(result.PreviousScan.Broken),
				report.FormatCount(result.CurrentScan.Broken),
				formatDelta(result.Trend.BrokenDelta),
			},
			{
				"Plain http",
				report.FormatCount(result.PreviousScan.Insecure),
				report.FormatCount(result.CurrentScan.Insecure),
				formatDelta(result.Trend.InsecureDelta),
			},
		},
	})
	md.PlainText("")

	writeMarkdownList(md, "Newly Broken", result.NewlyBroken, "`")
	writeMarkdownList(md, "Fixed", result.Fixed, "~~")
	writeMarkdownList(md, "Added", result.Added, "`")
	writeMarkdownList(md, "Removed", result.Removed, "~~")

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d links present in both scans*", result.UnchangedCount)
	}

	return md.Build()
}

// writeMarkdownList writes a titled bullet list, wrapping each URL in mark.
func writeMarkdownList(md *markdown.Markdown, title string, urls []string, mark string) {
	if len(urls) == 0 {
		return
	}
	md.H2(fmt.Sprintf("%s (%d)", title, len(urls)))
	md.PlainText("")
	items := make([]string, len(urls))
	for i, u := range urls {
		items[i] = mark + u + mark
	}
	md.BulletList(items...)
	md.PlainText("")
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Scan Comparison: %s\n", result.Source)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nStatus: %s\n", formatTrendDirection(result.Trend.Direction))

	fmt.Fprintf(out, "\nPrevious scan: %s\n", result.PreviousScan.DateScanned.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current scan:  %s\n", result.CurrentScan.DateScanned.Local().Format("2006-01-02 15:04:05"))
	if result.SameLinkList {
		fmt.Fprintln(out, "Both scans found the same links.")
	}

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Links",
		result.PreviousScan.Total, result.CurrentScan.Total, formatDelta(result.Trend.TotalDelta))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Broken",
		result.PreviousScan.Broken, result.CurrentScan.Broken, formatDelta(result.Trend.BrokenDelta))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "HTTP",
		result.PreviousScan.Insecure, result.CurrentScan.Insecure, formatDelta(result.Trend.InsecureDelta))

	writeTextList(out, "Newly broken", "[!]", result.NewlyBroken)
	writeTextList(out, "Fixed", "[✓]", result.Fixed)
	writeTextList(out, "Added", "[+]", result.Added)
	writeTextList(out, "Removed", "[-]", result.Removed)

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d links\n", result.UnchangedCount)
	}

	return nil
}

func writeTextList(out io.Writer, title, marker string, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  %s %s\n", marker, u)
	}
}

// formatTrendDirection formats the trend direction for display.
func formatTrendDirection(direction string) string {
	switch direction {
	case trendImproved:
		return "IMPROVED (fewer broken links)"
	case trendWorsened:
		return "WORSENED (more broken links)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + report.FormatCount(delta)
	}
	return report.FormatCount(delta)
}
