package main

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/linkscan/internal/database"
	"github.com/nao1215/linkscan/internal/model"
)

const compareSource = "https://example.com"

func testLink(index int, url string, r model.Reachability) model.Link {
	scheme := model.SchemeHTTPS
	switch {
	case strings.HasPrefix(url, "#"):
		scheme = model.SchemeFragment
	case strings.HasPrefix(url, "http://"):
		scheme = model.SchemeHTTP
	}
	return model.Link{
		Index:       index,
		RawText:     url,
		ResolvedURL: url,
		Scheme:      scheme,
		Reachable:   r,
	}
}

// newCompareReport finalizes a report for compareSource with the given links.
func newCompareReport(links ...model.Link) *model.ScanReport {
	agg := model.NewAggregator(model.NewSource(compareSource, compareSource))
	for _, l := range links {
		agg.Add(l)
	}
	return agg.Finalize()
}

// seedHistory stores reports oldest first and returns the database directory.
func seedHistory(t *testing.T, reports ...*model.ScanReport) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	for _, r := range reports {
		if _, err := db.SaveScanReport(context.Background(), r); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
	}
	return dir
}

func executeCompare(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"compare"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()

	if cmd.Use != "compare [source]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}

	flagsWithShort := map[string]string{
		"list":         "l",
		"list-sources": "L",
		"with-scan-id": "i",
		"since":        "s",
		"json":         "j",
		"markdown":     "m",
	}
	for flag, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}
	for _, flag := range []string{"link", "db-dir"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}
}

func TestCompareReports(t *testing.T) {
	t.Parallel()

	previous := newCompareReport(
		testLink(0, "https://example.com/a", model.ReachTrue),
		testLink(1, "https://example.com/b", model.ReachFalse),
		testLink(2, "https://example.com/c", model.ReachTrue),
		testLink(3, "#top", model.ReachUnknown),
	)
	current := newCompareReport(
		testLink(0, "https://example.com/a", model.ReachFalse),
		testLink(1, "https://example.com/b", model.ReachTrue),
		testLink(2, "https://example.com/d", model.ReachFalse),
		testLink(3, "http://example.com/e", model.ReachTrue),
	)

	result := compareReports(previous, current)

	if result.Source != compareSource {
		t.Errorf("expected source %s, got %s", compareSource, result.Source)
	}

	checks := []struct {
		name string
		got  []string
		want []string
	}{
		{"newly broken", result.NewlyBroken, []string{"https://example.com/a", "https://example.com/d"}},
		{"fixed", result.Fixed, []string{"https://example.com/b"}},
		{"added", result.Added, []string{"http://example.com/e", "https://example.com/d"}},
		{"removed", result.Removed, []string{"#top", "https://example.com/c"}},
	}
	for _, c := range checks {
		if !slices.Equal(c.got, c.want) {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}

	if result.UnchangedCount != 2 {
		t.Errorf("expected 2 links in both scans, got %d", result.UnchangedCount)
	}
	if result.SameLinkList {
		t.Error("expected different link lists")
	}
	if result.Trend.Direction != trendWorsened {
		t.Errorf("expected %s, got %s", trendWorsened, result.Trend.Direction)
	}
	if result.Trend.BrokenDelta != 1 || result.Trend.InsecureDelta != 1 || result.Trend.TotalDelta != 0 {
		t.Errorf("unexpected deltas: %+v", result.Trend)
	}
}

func TestCompareReportsDuplicateURLs(t *testing.T) {
	t.Parallel()

	previous := newCompareReport(
		testLink(0, "https://example.com/a", model.ReachTrue),
		testLink(1, "https://example.com/a", model.ReachTrue),
	)
	current := newCompareReport(
		testLink(0, "https://example.com/a", model.ReachTrue),
		testLink(1, "https://example.com/a", model.ReachFalse),
	)

	result := compareReports(previous, current)
	if !slices.Equal(result.NewlyBroken, []string{"https://example.com/a"}) {
		t.Errorf("expected the URL to be newly broken, got %v", result.NewlyBroken)
	}
	if result.UnchangedCount != 1 {
		t.Errorf("expected duplicates to count once, got %d", result.UnchangedCount)
	}
	if !result.SameLinkList {
		t.Error("expected the same link list")
	}
}

func TestCalculateTrend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous ScanSummary
		current  ScanSummary
		want     string
	}{
		{"fewer broken", ScanSummary{Broken: 3}, ScanSummary{Broken: 1}, trendImproved},
		{"more broken", ScanSummary{Broken: 1}, ScanSummary{Broken: 2}, trendWorsened},
		{"fewer http", ScanSummary{Broken: 1, Insecure: 4}, ScanSummary{Broken: 1, Insecure: 2}, trendImproved},
		{"more http", ScanSummary{Insecure: 0}, ScanSummary{Insecure: 1}, trendWorsened},
		{"broken wins over http", ScanSummary{Broken: 2, Insecure: 0}, ScanSummary{Broken: 1, Insecure: 5}, trendImproved},
		{"same", ScanSummary{Total: 3, Broken: 1}, ScanSummary{Total: 5, Broken: 1}, trendUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := calculateTrend(tt.previous, tt.current).Direction; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta int
		want  string
	}{
		{3, "+3"},
		{0, "0"},
		{-2, "-2"},
		{1500, "+1,500"},
	}
	for _, tt := range tests {
		if got := formatDelta(tt.delta); got != tt.want {
			t.Errorf("formatDelta(%d): expected %q, got %q", tt.delta, tt.want, got)
		}
	}
}

func TestRunCompareCmd(t *testing.T) {
	t.Parallel()

	older := newCompareReport(
		testLink(0, "https://example.com/a", model.ReachTrue),
		testLink(1, "https://example.com/b", model.ReachFalse),
	)
	newer := newCompareReport(
		testLink(0, "https://example.com/a", model.ReachTrue),
		testLink(1, "https://example.com/b", model.ReachTrue),
	)
	dbDir := seedHistory(t, older, newer)

	// Subtests share one database file and run in order.
	t.Run("text comparison", func(t *testing.T) {
		out, err := executeCompare(t, "--db-dir", dbDir, compareSource)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{
			"Scan Comparison: " + compareSource,
			"IMPROVED",
			"Both scans found the same links.",
			"Fixed (1):",
			"https://example.com/b",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("json comparison", func(t *testing.T) {
		out, err := executeCompare(t, "--db-dir", dbDir, "--json", compareSource)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var result ComparisonResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if !slices.Equal(result.Fixed, []string{"https://example.com/b"}) {
			t.Errorf("expected fixed link, got %v", result.Fixed)
		}
		if result.PreviousScan.Broken != 1 || result.CurrentScan.Broken != 0 {
			t.Errorf("unexpected scan summaries: %+v / %+v", result.PreviousScan, result.CurrentScan)
		}
	})

	t.Run("markdown comparison", func(t *testing.T) {
		out, err := executeCompare(t, "--db-dir", dbDir, "--markdown", compareSource)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"# Scan Comparison: " + compareSource, "## Summary", "## Fixed (1)", "~~https://example.com/b~~"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected markdown to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("with scan id", func(t *testing.T) {
		out, err := executeCompare(t, "--db-dir", dbDir, "-i", "1", compareSource)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Fixed (1):") {
			t.Errorf("expected comparison with scan 1, got:\n%s", out)
		}

		if _, err := executeCompare(t, "--db-dir", dbDir, "-i", "99", compareSource); err == nil ||
			!strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("since date", func(t *testing.T) {
		if _, err := executeCompare(t, "--db-dir", dbDir, "--since", "2000-01-01", compareSource); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := executeCompare(t, "--db-dir", dbDir, "--since", "01/02/2000", compareSource); err == nil {
			t.Error("expected invalid date error")
		}
		if _, err := executeCompare(t, "--db-dir", dbDir, "--since", "2999-01-01", compareSource); err == nil {
			t.Error("expected no scans error")
		}
	})

	t.Run("list history", func(t *testing.T) {
		out, err := executeCompare(t, "--db-dir", dbDir, "--list", compareSource)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "(2 scans)") {
			t.Errorf("expected two scans, got:\n%s", out)
		}
		if !strings.Contains(out, "links:2 broken:1 http:0") {
			t.Errorf("expected older scan summary, got:\n%s", out)
		}
	})

	t.Run("list sources", func(t *testing.T) {
		out, err := executeCompare(t, "--db-dir", dbDir, "--list-sources")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Scanned sources (1):") || !strings.Contains(out, compareSource) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("link history", func(t *testing.T) {
		out, err := executeCompare(t, "--db-dir", dbDir, "--link", "https://example.com/b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "(2 checks)") {
			t.Errorf("expected two checks, got:\n%s", out)
		}
		if !strings.Contains(out, "reachable") || !strings.Contains(out, "unreachable") {
			t.Errorf("expected both states, got:\n%s", out)
		}
	})
}

func TestRunCompareCmdErrors(t *testing.T) {
	t.Parallel()

	single := seedHistory(t, newCompareReport(testLink(0, "https://example.com/a", model.ReachTrue)))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing source", args: []string{"--db-dir", single}, want: "source is required"},
		{name: "conflicting formats", args: []string{"--db-dir", single, "-j", "-m", compareSource}, want: "configuration error"},
		{name: "unknown source", args: []string{"--db-dir", single, "https://unknown.example"}, want: "no scan history"},
		{name: "single scan", args: []string{"--db-dir", single, compareSource}, want: "at least 2 scans"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCompare(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	t.Run("empty database", func(t *testing.T) {
		t.Parallel()

		out, err := executeCompare(t, "--db-dir", t.TempDir(), "--list-sources")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No scanned sources found") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

func TestScanThenCompare(t *testing.T) {
	t.Parallel()

	srv := newLinkServer(t)
	dbDir := t.TempDir()
	page := srv.URL + "/page"

	for range 2 {
		if _, _, err := executeScan(t, "--db-dir", dbDir, page); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
	}

	out, err := executeCompare(t, "--db-dir", dbDir, page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "UNCHANGED") {
		t.Errorf("expected unchanged comparison, got:\n%s", out)
	}
	if !strings.Contains(out, "Both scans found the same links.") {
		t.Errorf("expected identical link lists, got:\n%s", out)
	}
}
