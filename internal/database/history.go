package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkscan/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "linkscan.db"

// storedTimeFormat has a fixed width so that timestamps sort as text.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB provides SQLite-based storage for scan reports.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ErrDatabaseNotFound is returned by Open when the database file is missing
// and CreateIfNotExists is false.
var ErrDatabaseNotFound = errors.New("database not found")

// Open opens or creates a HistoryDB in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	// A scan may record history while compare reads it.
	dsn := dbPath + "?mode=rw&_pragma=busy_timeout(5000)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per finalized scan
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		base_domain TEXT,
		timestamp TEXT NOT NULL,
		total INTEGER NOT NULL,
		broken INTEGER NOT NULL,
		insecure INTEGER NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0,
		digest TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_source ON scans(source);
	CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp);

	-- One row per discovered link, in discovery order
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		scheme TEXT NOT NULL,
		reachable TEXT NOT NULL,
		status_code INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_links_scan ON links(scan_id);
	CREATE INDEX IF NOT EXISTS idx_links_url ON links(url);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport stores a finalized report and its links in one
// transaction and returns the new scan ID.
func (h *HistoryDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (id int64, err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO scans (source, source_kind, base_domain, timestamp, total, broken, insecure, interrupted, digest, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Source,
		report.SourceKind,
		report.BaseDomain,
		report.StartedAt.UTC().Format(storedTimeFormat),
		report.TotalCount,
		len(report.BrokenLinks),
		len(report.InsecureLinks),
		report.Interrupted,
		report.Digest,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get scan ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO links (scan_id, position, url, scheme, reachable, status_code)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range report.Links {
		if _, err = stmt.ExecContext(ctx, id, l.Index, l.ResolvedURL, l.Scheme.String(), l.Reachable.String(), l.StatusCode); err != nil {
			return 0, fmt.Errorf("failed to save link %s: %w", l.ResolvedURL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan report: %w", err)
	}
	return id, nil
}

// GetLatestScanReport retrieves the most recent report for a source.
// It returns nil without error when the source was never scanned.
func (h *HistoryDB) GetLatestScanReport(ctx context.Context, source string) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scans
	WHERE source = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`
	return h.queryReport(ctx, query, source)
}

// GetScanReportByID retrieves a report by its scan ID.
// It returns nil without error when no such scan exists.
func (h *HistoryDB) GetScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	return h.queryReport(ctx, `SELECT report_json FROM scans WHERE id = ?`, id)
}

func (h *HistoryDB) queryReport(ctx context.Context, query string, args ...any) (*model.ScanReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListScannedSources returns every source with at least one stored scan.
func (h *HistoryDB) ListScannedSources(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT source FROM scans ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// ScanMetadata contains summary information about a stored scan.
// It is used for listing history without loading full reports.
type ScanMetadata struct {
	// ID is the scan ID.
	ID int64 `json:"id"`

	// Source is the scanned location.
	Source string `json:"source"`

	// Timestamp is when the scan started.
	Timestamp time.Time `json:"timestamp"`

	// Total, Broken and Insecure are the summary counts.
	Total    int `json:"total"`
	Broken   int `json:"broken"`
	Insecure int `json:"insecure"`

	// Interrupted is true for partial reports.
	Interrupted bool `json:"interrupted"`

	// Digest fingerprints the discovered link list.
	Digest string `json:"digest"`
}

// GetScanHistoryWithMetadata lists stored scans of a source, newest first.
func (h *HistoryDB) GetScanHistoryWithMetadata(ctx context.Context, source string) ([]ScanMetadata, error) {
	query := `
	SELECT id, source, timestamp, total, broken, insecure, interrupted, digest
	FROM scans
	WHERE source = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := h.db.QueryContext(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanMetadata
	for rows.Next() {
		var (
			meta      ScanMetadata
			timestamp string
			digest    sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Source, &timestamp, &meta.Total, &meta.Broken, &meta.Insecure, &meta.Interrupted, &digest); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		meta.Digest = digest.String
		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetScanHistory retrieves all stored reports of a source, newest first.
// Malformed rows are skipped.
func (h *HistoryDB) GetScanHistory(ctx context.Context, source string) ([]*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scans
	WHERE source = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := h.db.QueryContext(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.ScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.ScanReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

// LinkStatus is the state of one URL in one stored scan.
type LinkStatus struct {
	ScanID     int64              `json:"scanId"`
	Source     string             `json:"source"`
	Timestamp  time.Time          `json:"timestamp"`
	Scheme     model.Scheme       `json:"scheme"`
	Reachable  model.Reachability `json:"reachable"`
	StatusCode int                `json:"statusCode,omitempty"`
}

// GetLinkHistory returns the recorded states of a URL across all scans,
// newest first.
func (h *HistoryDB) GetLinkHistory(ctx context.Context, url string) ([]LinkStatus, error) {
	query := `
	SELECT s.id, s.source, s.timestamp, l.scheme, l.reachable, l.status_code
	FROM links l
	JOIN scans s ON s.id = l.scan_id
	WHERE l.url = ?
	ORDER BY s.timestamp DESC, s.id DESC, l.position
	`

	rows, err := h.db.QueryContext(ctx, query, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get link history: %w", err)
	}
	defer rows.Close()

	var results []LinkStatus
	for rows.Next() {
		var (
			st                   LinkStatus
			timestamp            string
			scheme, reachability string
			statusCode           sql.NullInt64
		)
		if err := rows.Scan(&st.ScanID, &st.Source, &timestamp, &scheme, &reachability, &statusCode); err != nil {
			return nil, fmt.Errorf("failed to scan link status: %w", err)
		}
		if err := st.Scheme.UnmarshalText([]byte(scheme)); err != nil {
			return nil, err
		}
		if err := st.Reachable.UnmarshalText([]byte(reachability)); err != nil {
			return nil, err
		}
		st.Timestamp = parseTimestamp(timestamp)
		st.StatusCode = int(statusCode.Int64)
		results = append(results, st)
	}
	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a stored timestamp, returning the zero time when no
// format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
