package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/harvest/internal/model"
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "harvest.db"

// ErrNoActiveRun is returned by Write when StartRun has not been called.
var ErrNoActiveRun = errors.New("no active run")

// RunKind identifies what a run collected.
type RunKind string

const (
	// RunKindCrawl is a page crawl.
	RunKindCrawl RunKind = "crawl"
	// RunKindSubdomains is a subdomain enumeration.
	RunKindSubdomains RunKind = "subdomains"
)

// HarvestDB provides SQLite-based storage for crawl and enumeration results.
// It implements the sink store interface through Write and Close.
//
// Records are written under the run started last with StartRun, so one
// HarvestDB serves one command invocation.
type HarvestDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	mu  sync.Mutex
	run *Run
}

// Options configures HarvestDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HarvestDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HarvestDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a scrape or enumeration first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HarvestDB{
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
func (hdb *HarvestDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HarvestDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HarvestDB) createTables() error {
	schema := `
	-- One row per command invocation
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		mode TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		records INTEGER DEFAULT 0
	);

	-- Page records, stored whole as JSON plus queryable columns
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		fetched_at DATETIME NOT NULL,
		status_code INTEGER,
		content_kind TEXT,
		error TEXT,
		record_json TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_host ON pages(host);
	CREATE INDEX IF NOT EXISTS idx_pages_kind ON pages(content_kind);
	CREATE INDEX IF NOT EXISTS idx_pages_fetched ON pages(fetched_at);

	-- Subdomain lookup results
	CREATE TABLE IF NOT EXISTS subdomains (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		fqdn TEXT NOT NULL,
		resolved INTEGER NOT NULL,
		ips TEXT NOT NULL,
		error TEXT,
		looked_up_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, fqdn)
	);

	CREATE INDEX IF NOT EXISTS idx_subdomains_fqdn ON subdomains(fqdn);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run describes one command invocation.
type Run struct {
	ID         string
	Kind       RunKind
	Target     string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Records    int
}

// StartRun inserts a new run and makes it the target of Write.
func (hdb *HarvestDB) StartRun(ctx context.Context, kind RunKind, target, mode string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Target:    target,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}

	query := `
	INSERT INTO runs (id, kind, target, mode, started_at)
	VALUES (?, ?, ?, ?, ?)
	`
	if _, err := hdb.db.ExecContext(ctx, query,
		run.ID,
		string(run.Kind),
		run.Target,
		run.Mode,
		run.StartedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	hdb.mu.Lock()
	hdb.run = run
	hdb.mu.Unlock()
	return run, nil
}

// FinishRun stamps the active run with its end time and record count.
func (hdb *HarvestDB) FinishRun(ctx context.Context) error {
	hdb.mu.Lock()
	run := hdb.run
	hdb.mu.Unlock()
	if run == nil {
		return ErrNoActiveRun
	}

	query := `
	UPDATE runs SET finished_at = ?, records = (
		(SELECT COUNT(*) FROM pages WHERE run_id = ?) +
		(SELECT COUNT(*) FROM subdomains WHERE run_id = ?)
	)
	WHERE id = ?
	`
	if _, err := hdb.db.ExecContext(ctx, query,
		time.Now().UTC().Format(time.RFC3339Nano),
		run.ID, run.ID, run.ID,
	); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Write stores records under the active run in a single transaction.
// Writing the same URL or FQDN twice in a run replaces the earlier row.
func (hdb *HarvestDB) Write(ctx context.Context, records []model.Record) error {
	hdb.mu.Lock()
	run := hdb.run
	hdb.mu.Unlock()
	if run == nil {
		return ErrNoActiveRun
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	for _, rec := range records {
		switch r := rec.(type) {
		case model.PageRecord:
			err = insertPage(ctx, tx, run.ID, r)
		case model.SubdomainResult:
			err = insertSubdomain(ctx, tx, run.ID, r)
		default:
			err = fmt.Errorf("unsupported record type %T", rec)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

func insertPage(ctx context.Context, tx *sql.Tx, runID string, rec model.PageRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize page record: %w", err)
	}

	var kind string
	if rec.Extracted != nil {
		kind = string(rec.Extracted.Kind())
	}

	query := `
	INSERT INTO pages (run_id, url, host, fetched_at, status_code, content_kind, error, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		host = excluded.host,
		fetched_at = excluded.fetched_at,
		status_code = excluded.status_code,
		content_kind = excluded.content_kind,
		error = excluded.error,
		record_json = excluded.record_json
	`
	if _, err := tx.ExecContext(ctx, query,
		runID,
		rec.URL,
		rec.Hostname(),
		rec.FetchedAt.UTC().Format(time.RFC3339Nano),
		rec.StatusCode,
		kind,
		rec.Error,
		string(recordJSON),
	); err != nil {
		return fmt.Errorf("failed to insert page %s: %w", rec.URL, err)
	}
	return nil
}

func insertSubdomain(ctx context.Context, tx *sql.Tx, runID string, res model.SubdomainResult) error {
	ipsJSON, err := json.Marshal(res.IPStrings())
	if err != nil {
		return fmt.Errorf("failed to serialize addresses: %w", err)
	}

	query := `
	INSERT INTO subdomains (run_id, fqdn, resolved, ips, error)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(run_id, fqdn) DO UPDATE SET
		resolved = excluded.resolved,
		ips = excluded.ips,
		error = excluded.error,
		looked_up_at = CURRENT_TIMESTAMP
	`
	if _, err := tx.ExecContext(ctx, query,
		runID,
		res.FQDN,
		res.Resolved,
		string(ipsJSON),
		res.Error,
	); err != nil {
		return fmt.Errorf("failed to insert subdomain %s: %w", res.FQDN, err)
	}
	return nil
}

// PageFilter narrows ListPages.
type PageFilter struct {
	// Host keeps pages whose host equals Host or is a subdomain of it.
	// Empty keeps every host.
	Host string

	// IncludeFailed keeps pages without extracted content.
	IncludeFailed bool
}

// ListPages returns the stored page records, oldest first.
func (hdb *HarvestDB) ListPages(ctx context.Context, filter PageFilter) ([]model.PageRecord, error) {
	query := `
	SELECT record_json FROM pages
	WHERE 1=1
	`
	args := make([]any, 0)

	if host := strings.ToLower(strings.TrimSpace(filter.Host)); host != "" {
		query += " AND (host = ? OR host LIKE ?)"
		args = append(args, host, "%."+host)
	}
	if !filter.IncludeFailed {
		query += " AND (error IS NULL OR error = '')"
	}
	query += " ORDER BY fetched_at, id"

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []model.PageRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		var rec model.PageRecord
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			continue // Skip malformed records
		}
		pages = append(pages, rec)
	}

	return pages, rows.Err()
}

// ListSubdomains returns the stored lookup results for domain (every domain
// when empty), most recent lookup of each FQDN only.
func (hdb *HarvestDB) ListSubdomains(ctx context.Context, domain string) ([]model.SubdomainResult, error) {
	query := `
	SELECT s.fqdn, s.resolved, s.ips, COALESCE(s.error, '')
	FROM subdomains s
	WHERE s.id = (SELECT MAX(id) FROM subdomains WHERE fqdn = s.fqdn)
	`
	args := make([]any, 0)

	if d := strings.ToLower(strings.TrimSpace(domain)); d != "" {
		query += " AND s.fqdn LIKE ?"
		args = append(args, "%."+d)
	}
	query += " ORDER BY s.fqdn"

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subdomains: %w", err)
	}
	defer rows.Close()

	var results []model.SubdomainResult
	for rows.Next() {
		var (
			res     model.SubdomainResult
			ipsJSON string
		)
		if err := rows.Scan(&res.FQDN, &res.Resolved, &ipsJSON, &res.Error); err != nil {
			return nil, fmt.Errorf("failed to scan subdomain: %w", err)
		}

		var ips []string
		if err := json.Unmarshal([]byte(ipsJSON), &ips); err != nil {
			return nil, fmt.Errorf("failed to parse addresses: %w", err)
		}
		res.ResolvedIPs = make([]netip.Addr, 0, len(ips))
		for _, s := range ips {
			if addr, err := netip.ParseAddr(s); err == nil {
				res.ResolvedIPs = append(res.ResolvedIPs, addr)
			}
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

// ListRuns returns every run, most recent first.
func (hdb *HarvestDB) ListRuns(ctx context.Context) ([]Run, error) {
	query := `
	SELECT id, kind, target, COALESCE(mode, ''), started_at, COALESCE(finished_at, ''), records
	FROM runs
	ORDER BY started_at DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			kind              string
			started, finished string
		)
		if err := rows.Scan(&run.ID, &kind, &run.Target, &run.Mode, &started, &finished, &run.Records); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Kind = RunKind(kind)
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Format written by this package
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
