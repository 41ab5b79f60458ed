package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/paperpulse/paperpulse/internal/record"
)

// DB is the SQLite-backed repository implementation.
type DB struct {
	db *sql.DB
}

// Compile-time check that DB satisfies the repository contract.
var _ Repository = (*DB)(nil)

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			identity TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors_json TEXT NOT NULL,
			abstract_json TEXT,
			pub_year INTEGER NOT NULL,
			pub_month INTEGER,
			pub_day INTEGER,
			repo_url TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			bibliography_json TEXT,
			provenance_json TEXT NOT NULL,
			score_json TEXT,
			last_metrics_error TEXT NOT NULL DEFAULT '',
			metric_failures INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			last_seen TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_year ON records(pub_year);

		CREATE TABLE IF NOT EXISTS citation_edges (
			citing_id TEXT NOT NULL,
			cited_id TEXT NOT NULL,
			method TEXT NOT NULL,
			ref_text TEXT NOT NULL,
			confidence INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (citing_id, cited_id, method)
		);

		CREATE INDEX IF NOT EXISTS idx_edges_cited ON citation_edges(cited_id);

		CREATE TABLE IF NOT EXISTS metric_snapshots (
			identity TEXT NOT NULL,
			metric TEXT NOT NULL,
			date TEXT NOT NULL,
			value INTEGER NOT NULL,
			observed_at TEXT NOT NULL,
			PRIMARY KEY (identity, metric, date)
		);

		CREATE TABLE IF NOT EXISTS unmatched_refs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			citing_id TEXT NOT NULL,
			raw_text TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			UNIQUE (citing_id, raw_text)
		);

		CREATE TABLE IF NOT EXISTS job_audit (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			params TEXT,
			state TEXT NOT NULL,
			done INTEGER NOT NULL,
			total INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			started_at TEXT,
			finished_at TEXT
		);
	`

	_, err := db.Exec(schema)
	return err
}

// marshalJSON encodes a value for a JSON column, "" for nil/zero input
// handled by callers.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding JSON column: %w", err)
	}
	return string(data), nil
}

// parseTime decodes an RFC3339 column, tolerating empty values.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// formatTime encodes a timestamp column.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// scoreColumn encodes an optional score.
func scoreColumn(s *record.Score) (string, error) {
	if s == nil {
		return "", nil
	}
	return marshalJSON(s)
}
