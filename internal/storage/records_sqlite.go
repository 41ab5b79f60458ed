package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paperpulse/paperpulse/internal/record"
)

// selectRecordFields is the standard field list for record SELECTs.
const selectRecordFields = `identity, title, authors_json, abstract_json,
	pub_year, pub_month, pub_day, repo_url, source_url,
	bibliography_json, provenance_json, score_json,
	last_metrics_error, metric_failures, created_at, last_seen`

// GetByIdentity implements Repository.
func (d *DB) GetByIdentity(ctx context.Context, identity string) (record.Record, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+selectRecordFields+` FROM records WHERE identity = ?`, identity)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, ErrNotFound
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("reading record: %w", err)
	}
	return rec, nil
}

// UpsertRecord implements Repository. The full record state is written
// in one statement keyed by identity, so the write is atomic and
// idempotent.
func (d *DB) UpsertRecord(ctx context.Context, rec record.Record) error {
	authorsJSON, err := marshalJSON(rec.Authors)
	if err != nil {
		return err
	}
	abstractJSON, err := marshalJSON(rec.Abstract)
	if err != nil {
		return err
	}
	bibJSON, err := marshalJSON(rec.Bibliography)
	if err != nil {
		return err
	}
	provJSON, err := marshalJSON(rec.Provenance)
	if err != nil {
		return err
	}
	scoreJSON, err := scoreColumn(rec.Score)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO records (
			identity, title, authors_json, abstract_json,
			pub_year, pub_month, pub_day, repo_url, source_url,
			bibliography_json, provenance_json, score_json,
			last_metrics_error, metric_failures, created_at, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			title = excluded.title,
			authors_json = excluded.authors_json,
			abstract_json = excluded.abstract_json,
			pub_year = excluded.pub_year,
			pub_month = excluded.pub_month,
			pub_day = excluded.pub_day,
			repo_url = excluded.repo_url,
			source_url = excluded.source_url,
			bibliography_json = excluded.bibliography_json,
			provenance_json = excluded.provenance_json,
			score_json = excluded.score_json,
			last_metrics_error = excluded.last_metrics_error,
			metric_failures = excluded.metric_failures,
			last_seen = excluded.last_seen`,
		rec.Identity, rec.Title, authorsJSON, abstractJSON,
		rec.Published.Year, rec.Published.Month, rec.Published.Day,
		rec.RepoURL, rec.SourceURL,
		bibJSON, provJSON, scoreJSON,
		rec.LastMetricsError, rec.MetricFailures,
		formatTime(rec.CreatedAt), formatTime(rec.LastSeen))
	if err != nil {
		return fmt.Errorf("upserting record: %w", err)
	}
	return nil
}

// ListCandidatesForMatching implements Repository.
func (d *DB) ListCandidatesForMatching(ctx context.Context, year, limit int) ([]record.Record, error) {
	query := `SELECT ` + selectRecordFields + ` FROM records`
	args := []any{}
	if year != 0 {
		query += ` WHERE pub_year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY last_seen DESC LIMIT ?`
	args = append(args, limit)

	return d.queryRecords(ctx, query, args...)
}

// ListRecordsWithExternalLinks implements Repository.
func (d *DB) ListRecordsWithExternalLinks(ctx context.Context, limit int) ([]record.Record, error) {
	query := `SELECT ` + selectRecordFields + ` FROM records
		WHERE repo_url != '' OR source_url != ''
		ORDER BY identity LIMIT ?`
	return d.queryRecords(ctx, query, limit)
}

// SearchRecords implements Repository. LIKE wildcards in the query are
// escaped so user input always means a literal substring.
func (d *DB) SearchRecords(ctx context.Context, query string, limit int) ([]record.Record, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	q := `SELECT ` + selectRecordFields + ` FROM records
		WHERE LOWER(title) LIKE ? ESCAPE '\'
		ORDER BY last_seen DESC LIMIT ?`
	return d.queryRecords(ctx, q, pattern, limit)
}

// escapeLike escapes LIKE metacharacters in a literal search term.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// UpdateScore implements Repository.
func (d *DB) UpdateScore(ctx context.Context, identity string, score record.Score) error {
	scoreJSON, err := marshalJSON(score)
	if err != nil {
		return err
	}
	res, err := d.db.ExecContext(ctx,
		`UPDATE records SET score_json = ? WHERE identity = ?`, scoreJSON, identity)
	if err != nil {
		return fmt.Errorf("updating score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMetricsError implements Repository. An empty message clears the
// error and resets the consecutive-failure counter.
func (d *DB) SetMetricsError(ctx context.Context, identity, msg string) error {
	var err error
	if msg == "" {
		_, err = d.db.ExecContext(ctx,
			`UPDATE records SET last_metrics_error = '', metric_failures = 0
			WHERE identity = ?`, identity)
	} else {
		_, err = d.db.ExecContext(ctx,
			`UPDATE records SET last_metrics_error = ?, metric_failures = metric_failures + 1
			WHERE identity = ?`, msg, identity)
	}
	if err != nil {
		return fmt.Errorf("setting metrics error: %w", err)
	}
	return nil
}

// queryRecords runs a record SELECT and scans all rows.
func (d *DB) queryRecords(ctx context.Context, query string, args ...any) ([]record.Record, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var recs []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord decodes one record row.
func scanRecord(row rowScanner) (record.Record, error) {
	var rec record.Record
	var authorsJSON, abstractJSON, bibJSON, provJSON, scoreJSON string
	var createdAt, lastSeen string

	err := row.Scan(
		&rec.Identity, &rec.Title, &authorsJSON, &abstractJSON,
		&rec.Published.Year, &rec.Published.Month, &rec.Published.Day,
		&rec.RepoURL, &rec.SourceURL,
		&bibJSON, &provJSON, &scoreJSON,
		&rec.LastMetricsError, &rec.MetricFailures, &createdAt, &lastSeen)
	if err != nil {
		return record.Record{}, err
	}

	if authorsJSON != "" {
		if err := json.Unmarshal([]byte(authorsJSON), &rec.Authors); err != nil {
			return record.Record{}, fmt.Errorf("decoding authors: %w", err)
		}
	}
	if abstractJSON != "" {
		if err := json.Unmarshal([]byte(abstractJSON), &rec.Abstract); err != nil {
			return record.Record{}, fmt.Errorf("decoding abstract: %w", err)
		}
	}
	if bibJSON != "" {
		if err := json.Unmarshal([]byte(bibJSON), &rec.Bibliography); err != nil {
			return record.Record{}, fmt.Errorf("decoding bibliography: %w", err)
		}
	}
	if provJSON != "" {
		if err := json.Unmarshal([]byte(provJSON), &rec.Provenance); err != nil {
			return record.Record{}, fmt.Errorf("decoding provenance: %w", err)
		}
	}
	if scoreJSON != "" {
		rec.Score = &record.Score{}
		if err := json.Unmarshal([]byte(scoreJSON), rec.Score); err != nil {
			return record.Record{}, fmt.Errorf("decoding score: %w", err)
		}
	}

	rec.CreatedAt = parseTime(createdAt)
	rec.LastSeen = parseTime(lastSeen)
	return rec, nil
}
