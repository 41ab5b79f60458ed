package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paperpulse/paperpulse/internal/record"
)

// SaveUnmatchedReference implements Repository. Re-saving the same
// (citing, raw text) pair leaves the existing row untouched, so matching
// the same bibliography every crawl cannot grow the backlog.
func (d *DB) SaveUnmatchedReference(ctx context.Context, u record.UnmatchedReference) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO unmatched_refs (citing_id, raw_text, title, year, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(citing_id, raw_text) DO NOTHING`,
		u.CitingID, u.RawText, u.Title, u.Year, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving unmatched reference: %w", err)
	}
	return nil
}

// ListUnmatchedReferences implements Repository, oldest first so long-
// waiting entries get rematched before fresh ones.
func (d *DB) ListUnmatchedReferences(ctx context.Context, limit int) ([]record.UnmatchedReference, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, citing_id, raw_text, title, year, created_at
		FROM unmatched_refs
		ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unmatched references: %w", err)
	}
	defer rows.Close()

	var refs []record.UnmatchedReference
	for rows.Next() {
		var u record.UnmatchedReference
		var createdAt string
		if err := rows.Scan(&u.ID, &u.CitingID, &u.RawText, &u.Title, &u.Year, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning unmatched reference: %w", err)
		}
		u.CreatedAt = parseTime(createdAt)
		refs = append(refs, u)
	}
	return refs, rows.Err()
}

// DeleteUnmatchedReference implements Repository.
func (d *DB) DeleteUnmatchedReference(ctx context.Context, id int64) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM unmatched_refs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting unmatched reference: %w", err)
	}
	return nil
}

// SaveJobAudit implements Repository. Re-saving a job ID overwrites its
// audit row; jobs only persist terminal states.
func (d *DB) SaveJobAudit(ctx context.Context, a JobAudit) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO job_audit (id, kind, params, state, done, total,
			succeeded, skipped, failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			done = excluded.done,
			total = excluded.total,
			succeeded = excluded.succeeded,
			skipped = excluded.skipped,
			failed = excluded.failed,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		a.ID, a.Kind, a.Params, a.State, a.Done, a.Total,
		a.Succeeded, a.Skipped, a.Failed, a.Error,
		formatTime(a.StartedAt), formatTime(a.FinishedAt))
	if err != nil {
		return fmt.Errorf("saving job audit: %w", err)
	}
	return nil
}

// GetJobAudit implements Repository.
func (d *DB) GetJobAudit(ctx context.Context, id string) (JobAudit, error) {
	var a JobAudit
	var startedAt, finishedAt string
	err := d.db.QueryRowContext(ctx, `
		SELECT id, kind, params, state, done, total,
			succeeded, skipped, failed, error, started_at, finished_at
		FROM job_audit WHERE id = ?`, id).Scan(
		&a.ID, &a.Kind, &a.Params, &a.State, &a.Done, &a.Total,
		&a.Succeeded, &a.Skipped, &a.Failed, &a.Error, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return JobAudit{}, ErrNotFound
	}
	if err != nil {
		return JobAudit{}, fmt.Errorf("reading job audit: %w", err)
	}
	a.StartedAt = parseTime(startedAt)
	a.FinishedAt = parseTime(finishedAt)
	return a, nil
}
