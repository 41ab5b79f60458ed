package storage

import (
	"context"
	"fmt"

	"github.com/paperpulse/paperpulse/internal/record"
)

// AppendSnapshot implements Repository. Snapshots are immutable; a
// second write for the same (identity, metric, date) key returns
// ErrSnapshotExists and leaves the stored value untouched.
func (d *DB) AppendSnapshot(ctx context.Context, s record.MetricSnapshot) error {
	if err := s.ValidateForCreate(); err != nil {
		return err
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO metric_snapshots (identity, metric, date, value, observed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identity, metric, date) DO NOTHING`,
		s.Identity, s.Metric, s.Date, s.Value, formatTime(s.ObservedAt))
	if err != nil {
		return fmt.Errorf("appending snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSnapshotExists
	}
	return nil
}

// ListSnapshots implements Repository, ordered by date ascending as the
// score computation expects.
func (d *DB) ListSnapshots(ctx context.Context, identity string) ([]record.MetricSnapshot, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT identity, metric, date, value, observed_at
		FROM metric_snapshots
		WHERE identity = ?
		ORDER BY date, metric`, identity)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []record.MetricSnapshot
	for rows.Next() {
		var s record.MetricSnapshot
		var observedAt string
		if err := rows.Scan(&s.Identity, &s.Metric, &s.Date, &s.Value, &observedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		s.ObservedAt = parseTime(observedAt)
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}
