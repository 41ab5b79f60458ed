package storage

import (
	"context"
	"fmt"

	"github.com/paperpulse/paperpulse/internal/record"
)

// AppendCitationEdge implements Repository. An existing edge for the
// same (citing, cited, method) key returns ErrDuplicateEdge; history is
// never overwritten.
func (d *DB) AppendCitationEdge(ctx context.Context, e record.CitationEdge) error {
	if err := e.ValidateForCreate(); err != nil {
		return err
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO citation_edges (citing_id, cited_id, method, ref_text, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(citing_id, cited_id, method) DO NOTHING`,
		e.CitingID, e.CitedID, e.Method, e.RefText, e.Confidence, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("appending edge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicateEdge
	}
	return nil
}

// ListCitationEdges implements Repository: all edges touching the
// identity, in either direction. Citation graphs may be cyclic, so
// traversing consumers must track visited identities themselves.
func (d *DB) ListCitationEdges(ctx context.Context, identity string) ([]record.CitationEdge, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT citing_id, cited_id, method, ref_text, confidence, created_at
		FROM citation_edges
		WHERE citing_id = ? OR cited_id = ?
		ORDER BY created_at`, identity, identity)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var edges []record.CitationEdge
	for rows.Next() {
		var e record.CitationEdge
		var createdAt string
		if err := rows.Scan(&e.CitingID, &e.CitedID, &e.Method, &e.RefText, &e.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
