package storage

import (
	"context"
	"fmt"

	"mercurial/artifact"
)

// RecordArtifact adds a written artifact to the ledger.
func (s *Store) RecordArtifact(ctx context.Context, a artifact.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO artifacts (id, session_id, path, language, extension, bytes, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.SessionID,
		a.Path,
		a.Language,
		a.Extension,
		a.Bytes,
		a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the most recent artifacts, newest first. A limit of
// zero or less returns all of them.
func (s *Store) ListArtifacts(ctx context.Context, limit int) ([]artifact.Artifact, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, session_id, path, language, extension, bytes, created_at
	FROM artifacts
	ORDER BY created_at DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []artifact.Artifact
	for rows.Next() {
		var a artifact.Artifact
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Path, &a.Language, &a.Extension, &a.Bytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

// CountArtifacts returns the number of recorded artifacts.
func (s *Store) CountArtifacts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count artifacts: %w", err)
	}
	return n, nil
}
