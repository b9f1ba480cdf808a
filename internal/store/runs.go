package store

import (
	"context"
	"fmt"
	"time"
)

const (
	sqlInsertRun = `INSERT INTO sync_runs
		(id, started_at, finished_at, dry_run, categories, series,
		 created, updated, skipped, abandoned, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlRecentRuns = `SELECT id, started_at, finished_at, dry_run, categories,
		series, created, updated, skipped, abandoned, error
		FROM sync_runs ORDER BY started_at DESC LIMIT ?`
)

// RunRecord is one row of the sync run ledger.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Categories int
	Series     int
	Created    int
	Updated    int
	Skipped    int
	Abandoned  int
	Error      string // empty on success
}

// RecordRun appends a run to the ledger.
func (s *Store) RecordRun(ctx context.Context, r *RunRecord) error {
	_, err := s.db.ExecContext(ctx, sqlInsertRun,
		r.ID, r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(), r.DryRun,
		r.Categories, r.Series, r.Created, r.Updated, r.Skipped, r.Abandoned,
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("store: recording run %s: %w", r.ID, err)
	}

	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("store: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord

	for rows.Next() {
		var (
			r                 RunRecord
			started, finished int64
		)

		if err := rows.Scan(&r.ID, &started, &finished, &r.DryRun, &r.Categories,
			&r.Series, &r.Created, &r.Updated, &r.Skipped, &r.Abandoned, &r.Error); err != nil {
			return nil, fmt.Errorf("store: scanning run row: %w", err)
		}

		r.StartedAt = time.Unix(0, started)
		r.FinishedAt = time.Unix(0, finished)
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating run rows: %w", err)
	}

	return runs, nil
}
