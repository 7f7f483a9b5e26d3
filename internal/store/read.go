package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/classprep/internal/model"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// ListRuns returns the most recent runs, newest first.
// A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunEntry, error) {
	query := `
		SELECT id, mode, started_at, scheduled_for, finished_at, outcome, error
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.RunEntry{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (model.RunEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, started_at, scheduled_for, finished_at, outcome, error
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunEntry{}, fmt.Errorf("get run %q: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return model.RunEntry{}, err
	}
	return run, nil
}

// ActionsForRun returns a run's remote calls in seq order.
func (s *Store) ActionsForRun(ctx context.Context, runID string) ([]model.ActionEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, resource_id, name, outcome, error
		FROM actions
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []model.ActionEntry{}
	for rows.Next() {
		var a model.ActionEntry
		if err := rows.Scan(&a.RunID, &a.Seq, &a.Kind, &a.ResourceID, &a.Name, &a.Outcome, &a.Error); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}

	return actions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.RunEntry, error) {
	var run model.RunEntry
	var startedAt, scheduledFor, finishedAt string
	if err := row.Scan(&run.ID, &run.Mode, &startedAt, &scheduledFor, &finishedAt, &run.Outcome, &run.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return run, fmt.Errorf("scan run %s: started_at: %w", run.ID, err)
	}
	if run.ScheduledFor, err = parseTime(scheduledFor); err != nil {
		return run, fmt.Errorf("scan run %s: scheduled_for: %w", run.ID, err)
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return run, fmt.Errorf("scan run %s: finished_at: %w", run.ID, err)
	}
	return run, nil
}
