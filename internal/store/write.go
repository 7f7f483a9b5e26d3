package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/classprep/internal/model"
)

// StartRun inserts a run row.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) StartRun(ctx context.Context, run model.RunEntry) error {
	outcome := run.Outcome
	if outcome == "" {
		outcome = model.OutcomeRunning
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, mode, started_at, scheduled_for, finished_at, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Mode,
		formatTime(run.StartedAt),
		formatTime(run.ScheduledFor),
		formatTime(run.FinishedAt),
		outcome,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// RecordAction inserts one remote call for a run.
// Each (run_id, seq) pair is written at most once; duplicates are ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) RecordAction(ctx context.Context, action model.ActionEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions
		(run_id, seq, kind, resource_id, name, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		action.RunID,
		action.Seq,
		action.Kind,
		action.ResourceID,
		action.Name,
		action.Outcome,
		action.Error,
	)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// FinishRun stores a run's final outcome.
func (s *Store) FinishRun(ctx context.Context, run model.RunEntry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET scheduled_for = ?, finished_at = ?, outcome = ?, error = ?
		WHERE id = ?
	`,
		formatTime(run.ScheduledFor),
		formatTime(run.FinishedAt),
		run.Outcome,
		run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run %q", run.ID)
	}
	return nil
}

// Timestamps are stored as UTC RFC 3339 text so they sort lexically.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// Fixed-width fractional seconds keep lexical order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
