package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/classprep/internal/model"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)

// createTestRun writes a running provisioning run.
func createTestRun(t *testing.T, s *Store, id string, startedAt time.Time) model.RunEntry {
	t.Helper()
	run := model.RunEntry{
		ID:        id,
		Mode:      model.ModeProvision,
		StartedAt: startedAt,
		Outcome:   model.OutcomeRunning,
	}
	if err := s.StartRun(context.Background(), run); err != nil {
		t.Fatalf("StartRun(%s) failed: %v", id, err)
	}
	return run
}
