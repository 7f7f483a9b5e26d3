package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classprep/internal/model"
)

func TestStartRun_DefaultsToRunning(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StartRun(ctx, model.RunEntry{
		ID:        "run-1",
		Mode:      model.ModeProvision,
		StartedAt: testStart,
	}))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRunning, got.Outcome)
	assert.True(t, got.StartedAt.Equal(testStart))
	assert.True(t, got.FinishedAt.IsZero())
	assert.True(t, got.ScheduledFor.IsZero())
}

func TestStartRun_DuplicateIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-1", testStart)
	require.NoError(t, s.StartRun(ctx, model.RunEntry{
		ID:        "run-1",
		Mode:      model.ModeCourses,
		StartedAt: testStart.Add(time.Hour),
	}))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.ModeProvision, got.Mode, "first write wins")
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun(t, s, "run-1", testStart)
	run.ScheduledFor = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	run.FinishedAt = testStart.Add(3 * time.Second)
	run.Outcome = model.OutcomeFailed
	run.Error = "REMOTE_CALL_FAILURE: remote call failed"
	require.NoError(t, s.FinishRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailed, got.Outcome)
	assert.Equal(t, run.Error, got.Error)
	assert.True(t, got.ScheduledFor.Equal(run.ScheduledFor))
	assert.True(t, got.FinishedAt.Equal(run.FinishedAt))
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.FinishRun(context.Background(), model.RunEntry{ID: "missing", Outcome: model.OutcomeSucceeded})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown run "missing"`)
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRecordAction_RequiresRun(t *testing.T) {
	s := createTestStore(t)

	err := s.RecordAction(context.Background(), model.ActionEntry{
		RunID:      "missing",
		Seq:        1,
		Kind:       "copy_file",
		ResourceID: "tmpl-1",
		Outcome:    model.OutcomeSucceeded,
	})
	assert.Error(t, err, "foreign key must reject actions for unknown runs")
}

func TestActionsForRun_SeqOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", testStart)
	createTestRun(t, s, "run-2", testStart.Add(time.Hour))

	// Insert out of order; reads must come back by seq.
	for _, a := range []model.ActionEntry{
		{RunID: "run-1", Seq: 3, Kind: "create_assignment", ResourceID: "f1", Name: "Worksheet - Monday", Outcome: model.OutcomeSucceeded},
		{RunID: "run-1", Seq: 1, Kind: "delete_assignment", ResourceID: "a0", Outcome: model.OutcomeSucceeded},
		{RunID: "run-1", Seq: 2, Kind: "copy_file", ResourceID: "tmpl-1", Name: "Worksheet - Monday", Outcome: model.OutcomeFailed, Error: "boom"},
		{RunID: "run-2", Seq: 1, Kind: "delete_file", ResourceID: "f1", Outcome: model.OutcomeSucceeded},
	} {
		require.NoError(t, s.RecordAction(ctx, a))
	}

	actions, err := s.ActionsForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, actions, 3)
	for i, a := range actions {
		assert.Equal(t, int64(i+1), a.Seq)
		assert.Equal(t, "run-1", a.RunID)
	}
	assert.Equal(t, "delete_assignment", actions[0].Kind)
	assert.Equal(t, "boom", actions[1].Error)
	assert.Equal(t, "Worksheet - Monday", actions[2].Name)
}

func TestActionsForRun_DuplicateSeqIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", testStart)

	a := model.ActionEntry{RunID: "run-1", Seq: 1, Kind: "copy_file", ResourceID: "tmpl-1", Outcome: model.OutcomeSucceeded}
	require.NoError(t, s.RecordAction(ctx, a))
	a.Outcome = model.OutcomeFailed
	require.NoError(t, s.RecordAction(ctx, a))

	actions, err := s.ActionsForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.OutcomeSucceeded, actions[0].Outcome)
}

func TestActionsForRun_Empty(t *testing.T) {
	s := createTestStore(t)

	actions, err := s.ActionsForRun(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, actions, "should return empty slice, not nil")
	assert.Empty(t, actions)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-b", testStart.Add(24*time.Hour))
	createTestRun(t, s, "run-a", testStart)
	createTestRun(t, s, "run-c", testStart.Add(48*time.Hour))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"run-c", "run-b", "run-a"}, ids)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestListRuns_SubsecondOrdering(t *testing.T) {
	s := createTestStore(t)

	// Fractional seconds must not break lexical ordering.
	createTestRun(t, s, "run-early", testStart.Add(100*time.Millisecond))
	createTestRun(t, s, "run-late", testStart.Add(900*time.Millisecond))
	createTestRun(t, s, "run-whole", testStart)

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-late", runs[0].ID)
	assert.Equal(t, "run-early", runs[1].ID)
	assert.Equal(t, "run-whole", runs[2].ID)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestTimestampsStoredAsUTC(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	loc := time.FixedZone("UTC-4", -4*3600)
	local := time.Date(2026, 10, 19, 3, 0, 0, 0, loc)
	createTestRun(t, s, "run-1", local)

	var raw string
	require.NoError(t, s.db.QueryRow("SELECT started_at FROM runs WHERE id = 'run-1'").Scan(&raw))
	assert.Equal(t, "2026-10-19T07:00:00.000000000Z", raw)

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, got.StartedAt.Equal(local))
}
