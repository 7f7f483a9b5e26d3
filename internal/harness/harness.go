package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/classprep/internal/engine"
	"github.com/roach88/classprep/internal/model"
	"github.com/roach88/classprep/internal/record"
	"github.com/roach88/classprep/internal/schedule"
	"github.com/roach88/classprep/internal/store"
	"github.com/roach88/classprep/internal/testutil"
)

// Harness holds the state shared by a scenario's run steps.
type Harness struct {
	store   *store.Store
	remote  *testutil.Remote
	records *record.FileStore
	engine  *engine.Engine
	clock   *testutil.FixedClock
	seq     *engine.Clock
	loc     *time.Location
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory ledger, a fresh fake remote
// and a record file in a temporary directory.
//
// Execution flow:
// 1. Seed the remote and the record
// 2. For each run step: set the clock, inject failures, run the engine
// 3. Check each step's expectation
// 4. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "classprep-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	loc := time.UTC
	if scenario.Timezone != "" {
		if loc, err = time.LoadLocation(scenario.Timezone); err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
	}
	release := schedule.DefaultRelease
	if scenario.ReleaseTime != "" {
		if release, err = schedule.ParseClock(scenario.ReleaseTime); err != nil {
			return nil, fmt.Errorf("release_time: %w", err)
		}
	}

	h := &Harness{
		store:   st,
		remote:  testutil.NewRemote(),
		records: record.InDir(dir),
		clock:   testutil.NewFixedClock(time.Time{}),
		seq:     engine.NewClock(),
		loc:     loc,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	if err := h.seed(scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	h.engine = engine.New(engine.Config{
		CourseID:  scenario.CourseID,
		Templates: scenario.Templates,
		Release:   release,
		Location:  loc,
	}, h.remote.Drive, h.remote.Classroom, h.records, &testutil.MemorySink{},
		engine.WithJournal(st),
		engine.WithRunIDGenerator(testutil.NewSeqIDGenerator("run")),
		engine.WithNow(h.clock.Now),
		engine.WithLogger(h.logger),
	)

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Runs {
		if err := h.executeRun(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute run %d: %w", i, err)
		}
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   h.store,
		Remote:  h.remote,
		Records: h.records,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// seed loads the scenario's setup into the fake remote and the record.
func (h *Harness) seed(s *Scenario) error {
	for id, name := range s.Setup.Files {
		h.remote.AddFile(id, name)
	}
	for _, a := range s.Setup.Assignments {
		h.remote.AddAssignment(a.ID, s.CourseID, model.AssignmentDraft{Title: a.Title, FileID: a.FileID})
	}
	for _, c := range s.Setup.Courses {
		h.remote.AddCourse(c.ID, c.Name)
	}

	switch {
	case s.Setup.RawRecord != "":
		if err := os.WriteFile(h.records.Path(), []byte(s.Setup.RawRecord), 0o644); err != nil {
			return fmt.Errorf("write raw record: %w", err)
		}
	case s.Setup.Record != nil:
		if err := h.records.Save(&model.RunRecord{RunID: "setup", Pairs: s.Setup.Record}); err != nil {
			return fmt.Errorf("save record: %w", err)
		}
	}
	return nil
}

// executeRun runs the engine once and appends its trace.
func (h *Harness) executeRun(ctx context.Context, index int, step RunStep, result *Result) error {
	at, err := time.Parse(time.RFC3339, step.At)
	if err != nil {
		return fmt.Errorf("at: %w", err)
	}
	h.clock.Set(at)

	for _, inj := range step.Clear {
		h.remote.ClearFailure(inj.Op, inj.Target)
	}
	for _, inj := range step.Fail {
		h.remote.FailOn(inj.Op, inj.Target)
	}

	before := h.remote.CallCount()
	res, runErr := h.engine.Run(ctx)

	result.Trace = append(result.Trace, TraceEvent{
		Seq:          h.seq.Next(),
		Type:         EventRun,
		RunID:        res.RunID,
		At:           at.UTC().Format(time.RFC3339),
		ScheduledFor: res.ScheduledFor.Format(time.RFC3339),
	})

	calls := h.remote.Calls()[before:]
	for _, c := range calls {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:    h.seq.Next(),
			Type:   EventCall,
			RunID:  res.RunID,
			Op:     c.Op,
			Target: c.Target,
			Failed: c.Failed,
		})
	}

	outcome, code := classify(runErr)
	pairs, err := h.currentPairs()
	if err != nil {
		return err
	}
	result.Trace = append(result.Trace, TraceEvent{
		Seq:     h.seq.Next(),
		Type:    EventOutcome,
		RunID:   res.RunID,
		Outcome: outcome,
		Code:    code,
		Pairs:   pairs,
	})

	h.logger.Info("run step completed",
		"step", index,
		"run_id", res.RunID,
		"outcome", outcome,
		"calls", len(calls),
	)

	if step.Expect == nil {
		return nil
	}
	if step.Expect.Outcome != outcome {
		result.AddError(fmt.Sprintf("runs[%d]: expected outcome %s, got %s (error: %v)", index, step.Expect.Outcome, outcome, runErr))
	}
	if step.Expect.Code != "" && step.Expect.Code != code {
		result.AddError(fmt.Sprintf("runs[%d]: expected code %s, got %q", index, step.Expect.Code, code))
	}
	if step.Expect.Calls != nil && *step.Expect.Calls != len(calls) {
		result.AddError(fmt.Sprintf("runs[%d]: expected %d remote calls, got %d", index, *step.Expect.Calls, len(calls)))
	}
	return nil
}

// currentPairs reads the record as the next run would. A missing or
// unreadable record yields no pairs.
func (h *Harness) currentPairs() ([]model.ResourcePair, error) {
	rec, err := h.records.Load()
	switch {
	case errors.Is(err, record.ErrNotFound), errors.Is(err, record.ErrCorrupt):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load record: %w", err)
	}
	return rec.Pairs, nil
}

func classify(err error) (outcome, code string) {
	if err == nil {
		return model.OutcomeSucceeded, ""
	}
	var rerr *engine.RunError
	if errors.As(err, &rerr) {
		return model.OutcomeFailed, string(rerr.Code)
	}
	return model.OutcomeFailed, ""
}
