package harness

import (
	"github.com/roach88/classprep/internal/model"
)

// Trace event types.
const (
	EventRun     = "run"
	EventCall    = "call"
	EventOutcome = "outcome"
)

// TraceEvent is one step of a scenario execution.
//
// A run event opens each run step, call events follow in the order the
// engine made them, and an outcome event closes the step with the record
// as it stands afterwards.
type TraceEvent struct {
	Seq          int64                `json:"seq"`
	Type         string               `json:"type"`
	RunID        string               `json:"run_id"`
	At           string               `json:"at,omitempty"`
	ScheduledFor string               `json:"scheduled_for,omitempty"`
	Op           string               `json:"op,omitempty"`
	Target       string               `json:"target,omitempty"`
	Failed       bool                 `json:"failed,omitempty"`
	Outcome      string               `json:"outcome,omitempty"`
	Code         string               `json:"code,omitempty"`
	Pairs        []model.ResourcePair `json:"pairs,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every run expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every run, call and outcome in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns the call events, optionally limited to one run.
func (r *Result) Calls(runID string) []TraceEvent {
	var calls []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventCall && (runID == "" || ev.RunID == runID) {
			calls = append(calls, ev)
		}
	}
	return calls
}
