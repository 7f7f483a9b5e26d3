package model

import (
	"encoding/json"
	"time"
)

// NOTE: These are diagnostic types written to the run history ledger and
// the error-detail file. Nothing reads them back to decide what a run does.

// Run outcomes.
const (
	OutcomeRunning   = "running"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Run modes.
const (
	ModeProvision = "provision"
	ModeCourses   = "courses"
)

// RunEntry describes one invocation in the ledger.
type RunEntry struct {
	ID           string    `json:"id"`
	Mode         string    `json:"mode"`
	StartedAt    time.Time `json:"started_at"`
	ScheduledFor time.Time `json:"scheduled_for,omitzero"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Outcome      string    `json:"outcome"`
	Error        string    `json:"error,omitempty"`
}

// ActionEntry is one remote call made during a run.
type ActionEntry struct {
	RunID      string `json:"run_id"`
	Seq        int64  `json:"seq"` // Logical clock, per run
	Kind       string `json:"kind"`
	ResourceID string `json:"resource_id"`
	Name       string `json:"name,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}

// Failure is one entry of the error-detail file.
type Failure struct {
	RunID      string          `json:"run_id"`
	Code       string          `json:"code"`
	Op         string          `json:"op"`
	ResourceID string          `json:"resource_id,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	At         time.Time       `json:"at"`
	Message    string          `json:"message"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
