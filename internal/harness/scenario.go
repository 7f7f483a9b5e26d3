package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/classprep/internal/model"
	"github.com/roach88/classprep/internal/schedule"
)

// Scenario defines a sequence of classprep runs against seeded remote state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	CourseID  string                     `yaml:"course_id"`
	Templates []model.AssignmentTemplate `yaml:"templates"`

	// Timezone is an IANA name; empty means UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// ReleaseTime is "HH:MM"; empty means 08:00.
	ReleaseTime string `yaml:"release_time,omitempty"`

	Setup Setup `yaml:"setup,omitempty"`

	// Runs are executed in order against the same remote and record.
	Runs []RunStep `yaml:"runs"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup seeds state before the first run.
type Setup struct {
	// Files maps drive file ids to names. Templates live here.
	Files map[string]string `yaml:"files,omitempty"`

	Assignments []SeedAssignment `yaml:"assignments,omitempty"`
	Courses     []model.Course   `yaml:"courses,omitempty"`

	// Record, if set, is saved as the previous run's record.
	Record []model.ResourcePair `yaml:"record,omitempty"`

	// RawRecord, if set, is written verbatim as the record file.
	RawRecord string `yaml:"raw_record,omitempty"`
}

// SeedAssignment is an assignment left by an earlier run.
type SeedAssignment struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	FileID string `yaml:"file_id"`
}

// RunStep is one invocation of the provisioning engine.
type RunStep struct {
	// At is the wall clock time of the run, RFC 3339.
	At string `yaml:"at"`

	// Fail injects remote failures before the run.
	Fail []Injection `yaml:"fail,omitempty"`

	// Clear removes injected failures before the run.
	Clear []Injection `yaml:"clear,omitempty"`

	Expect *RunExpect `yaml:"expect,omitempty"`
}

// Injection names a remote call by op and target (id, source id or title).
type Injection struct {
	Op     string `yaml:"op"`
	Target string `yaml:"target"`
}

// RunExpect is checked after a run step.
type RunExpect struct {
	// Outcome is "succeeded" or "failed".
	Outcome string `yaml:"outcome"`

	// Code is the expected error code of a failed run.
	Code string `yaml:"code,omitempty"`

	// Calls, if set, is the exact number of remote calls the run makes.
	Calls *int `yaml:"calls,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check a call with op and target appears
	// - "trace_order": Check calls appear in order
	// - "trace_count": Check op is called exactly Count times
	// - "final_record": Check the record's pairs
	// - "final_remote": Check the fake services' file and assignment ids
	// - "ledger": Check the history ledger's run outcomes
	Type string `yaml:"type"`

	// Op and Target identify a call (trace_contains, trace_count).
	Op     string `yaml:"op,omitempty"`
	Target string `yaml:"target,omitempty"`

	// Calls are "op target" strings (trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Count is the expected number of calls (trace_count).
	Count int `yaml:"count,omitempty"`

	// Pairs is the expected record content (final_record).
	Pairs []model.ResourcePair `yaml:"pairs,omitempty"`

	// Absent expects no record file at all (final_record).
	Absent bool `yaml:"absent,omitempty"`

	// Files and Assignments are sorted id lists (final_remote).
	Files       []string `yaml:"files,omitempty"`
	Assignments []string `yaml:"assignments,omitempty"`

	// Outcomes lists each run's ledger outcome in run order (ledger).
	Outcomes []string `yaml:"outcomes,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalRecord   = "final_record"
	AssertFinalRemote   = "final_remote"
	AssertLedger        = "ledger"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.CourseID == "" {
		return fmt.Errorf("course_id is required")
	}

	if len(s.Templates) == 0 {
		return fmt.Errorf("templates list is required and must be non-empty")
	}
	for i, t := range s.Templates {
		if t.Name == "" || t.SourceFileID == "" {
			return fmt.Errorf("templates[%d]: name and source_file_id are required", i)
		}
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if s.ReleaseTime != "" {
		if _, err := schedule.ParseClock(s.ReleaseTime); err != nil {
			return fmt.Errorf("release_time: %w", err)
		}
	}

	if s.Setup.Record != nil && s.Setup.RawRecord != "" {
		return fmt.Errorf("setup: record and raw_record are mutually exclusive")
	}

	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}
	for i, step := range s.Runs {
		if _, err := time.Parse(time.RFC3339, step.At); err != nil {
			return fmt.Errorf("runs[%d].at: %w", i, err)
		}
		for j, inj := range append(append([]Injection{}, step.Fail...), step.Clear...) {
			if inj.Op == "" {
				return fmt.Errorf("runs[%d]: injection %d: op is required", i, j)
			}
		}
		if step.Expect != nil && step.Expect.Outcome != model.OutcomeSucceeded && step.Expect.Outcome != model.OutcomeFailed {
			return fmt.Errorf("runs[%d].expect: outcome must be %q or %q", i, model.OutcomeSucceeded, model.OutcomeFailed)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: trace_contains requires op", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order requires at least 2 calls", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: trace_count requires op", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: trace_count requires count >= 0", index)
		}
	case AssertFinalRecord:
		if a.Absent && len(a.Pairs) > 0 {
			return fmt.Errorf("assertions[%d]: final_record cannot be absent and have pairs", index)
		}
	case AssertFinalRemote:
	case AssertLedger:
		if len(a.Outcomes) == 0 {
			return fmt.Errorf("assertions[%d]: ledger requires outcomes", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
