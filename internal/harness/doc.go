// Package harness runs classprep scenarios against in-memory remote services
// and compares their traces with golden files.
//
// A scenario seeds the fake drive and classroom, optionally seeds the run
// record, then invokes the real engine once per run step at a fixed wall
// clock time. Remote failures are injected per (op, target) before a step.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	course_id: course-1
//	templates:
//	  - name: Warm-up
//	    source_file_id: tmpl-warmup
//	setup:
//	  files: { tmpl-warmup: Warm-up }
//	  assignments:
//	    - { id: a-old, title: "Warm-up - Friday", file_id: f-old }
//	  record:
//	    - { file_id: f-old, assignment_id: a-old }
//	runs:
//	  - at: "2026-10-19T07:00:00Z"
//	    fail:
//	      - { op: create_assignment, target: "Warm-up - Monday" }
//	    expect: { outcome: failed, code: REMOTE_CALL_FAILURE }
//	assertions:
//	  - type: trace_order
//	    calls: ["delete_assignment a-old", "delete_file f-old"]
//
// # Assertion Types
//
//   - trace_contains: a call with op and target appears in the trace
//   - trace_order: calls appear in the given order, not necessarily adjacent
//   - trace_count: op was called exactly count times
//   - final_record: the run record holds exactly pairs (absent: no record)
//   - final_remote: the fake services hold exactly files and assignments
//   - ledger: the history ledger recorded runs with the given outcomes
//
// Every run also writes to an in-memory history ledger, so scenarios
// exercise the same journal the command uses.
package harness
