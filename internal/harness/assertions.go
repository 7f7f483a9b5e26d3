package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/classprep/internal/model"
	"github.com/roach88/classprep/internal/record"
	"github.com/roach88/classprep/internal/store"
	"github.com/roach88/classprep/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type != EventCall {
				continue
			}
			failed := ""
			if event.Failed {
				failed = " (failed)"
			}
			fmt.Fprintf(&buf, "  [%d] %s %s %s%s\n", event.Seq, event.RunID, event.Op, event.Target, failed)
		}
	}

	return buf.String()
}

// assertTraceContains checks that some call matches op and, if set, target.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchCall(event, assertion.Op, assertion.Target) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s", formatCall(assertion.Op, assertion.Target)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the calls appear in the given order.
// Calls don't need to be consecutive (intervening calls are allowed), and a
// call repeated across runs matches the next occurrence after the previous one.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Calls {
		op, target := parseCall(want)
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if matchCall(event, op, target) {
				found = true
				break
			}
		}
		if !found {
			actual := fmt.Sprintf("missing call: %s", want)
			if i > 0 {
				actual = fmt.Sprintf("%s not found after %s", want, assertion.Calls[i-1])
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Calls),
				Actual:   actual,
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchCall(event, assertion.Op, assertion.Target) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, formatCall(assertion.Op, assertion.Target)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalRecord checks the record's pairs, in order.
func assertFinalRecord(records *record.FileStore, assertion Assertion) error {
	rec, err := records.Load()
	if errors.Is(err, record.ErrNotFound) {
		if assertion.Absent {
			return nil
		}
		return &AssertionError{
			Type:     AssertFinalRecord,
			Expected: fmt.Sprintf("record with pairs %v", assertion.Pairs),
			Actual:   "no record file",
		}
	}
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalRecord,
			Expected: "a readable record",
			Actual:   err.Error(),
		}
	}
	if assertion.Absent {
		return &AssertionError{
			Type:     AssertFinalRecord,
			Expected: "no record file",
			Actual:   fmt.Sprintf("record with pairs %v", rec.Pairs),
		}
	}

	want := assertion.Pairs
	if want == nil {
		want = []model.ResourcePair{}
	}
	if !reflect.DeepEqual(want, rec.Pairs) {
		return &AssertionError{
			Type:     AssertFinalRecord,
			Expected: fmt.Sprintf("pairs %v", want),
			Actual:   fmt.Sprintf("pairs %v", rec.Pairs),
		}
	}
	return nil
}

// assertFinalRemote checks which files and assignments still exist.
func assertFinalRemote(remote *testutil.Remote, assertion Assertion) error {
	if files := remote.FileIDs(); !sameIDs(assertion.Files, files) {
		return &AssertionError{
			Type:     AssertFinalRemote,
			Expected: fmt.Sprintf("files %v", assertion.Files),
			Actual:   fmt.Sprintf("files %v", files),
		}
	}
	if assignments := remote.AssignmentIDs(); !sameIDs(assertion.Assignments, assignments) {
		return &AssertionError{
			Type:     AssertFinalRemote,
			Expected: fmt.Sprintf("assignments %v", assertion.Assignments),
			Actual:   fmt.Sprintf("assignments %v", assignments),
		}
	}
	return nil
}

// assertLedger checks the outcome of every run in the history ledger,
// oldest first.
func assertLedger(ctx context.Context, st *store.Store, assertion Assertion) error {
	runs, err := st.ListRuns(ctx, 0)
	if err != nil {
		return &AssertionError{
			Type:     AssertLedger,
			Expected: "readable ledger",
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	outcomes := make([]string, 0, len(runs))
	for _, run := range slices.Backward(runs) {
		outcomes = append(outcomes, run.Outcome)
	}
	if !slices.Equal(assertion.Outcomes, outcomes) {
		return &AssertionError{
			Type:     AssertLedger,
			Expected: fmt.Sprintf("outcomes %v", assertion.Outcomes),
			Actual:   fmt.Sprintf("outcomes %v", outcomes),
		}
	}
	return nil
}

func matchCall(event TraceEvent, op, target string) bool {
	return event.Type == EventCall && event.Op == op && (target == "" || event.Target == target)
}

// parseCall splits "op target". The target may contain spaces.
func parseCall(s string) (op, target string) {
	op, target, _ = strings.Cut(strings.TrimSpace(s), " ")
	return op, strings.TrimSpace(target)
}

func formatCall(op, target string) string {
	if target == "" {
		return op
	}
	return op + " " + target
}

func sameIDs(want, got []string) bool {
	if len(want) == 0 && len(got) == 0 {
		return true
	}
	want = slices.Clone(want)
	slices.Sort(want)
	return slices.Equal(want, got)
}

// AssertionContext provides the state assertions inspect after the runs.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Remote  *testutil.Remote
	Records *record.FileStore
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// State assertions need the corresponding field of actx.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	if actx == nil {
		actx = &AssertionContext{}
	}
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []string
	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalRecord:
			if actx.Records == nil {
				err = fmt.Errorf("assertion[%d]: final_record requires a record store", i)
			} else {
				err = assertFinalRecord(actx.Records, assertion)
			}
		case AssertFinalRemote:
			if actx.Remote == nil {
				err = fmt.Errorf("assertion[%d]: final_remote requires the fake remote", i)
			} else {
				err = assertFinalRemote(actx.Remote, assertion)
			}
		case AssertLedger:
			if actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: ledger requires database context", i)
			} else {
				err = assertLedger(ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
