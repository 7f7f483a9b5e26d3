package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/classprep/internal/model"
)

// RunError represents a failure detected while running the protocol.
//
// RunError includes structured fields for the error-detail file and the
// history ledger.
type RunError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the remote call or store operation that failed.
	Op string

	// ResourceID identifies the file, assignment or template involved.
	ResourceID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes run errors.
type ErrorCode string

const (
	// ErrCodeAuthFailure indicates no usable credential could be obtained.
	// No remote call was attempted.
	ErrCodeAuthFailure ErrorCode = "AUTH_FAILURE"

	// ErrCodeRemoteCall indicates a copy, create or list call failed.
	ErrCodeRemoteCall ErrorCode = "REMOTE_CALL_FAILURE"

	// ErrCodeCleanup indicates a delete call failed during cleanup or rollback.
	ErrCodeCleanup ErrorCode = "CLEANUP_FAILURE"

	// ErrCodeRecordCorruption indicates the stored record could not be read.
	// The run stops before touching remote state.
	ErrCodeRecordCorruption ErrorCode = "RECORD_CORRUPTION"

	// ErrCodeRecordWrite indicates the record could not be saved.
	ErrCodeRecordWrite ErrorCode = "RECORD_WRITE_FAILURE"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" && e.ResourceID != "" {
		msg = fmt.Sprintf("%s (op=%s, id=%s)", msg, e.Op, e.ResourceID)
	} else if e.Op != "" {
		msg = fmt.Sprintf("%s (op=%s)", msg, e.Op)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsAuthFailure returns true if the run never obtained credentials.
func IsAuthFailure(err error) bool {
	return hasCode(err, ErrCodeAuthFailure)
}

// IsRecordCorruption returns true if the stored record must be inspected by
// an operator before the next run.
func IsRecordCorruption(err error) bool {
	return hasCode(err, ErrCodeRecordCorruption)
}

// IsRemoteFailure returns true for remote call and cleanup failures.
func IsRemoteFailure(err error) bool {
	return hasCode(err, ErrCodeRemoteCall) || hasCode(err, ErrCodeCleanup)
}

// NewAuthError creates a RunError for a failed credential acquisition.
func NewAuthError(service string, err error) *RunError {
	return &RunError{
		Code:    ErrCodeAuthFailure,
		Message: fmt.Sprintf("no usable credentials for %s", service),
		Err:     err,
	}
}

func newRemoteError(code ErrorCode, op, resourceID string, err error) *RunError {
	msg := "remote call failed"
	if code == ErrCodeCleanup {
		msg = "remote delete failed"
	}
	return &RunError{
		Code:       code,
		Message:    msg,
		Op:         op,
		ResourceID: resourceID,
		Err:        err,
	}
}

func newRecordError(code ErrorCode, op string, err error) *RunError {
	msg := "run record could not be read; inspect it before running again"
	if code == ErrCodeRecordWrite {
		msg = "run record could not be saved"
	}
	return &RunError{
		Code:    code,
		Message: msg,
		Op:      op,
		Err:     err,
	}
}

// failureFor converts a RunError into an error-detail entry, carrying the
// remote service's structured payload when there is one.
func failureFor(runID string, rerr *RunError, at time.Time) model.Failure {
	f := model.Failure{
		RunID:      runID,
		Code:       string(rerr.Code),
		Op:         rerr.Op,
		ResourceID: rerr.ResourceID,
		At:         at.UTC(),
		Message:    rerr.Error(),
	}
	if remote, ok := model.AsRemoteError(rerr.Err); ok {
		f.StatusCode = remote.StatusCode
		f.Payload = remote.Payload
	}
	return f
}
