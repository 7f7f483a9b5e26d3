package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Service names used in RemoteError.
const (
	ServiceDrive     = "drive"
	ServiceClassroom = "classroom"
)

// RemoteError is a failed call to a remote service.
//
// Payload holds the structured error body returned by the service, or a
// JSON object describing a transport failure when no body was received.
type RemoteError struct {
	Service    string
	Op         string
	ResourceID string
	StatusCode int
	Payload    json.RawMessage
	Err        error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Service, e.Op, e.ResourceID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// AsRemoteError extracts a RemoteError from err, if any.
func AsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsNotFound reports whether err is a remote 404: the resource does not
// exist (any more).
func IsNotFound(err error) bool {
	re, ok := AsRemoteError(err)
	return ok && re.StatusCode == http.StatusNotFound
}
