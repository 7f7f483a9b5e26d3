// Package report writes the error-detail file an operator sends along when
// a run fails.
//
// The file is a JSON array of failures, one entry per failed remote call in
// the most recent run, each carrying the structured error body returned by
// the service. It lives in the working directory so it is easy to find.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/roach88/classprep/internal/fsutil"
	"github.com/roach88/classprep/internal/model"
)

// DefaultFileName is the error-detail file name used when none is configured.
const DefaultFileName = "classprep-error.json"

// FileSink implements engine.ErrorSink on top of a JSON file.
type FileSink struct {
	mu      sync.Mutex
	path    string
	entries []model.Failure
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	if path == "" {
		path = DefaultFileName
	}
	return &FileSink{path: path}
}

// Path returns the error-detail file location.
func (s *FileSink) Path() string {
	return s.path
}

// Reset removes the previous run's file.
func (s *FileSink) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset error file: %w", err)
	}
	return nil
}

// Report appends f and rewrites the file atomically.
func (s *FileSink) Report(f model.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(f.Payload) > 0 && !json.Valid(f.Payload) {
		// Keep the file parseable when a service returns a non-JSON body.
		quoted, _ := json.Marshal(string(f.Payload))
		f.Payload = quoted
	}
	s.entries = append(s.entries, f)
	if err := fsutil.WriteJSONAtomic(s.path, s.entries, 0o644); err != nil {
		return fmt.Errorf("write error file: %w", err)
	}
	return nil
}

// Count returns the number of failures reported since the last Reset.
func (s *FileSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Read parses an error-detail file.
func Read(path string) ([]model.Failure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []model.Failure
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse error file: %w", err)
	}
	return out, nil
}
