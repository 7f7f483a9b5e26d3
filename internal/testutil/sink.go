package testutil

import (
	"sync"

	"github.com/roach88/classprep/internal/model"
)

// MemorySink collects reported failures. Implements engine.ErrorSink.
type MemorySink struct {
	mu       sync.Mutex
	failures []model.Failure
	resets   int
}

// Reset clears collected failures.
func (s *MemorySink) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = nil
	s.resets++
	return nil
}

// Report collects f.
func (s *MemorySink) Report(f model.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
	return nil
}

// Failures returns a copy of the collected failures.
func (s *MemorySink) Failures() []model.Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Failure(nil), s.failures...)
}

// Resets returns how many times Reset was called.
func (s *MemorySink) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}
