package testutil

import (
	"fmt"
	"sync"
)

// SeqIDGenerator generates run ids "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden trace comparison.
// Unlike engine.FixedGenerator it never runs out.
type SeqIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqIDGenerator creates a generator. An empty prefix defaults to "run".
func NewSeqIDGenerator(prefix string) *SeqIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SeqIDGenerator{prefix: prefix}
}

// Generate returns the next id. Implements engine.RunIDGenerator.
func (g *SeqIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
