package runtime

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// NonceGenerator produces message nonces. Two messages that differ only by
// nonce get different transaction ids, so a user can repeat an action on
// purpose while a resubmission of the same signed message is still rejected.
// Implemented by UUIDv7Generator (production), SequentialGenerator
// (scenarios) and FixedGenerator (tests).
type NonceGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 nonces.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined nonces for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	nonces []string
	idx    int
}

// NewFixedGenerator creates a generator that returns nonces in order.
//
// Example:
//
//	gen := NewFixedGenerator("n-1", "n-2")
//	gen.Generate() // "n-1"
//	gen.Generate() // "n-2"
//	gen.Generate() // panic: all nonces exhausted
func NewFixedGenerator(nonces ...string) *FixedGenerator {
	return &FixedGenerator{nonces: nonces}
}

// Generate returns the next predetermined nonce.
//
// Panics if all nonces have been consumed, to catch a test that builds more
// transactions than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.nonces) {
		panic("FixedGenerator: all nonces exhausted")
	}
	n := g.nonces[g.idx]
	g.idx++
	return n
}

// SequentialGenerator generates "<prefix>-1", "<prefix>-2", ...
//
// Unlike FixedGenerator it never runs out, and it can be reset so the same
// scenario run twice yields identical messages and transaction ids.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequentialGenerator creates a generator. An empty prefix becomes
// "nonce".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "nonce"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next nonce.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
