package testutil

import "sync"

// FixedIDGenerator returns predetermined evaluation ids in order, then
// keeps returning the last one.
//
// Runs of the same tree with the same generator produce identical
// evaluation records, which golden comparisons rely on.
//
// Thread-safety: FixedIDGenerator is safe for concurrent use via internal mutex.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDGenerator creates a generator returning ids in order. With no
// ids it returns "test-eval-default".
//
//	gen := NewFixedIDGenerator("eval-1", "eval-2")
//	gen.Generate() // "eval-1"
//	gen.Generate() // "eval-2"
//	gen.Generate() // "eval-2"
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	if len(ids) == 0 {
		ids = []string{"test-eval-default"}
	}
	return &FixedIDGenerator{ids: ids}
}

// Generate implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
