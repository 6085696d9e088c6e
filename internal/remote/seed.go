package remote

import (
	"math/rand/v2"
	"sync"
)

// Seed is the source of the random seeds embedded in sampling operations
// (histograms, sketches, control-point sampling). The server uses the seed
// to make its sampling reproducible within a session.
//
// A Seed is injected into each TableProxy rather than read from package
// state, so tests construct one from a fixed value and get deterministic
// requests.
type Seed struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeed returns a seed source producing a deterministic stream derived
// from v.
func NewSeed(v uint64) *Seed {
	return &Seed{rng: rand.New(rand.NewPCG(v, v^0x9e3779b97f4a7c15))}
}

// Next returns the next seed value. Safe for concurrent use.
func (s *Seed) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int64()
}
