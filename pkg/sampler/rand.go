package sampler

import "math/rand"

// RandSource adapts *rand.Rand to the Source interface.
type RandSource struct {
	*rand.Rand
}

// NewSeeded returns a Source seeded deterministically, for a single
// synthesizer's exclusively-owned random stream. No synthesizer shares
// its Source with another goroutine, so it needs no locking.
func NewSeeded(seed int64) *RandSource {
	return &RandSource{Rand: rand.New(rand.NewSource(seed))}
}
