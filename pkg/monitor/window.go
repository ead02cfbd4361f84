// Package monitor implements the Divergence Monitor: per-family sliding
// windows of tee'd samples, periodic Jensen-Shannon/Wasserstein/KS/
// Pearson computation against a reference catalog, and status
// classification.
package monitor

import (
	"sync"
	"time"

	"github.com/aszhur/loadgen/pkg/recipe"
)

const defaultMaxSamples = 10000

// SlidingWindow holds one family's recent Samples, bounded by both age
// and an absolute element cap. The monitor computes statistics on a
// snapshot copy so it never blocks the producers appending to it.
type SlidingWindow struct {
	mu         sync.Mutex
	familyID   string
	duration   time.Duration
	maxSamples int
	samples    []recipe.Sample
}

// NewSlidingWindow constructs a window bounded by duration and maxSamples
// (maxSamples<=0 uses the package default).
func NewSlidingWindow(familyID string, duration time.Duration, maxSamples int) *SlidingWindow {
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}
	return &SlidingWindow{familyID: familyID, duration: duration, maxSamples: maxSamples}
}

// Add appends s, then evicts anything older than duration relative to
// s.Timestamp and trims to maxSamples from the front (oldest first).
func (w *SlidingWindow) Add(s recipe.Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, s)
	w.evictLocked(s.Timestamp)
}

func (w *SlidingWindow) evictLocked(now int64) {
	cutoff := now - int64(w.duration.Seconds())
	i := 0
	for i < len(w.samples) && w.samples[i].Timestamp < cutoff {
		i++
	}
	if i > 0 {
		w.samples = append([]recipe.Sample(nil), w.samples[i:]...)
	}
	if len(w.samples) > w.maxSamples {
		excess := len(w.samples) - w.maxSamples
		w.samples = append([]recipe.Sample(nil), w.samples[excess:]...)
	}
}

// Snapshot returns a copy of the currently-held samples, safe to
// compute statistics over without holding the window's lock.
func (w *SlidingWindow) Snapshot() []recipe.Sample {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]recipe.Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len reports the current sample count.
func (w *SlidingWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}
