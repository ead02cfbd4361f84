// Package sampler implements the pure, seed-driven samplers the Family
// Synthesizer composes into records: weighted categorical, quantile
// numeric, restricted string pattern, and time interval.
package sampler

import "sort"

// Source is the narrow random interface every sampler draws from, so a
// deterministic fake can stand in for *math/rand.Rand in tests without
// reaching into its internals.
type Source interface {
	Float64() float64
}

// Weighted is a pre-computed cumulative-weight categorical sampler.
type Weighted struct {
	values []string
	cum    []float64
	total  float64
}

// NewWeighted builds a Weighted sampler from a map of value to weight.
// Iteration order of the input map does not affect the distribution,
// only the (irrelevant) tie-break order of the cumulative table.
func NewWeighted(weights map[string]float64) *Weighted {
	w := &Weighted{
		values: make([]string, 0, len(weights)),
		cum:    make([]float64, 0, len(weights)),
	}
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var running float64
	for _, k := range keys {
		running += weights[k]
		w.values = append(w.values, k)
		w.cum = append(w.cum, running)
	}
	w.total = running
	return w
}

// Sample draws one value. With empty input it returns "". With total
// weight zero it falls back to a uniform choice among the declared
// values.
func (w *Weighted) Sample(src Source) string {
	if len(w.values) == 0 {
		return ""
	}
	if w.total <= 0 {
		idx := int(src.Float64() * float64(len(w.values)))
		if idx >= len(w.values) {
			idx = len(w.values) - 1
		}
		return w.values[idx]
	}
	target := src.Float64() * w.total
	idx := sort.Search(len(w.cum), func(i int) bool { return w.cum[i] >= target })
	if idx >= len(w.values) {
		idx = len(w.values) - 1
	}
	return w.values[idx]
}

// Len reports how many distinct values this sampler was built with.
func (w *Weighted) Len() int { return len(w.values) }
