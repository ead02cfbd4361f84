// Package synth implements the Family Synthesizer: it owns a loaded
// recipe, composes the pkg/sampler primitives into complete records,
// and applies schema-drift and error-injection policies.
package synth

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/aszhur/loadgen/pkg/recipe"
	"github.com/aszhur/loadgen/pkg/sampler"
)

// Synthesizer owns its samplers and its random source exclusively; no
// other goroutine touches them. The rate governor driving a
// Synthesizer's target rate lives with the caller instead, since it's
// consulted from the same goroutine that calls NextRecord.
type Synthesizer struct {
	recipe *recipe.Recipe
	src    sampler.Source

	valueSampler  *sampler.Quantile
	sourceSampler *sampler.Weighted
	sourcePattern *sampler.Pattern
	tagSamplers   map[string]*sampler.Weighted
	tagPatterns   map[string]*sampler.Pattern

	mu          sync.Mutex
	deltaAccum  map[string]float64
	deltaMinute int64

	// samples, when non-nil, receives a non-blocking tee of every
	// produced Sample; a full channel drops the sample and increments
	// DroppedSamples rather than blocking the emission path.
	samples        chan<- recipe.Sample
	DroppedSamples atomic.Uint64

	// schemaDrift and errorInjection are assignment-level
	// probabilities (Assignment.schema_drift/error_injection),
	// not recipe properties, so they're set separately via SetPolicy
	// whenever the worker reconfigures.
	schemaDrift    float64
	errorInjection float64
}

// SetPolicy updates the assignment-level drift and error-injection
// probabilities. Safe to call between NextRecord calls from the single
// goroutine that owns this synthesizer.
func (s *Synthesizer) SetPolicy(schemaDrift, errorInjection float64) {
	s.schemaDrift = schemaDrift
	s.errorInjection = errorInjection
}

// Options configures optional wiring for a Synthesizer.
type Options struct {
	Seed    int64
	Samples chan<- recipe.Sample
}

// New constructs a Synthesizer from a validated Recipe. It returns
// RecipeLoadError when the recipe is malformed or incomplete; once
// constructed, sampling paths never fail.
func New(r *recipe.Recipe, opts Options) (*Synthesizer, error) {
	if r == nil {
		return nil, &recipe.RecipeLoadError{FamilyID: "", Err: fmt.Errorf("nil recipe")}
	}
	if err := r.Validate(); err != nil {
		return nil, &recipe.RecipeLoadError{FamilyID: r.FamilyID, Err: err}
	}

	s := &Synthesizer{
		recipe:      r,
		src:         sampler.NewSeeded(opts.Seed),
		deltaAccum:  map[string]float64{},
		tagSamplers: map[string]*sampler.Weighted{},
		tagPatterns: map[string]*sampler.Pattern{},
		samples:     opts.Samples,
	}
	if len(r.ValueQuantiles) > 0 {
		s.valueSampler = sampler.NewQuantile(r.ValueQuantiles)
	} else {
		s.valueSampler = sampler.NewQuantile(nil) // falls back to N(50,10)
	}
	if len(r.SourceDist) > 0 {
		s.sourceSampler = sampler.NewWeighted(r.SourceDist)
	} else if pats, ok := r.StringPatterns["source"]; ok {
		s.sourcePattern = sampler.NewPattern(pats)
	}
	for key := range r.Schema.TagKeys {
		if dist, ok := r.TagDists[key]; ok && len(dist) > 0 {
			s.tagSamplers[key] = sampler.NewWeighted(dist)
		} else if pats, ok := r.StringPatterns[key]; ok {
			s.tagPatterns[key] = sampler.NewPattern(pats)
		}
	}
	return s, nil
}

// Recipe returns the loaded recipe this synthesizer is bound to.
func (s *Synthesizer) Recipe() *recipe.Recipe { return s.recipe }

func (s *Synthesizer) teeSample(sm recipe.Sample) {
	if s.samples == nil {
		return
	}
	select {
	case s.samples <- sm:
	default:
		s.DroppedSamples.Inc()
	}
}
