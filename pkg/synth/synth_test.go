package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aszhur/loadgen/pkg/protocol"
	"github.com/aszhur/loadgen/pkg/recipe"
)

func baseRecipe(kind recipe.SchemaKind) *recipe.Recipe {
	r := &recipe.Recipe{
		FamilyID:   "cpu",
		MetricName: "cpu.util",
		Schema:     recipe.Schema{Kind: kind},
		SourceDist: map[string]float64{"host-01": 1.0},
	}
	for i := range r.IntensityCurve {
		r.IntensityCurve[i] = 1
	}
	return r
}

func TestPlainMetricScenario(t *testing.T) {
	r := baseRecipe(recipe.KindMetric)
	r.ValueQuantiles = []float64{1, 20, 42, 80, 99}
	s, err := New(r, Options{Seed: 1})
	require.NoError(t, err)

	line := s.NextRecord(1700000000, 1.0)
	d, ok := protocol.DecodeLine(line)
	require.True(t, ok)
	assert.Equal(t, "cpu.util", d.Name)
	assert.Equal(t, "host-01", d.Source)
	assert.Equal(t, int64(1700000000), d.Timestamp)
}

func TestDeltaCounterAccumulatesWithinMinuteAndResets(t *testing.T) {
	r := baseRecipe(recipe.KindDelta)
	r.ValueQuantiles = []float64{1, 2, 3, 4, 5}
	s, err := New(r, Options{Seed: 2})
	require.NoError(t, err)

	v1 := s.accumulateDelta(1700000000, "host-01", nil, 1.5)
	assert.InDelta(t, 1.5, v1, 1e-9)
	v2 := s.accumulateDelta(1700000010, "host-01", nil, 2.5)
	assert.InDelta(t, 4.0, v2, 1e-9)

	// next minute starts fresh
	v3 := s.accumulateDelta(1700000070, "host-01", nil, 1.0)
	assert.InDelta(t, 1.0, v3, 1e-9)
}

func TestHistogramCentroidCountBounds(t *testing.T) {
	r := baseRecipe(recipe.KindHistogram)
	r.ValueQuantiles = []float64{1, 20, 42, 80, 99}
	s, err := New(r, Options{Seed: 3})
	require.NoError(t, err)

	rec := s.composeHistogram(r, 1700000000, "host-01", nil, 1.0)
	assert.True(t, len(rec.Centroids) >= minCentroids && len(rec.Centroids) <= maxCentroids)
	var total int
	for _, c := range rec.Centroids {
		total += c.Count
	}
	assert.True(t, total > 0)
}

func TestNoTagsWhenPresenceZero(t *testing.T) {
	r := baseRecipe(recipe.KindMetric)
	r.ValueQuantiles = []float64{1, 20, 42, 80, 99}
	r.Schema.TagKeys = map[string]recipe.TagSchema{"region": {Presence: 0}}
	s, err := New(r, Options{Seed: 4})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		line := s.NextRecord(1700000000, 1.0)
		d, ok := protocol.DecodeLine(line)
		require.True(t, ok)
		assert.Empty(t, d.Tags)
	}
}

func TestEverySampleHasSource(t *testing.T) {
	r := baseRecipe(recipe.KindMetric)
	r.ValueQuantiles = []float64{1, 20, 42, 80, 99}
	r.SourceDist = nil // empty source distribution
	s, err := New(r, Options{Seed: 5})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		line := s.NextRecord(1700000000, 1.0)
		assert.Contains(t, line, "source=")
	}
}

func TestRecipeLoadErrorOnMalformedSchema(t *testing.T) {
	r := baseRecipe(recipe.SchemaKind("bogus"))
	_, err := New(r, Options{})
	require.Error(t, err)
	var loadErr *recipe.RecipeLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestErrorInjectionNeverPanics(t *testing.T) {
	r := baseRecipe(recipe.KindMetric)
	r.ValueQuantiles = []float64{1, 20, 42, 80, 99}
	s, err := New(r, Options{Seed: 6})
	require.NoError(t, err)
	s.SetPolicy(0, 1.0) // always inject

	for i := 0; i < 100; i++ {
		assert.NotPanics(t, func() {
			s.NextRecord(1700000000, 1.0)
		})
	}
}

func TestSampleTeeDropsUnderBackpressure(t *testing.T) {
	r := baseRecipe(recipe.KindMetric)
	r.ValueQuantiles = []float64{1, 20, 42, 80, 99}
	ch := make(chan recipe.Sample) // unbuffered, nobody reads
	s, err := New(r, Options{Seed: 7, Samples: ch})
	require.NoError(t, err)

	s.NextRecord(1700000000, 1.0)
	assert.Equal(t, uint64(1), s.DroppedSamples.Load())
}
