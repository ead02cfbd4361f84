package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aszhur/loadgen/pkg/recipe"
)

func TestSlidingWindowEvictsByAge(t *testing.T) {
	w := NewSlidingWindow("cpu", time.Minute, 0)
	w.Add(recipe.Sample{Timestamp: 1000})
	w.Add(recipe.Sample{Timestamp: 1030})
	w.Add(recipe.Sample{Timestamp: 1100}) // 100s later, evicts the first (age 100 > 60)

	snap := w.Snapshot()
	for _, s := range snap {
		assert.True(t, 1100-s.Timestamp <= 60)
	}
}

func TestSlidingWindowCapsAtMaxSamples(t *testing.T) {
	w := NewSlidingWindow("cpu", time.Hour, 5)
	for i := 0; i < 20; i++ {
		w.Add(recipe.Sample{Timestamp: int64(1000 + i)})
	}
	assert.Equal(t, 5, w.Len())
	snap := w.Snapshot()
	assert.Equal(t, int64(1019), snap[len(snap)-1].Timestamp)
}
