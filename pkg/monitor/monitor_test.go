package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aszhur/loadgen/pkg/recipe"
)

func TestMonitorIngestAndComputeAll(t *testing.T) {
	cat := &Catalog{byFamily: map[string]*Reference{
		"cpu": {
			FamilyID:       "cpu",
			TagDists:       map[string]map[string]float64{"env": {"prod": 0.7, "staging": 0.2, "dev": 0.1}},
			ValueQuantiles: []float64{1, 20, 42, 80, 99},
			SizeQuantiles:  []float64{30, 35, 40, 45, 50},
		},
	}}

	mock := clock.NewMock()
	m := New(Options{Catalog: cat, Clock: mock})

	for _, s := range samplesWithEnv(1000, "prod") {
		m.Ingest(s)
	}
	m.ComputeAll()

	scores := m.Scores()
	require.Len(t, scores, 1)
	assert.Equal(t, Red, scores[0].Status)
}

func TestMonitorRunDrainsChannelAndTicks(t *testing.T) {
	cat := &Catalog{byFamily: map[string]*Reference{
		"cpu": {FamilyID: "cpu", ValueQuantiles: []float64{1, 2, 3, 4, 5}, SizeQuantiles: []float64{1, 2, 3, 4, 5}},
	}}
	mock := clock.NewMock()
	m := New(Options{Catalog: cat, Clock: mock, TickInterval: time.Minute})

	ch := make(chan recipe.Sample, 20)
	for i := 0; i < 20; i++ {
		ch <- recipe.Sample{FamilyID: "cpu", Timestamp: 1700000000 + int64(i), Value: float64(i), LineSize: 10}
	}
	close(ch)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx, ch)

	time.Sleep(10 * time.Millisecond)
	mock.Add(time.Minute)
	time.Sleep(10 * time.Millisecond)
	cancel()

	scores := m.Scores()
	require.Len(t, scores, 1)
	assert.NotNil(t, scores[0].Result)
}

func TestTriggerComputeCoalesces(t *testing.T) {
	m := New(Options{Catalog: &Catalog{byFamily: map[string]*Reference{}}})
	m.TriggerCompute()
	m.TriggerCompute() // second call must not block on the buffered channel
	assert.Equal(t, 1, len(m.computeSignal))
}
