package worker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aszhur/loadgen/pkg/batch"
	"github.com/aszhur/loadgen/pkg/connpool"
	"github.com/aszhur/loadgen/pkg/controlplane"
)

type memWriter struct {
	mu sync.Mutex
	n  int
}

func (m *memWriter) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n += len(p)
	return len(p), nil
}
func (m *memWriter) Close() error { return nil }

func controlPlaneStub(t *testing.T, assignmentJSON, recipeJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/workers/w1/assignment":
			w.Write([]byte(assignmentJSON))
		default:
			w.Write([]byte(recipeJSON))
		}
	}))
}

func TestReconfigureStartsFamilyAndBecomesHealthy(t *testing.T) {
	assignmentJSON := `{"worker_id":"w1","family_id":["cpu"],"multiplier":1.0,"endpoints":["ep1"]}`
	recipeJSON := `{"family_id":"cpu","metric_name":"cpu.util","schema":{"kind":"metric"},"value_distribution":[1,20,42,80,99],"source_distribution":{"host-01":1.0}}`
	srv := controlPlaneStub(t, assignmentJSON, recipeJSON)
	defer srv.Close()

	mw := &memWriter{}
	pool, err := connpool.New("ep1", connpool.Options{Dialer: func(string) (io.WriteCloser, error) { return mw, nil }})
	require.NoError(t, err)

	w := New(Options{
		WorkerID:     "w1",
		ControlPlane: controlplane.New(srv.URL),
		Pools:        map[string]*connpool.Pool{"ep1": pool},
		Buffer:       batch.New(1000, 1 << 20),
		Clock:        clock.New(),
		BaseRate:     5,
	})

	assert.False(t, w.isHealthy())
	w.pollOnce(context.Background())
	assert.True(t, w.isHealthy())
}

func TestAssignmentUnchangedSkipsReconfigure(t *testing.T) {
	assignmentJSON := `{"worker_id":"w1","family_id":["cpu"],"multiplier":1.0,"endpoints":["ep1"]}`
	recipeJSON := `{"family_id":"cpu","metric_name":"cpu.util","schema":{"kind":"metric"},"value_distribution":[1,20,42,80,99],"source_distribution":{"host-01":1.0}}`
	srv := controlPlaneStub(t, assignmentJSON, recipeJSON)
	defer srv.Close()

	mw := &memWriter{}
	pool, err := connpool.New("ep1", connpool.Options{Dialer: func(string) (io.WriteCloser, error) { return mw, nil }})
	require.NoError(t, err)

	w := New(Options{
		WorkerID:     "w1",
		ControlPlane: controlplane.New(srv.URL),
		Pools:        map[string]*connpool.Pool{"ep1": pool},
		Buffer:       batch.New(1000, 1 << 20),
		Clock:        clock.New(),
		BaseRate:     5,
	})

	w.pollOnce(context.Background())
	w.mu.RLock()
	f := w.families["cpu"]
	w.mu.RUnlock()
	require.NotNil(t, f)

	w.pollOnce(context.Background())
	w.mu.RLock()
	f2 := w.families["cpu"]
	w.mu.RUnlock()
	assert.Same(t, f, f2, "unchanged assignment must not rebuild the synthesizer")
}

func uniformIntensityJSON() string {
	var b []byte
	b = append(b, '[')
	for i := 0; i < 1440; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '1')
	}
	b = append(b, ']')
	return string(b)
}

func TestEmitLoopProducesLinesIntoBuffer(t *testing.T) {
	assignmentJSON := `{"worker_id":"w1","family_id":["cpu"],"multiplier":1.0,"endpoints":["ep1"]}`
	recipeJSON := `{"family_id":"cpu","metric_name":"cpu.util","schema":{"kind":"metric"},"value_distribution":[1,20,42,80,99],"source_distribution":{"host-01":1.0},"intensity_curve":` + uniformIntensityJSON() + `}`
	srv := controlPlaneStub(t, assignmentJSON, recipeJSON)
	defer srv.Close()

	mw := &memWriter{}
	pool, err := connpool.New("ep1", connpool.Options{Dialer: func(string) (io.WriteCloser, error) { return mw, nil }})
	require.NoError(t, err)

	mock := clock.NewMock()
	buf := batch.New(10000, 10 << 20)
	w := New(Options{
		WorkerID:     "w1",
		ControlPlane: controlplane.New(srv.URL),
		Pools:        map[string]*connpool.Pool{"ep1": pool},
		Buffer:       buf,
		Clock:        mock,
		BaseRate:     100,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.pollOnce(ctx)

	w.mu.RLock()
	f := w.families["cpu"]
	w.mu.RUnlock()
	require.NotNil(t, f)

	famCtx, famCancel := context.WithCancel(ctx)
	defer famCancel()
	w.wg.Add(1)
	go w.emitLoop(famCtx, f, w.assignment)

	for i := 0; i < 5; i++ {
		mock.Add(100 * time.Millisecond)
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, buf.Len() > 0)
}

func TestIsReadyFalseWithoutAssignment(t *testing.T) {
	w := New(Options{WorkerID: "w1", Buffer: batch.New(10, 100), ReadinessDeadline: time.Millisecond})
	assert.False(t, w.IsReady())
}
