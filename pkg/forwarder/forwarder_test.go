package forwarder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aszhur/loadgen/pkg/recipe"
)

func TestRunFlushesByCount(t *testing.T) {
	var mu sync.Mutex
	var received []recipe.Sample

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []recipe.Sample
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		mu.Lock()
		received = append(received, batch...)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := New(Options{MonitorURL: srv.URL, BatchSize: 3, FlushInterval: time.Hour})
	samples := make(chan recipe.Sample, 10)
	for i := 0; i < 3; i++ {
		samples <- recipe.Sample{FamilyID: "cpu", Timestamp: int64(i)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	close(samples)
	f.Run(ctx, samples)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 3)
}

func TestRunFlushesOnTicker(t *testing.T) {
	var mu sync.Mutex
	var received []recipe.Sample

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []recipe.Sample
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		mu.Lock()
		received = append(received, batch...)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := New(Options{MonitorURL: srv.URL, BatchSize: 1000, FlushInterval: 20 * time.Millisecond})
	samples := make(chan recipe.Sample, 10)
	samples <- recipe.Sample{FamilyID: "cpu", Timestamp: 1}

	ctx, cancel := context.WithCancel(context.Background())
	go f.Run(ctx, samples)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
}

func TestRunWithEmptyURLDrainsWithoutSending(t *testing.T) {
	f := New(Options{})
	samples := make(chan recipe.Sample, 1)
	samples <- recipe.Sample{FamilyID: "cpu"}
	close(samples)

	done := make(chan struct{})
	go func() {
		f.Run(context.Background(), samples)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channel close with empty MonitorURL")
	}
}
