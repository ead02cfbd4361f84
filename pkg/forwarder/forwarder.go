// Package forwarder batches a Worker Core's tee'd Samples and ships
// them over HTTP to a Divergence Monitor process's POST /ingest
// endpoint. The two subsystems run as independent binaries (cmd/worker,
// cmd/monitor), so the sample tee crosses a wire here instead of an
// in-process channel.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aszhur/loadgen/pkg/recipe"
)

// Options configures a Forwarder.
type Options struct {
	MonitorURL    string
	FlushInterval time.Duration
	BatchSize     int
	Logger        *zap.SugaredLogger
}

// Forwarder drains a Sample channel and periodically POSTs accumulated
// batches to the monitor's ingest endpoint. A forwarder with an empty
// MonitorURL is a no-op: the worker runs standalone without a monitor.
type Forwarder struct {
	url       string
	flushEvery time.Duration
	batchSize int
	hc        *http.Client
	log       *zap.SugaredLogger
}

// New builds a Forwarder. Run does nothing if opts.MonitorURL is empty.
func New(opts Options) *Forwarder {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Forwarder{
		url:        opts.MonitorURL,
		flushEvery: opts.FlushInterval,
		batchSize:  opts.BatchSize,
		hc:         &http.Client{Timeout: 5 * time.Second},
		log:        opts.Logger,
	}
}

// Run drains samples until ctx is canceled or the channel closes,
// batching by count and by a flush timer, whichever comes first.
func (f *Forwarder) Run(ctx context.Context, samples <-chan recipe.Sample) {
	if f.url == "" {
		// no monitor configured; drain so producers never block
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-samples:
				if !ok {
					return
				}
			}
		}
	}

	ticker := time.NewTicker(f.flushEvery)
	defer ticker.Stop()

	batch := make([]recipe.Sample, 0, f.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		f.send(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case s, ok := <-samples:
			if !ok {
				flush()
				return
			}
			batch = append(batch, s)
			if len(batch) >= f.batchSize {
				flush()
			}
		}
	}
}

func (f *Forwarder) send(ctx context.Context, batch []recipe.Sample) {
	body, err := json.Marshal(batch)
	if err != nil {
		f.log.Warnw("sample batch marshal failed", "err", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url+"/ingest", bytes.NewReader(body))
	if err != nil {
		f.log.Warnw("ingest request build failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.hc.Do(req)
	if err != nil {
		f.log.Warnw("ingest request failed", "err", err, "samples", len(batch))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		f.log.Warnw("ingest request rejected", "status", resp.StatusCode)
	}
}
