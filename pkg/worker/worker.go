// Package worker implements the Worker Core: it polls the control plane
// for an Assignment, lazily loads recipes, runs one ~10 Hz goroutine per
// assigned family against a Rate Governor and Batch Buffer, and serves
// health/ready/status/metrics HTTP endpoints.
package worker

import (
	"context"
	"math"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/aszhur/loadgen/pkg/batch"
	"github.com/aszhur/loadgen/pkg/connpool"
	"github.com/aszhur/loadgen/pkg/controlplane"
	"github.com/aszhur/loadgen/pkg/emitter"
	"github.com/aszhur/loadgen/pkg/rategovernor"
	"github.com/aszhur/loadgen/pkg/recipe"
	"github.com/aszhur/loadgen/pkg/synth"
	"github.com/aszhur/loadgen/pkg/telemetry"
)

const tickFrequencyHz = 10

// family is one loaded synthesizer driving its own rate governor,
// stored in Worker.families keyed by family id. Each per-family
// goroutine runs as a Worker method and holds a pointer to its own
// family; removing a family deletes its map entry and cancels that
// goroutine's context.
type family struct {
	id        string
	synth     *synth.Synthesizer
	governor  *rategovernor.Governor
	cancel    context.CancelFunc
	baseRate  float64
}

// Options configures a Worker.
type Options struct {
	WorkerID            string
	ControlPlane        *controlplane.Client
	Pools                map[string]*connpool.Pool // keyed by endpoint; pre-seeded pools take priority over Dialer
	Dialer               connpool.Dialer           // used to lazily build a Pool for an endpoint first named by an assignment
	ConnectionBufferBytes int
	ReconnectInitial     time.Duration
	ReconnectMax         time.Duration
	Buffer               *batch.Buffer
	Metrics              *telemetry.WorkerMetrics
	Logger               *zap.SugaredLogger
	Clock                clock.Clock
	PollInterval         time.Duration
	FlushInterval        time.Duration
	ReadinessDeadline    time.Duration
	BaseRate             float64 // per-family base records/sec before intensity/multiplier
	GovernorAccelPerSec  float64
	GovernorRefresh      time.Duration
}

// Worker is the Worker Core for one process.
type Worker struct {
	opts Options
	log  *zap.SugaredLogger
	clk  clock.Clock

	mu          sync.RWMutex
	assignment  *recipe.Assignment
	families    map[string]*family
	recipes     map[string]*recipe.Recipe
	lastKey     *recipe.ConfigKey
	emitters    map[string]*emitter.Emitter // keyed by endpoint, lazily built

	readyAt time.Time

	samples chan recipe.Sample

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Worker. Call Run to start the poller, per-family
// goroutines, and flusher; it blocks until ctx is cancelled.
func New(opts Options) *Worker {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	if opts.ReadinessDeadline <= 0 {
		opts.ReadinessDeadline = 30 * time.Second
	}
	if opts.BaseRate <= 0 {
		opts.BaseRate = 1.0
	}
	if opts.GovernorAccelPerSec <= 0 {
		opts.GovernorAccelPerSec = 10
	}
	if opts.GovernorRefresh <= 0 {
		opts.GovernorRefresh = time.Second
	}
	return &Worker{
		opts:     opts,
		log:      opts.Logger,
		clk:      opts.Clock,
		families: map[string]*family{},
		recipes:  map[string]*recipe.Recipe{},
		emitters: map[string]*emitter.Emitter{},
		samples:  make(chan recipe.Sample, 4096),
	}
}

// Samples exposes the sample tee channel for the Divergence Monitor to
// consume from (wired by cmd/worker when both run in one process, or
// drained by an HTTP forwarder otherwise).
func (w *Worker) Samples() <-chan recipe.Sample { return w.samples }

// Run starts the assignment poller, batch flusher, and per-family
// emission goroutines; it returns once ctx is cancelled and all
// goroutines have drained.
func (w *Worker) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(2)
	go w.pollLoop(ctx)
	go w.flushLoop(ctx)

	<-ctx.Done()
	w.wg.Wait()
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := w.clk.Ticker(w.opts.PollInterval)
	defer ticker.Stop()

	w.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Worker) pollOnce(ctx context.Context) {
	reqCtx, reqCancel := context.WithTimeout(ctx, 10*time.Second)
	defer reqCancel()

	a, err := w.opts.ControlPlane.GetAssignment(reqCtx, w.opts.WorkerID)
	if err != nil {
		w.log.Warnw("assignment fetch failed, retaining prior assignment", "err", err)
		if w.opts.Metrics != nil {
			w.opts.Metrics.HTTPErrorsTotal.WithLabelValues("assignment").Inc()
		}
		return
	}

	key := a.Key()
	w.mu.RLock()
	unchanged := w.lastKey != nil && cmp.Equal(*w.lastKey, key)
	w.mu.RUnlock()
	if unchanged {
		return
	}

	w.reconfigure(ctx, a, key)
}

// reconfigure reacts to an assignment change: load missing recipes,
// discard synthesizers for dropped families, start goroutines for new
// families, leave unchanged families running untouched.
func (w *Worker) reconfigure(ctx context.Context, a *recipe.Assignment, key recipe.ConfigKey) {
	w.ensurePools(a.Endpoints)

	wanted := map[string]bool{}
	for _, id := range a.FamilyIDs {
		wanted[id] = true
	}

	w.mu.Lock()
	var toStop []*family
	for id, f := range w.families {
		if !wanted[id] {
			toStop = append(toStop, f)
			delete(w.families, id)
		}
	}
	w.mu.Unlock()
	for _, f := range toStop {
		f.cancel()
	}

	var loadErrs *multierror.Error
	for _, id := range a.FamilyIDs {
		w.mu.RLock()
		_, running := w.families[id]
		w.mu.RUnlock()
		if running {
			continue
		}

		reqCtx, reqCancel := context.WithTimeout(ctx, 10*time.Second)
		r, err := w.opts.ControlPlane.GetRecipe(reqCtx, id)
		reqCancel()
		if err != nil {
			loadErrs = multierror.Append(loadErrs, err)
			if w.opts.Metrics != nil {
				w.opts.Metrics.HTTPErrorsTotal.WithLabelValues("recipe").Inc()
			}
			continue
		}
		w.startFamily(ctx, r, a)
	}
	if loadErrs != nil {
		w.log.Warnw("one or more recipes failed to load this cycle", "err", loadErrs.ErrorOrNil())
	}

	w.mu.Lock()
	w.assignment = a
	w.lastKey = &key
	if w.readyAt.IsZero() && len(w.families) > 0 {
		w.readyAt = w.clk.Now()
	}
	w.mu.Unlock()
}

// ensurePools builds a connpool.Pool for any endpoint named by the
// assignment that the worker hasn't dialed yet, using the configured
// Dialer. The worker never drops an already-built pool for an endpoint
// that falls out of the assignment: a ConnectionPool lives with the
// worker, not with any one family.
func (w *Worker) ensurePools(endpoints []string) {
	if w.opts.Dialer == nil {
		return
	}
	for _, endpoint := range endpoints {
		w.mu.RLock()
		_, ok := w.opts.Pools[endpoint]
		w.mu.RUnlock()
		if ok {
			continue
		}
		pool, err := connpool.New(endpoint, connpool.Options{
			Dialer:        w.opts.Dialer,
			BufferBytes:   w.opts.ConnectionBufferBytes,
			ReconnectInit: w.opts.ReconnectInitial,
			ReconnectMax:  w.opts.ReconnectMax,
			Logger:        w.log,
		})
		if err != nil {
			w.log.Warnw("initial connection build failed", "endpoint", endpoint, "err", err)
			continue
		}
		w.mu.Lock()
		w.opts.Pools[endpoint] = pool
		w.mu.Unlock()
	}
}

func (w *Worker) startFamily(ctx context.Context, r *recipe.Recipe, a *recipe.Assignment) {
	s, err := synth.New(r, synth.Options{Seed: int64(len(r.FamilyID)) ^ w.clk.Now().UnixNano(), Samples: w.samples})
	if err != nil {
		w.log.Warnw("synthesizer construction failed", "family", r.FamilyID, "err", err)
		return
	}
	s.SetPolicy(a.SchemaDrift, a.ErrorInjection)

	g := rategovernor.New(w.opts.BaseRate, w.opts.BaseRate*a.Multiplier, w.opts.GovernorAccelPerSec, w.opts.GovernorRefresh, w.opts.Clock)

	famCtx, famCancel := context.WithCancel(ctx)
	f := &family{id: r.FamilyID, synth: s, governor: g, cancel: famCancel, baseRate: w.opts.BaseRate}

	w.mu.Lock()
	w.families[r.FamilyID] = f
	w.recipes[r.FamilyID] = r
	w.mu.Unlock()

	w.wg.Add(1)
	go w.emitLoop(famCtx, f, a)
}

// emitLoop runs one family at ~10 Hz: compute the target rate, draw a
// randomized whole number of lines from the expected count for the
// elapsed interval, synthesize and buffer each.
func (w *Worker) emitLoop(ctx context.Context, f *family, a *recipe.Assignment) {
	defer w.wg.Done()
	interval := time.Second / tickFrequencyHz
	ticker := w.clk.Ticker(interval)
	defer ticker.Stop()

	last := w.clk.Now()
	frac := 0.0 // fractional part of this tick's expected line count, drawn via Bernoulli
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			// The synthesizer's raw target (base * intensity * multiplier
			// * burst) is the Rate Governor's moving target; the governor
			// itself supplies the smoothed current_rate a consumer uses
			// to size this tick's batch.
			rawTarget := f.synth.TargetRate(now, f.baseRate, a.Multiplier, a.BurstFactor)
			f.governor.SetTarget(rawTarget)
			f.governor.Tick()

			expected := f.governor.CurrentRate() * elapsed.Seconds()
			n := int(math.Floor(expected))
			frac = expected - math.Floor(expected)
			if bernoulli(frac) {
				n++
			}

			for i := 0; i < n; i++ {
				if err := f.governor.Acquire(ctx); err != nil {
					return
				}
				line := f.synth.NextRecord(now.Unix(), a.Multiplier)
				w.addWithRetry(line)
				if w.opts.Metrics != nil {
					w.opts.Metrics.LinesEmittedTotal.WithLabelValues(f.id).Inc()
					w.opts.Metrics.BytesEmittedTotal.WithLabelValues(f.id).Add(float64(len(line)))
				}
			}
		}
	}
}

// addWithRetry handles a full buffer by forcing a flush then retrying
// once; a second refusal drops the line and logs a warning. No counter
// records the dropped line.
func (w *Worker) addWithRetry(line string) {
	if w.opts.Buffer.Add(line) {
		return
	}
	w.flushLines(w.opts.Buffer.Flush())
	if !w.opts.Buffer.Add(line) {
		w.log.Warnw("dropping line: buffer refused retry", "bytes", len(line))
	}
}

func (w *Worker) flushLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := w.clk.Ticker(w.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flushLines(w.opts.Buffer.Flush())
			return
		case <-ticker.C:
			w.flushLines(w.opts.Buffer.Flush())
		}
	}
}

// currentEmitter returns the Emitter bound to the active assignment's
// first endpoint, constructing and caching one per endpoint the first
// time it's needed.
func (w *Worker) currentEmitter() *emitter.Emitter {
	w.mu.RLock()
	a := w.assignment
	w.mu.RUnlock()
	if a == nil || len(a.Endpoints) == 0 {
		return nil
	}
	endpoint := a.Endpoints[0]

	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.emitters[endpoint]; ok {
		return e
	}
	pool, ok := w.opts.Pools[endpoint]
	if !ok {
		return nil
	}
	e := emitter.New(w.opts.Buffer, pool, emitter.Options{Logger: w.log})
	w.emitters[endpoint] = e
	return e
}

func (w *Worker) flushLines(lines []string) {
	if len(lines) == 0 {
		return
	}
	e := w.currentEmitter()
	if e == nil {
		return
	}
	e.WriteLines(lines, 500*time.Millisecond)
}

// bernoulli draws from the package-level math/rand source for the
// fractional-part coin flip deciding whether to emit one extra line
// this tick; this is a coarse scheduling decision, not a
// statistically-attributed sample, so it does not need a synthesizer's
// exclusively-owned source.
func bernoulli(p float64) bool {
	return p > 0 && mrand.Float64() < p
}
