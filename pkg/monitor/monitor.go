package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/aszhur/loadgen/pkg/recipe"
	"github.com/aszhur/loadgen/pkg/telemetry"
)

const defaultWindowDuration = 5 * time.Minute

// Options configures a Monitor.
type Options struct {
	Catalog    *Catalog
	Thresholds Thresholds
	Metrics    *telemetry.MonitorMetrics
	Logger     *zap.SugaredLogger
	Clock      clock.Clock
	TickInterval time.Duration
	WindowDuration time.Duration
	MaxSamplesPerWindow int
}

// Monitor is the Divergence Monitor for one process: it drains a sample
// channel into per-family SlidingWindows and runs Compute on a timer.
type Monitor struct {
	opts Options
	log  *zap.SugaredLogger
	clk  clock.Clock

	mu       sync.RWMutex
	windows  map[string]*SlidingWindow
	scores   map[string]*FamilyScore
	sketches map[string]*ddsketch.DDSketch

	computeSignal chan struct{}
}

// New constructs a Monitor. Call Run to start draining samples and
// ticking the per-minute computation; it blocks until ctx is cancelled.
func New(opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Minute
	}
	if opts.WindowDuration <= 0 {
		opts.WindowDuration = defaultWindowDuration
	}
	if (opts.Thresholds == Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	return &Monitor{
		opts:          opts,
		log:           opts.Logger,
		clk:           opts.Clock,
		windows:       map[string]*SlidingWindow{},
		scores:        map[string]*FamilyScore{},
		sketches:      map[string]*ddsketch.DDSketch{},
		computeSignal: make(chan struct{}, 1),
	}
}

// Ingest feeds one Sample into its family's window, creating the
// window and an auxiliary ddsketch on first sight of that family.
func (m *Monitor) Ingest(s recipe.Sample) {
	w, sk := m.windowFor(s.FamilyID)
	w.Add(s)
	if sk != nil && !isNaNOrInf(s.Value) {
		_ = sk.Add(s.Value)
	}
}

func (m *Monitor) windowFor(familyID string) (*SlidingWindow, *ddsketch.DDSketch) {
	m.mu.RLock()
	w, ok := m.windows[familyID]
	sk := m.sketches[familyID]
	m.mu.RUnlock()
	if ok {
		return w, sk
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[familyID]; ok {
		return w, m.sketches[familyID]
	}
	w = NewSlidingWindow(familyID, m.opts.WindowDuration, m.opts.MaxSamplesPerWindow)
	m.windows[familyID] = w
	m.scores[familyID] = &FamilyScore{FamilyID: familyID}
	newSketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err == nil {
		m.sketches[familyID] = newSketch
	}
	return w, m.sketches[familyID]
}

// Run drains samples and ticks ComputeAll every TickInterval until ctx
// is cancelled.
func (m *Monitor) Run(ctx context.Context, samples <-chan recipe.Sample) {
	ticker := m.clk.Ticker(m.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			m.Ingest(s)
		case <-ticker.C:
			m.ComputeAll()
		case <-m.computeSignal:
			m.ComputeAll()
		}
	}
}

// TriggerCompute requests an out-of-band compute pass (served by
// POST /compute); non-blocking, coalesces with any pending request.
func (m *Monitor) TriggerCompute() {
	select {
	case m.computeSignal <- struct{}{}:
	default:
	}
}

// ComputeAll runs Compute for every family with a window, updating each
// FamilyScore and the exported gauges.
func (m *Monitor) ComputeAll() {
	m.mu.RLock()
	families := make([]string, 0, len(m.windows))
	for id := range m.windows {
		families = append(families, id)
	}
	m.mu.RUnlock()

	now := m.clk.Now()
	for _, id := range families {
		m.computeOne(id, now)
	}
}

func (m *Monitor) computeOne(familyID string, now time.Time) {
	m.mu.RLock()
	w := m.windows[familyID]
	score := m.scores[familyID]
	m.mu.RUnlock()
	if w == nil || score == nil {
		return
	}

	ref := m.opts.Catalog.Get(familyID)
	snap := w.Snapshot()
	result, err := Compute(familyID, ref, snap)
	if err != nil {
		m.log.Debugw("divergence compute skipped", "family", familyID, "err", err)
		return
	}

	status := Classify(result, m.opts.Thresholds)
	score.Update(result, status, now, m.opts.Thresholds.RedMinutes)
	m.recordMetrics(familyID, result, status, score.Snapshot())
}

func (m *Monitor) recordMetrics(familyID string, r *Result, status Status, score FamilyScore) {
	if m.opts.Metrics == nil {
		return
	}
	for _, td := range r.TagJS {
		m.opts.Metrics.JensenShannon.WithLabelValues(familyID, "tag_"+td.Tag).Set(td.Score)
	}
	m.opts.Metrics.Wasserstein.WithLabelValues(familyID).Set(r.Wasserstein)
	m.opts.Metrics.Kolmogorov.WithLabelValues(familyID).Set(r.KS)
	m.opts.Metrics.FamilyStatus.WithLabelValues(familyID, "overall").Set(float64(status))

	if score.CriticalAlert {
		m.opts.Metrics.AlertsActive.WithLabelValues("critical", "sustained_red").Set(1)
	} else {
		m.opts.Metrics.AlertsActive.WithLabelValues("critical", "sustained_red").Set(0)
	}
}

// Scores returns a snapshot of every family's current FamilyScore.
func (m *Monitor) Scores() []FamilyScore {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FamilyScore, 0, len(m.scores))
	for _, s := range m.scores {
		out = append(out, s.Snapshot())
	}
	return out
}

func isNaNOrInf(v float64) bool {
	return v != v || v > 1e308 || v < -1e308
}
