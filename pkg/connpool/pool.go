package connpool

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// State is the per-endpoint Connection Manager state machine:
// Healthy -> Reconnecting on the first invalidate that advances the
// watermark, Reconnecting -> Healthy on successful build.
type State int

const (
	Healthy State = iota
	Reconnecting
)

// Pool is one Connection Manager instance for a single endpoint. It
// holds the currently-handed-out Connection and a first_good_id
// watermark; any Connection with id < watermark is unusable and
// scheduled for replacement.
type Pool struct {
	endpoint string
	dial     Dialer
	bufSize  int

	mu          sync.Mutex
	current     *Connection
	firstGoodID int64
	nextID      int64
	state       State
	becameStale time.Time

	rebuildSignal chan struct{}
	initial       time.Duration
	max           time.Duration
	log           *zap.SugaredLogger
}

// Options configures a Pool.
type Options struct {
	Dialer          Dialer
	BufferBytes     int
	ReconnectInit   time.Duration
	ReconnectMax    time.Duration
	Logger          *zap.SugaredLogger
}

// New builds a Connection synchronously at construction with id=1 and
// first_good_id=1, then starts the reconciler goroutine.
func New(endpoint string, opts Options) (*Pool, error) {
	if opts.BufferBytes <= 0 {
		opts.BufferBytes = 8192
	}
	if opts.ReconnectInit <= 0 {
		opts.ReconnectInit = time.Second
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	p := &Pool{
		endpoint:      endpoint,
		dial:          opts.Dialer,
		bufSize:       opts.BufferBytes,
		firstGoodID:   1,
		nextID:        1,
		rebuildSignal: make(chan struct{}, 1),
		initial:       opts.ReconnectInit,
		max:           opts.ReconnectMax,
		log:           opts.Logger,
	}
	conn, err := p.build(1)
	if err != nil {
		// An endpoint that's dead on the first dial still gets a Pool:
		// the reconciler backs off and retries rather than failing
		// construction outright, and Get() returns nil until the first
		// successful rebuild.
		p.log.Warnw("initial connection build failed, backing off", "endpoint", endpoint, "err", err)
		p.state = Reconnecting
		p.becameStale = time.Now()
		p.rebuildSignal <- struct{}{}
	} else {
		p.current = conn
	}
	go p.reconcileLoop()
	return p, nil
}

func (p *Pool) build(id int64) (*Connection, error) {
	stream, err := p.dial(p.endpoint)
	if err != nil {
		return nil, err
	}
	return newConnection(id, stream, p.bufSize), nil
}

// Get returns the currently-handed-out Connection regardless of its id
// vs first_good_id; it never blocks. Callers detect staleness by the
// next write failing and must call Invalidate.
func (p *Pool) Get() *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Invalidate is idempotent: if conn.id < first_good_id it is a no-op;
// otherwise first_good_id advances to conn.id+1 and the reconciler is
// signaled.
func (p *Pool) Invalidate(conn *Connection) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	if conn.ID < p.firstGoodID {
		p.mu.Unlock()
		return
	}
	p.firstGoodID = conn.ID + 1
	wasHealthy := p.state == Healthy
	p.state = Reconnecting
	p.becameStale = time.Now()
	p.mu.Unlock()

	if wasHealthy {
		p.log.Warnw("connection invalidated, reconnecting", "endpoint", p.endpoint, "id", conn.ID)
	}
	select {
	case p.rebuildSignal <- struct{}{}:
	default:
	}
}

// State reports the current Healthy/Reconnecting state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ReconnectingSince returns how long the pool has been in Reconnecting
// state, used by the Worker Core readiness check.
func (p *Pool) ReconnectingSince() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Reconnecting {
		return 0, false
	}
	return time.Since(p.becameStale), true
}

func (p *Pool) watermark() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstGoodID
}

func (p *Pool) reconcileLoop() {
	for range p.rebuildSignal {
		p.rebuildOnce()
	}
}

func (p *Pool) rebuildOnce() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initial
	bo.MaxInterval = p.max
	bo.Multiplier = 2
	bo.RandomizationFactor = 1.0
	bo.MaxElapsedTime = 0 // retry forever until it succeeds

	for {
		id := p.watermark()
		conn, err := p.build(id)
		if err == nil {
			p.mu.Lock()
			p.current = conn
			p.state = Healthy
			p.mu.Unlock()
			p.log.Infow("connection rebuilt", "endpoint", p.endpoint, "id", id)
			return
		}
		p.log.Warnw("connection build failed, backing off", "endpoint", p.endpoint, "err", err)
		d := bo.NextBackOff()
		if d == backoff.Stop {
			return
		}
		time.Sleep(d)
	}
}

// Close releases the current connection. The reconciler goroutine is
// left running until the process exits; production callers pair this
// with process shutdown, not pool-level teardown.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return p.current.Close()
	}
	return nil
}
