// Package rategovernor implements the token-bearing rate limiter whose
// target moves as a function of base rate, intensity curve, multiplier
// and burst factor, with smooth acceleration between rates.
package rategovernor

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// Governor wraps an x/time/rate.Limiter whose Limit is nudged toward a
// target at each refresh tick.
type Governor struct {
	mu              sync.Mutex
	limiter         *rate.Limiter
	starting        float64
	target          float64
	current         float64
	accelPerSec     float64
	refreshInterval time.Duration
	lastAdjust      time.Time
	clock           clock.Clock
}

// New constructs a Governor starting at startingRate and accelerating
// toward targetRate by accelPerSec every refreshInterval.
func New(startingRate, targetRate, accelPerSec float64, refreshInterval time.Duration, c clock.Clock) *Governor {
	if startingRate < 0 {
		startingRate = 0
	}
	if c == nil {
		c = clock.New()
	}
	g := &Governor{
		limiter:         rate.NewLimiter(toLimit(startingRate), burstSize(startingRate)),
		starting:        startingRate,
		target:          targetRate,
		current:         startingRate,
		accelPerSec:     accelPerSec,
		refreshInterval: refreshInterval,
		lastAdjust:      c.Now(),
		clock:           c,
	}
	return g
}

func toLimit(r float64) rate.Limit {
	if r <= 0 {
		return rate.Limit(0.001) // avoid a zero limiter wedging Wait forever on r=0
	}
	return rate.Limit(r)
}

func burstSize(r float64) int {
	b := int(r / 10)
	if b < 1 {
		b = 1
	}
	return b
}

// CurrentRate returns the current smoothed rate in records/second,
// which each Tick moves toward the target.
func (g *Governor) CurrentRate() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// SetTarget changes the rate this Governor accelerates toward. Once
// reached, no further adjustment occurs until SetTarget is called again.
func (g *Governor) SetTarget(target float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.target = target
	g.starting = g.current
}

// Tick applies one adjustment step if at least refreshInterval has
// elapsed since the last adjustment, moving current toward target by
// elapsed*accelPerSec, clamped so it never overshoots.
func (g *Governor) Tick() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	elapsed := now.Sub(g.lastAdjust)
	if elapsed < g.refreshInterval {
		return
	}
	g.lastAdjust = now

	if g.current == g.target {
		return
	}
	step := elapsed.Seconds() * g.accelPerSec
	if g.current < g.target {
		g.current += step
		if g.current > g.target {
			g.current = g.target
		}
	} else {
		g.current -= step
		if g.current < g.target {
			g.current = g.target
		}
	}
	if g.current < 0 {
		g.current = 0
	}
	g.limiter.SetLimit(toLimit(g.current))
	g.limiter.SetBurst(burstSize(g.current))
}

// Acquire blocks until one token is available at the current rate.
func (g *Governor) Acquire(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
