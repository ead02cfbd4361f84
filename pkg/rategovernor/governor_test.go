package rategovernor

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccelerationMonotoneTowardTarget(t *testing.T) {
	mock := clock.NewMock()
	g := New(10, 100, 9, time.Second, mock)

	prev := g.CurrentRate()
	for i := 0; i < 12; i++ {
		mock.Add(time.Second)
		g.Tick()
		cur := g.CurrentRate()
		assert.True(t, cur >= prev)
		assert.True(t, cur >= 10 && cur <= 100)
		prev = cur
	}
	assert.InDelta(t, 100, g.CurrentRate(), 1e-6)
}

func TestNoAdjustmentOnceTargetReached(t *testing.T) {
	mock := clock.NewMock()
	g := New(10, 20, 100, time.Second, mock)
	mock.Add(time.Second)
	g.Tick()
	assert.InDelta(t, 20, g.CurrentRate(), 1e-6)

	mock.Add(5 * time.Second)
	g.Tick()
	assert.InDelta(t, 20, g.CurrentRate(), 1e-6)
}

func TestDecelerationTowardLowerTarget(t *testing.T) {
	mock := clock.NewMock()
	g := New(100, 10, 20, time.Second, mock)
	mock.Add(time.Second)
	g.Tick()
	assert.True(t, g.CurrentRate() < 100)
	assert.True(t, g.CurrentRate() >= 10)
}

func TestAcquireReturnsAToken(t *testing.T) {
	g := New(1000, 1000, 0, time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Acquire(ctx))
}

func TestSetTargetResetsAccelerationBaseline(t *testing.T) {
	mock := clock.NewMock()
	g := New(10, 20, 5, time.Second, mock)
	mock.Add(time.Second)
	g.Tick()
	g.SetTarget(5)
	mock.Add(time.Second)
	g.Tick()
	assert.True(t, g.CurrentRate() < 15)
}
