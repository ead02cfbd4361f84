package connpool

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWriteCloser struct{ closed bool }

func (n *nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (n *nopWriteCloser) Close() error                { n.closed = true; return nil }

func alwaysSucceeds(endpoint string) (io.WriteCloser, error) {
	return &nopWriteCloser{}, nil
}

func TestNewBuildsIDOneWithWatermarkOne(t *testing.T) {
	p, err := New("ep", Options{Dialer: alwaysSucceeds})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Get().ID)
	assert.Equal(t, int64(1), p.watermark())
	assert.Equal(t, Healthy, p.State())
}

func TestInvalidateIsIdempotent(t *testing.T) {
	p, err := New("ep", Options{Dialer: alwaysSucceeds})
	require.NoError(t, err)
	c := p.Get()
	p.Invalidate(c)
	wm := p.watermark()
	p.Invalidate(c)
	assert.Equal(t, wm, p.watermark())
}

func TestInvalidateBelowWatermarkIsNoop(t *testing.T) {
	p, err := New("ep", Options{Dialer: alwaysSucceeds})
	require.NoError(t, err)
	c := p.Get()
	p.Invalidate(c) // watermark now 2
	assert.Equal(t, int64(2), p.watermark())
	p.Invalidate(c) // c.ID=1 < 2, no-op
	assert.Equal(t, int64(2), p.watermark())
}

func TestCurrentIDAlwaysAtLeastWatermarkMinusOneEventually(t *testing.T) {
	var failCount int
	var mu sync.Mutex
	dialer := func(endpoint string) (io.WriteCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		if failCount < 2 {
			failCount++
			return nil, fmt.Errorf("connect refused")
		}
		return &nopWriteCloser{}, nil
	}
	p, err := New("ep", Options{Dialer: dialer, ReconnectInit: time.Millisecond, ReconnectMax: 5 * time.Millisecond})
	require.NoError(t, err)

	p.Invalidate(p.Get())
	require.Eventually(t, func() bool {
		return p.Get().ID >= p.watermark()
	}, time.Second, time.Millisecond)
}

func TestReconnectingSinceClearsAfterRebuild(t *testing.T) {
	dialer := func(endpoint string) (io.WriteCloser, error) {
		return nil, fmt.Errorf("always fails")
	}
	p, err := New("ep", Options{Dialer: alwaysSucceeds})
	require.NoError(t, err)
	_ = dialer
	p.Invalidate(p.Get())
	require.Eventually(t, func() bool {
		_, reconnecting := p.ReconnectingSince()
		return !reconnecting // should recover quickly since alwaysSucceeds
	}, time.Second, time.Millisecond)
}
