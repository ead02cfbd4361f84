// Package emitter drains the Batch Buffer through a Connection Manager,
// counting bytes and handling write failures by invalidating the
// connection and retrying a bounded number of times.
package emitter

import (
	"time"

	"github.com/aszhur/loadgen/pkg/batch"
	"github.com/aszhur/loadgen/pkg/connpool"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const defaultMaxAttempts = 3

// Emitter drains one Buffer through one Pool. A single Emitter may be
// shared by several family goroutines that happen to target the same
// endpoint, so its counters are atomic rather than plain integers.
type Emitter struct {
	buffer   *batch.Buffer
	pool     *connpool.Pool
	attempts int
	log      *zap.SugaredLogger

	BytesWritten  atomic.Uint64
	LinesDropped  atomic.Uint64
	WriteFailures atomic.Uint64
}

// Options configures an Emitter.
type Options struct {
	MaxAttempts int
	Logger      *zap.SugaredLogger
}

// New constructs an Emitter bound to buffer and pool.
func New(buffer *batch.Buffer, pool *connpool.Pool, opts Options) *Emitter {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Emitter{buffer: buffer, pool: pool, attempts: opts.MaxAttempts, log: opts.Logger}
}

// FlushOnce drains the buffer once: writes all lines through the
// current connection, counts bytes, flushes the writer. A write
// failure invalidates the connection and resends the whole batch at
// once through pool.Get(), up to MaxAttempts total attempts; on
// exhaustion the batch is dropped with a counter increment. The batch
// is not put back into the buffer, and a resend goes to whatever
// connection the pool holds at that moment, which is still the
// invalidated one until the reconciler has replaced it.
func (e *Emitter) FlushOnce(writeDeadline time.Duration) {
	lines := e.buffer.Flush()
	if len(lines) == 0 {
		return
	}
	e.sendWithRetry(lines, writeDeadline, 1)
}

// WriteLines sends an already-dequeued batch of lines directly, without
// touching the buffer. Used by callers that manage their own drain
// point (e.g. the Worker Core's forced-flush-on-full retry path) and
// already hold the lines outside the buffer.
func (e *Emitter) WriteLines(lines []string, writeDeadline time.Duration) {
	if len(lines) == 0 {
		return
	}
	e.sendWithRetry(lines, writeDeadline, 1)
}

func (e *Emitter) sendWithRetry(lines []string, deadline time.Duration, attempt int) {
	conn := e.pool.Get()
	if conn == nil {
		e.retryOrDrop(lines, deadline, attempt)
		return
	}
	var written int
	var failed bool
	for _, line := range lines {
		n, err := conn.Writer.WriteString(line)
		written += n
		if err != nil {
			failed = true
			break
		}
	}
	if !failed {
		if err := conn.Writer.Flush(); err != nil {
			failed = true
		}
	}
	e.BytesWritten.Add(uint64(written))
	if !failed {
		return
	}
	e.WriteFailures.Inc()
	e.pool.Invalidate(conn)
	e.retryOrDrop(lines, deadline, attempt)
}

func (e *Emitter) retryOrDrop(lines []string, deadline time.Duration, attempt int) {
	if attempt >= e.attempts {
		e.LinesDropped.Add(uint64(len(lines)))
		e.log.Errorw("dropping batch after exhausting attempts", "attempts", attempt, "lines", len(lines))
		return
	}
	e.sendWithRetry(lines, deadline, attempt+1)
}

// PeriodicFlush pushes any partial buffered write through the socket
// even when no batches turned over, via the underlying writer's Flush.
func (e *Emitter) PeriodicFlush() {
	conn := e.pool.Get()
	if conn == nil {
		return
	}
	_ = conn.Writer.Flush()
}
