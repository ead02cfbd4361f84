// Package batch implements the fixed-capacity line accumulator shared
// between many producers and one consumer.
package batch

import "sync"

// Buffer accumulates lines up to max_lines/max_bytes. Add refuses
// without storing once either bound would be exceeded; the caller is
// expected to force a Flush and retry.
type Buffer struct {
	mu        sync.Mutex
	lines     []string
	byteCount int
	maxLines  int
	maxBytes  int
}

// New constructs a Buffer with the given capacity bounds.
func New(maxLines, maxBytes int) *Buffer {
	return &Buffer{maxLines: maxLines, maxBytes: maxBytes}
}

// Add appends line if doing so would not exceed either bound. It
// returns false (without storing) when the buffer is full.
func (b *Buffer) Add(line string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) >= b.maxLines || b.byteCount+len(line) > b.maxBytes {
		return false
	}
	b.lines = append(b.lines, line)
	b.byteCount += len(line)
	return true
}

// Flush atomically returns and clears the accumulated lines.
func (b *Buffer) Flush() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return nil
	}
	out := b.lines
	b.lines = nil
	b.byteCount = 0
	return out
}

// Prepend re-enqueues lines at the front of the buffer, ahead of
// whatever has accumulated since. It ignores the capacity bounds: a
// retried batch must not be silently dropped by a size check that only
// exists to bound producer-side growth.
func (b *Buffer) Prepend(lines []string) {
	if len(lines) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int
	for _, l := range lines {
		n += len(l)
	}
	b.lines = append(append([]string(nil), lines...), b.lines...)
	b.byteCount += n
}

// Len reports the number of buffered lines, for /status reporting.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
