// Package connpool implements the per-endpoint Connection Manager:
// monotonic-id connections invalidated via a watermark, rebuilt by a
// dedicated reconciler goroutine under exponential backoff with jitter.
package connpool

import (
	"bufio"
	"io"
)

// Dialer opens the underlying byte stream for one endpoint. Production
// callers pass a net.Dial-backed implementation; tests substitute an
// in-memory one.
type Dialer func(endpoint string) (io.WriteCloser, error)

// Connection is one handed-out, monotonically-numbered byte stream.
type Connection struct {
	ID     int64
	conn   io.WriteCloser
	Writer *bufio.Writer
}

func newConnection(id int64, conn io.WriteCloser, bufSize int) *Connection {
	return &Connection{ID: id, conn: conn, Writer: bufio.NewWriterSize(conn, bufSize)}
}

// Close releases the underlying stream.
func (c *Connection) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
