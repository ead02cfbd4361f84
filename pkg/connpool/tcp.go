package connpool

import (
	"io"
	"net"
	"time"
)

// deadlineConn wraps a net.Conn so every Write gets a fresh deadline: a
// stalled socket must not block the emit loop past the configured
// write deadline.
type deadlineConn struct {
	net.Conn
	deadline time.Duration
}

func (d *deadlineConn) Write(p []byte) (int, error) {
	if err := d.Conn.SetWriteDeadline(time.Now().Add(d.deadline)); err != nil {
		return 0, err
	}
	return d.Conn.Write(p)
}

// TCPDialer returns a Dialer that opens a TCP connection to endpoint
// (host:port) and enforces writeDeadline on every write.
func TCPDialer(connectTimeout, writeDeadline time.Duration) Dialer {
	if writeDeadline < 200*time.Millisecond {
		writeDeadline = 200 * time.Millisecond
	}
	return func(endpoint string) (io.WriteCloser, error) {
		conn, err := net.DialTimeout("tcp", endpoint, connectTimeout)
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, deadline: writeDeadline}, nil
	}
}
