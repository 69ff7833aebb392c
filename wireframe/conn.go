package wireframe

import (
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

var (
	ErrConnectTimeout = errors.New("wireframe: connect timeout")
	ErrConnectRefused = errors.New("wireframe: connect refused")
	ErrIO             = errors.New("wireframe: io error")
	ErrDecode         = errors.New("wireframe: decode error")
)

// Conn is a bidirectional framed channel: every Send/Recv moves exactly one
// Size-byte frame, and the connection counts bytes and frames in each
// direction for the usher relay's per-connection accounting.
type Conn struct {
	nc net.Conn

	RecordsIn  uint64
	BytesIn    uint64
	RecordsOut uint64
	BytesOut   uint64
}

// NewConn wraps an already-established net.Conn.
func NewConn(nc net.Conn) *Conn {
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &Conn{nc: nc}
}

// Connect dials host:port over TCP with TCP_NODELAY set, honoring deadline.
func Connect(host string, port int, deadline time.Duration) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	nc, err := net.DialTimeout("tcp", addr, deadline)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrConnectTimeout
		}
		return nil, ErrConnectRefused
	}
	return NewConn(nc), nil
}

// Send encodes payload into one frame and writes it.
func (c *Conn) Send(payload []byte) error {
	frame, err := Encode(payload)
	if err != nil {
		return err
	}
	n, err := c.nc.Write(frame[:])
	if err != nil {
		return ErrIO
	}
	c.RecordsOut++
	c.BytesOut += uint64(n)
	return nil
}

// Recv reads exactly one frame and decodes it. It returns (nil, nil) on
// clean EOF (no more frames), signalling the caller that the peer is done.
func (c *Conn) Recv(deadline time.Time) ([]byte, error) {
	if !deadline.IsZero() {
		_ = c.nc.SetReadDeadline(deadline)
	}
	buf := make([]byte, Size)
	n, err := io.ReadFull(c.nc, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if n == 0 {
				return nil, nil
			}
			return nil, ErrDecode
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, ErrIO
	}
	c.RecordsIn++
	c.BytesIn += uint64(n)
	payload, err := Decode(buf)
	if err != nil {
		return nil, ErrDecode
	}
	return payload, nil
}

// Close flushes (best-effort) and closes the underlying connection. It is
// safe to call Close more than once.
func (c *Conn) Close() error {
	if c.nc == nil {
		return nil
	}
	err := c.nc.Close()
	c.nc = nil
	return err
}
