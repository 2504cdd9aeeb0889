package feedtest

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"
)

// ChunkConn is a net.Conn that serves a fixed byte string at most Chunk
// bytes per Read and records everything written. Deadlines are accepted and
// ignored.
type ChunkConn struct {
	mu      sync.Mutex
	data    []byte
	pos     int
	Chunk   int
	EOF     error // returned once data is exhausted; io.EOF when nil
	written bytes.Buffer
	closed  bool
}

// NewChunkConn serves data chunk bytes at a time; chunk <= 0 means all at once
func NewChunkConn(data []byte, chunk int) *ChunkConn {
	return &ChunkConn{data: data, Chunk: chunk}
}

func (c *ChunkConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos >= len(c.data) {
		if c.EOF != nil {
			return 0, c.EOF
		}
		return 0, io.EOF
	}
	n := len(p)
	if c.Chunk > 0 && n > c.Chunk {
		n = c.Chunk
	}
	n = copy(p[:n], c.data[c.pos:])
	c.pos += n
	return n, nil
}

func (c *ChunkConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(p)
}

// Written returns a copy of everything written so far
func (c *ChunkConn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.written.Bytes())
}

func (c *ChunkConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called
func (c *ChunkConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *ChunkConn) LocalAddr() net.Addr                { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *ChunkConn) RemoteAddr() net.Addr               { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 80} }
func (c *ChunkConn) SetDeadline(_ time.Time) error      { return nil }
func (c *ChunkConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *ChunkConn) SetWriteDeadline(_ time.Time) error { return nil }

// Dialer hands out prepared connections in order and records the address
// of every dial. Err, when set, fails every dial.
type Dialer struct {
	mu    sync.Mutex
	Conns []net.Conn
	Err   error
	Addrs []string
}

func (d *Dialer) DialContext(_ context.Context, _, addr string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Addrs = append(d.Addrs, addr)
	if d.Err != nil {
		return nil, d.Err
	}
	if len(d.Conns) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	c := d.Conns[0]
	d.Conns = d.Conns[1:]
	return c, nil
}
