// Package transport provides a length-prefixed framing layer over a
// net.Conn, grounded on the context-aware receive loop and buffer-pooling
// pattern of the netio package this repository's responder daemon wiring
// was adapted from. SPDM itself is transport-agnostic; this package is one concrete binding an integrator can use
// to carry SPDM messages over TCP or a Unix domain socket, not part of the
// protocol core.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// MaxFrameSize bounds a single framed message to guard against a peer
// claiming an unbounded length prefix.
const MaxFrameSize = 1 << 20

// framePool reuses read buffers across Conn.Recv calls, avoiding an
// allocation per received frame.
var framePool = sync.Pool{
	New: func() any {
		buf := make([]byte, MaxFrameSize)
		return &buf
	},
}

// ErrFrameTooLarge indicates a peer declared a length prefix exceeding
// MaxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("transport: frame exceeds %d bytes", MaxFrameSize)

// Conn wraps a net.Conn with length-prefixed framing: each message is
// preceded by a 4-byte big-endian length.
type Conn struct {
	nc net.Conn
}

// NewConn wraps an established net.Conn for framed read/write.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Recv blocks until a full frame arrives or ctx is cancelled. The returned
// slice is borrowed from an internal pool; callers must call Release when
// done with it.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.nc.SetReadDeadline(deadline)
	}
	// Cancellation unblocks a pending read by moving the deadline to now.
	stop := context.AfterFunc(ctx, func() { _ = c.nc.SetReadDeadline(time.Now()) })
	defer stop()
	var lenPrefix [4]byte
	if _, err := io.ReadFull(c.nc, lenPrefix[:]); err != nil {
		return nil, fmt.Errorf("transport recv: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	bufp, _ := framePool.Get().(*[]byte)
	buf := (*bufp)[:n]
	if _, err := io.ReadFull(c.nc, buf); err != nil {
		framePool.Put(bufp)
		return nil, fmt.Errorf("transport recv: read frame body: %w", err)
	}
	return buf, nil
}

// Release returns a buffer obtained from Recv to the pool. Callers must not
// use the slice after calling Release.
func (c *Conn) Release(buf []byte) {
	full := buf[:cap(buf)]
	framePool.Put(&full)
}

// Send writes msg as one length-prefixed frame.
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	if len(msg) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.nc.SetWriteDeadline(deadline)
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(msg)))
	if _, err := c.nc.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("transport send: write length prefix: %w", err)
	}
	if _, err := c.nc.Write(msg); err != nil {
		return fmt.Errorf("transport send: write frame body: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	if err := c.nc.Close(); err != nil {
		return fmt.Errorf("transport close: %w", err)
	}
	return nil
}

// Listener accepts incoming connections and wraps each in a framed Conn,
// mirroring netio.Listener's role of turning a raw socket into a
// higher-level receive surface.
type Listener struct {
	nl net.Listener
}

// Listen opens a Listener bound to network/address (e.g. "tcp", ":4488" or
// "unix", "/run/spdm-responder.sock").
func Listen(network, address string) (*Listener, error) {
	nl, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("transport listen: %w", err)
	}
	return &Listener{nl: nl}, nil
}

// Accept blocks until a new connection arrives, returning it wrapped for
// framed I/O.
func (l *Listener) Accept() (*Conn, error) {
	nc, err := l.nl.Accept()
	if err != nil {
		return nil, fmt.Errorf("transport accept: %w", err)
	}
	return NewConn(nc), nil
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	if err := l.nl.Close(); err != nil {
		return fmt.Errorf("transport close listener: %w", err)
	}
	return nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}
