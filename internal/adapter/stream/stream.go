// Package stream implements the byte-stream abstraction: a stream is
// byte I/O plus an attached Extensions container. Streams wrap each other
// (TLS-over-TCP, for instance) and must propagate Extensions by delegation —
// the outermost wrapper's Extensions() returns the innermost stream's, so a
// TLS layer doesn't fork the TCP layer's socket metadata into a second,
// disconnected container.
package stream

import (
	"io"
	"net"

	"github.com/ramaframework/rama/internal/core/extensions"
)

// Stream is byte I/O with an attached Extensions container.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer

	// Extensions returns the container threaded with this stream. Wrappers
	// must delegate to the innermost stream's container rather than
	// allocating their own.
	Extensions() *extensions.Extensions

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// conn adapts a net.Conn (TCP, UDP, or Unix) into a Stream, owning a fresh
// Extensions container — this is always the innermost stream in a wrap
// chain, since a raw net.Conn has no further delegate.
type conn struct {
	net.Conn
	ext *extensions.Extensions
}

// NewConn wraps an established net.Conn as the innermost Stream, with a
// fresh Extensions container populated with the peer/local addresses
// (peer/local socket addresses are the canonical inhabitants here).
func NewConn(c net.Conn) Stream {
	ext := extensions.New()
	extensions.Insert(ext, LocalAddr(c.LocalAddr()))
	extensions.Insert(ext, RemoteAddr(c.RemoteAddr()))
	return &conn{Conn: c, ext: ext}
}

func (c *conn) Extensions() *extensions.Extensions { return c.ext }

// LocalAddr and RemoteAddr are the Extensions entries NewConn populates, so
// later layers can retrieve the original socket addresses without holding a
// reference to the underlying net.Conn (e.g. after a TLS wrap).
type LocalAddr net.Addr
type RemoteAddr net.Addr

// Wrapper is embedded by streams that layer behavior over an inner Stream
// (TLS, PROXY-protocol decoration, …) without changing its byte I/O. It
// delegates Extensions, LocalAddr, and RemoteAddr to the inner stream so the
// wrap chain shares one Extensions container end to end.
type Wrapper struct {
	Inner Stream
}

func (w Wrapper) Extensions() *extensions.Extensions { return w.Inner.Extensions() }
func (w Wrapper) LocalAddr() net.Addr                { return w.Inner.LocalAddr() }
func (w Wrapper) RemoteAddr() net.Addr               { return w.Inner.RemoteAddr() }
func (w Wrapper) Close() error                       { return w.Inner.Close() }
