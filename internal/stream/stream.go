package stream

import (
	"errors"
	"net"
	"time"

	"github.com/nao1215/torhybrid/internal/route"
)

// Metadata describes an established stream.
type Metadata struct {
	// Domain is the routing domain the stream was connected over.
	Domain route.Domain

	// Reusable reports whether the connection may be kept for reuse by a
	// connection pool. Tor circuits are not treated as poolable sockets, so
	// overlay streams report false unless the transport says otherwise.
	Reusable bool

	// Proxied reports whether the bytes travel through a proxy.
	Proxied bool
}

// Optional transport capabilities. A transport that does not implement
// one of these gets the documented fallback behaviour.
type (
	flusher interface {
		Flush() error
	}
	closeWriter interface {
		CloseWrite() error
	}
	vectoredWriter interface {
		IsWriteVectored() bool
		WriteBuffers(bufs *net.Buffers) (int64, error)
	}
	reuser interface {
		Reusable() bool
	}
)

// Stream is a connection over exactly one routing domain.
// It implements net.Conn. A Stream is owned by the caller that requested it
// and must be closed to release the underlying transport.
type Stream struct {
	domain route.Domain

	// clearnet is set only for Clearnet streams.
	clearnet net.Conn

	// overlay is set only for Overlay streams.
	overlay net.Conn
}

// NewClearnet wraps a direct connection.
func NewClearnet(conn net.Conn) *Stream {
	return &Stream{domain: route.Clearnet, clearnet: conn}
}

// NewOverlay wraps a connection made through Tor.
func NewOverlay(conn net.Conn) *Stream {
	return &Stream{domain: route.Overlay, overlay: conn}
}

// New wraps conn as a stream of the given domain.
func New(domain route.Domain, conn net.Conn) *Stream {
	if domain == route.Overlay {
		return NewOverlay(conn)
	}
	return NewClearnet(conn)
}

// transport returns the connection of the active case.
func (s *Stream) transport() net.Conn {
	switch s.domain {
	case route.Clearnet:
		return s.clearnet
	case route.Overlay:
		return s.overlay
	default:
		panic("stream: unknown domain " + s.domain.String())
	}
}

// Domain returns the routing domain of the stream.
func (s *Stream) Domain() route.Domain {
	return s.domain
}

// Unwrap returns the underlying transport.
func (s *Stream) Unwrap() net.Conn {
	return s.transport()
}

// Read reads from the underlying transport.
func (s *Stream) Read(b []byte) (int, error) {
	return s.transport().Read(b)
}

// Write writes to the underlying transport.
func (s *Stream) Write(b []byte) (int, error) {
	return s.transport().Write(b)
}

// Flush flushes the transport if it buffers writes. Sockets have no
// user-space write buffer, so for them Flush is a no-op.
func (s *Stream) Flush() error {
	if f, ok := s.transport().(flusher); ok {
		return f.Flush()
	}
	return nil
}

// CloseWrite shuts down the write half of the connection so the peer sees
// EOF while reads continue to work. It returns an error wrapping
// errors.ErrUnsupported when the transport cannot half-close.
func (s *Stream) CloseWrite() error {
	conn := s.transport()
	if cw, ok := conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	opErr := &net.OpError{Op: "shutdown", Addr: conn.RemoteAddr(), Err: errors.ErrUnsupported}
	if local := conn.LocalAddr(); local != nil {
		opErr.Net = local.Network()
		opErr.Source = local
	}
	return opErr
}

// IsWriteVectored reports whether WriteBuffers is served by a single
// vectored system call instead of one write per buffer.
func (s *Stream) IsWriteVectored() bool {
	switch c := s.transport().(type) {
	case vectoredWriter:
		return c.IsWriteVectored()
	case *net.TCPConn, *net.UnixConn:
		return true
	default:
		return false
	}
}

// WriteBuffers writes the contents of bufs, consuming them as
// net.Buffers.WriteTo does.
func (s *Stream) WriteBuffers(bufs *net.Buffers) (int64, error) {
	conn := s.transport()
	if vw, ok := conn.(vectoredWriter); ok {
		return vw.WriteBuffers(bufs)
	}
	return bufs.WriteTo(conn)
}

// Connected returns metadata about the established connection.
func (s *Stream) Connected() Metadata {
	conn := s.transport()
	switch s.domain {
	case route.Clearnet:
		md := Metadata{Domain: route.Clearnet, Reusable: true}
		if r, ok := conn.(reuser); ok {
			md.Reusable = r.Reusable()
		}
		return md
	case route.Overlay:
		md := Metadata{Domain: route.Overlay, Proxied: true}
		if r, ok := conn.(reuser); ok {
			md.Reusable = r.Reusable()
		}
		return md
	default:
		panic("stream: unknown domain " + s.domain.String())
	}
}

// Close closes the underlying transport.
func (s *Stream) Close() error {
	return s.transport().Close()
}

// LocalAddr returns the local address of the transport.
func (s *Stream) LocalAddr() net.Addr {
	return s.transport().LocalAddr()
}

// RemoteAddr returns the remote address of the transport. For overlay
// streams this is whatever the proxy reported, not the real peer.
func (s *Stream) RemoteAddr() net.Addr {
	return s.transport().RemoteAddr()
}

// SetDeadline sets the read and write deadlines of the transport.
func (s *Stream) SetDeadline(t time.Time) error {
	return s.transport().SetDeadline(t)
}

// SetReadDeadline sets the read deadline of the transport.
func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.transport().SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline of the transport.
func (s *Stream) SetWriteDeadline(t time.Time) error {
	return s.transport().SetWriteDeadline(t)
}

var _ net.Conn = (*Stream)(nil)
