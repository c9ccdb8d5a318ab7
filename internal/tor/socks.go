package tor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/proxy"

	"github.com/nao1215/torhybrid/internal/route"
)

// socksDialer connects to destinations through a SOCKS5 proxy.
// A zero forward dialer means a plain net.Dialer.
type socksDialer struct {
	proxyAddress string
	forward      proxy.ContextDialer
	backend      string
}

// dial performs the SOCKS5 CONNECT handshake for host:port.
// The hostname is sent to the proxy as-is; nothing is resolved locally.
//
// If ctx is cancelled while the handshake is in progress, x/net/proxy
// closes the half-open proxy connection before returning.
func (d socksDialer) dial(ctx context.Context, host string, port uint16) (net.Conn, error) {
	forward := d.forward
	if forward == nil {
		forward = &net.Dialer{}
	}
	tracker := &trackingDialer{forward: forward}

	// A dialer per call lets us keep hold of the raw proxy socket.
	// Construction is cheap: nothing touches the network here.
	dialer, err := proxy.SOCKS5("tcp", d.proxyAddress, nil, tracker)
	if err != nil {
		return nil, route.NewConnectError(route.KindIO, route.Overlay, d.backend, host, port,
			fmt.Errorf("failed to create SOCKS5 dialer: %w", err))
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, route.NewConnectError(route.KindIO, route.Overlay, d.backend, host, port,
			errors.New("SOCKS5 dialer does not support contexts"))
	}

	conn, err := contextDialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		// A cancelled handshake surfaces as a socket deadline error.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, route.NewConnectError(classifyDialError(err, tracker.conn != nil),
			route.Overlay, d.backend, host, port, err)
	}

	return &socksConn{Conn: conn, raw: tracker.conn}, nil
}

// trackingDialer dials the proxy and remembers the resulting connection.
// It is used for exactly one dial.
type trackingDialer struct {
	forward proxy.ContextDialer
	conn    net.Conn
}

// Dial implements proxy.Dialer.
func (d *trackingDialer) Dial(network, address string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, address)
}

// DialContext implements proxy.ContextDialer.
func (d *trackingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.forward.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	d.conn = conn
	return conn, nil
}

// socksConn is an established connection through a SOCKS5 proxy.
//
// After the handshake the proxy relays bytes verbatim, so half-close and
// vectored writes can go straight to the socket connected to the proxy.
// RemoteAddr still reports the address the proxy bound for us.
type socksConn struct {
	net.Conn
	raw net.Conn
}

// CloseWrite shuts down the write half of the proxy connection. The proxy
// propagates the half-close to the destination.
func (c *socksConn) CloseWrite() error {
	if cw, ok := c.raw.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return &net.OpError{Op: "shutdown", Net: "tcp", Addr: c.RemoteAddr(), Err: errors.ErrUnsupported}
}

// IsWriteVectored reports whether the proxy socket supports writev.
func (c *socksConn) IsWriteVectored() bool {
	switch c.raw.(type) {
	case *net.TCPConn, *net.UnixConn:
		return true
	default:
		return false
	}
}

// WriteBuffers writes bufs to the proxy socket.
func (c *socksConn) WriteBuffers(bufs *net.Buffers) (int64, error) {
	return bufs.WriteTo(c.raw)
}
