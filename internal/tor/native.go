package tor

import (
	"context"
	"errors"
	"net"
	"sync"

	"golang.org/x/net/proxy"

	"github.com/nao1215/torhybrid/internal/route"
)

// NativeConnector connects through an in-process Tor client.
//
// The client is started on demand by the connector's Session. Clones made
// with Clone share that session, so the whole program bootstraps Tor at
// most once no matter how many connectors are in use.
type NativeConnector struct {
	session *Session
	forward proxy.ContextDialer

	closeOnce sync.Once
	closeErr  error
}

// NativeOption configures a NativeConnector.
type NativeOption func(*nativeOptions)

type nativeOptions struct {
	bootstrapper Bootstrapper
	forward      proxy.ContextDialer
}

// WithBootstrapper replaces the default embedded Tor daemon.
func WithBootstrapper(b Bootstrapper) NativeOption {
	return func(o *nativeOptions) {
		o.bootstrapper = b
	}
}

// WithNativeForwardDialer sets the dialer used to reach the daemon's
// SOCKS port.
func WithNativeForwardDialer(d proxy.ContextDialer) NativeOption {
	return func(o *nativeOptions) {
		o.forward = d
	}
}

// NewNativeConnector creates a connector with a fresh, uninitialized
// session. Without options the session launches an EmbeddedTor with
// default settings.
func NewNativeConnector(opts ...NativeOption) *NativeConnector {
	o := nativeOptions{
		forward: &net.Dialer{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bootstrapper == nil {
		o.bootstrapper = NewEmbeddedTor()
	}

	return &NativeConnector{
		session: NewSession(o.bootstrapper),
		forward: o.forward,
	}
}

// Connect opens a connection to host:port through the embedded Tor
// client, bootstrapping it first if needed.
//
// A bootstrap failure is returned as a ConnectError of kind
// route.KindBootstrap, and every later call reports the same failure.
func (c *NativeConnector) Connect(ctx context.Context, host string, port uint16) (net.Conn, error) {
	daemon, err := c.session.Daemon(ctx)
	if err != nil {
		return nil, route.NewConnectError(c.bootstrapKind(ctx, err), route.Overlay, c.Backend(), host, port, err)
	}

	d := socksDialer{
		proxyAddress: daemon.SocksAddr(),
		forward:      c.forward,
		backend:      c.Backend(),
	}
	return d.dial(ctx, host, port)
}

// bootstrapKind tells a caller giving up on the wait apart from a failed
// bootstrap.
func (c *NativeConnector) bootstrapKind(ctx context.Context, err error) route.Kind {
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		if errors.Is(err, context.DeadlineExceeded) {
			return route.KindTimeout
		}
		return route.KindIO
	case errors.Is(err, ErrSessionClosed):
		return route.KindIO
	default:
		return route.KindBootstrap
	}
}

// Backend returns the backend name used in errors.
func (c *NativeConnector) Backend() string {
	return "native"
}

// Session returns the shared session.
func (c *NativeConnector) Session() *Session {
	return c.session
}

// Clone returns a connector that shares this connector's session.
// The clone must be closed independently.
func (c *NativeConnector) Clone() (*NativeConnector, error) {
	if err := c.session.Acquire(); err != nil {
		return nil, err
	}
	return &NativeConnector{
		session: c.session,
		forward: c.forward,
	}, nil
}

// Close releases this connector's hold on the session. The Tor daemon
// stops when the last connector sharing it is closed. Close is idempotent.
func (c *NativeConnector) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.session.Release()
	})
	return c.closeErr
}
