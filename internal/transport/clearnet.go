package transport

import (
	"context"
	"net"
	"strconv"

	"golang.org/x/net/proxy"
)

// ClearnetConnector dials destinations directly over TCP. Hostnames are
// resolved by the system resolver.
type ClearnetConnector struct {
	dialer proxy.ContextDialer
}

// ClearnetOption configures a ClearnetConnector.
type ClearnetOption func(*ClearnetConnector)

// WithDialer replaces the default net.Dialer.
func WithDialer(d proxy.ContextDialer) ClearnetOption {
	return func(c *ClearnetConnector) {
		if d != nil {
			c.dialer = d
		}
	}
}

// NewClearnetConnector creates a direct TCP connector.
func NewClearnetConnector(opts ...ClearnetOption) *ClearnetConnector {
	c := &ClearnetConnector{
		dialer: &net.Dialer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials host:port. Errors from the dialer are returned as they
// are; the Service turns them into *route.ConnectError.
func (c *ClearnetConnector) Connect(ctx context.Context, host string, port uint16) (net.Conn, error) {
	return c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
}

// Backend returns the backend name used in errors.
func (c *ClearnetConnector) Backend() string {
	return "direct"
}
