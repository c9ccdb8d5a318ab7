package tor

import (
	"context"
	"net"
	"strconv"

	"golang.org/x/net/proxy"
)

// DefaultProxyAddress is the SOCKS port a system Tor daemon listens on.
const DefaultProxyAddress = "127.0.0.1:9050"

// ProxyConnector connects through an already running Tor SOCKS5 proxy.
//
// The proxy is not contacted when the connector is created, so it can be
// built before Tor is up. Use Check to verify the proxy.
type ProxyConnector struct {
	// proxyAddress is the SOCKS5 proxy address in "host:port" format.
	proxyAddress string

	// forward dials the proxy itself.
	forward proxy.ContextDialer
}

// ProxyOption configures a ProxyConnector.
type ProxyOption func(*ProxyConnector)

// WithForwardDialer sets the dialer used to reach the proxy.
// The default is a zero net.Dialer.
func WithForwardDialer(d proxy.ContextDialer) ProxyOption {
	return func(c *ProxyConnector) {
		c.forward = d
	}
}

// NewProxyConnector creates a connector for the SOCKS5 proxy at
// proxyAddress, e.g. "127.0.0.1:9050".
func NewProxyConnector(proxyAddress string, opts ...ProxyOption) (*ProxyConnector, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	c := &ProxyConnector{
		proxyAddress: proxyAddress,
		forward:      &net.Dialer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// isValidProxyAddress checks that address is "host:port" with a non-empty
// host and a port in 1-65535. Bracketed IPv6 hosts are accepted.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.ParseUint(port, 10, 16)
	return err == nil && n > 0
}

// Connect opens a connection to host:port through the proxy.
// Failures are returned as *route.ConnectError.
func (c *ProxyConnector) Connect(ctx context.Context, host string, port uint16) (net.Conn, error) {
	d := socksDialer{
		proxyAddress: c.proxyAddress,
		forward:      c.forward,
		backend:      c.Backend(),
	}
	return d.dial(ctx, host, port)
}

// Backend returns the backend name used in errors.
func (c *ProxyConnector) Backend() string {
	return "socks5"
}

// ProxyAddress returns the configured proxy address.
func (c *ProxyConnector) ProxyAddress() string {
	return c.proxyAddress
}

// Check tests the proxy with CheckProxy.
func (c *ProxyConnector) Check(ctx context.Context) ProxyStatus {
	return CheckProxy(ctx, c.proxyAddress)
}
