package transport

import (
	"context"
	"net"
)

// Connector opens a byte stream to host:port.
//
// Implementations live in this package (ClearnetConnector) and in
// internal/tor (ProxyConnector, NativeConnector). A connector never picks a
// routing domain itself; that is the Service's job.
type Connector interface {
	Connect(ctx context.Context, host string, port uint16) (net.Conn, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, host string, port uint16) (net.Conn, error)

// Connect calls f(ctx, host, port).
func (f ConnectorFunc) Connect(ctx context.Context, host string, port uint16) (net.Conn, error) {
	return f(ctx, host, port)
}

// backendNamer is implemented by connectors that report a backend name for
// errors and logs.
type backendNamer interface {
	Backend() string
}

// BackendName returns c's backend name, or "custom" when c does not
// report one.
func BackendName(c Connector) string {
	if n, ok := c.(backendNamer); ok {
		return n.Backend()
	}
	return "custom"
}
