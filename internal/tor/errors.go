package tor

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/nao1215/torhybrid/internal/route"
)

// Tor connectivity errors.
var (
	// ErrProxyNotTor is returned when the configured proxy address responds
	// but is not a Tor SOCKS5 proxy.
	ErrProxyNotTor = errors.New("proxy is not a Tor SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// address can be established. Usually Tor is not running.
	ErrProxyCannotConnect = errors.New("cannot connect to Tor proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to Tor proxy")

	// ErrInvalidProxyAddress is returned when the proxy address is not in
	// "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrSessionClosed is returned when a connector is used after every
	// holder of its session released it.
	ErrSessionClosed = errors.New("tor session is closed")
)

// ProxyStatus is the result of probing a proxy address with CheckProxy.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy is a working Tor SOCKS5 proxy.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates something answered, but not a SOCKS5
	// proxy that accepts unauthenticated CONNECT requests.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates no connection could be made.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the proxy check timed out.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not Tor)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the error matching this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotTor
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}

// SOCKS5 reply texts produced by golang.org/x/net/internal/socks.
// The package does not export typed errors, so failures are told apart by
// message.
var (
	unreachableReplies = []string{
		"network unreachable",
		"host unreachable",
		"connection refused",
		"TTL expired",
		// Tor extended errors (0xF0-0xF7) for onion services have no
		// name in x/net and are rendered as "unknown code: N".
		"unknown code",
	}
	protocolReplies = []string{
		"unexpected protocol version",
		"no acceptable authentication methods",
		"command not supported",
		"address type not supported",
		"unknown address type",
		"non-zero reserved field",
	}
)

// classifyDialError maps a SOCKS dial failure to a ConnectError kind.
// proxyReached reports whether the TCP connection to the proxy itself
// succeeded; failures before that point are plain I/O errors.
func classifyDialError(err error, proxyReached bool) route.Kind {
	if errors.Is(err, context.Canceled) {
		return route.KindIO
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return route.KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return route.KindTimeout
	}
	if !proxyReached {
		return route.KindIO
	}

	msg := err.Error()
	switch {
	case containsAny(msg, unreachableReplies):
		return route.KindUnreachable
	case containsAny(msg, protocolReplies):
		return route.KindProxyProtocol
	default:
		return route.KindHandshake
	}
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
