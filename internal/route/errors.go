package route

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// Request validation errors.
var (
	// ErrEmptyHost is returned when a request has no destination host.
	// Such requests are rejected, never routed to clearnet.
	ErrEmptyHost = errors.New("request has no host")

	// ErrInvalidPort is returned when a port is not a number in 1-65535.
	ErrInvalidPort = errors.New("invalid port: must be a number between 1 and 65535")

	// ErrInvalidOnionHost is returned in strict mode when a ".onion" host
	// is not a well-formed v3 onion address.
	ErrInvalidOnionHost = errors.New("invalid onion host: not a v3 onion address")
)

// Kind classifies why a connection attempt failed.
type Kind int

const (
	// KindIO is a plain network error: refused, reset, DNS failure and
	// anything that does not fit a more specific kind.
	KindIO Kind = iota
	// KindHandshake means the proxy handshake failed for a reason the
	// proxy did not attribute to the destination.
	KindHandshake
	// KindTimeout means a deadline or context expired while connecting.
	KindTimeout
	// KindBootstrap means the in-process Tor client could not bootstrap.
	KindBootstrap
	// KindUnreachable means the proxy reported the destination as
	// unreachable or refusing connections.
	KindUnreachable
	// KindProxyProtocol means the proxy did not speak the expected
	// protocol or rejected the request format.
	KindProxyProtocol
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindHandshake:
		return "handshake"
	case KindTimeout:
		return "timeout"
	case KindBootstrap:
		return "bootstrap"
	case KindUnreachable:
		return "unreachable"
	case KindProxyProtocol:
		return "proxy protocol"
	default:
		return "unknown"
	}
}

// ConnectError describes a failed connection attempt: what went wrong
// (Kind and Err) and which path was attempted (Domain and Backend).
//
// Connectors of both domains report failures through this one type, so a
// caller of a hybrid service can inspect any failure the same way. The
// original cause stays reachable with errors.Is and errors.As.
type ConnectError struct {
	// Kind is the failure category.
	Kind Kind

	// Domain is the routing domain that was attempted.
	Domain Domain

	// Backend names the connector that failed, e.g. "direct", "socks5"
	// or "native". Empty when unknown.
	Backend string

	// Host and Port are the destination that was attempted.
	Host string
	Port uint16

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	var b strings.Builder
	b.WriteString(e.Domain.String())
	if e.Backend != "" {
		b.WriteString("/")
		b.WriteString(e.Backend)
	}
	b.WriteString(" connect")
	if e.Host != "" {
		b.WriteString(" ")
		b.WriteString(net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port))))
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout. It lets ConnectError
// satisfy the Timeout method of net.Error.
func (e *ConnectError) Timeout() bool {
	return e.Kind == KindTimeout
}

// NewConnectError creates a ConnectError. It is a convenience for
// connectors that know the failure kind.
func NewConnectError(kind Kind, domain Domain, backend, host string, port uint16, err error) *ConnectError {
	return &ConnectError{
		Kind:    kind,
		Domain:  domain,
		Backend: backend,
		Host:    host,
		Port:    port,
		Err:     err,
	}
}

// IsKind reports whether err is a ConnectError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *ConnectError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}
