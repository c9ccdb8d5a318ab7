package route

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Default ports used when a request does not carry an explicit port.
const (
	// DefaultPort is used for plain-text schemes and unknown schemes.
	DefaultPort uint16 = 80

	// DefaultSecurePort is used for https and wss.
	DefaultSecurePort uint16 = 443
)

// Scheme is the URI scheme of a request. Only the schemes that influence
// port resolution are distinguished; everything else is SchemeOther.
type Scheme int

const (
	// SchemeOther is any scheme not listed below.
	SchemeOther Scheme = iota
	// SchemeHTTP is "http".
	SchemeHTTP
	// SchemeHTTPS is "https".
	SchemeHTTPS
	// SchemeWS is "ws".
	SchemeWS
	// SchemeWSS is "wss".
	SchemeWSS
)

// ParseScheme converts a URI scheme string to a Scheme.
// Schemes are case-insensitive (RFC 3986 section 3.1).
func ParseScheme(s string) Scheme {
	switch strings.ToLower(s) {
	case "http":
		return SchemeHTTP
	case "https":
		return SchemeHTTPS
	case "ws":
		return SchemeWS
	case "wss":
		return SchemeWSS
	default:
		return SchemeOther
	}
}

// String returns the lowercase scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeHTTP:
		return "http"
	case SchemeHTTPS:
		return "https"
	case SchemeWS:
		return "ws"
	case SchemeWSS:
		return "wss"
	default:
		return "other"
	}
}

// Secure reports whether the scheme runs over TLS by default.
func (s Scheme) Secure() bool {
	return s == SchemeHTTPS || s == SchemeWSS
}

// DefaultPort returns the port used when a request has no explicit port.
func (s Scheme) DefaultPort() uint16 {
	if s.Secure() {
		return DefaultSecurePort
	}
	return DefaultPort
}

// Request is a parsed outbound connection destination.
// A Request is a plain value: it is built once per outbound request and
// never modified afterwards.
type Request struct {
	// Host is the destination hostname or IP literal, without brackets.
	Host string

	// Port is the explicit destination port. Zero means the request did
	// not specify one and the scheme default applies.
	Port uint16

	// Scheme is the URI scheme the request was derived from.
	Scheme Scheme
}

// NewRequest creates a Request. A zero port means "not specified".
func NewRequest(scheme, host string, port uint16) Request {
	return Request{
		Host:   host,
		Port:   port,
		Scheme: ParseScheme(scheme),
	}
}

// ParseRequest parses a URI string into a Request.
func ParseRequest(rawURL string) (Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Request{}, err
	}
	return FromURL(u)
}

// FromURL builds a Request from an already parsed URL.
// It returns ErrEmptyHost when the URL has no host and ErrInvalidPort when
// the port is not a number in 1-65535.
func FromURL(u *url.URL) (Request, error) {
	host := u.Hostname()
	if host == "" {
		return Request{}, ErrEmptyHost
	}

	var port uint16
	if p := u.Port(); p != "" {
		n, err := parsePort(p)
		if err != nil {
			return Request{}, err
		}
		port = n
	}

	return Request{
		Host:   host,
		Port:   port,
		Scheme: ParseScheme(u.Scheme),
	}, nil
}

// FromAddress builds a Request from a "host:port" dial address, as passed
// to http.Transport.DialContext. The port is always explicit, so the
// scheme is left as SchemeOther.
func FromAddress(address string) (Request, error) {
	host, p, err := net.SplitHostPort(address)
	if err != nil {
		return Request{}, err
	}
	if host == "" {
		return Request{}, ErrEmptyHost
	}

	port, err := parsePort(p)
	if err != nil {
		return Request{}, err
	}

	return Request{Host: host, Port: port}, nil
}

// parsePort parses a decimal port in the range 1-65535.
func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return 0, ErrInvalidPort
	}
	return uint16(n), nil
}

// ResolvedPort returns the port to connect to: the explicit port when set,
// otherwise 443 for https and wss, otherwise 80.
func (r Request) ResolvedPort() uint16 {
	if r.Port != 0 {
		return r.Port
	}
	return r.Scheme.DefaultPort()
}

// Address returns the "host:port" string for the resolved destination.
func (r Request) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(int(r.ResolvedPort())))
}

// Validate reports whether the request can be routed at all.
func (r Request) Validate() error {
	if r.Host == "" {
		return ErrEmptyHost
	}
	return nil
}

// Domain returns the routing domain of the request's host.
func (r Request) Domain() Domain {
	return Classify(r.Host)
}
