package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/nao1215/torhybrid/internal/route"
	"github.com/nao1215/torhybrid/internal/stream"
	"github.com/nao1215/torhybrid/internal/tor"
)

// Service construction and dialing errors.
var (
	// ErrNilConnector is returned when a constructor is given a nil
	// connector.
	ErrNilConnector = errors.New("connector must not be nil")

	// ErrUnsupportedNetwork is returned by DialContext for networks other
	// than tcp, tcp4 and tcp6.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrUnknownMode is returned by ParseMode for unrecognized names.
	ErrUnknownMode = errors.New("unknown mode: must be clearnet, tor or hybrid")
)

// Mode selects how a Service routes requests.
type Mode int

const (
	// ClearnetOnly sends every request to the clearnet connector.
	ClearnetOnly Mode = iota
	// OverlayOnly sends every request through Tor.
	OverlayOnly
	// Hybrid sends .onion hosts through Tor and everything else directly.
	Hybrid
)

// String returns the mode name as used in configuration files.
func (m Mode) String() string {
	switch m {
	case ClearnetOnly:
		return "clearnet"
	case OverlayOnly:
		return "tor"
	case Hybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clearnet":
		return ClearnetOnly, nil
	case "tor", "overlay":
		return OverlayOnly, nil
	case "hybrid":
		return Hybrid, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Service turns connection requests into streams.
//
// The mode and connectors are fixed at construction. A Service holds no
// other state, so Handle is safe for concurrent use as long as the
// connectors are.
type Service struct {
	mode        Mode
	clearnet    Connector
	overlay     Connector
	classify    func(host string) route.Domain
	strictOnion bool
}

// Option configures a Service.
type Option func(*Service)

// WithClassifier replaces route.Classify in Hybrid mode. A nil function is
// ignored.
func WithClassifier(classify func(host string) route.Domain) Option {
	return func(s *Service) {
		if classify != nil {
			s.classify = classify
		}
	}
}

// WithStrictOnion makes the Service reject ".onion" hosts that are not
// valid v3 onion addresses with route.ErrInvalidOnionHost. No connector is
// called for a rejected host.
func WithStrictOnion() Option {
	return func(s *Service) {
		s.strictOnion = true
	}
}

// NewClearnetOnly creates a Service that connects everything directly.
func NewClearnetOnly(clearnet Connector, opts ...Option) (*Service, error) {
	if clearnet == nil {
		return nil, fmt.Errorf("clearnet: %w", ErrNilConnector)
	}
	return newService(ClearnetOnly, clearnet, nil, opts), nil
}

// NewOverlayOnly creates a Service that connects everything through Tor.
func NewOverlayOnly(overlay Connector, opts ...Option) (*Service, error) {
	if overlay == nil {
		return nil, fmt.Errorf("overlay: %w", ErrNilConnector)
	}
	return newService(OverlayOnly, nil, overlay, opts), nil
}

// NewHybrid creates a Service that routes by destination host.
func NewHybrid(clearnet, overlay Connector, opts ...Option) (*Service, error) {
	if clearnet == nil {
		return nil, fmt.Errorf("clearnet: %w", ErrNilConnector)
	}
	if overlay == nil {
		return nil, fmt.Errorf("overlay: %w", ErrNilConnector)
	}
	return newService(Hybrid, clearnet, overlay, opts), nil
}

func newService(mode Mode, clearnet, overlay Connector, opts []Option) *Service {
	s := &Service{
		mode:     mode,
		clearnet: clearnet,
		overlay:  overlay,
		classify: route.Classify,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the routing mode.
func (s *Service) Mode() Mode {
	return s.mode
}

// Route returns the domain a request for host would be sent to.
// Only Hybrid mode consults the classifier.
func (s *Service) Route(host string) route.Domain {
	switch s.mode {
	case OverlayOnly:
		return route.Overlay
	case Hybrid:
		return s.classify(host)
	default:
		return route.Clearnet
	}
}

// Backend returns the backend name of the connector serving domain, or ""
// when this Service has no connector for it.
func (s *Service) Backend(domain route.Domain) string {
	if c := s.connector(domain); c != nil {
		return BackendName(c)
	}
	return ""
}

func (s *Service) connector(domain route.Domain) Connector {
	if domain == route.Overlay {
		return s.overlay
	}
	return s.clearnet
}

// Handle connects to the destination of req and returns the stream.
//
// Validation errors (route.ErrEmptyHost, route.ErrInvalidOnionHost) are
// returned before any connector is called. Connection failures are
// returned as *route.ConnectError naming the domain and backend that
// failed. There is no retry and no fallback to another domain.
func (s *Service) Handle(ctx context.Context, req route.Request) (*stream.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	domain := s.Route(req.Host)
	if domain == route.Overlay && s.strictOnion && route.IsOnion(req.Host) && !tor.IsValidOnionHost(req.Host) {
		return nil, fmt.Errorf("%w: %s", route.ErrInvalidOnionHost, req.Host)
	}

	c := s.connector(domain)
	host, port := req.Host, req.ResolvedPort()

	conn, err := c.Connect(ctx, host, port)
	if err != nil {
		return nil, annotate(err, domain, BackendName(c), host, port)
	}
	// A connector may finish after the caller gave up; nobody would close
	// that transport.
	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, annotate(err, domain, BackendName(c), host, port)
	}

	switch domain {
	case route.Overlay:
		return stream.NewOverlay(conn), nil
	default:
		return stream.NewClearnet(conn), nil
	}
}

// DialURL parses rawURL and connects to its host. The scheme only selects
// the default port.
func (s *Service) DialURL(ctx context.Context, rawURL string) (*stream.Stream, error) {
	req, err := route.ParseRequest(rawURL)
	if err != nil {
		return nil, err
	}
	return s.Handle(ctx, req)
}

// DialContext connects to address ("host:port") and has the signature of
// http.Transport.DialContext. Only TCP networks are supported.
func (s *Service) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
	}

	req, err := route.FromAddress(address)
	if err != nil {
		return nil, err
	}
	st, err := s.Handle(ctx, req)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// annotate returns err as a *route.ConnectError carrying the attempted
// origin. A ConnectError from the connector keeps its kind and cause.
func annotate(err error, domain route.Domain, backend, host string, port uint16) error {
	var ce *route.ConnectError
	if errors.As(err, &ce) {
		if ce != err {
			// Wrapped by the connector; leave its message intact.
			return err
		}
		annotated := *ce
		annotated.Domain = domain
		if annotated.Backend == "" {
			annotated.Backend = backend
		}
		if annotated.Host == "" {
			annotated.Host = host
			annotated.Port = port
		}
		return &annotated
	}
	return route.NewConnectError(kindOf(err), domain, backend, host, port, err)
}

// kindOf classifies an error from a connector that does not report
// ConnectErrors itself.
func kindOf(err error) route.Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return route.KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return route.KindTimeout
	}
	return route.KindIO
}
