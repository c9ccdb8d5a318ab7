package tor

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Daemon is a running Tor client that exposes a SOCKS5 port.
type Daemon interface {
	// SocksAddr returns the SOCKS5 listen address in "host:port" form.
	SocksAddr() string
	// Stop shuts the daemon down.
	Stop() error
}

// Bootstrapper starts a Tor client and waits until it can build circuits.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) (Daemon, error)
}

// BootstrapFunc adapts a function to the Bootstrapper interface.
type BootstrapFunc func(ctx context.Context) (Daemon, error)

// Bootstrap calls f(ctx).
func (f BootstrapFunc) Bootstrap(ctx context.Context) (Daemon, error) {
	return f(ctx)
}

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	// SessionUninitialized means no bootstrap has completed yet.
	SessionUninitialized SessionState = iota
	// SessionReady means the daemon is running and accepting connections.
	SessionReady
	// SessionFailed means bootstrap failed. The failure is permanent for
	// this session.
	SessionFailed
	// SessionClosed means every holder released the session.
	SessionClosed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionUninitialized:
		return "uninitialized"
	case SessionReady:
		return "ready"
	case SessionFailed:
		return "failed"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// bootstrapKey is the singleflight key; a session bootstraps one thing.
const bootstrapKey = "bootstrap"

// Session is a shared handle to one in-process Tor client.
//
// The client is bootstrapped lazily by the first caller of Daemon. Callers
// arriving while that bootstrap is running wait for the same attempt
// instead of starting their own.
//
// A Session is reference counted. NewSession returns it with one holder;
// Acquire adds a holder and Release removes one. The daemon is stopped
// when the last holder releases the session.
type Session struct {
	bootstrapper Bootstrapper
	group        singleflight.Group

	mu     sync.Mutex
	state  SessionState
	daemon Daemon
	err    error
	refs   int
}

// NewSession creates an uninitialized session held once by the caller.
func NewSession(b Bootstrapper) *Session {
	return &Session{
		bootstrapper: b,
		refs:         1,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Acquire registers another holder. It fails with ErrSessionClosed once
// the session has been released by everyone.
func (s *Session) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionClosed {
		return ErrSessionClosed
	}
	s.refs++
	return nil
}

// Release drops one holder. Releasing the last holder stops the daemon
// and returns the error from stopping it.
func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionClosed {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}

	daemon := s.daemon
	s.state = SessionClosed
	s.daemon = nil
	if daemon != nil {
		return daemon.Stop()
	}
	return nil
}

// Daemon returns the running daemon, bootstrapping it on first use.
//
// If ctx ends before bootstrap finishes, Daemon returns ctx.Err() right
// away. The bootstrap itself keeps going for the other holders.
func (s *Session) Daemon(ctx context.Context) (Daemon, error) {
	if d, done, err := s.settled(); done {
		return d, err
	}

	ch := s.group.DoChan(bootstrapKey, s.bootstrap)
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		d, _ := res.Val.(Daemon)
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settled returns the outcome if the session left the uninitialized state.
func (s *Session) settled() (Daemon, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case SessionReady:
		return s.daemon, true, nil
	case SessionFailed:
		return nil, true, s.err
	case SessionClosed:
		return nil, true, ErrSessionClosed
	default:
		return nil, false, nil
	}
}

// bootstrap runs inside the singleflight group.
func (s *Session) bootstrap() (any, error) {
	// A previous flight may have finished between settled and DoChan.
	if d, done, err := s.settled(); done {
		return d, err
	}

	// The bootstrap outlives any single caller, so it does not inherit a
	// caller's context. The bootstrapper enforces its own startup timeout.
	d, err := s.bootstrapper.Bootstrap(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionClosed {
		if d != nil {
			_ = d.Stop() //nolint:errcheck // nobody is left to report to
		}
		return nil, ErrSessionClosed
	}
	if err != nil {
		s.state = SessionFailed
		s.err = err
		return nil, err
	}

	s.state = SessionReady
	s.daemon = d
	return d, nil
}
