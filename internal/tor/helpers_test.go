package tor

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
)

// socksRequest is a CONNECT request received by fakeSOCKS5.
type socksRequest struct {
	host string
	port uint16
}

// fakeSOCKS5 is a minimal SOCKS5 server on 127.0.0.1. It answers every
// CONNECT with reply and, on success, echoes whatever the client sends.
type fakeSOCKS5 struct {
	listener net.Listener
	reply    byte

	mu       sync.Mutex
	requests []socksRequest
}

// startFakeSOCKS5 starts a fake SOCKS5 server that is stopped when the
// test ends.
func startFakeSOCKS5(t *testing.T, reply byte) *fakeSOCKS5 {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start fake SOCKS5 server: %v", err)
	}
	s := &fakeSOCKS5{listener: listener, reply: reply}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeSOCKS5) addr() string {
	return s.listener.Addr().String()
}

func (s *fakeSOCKS5) received() []socksRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]socksRequest(nil), s.requests...)
}

func (s *fakeSOCKS5) serve(conn net.Conn) {
	defer conn.Close()

	// greeting: version, method count, methods
	head := make([]byte, 2)
	if _, err := io.ReadFull(conn, head); err != nil {
		return
	}
	if _, err := io.ReadFull(conn, make([]byte, head[1])); err != nil {
		return
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	// request: version, command, reserved, address type
	req := make([]byte, 4)
	if _, err := io.ReadFull(conn, req); err != nil {
		return
	}
	var host string
	switch req[3] {
	case 0x01:
		ip := make([]byte, net.IPv4len)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 0x03:
		n := make([]byte, 1)
		if _, err := io.ReadFull(conn, n); err != nil {
			return
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	case 0x04:
		ip := make([]byte, net.IPv6len)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	default:
		return
	}
	portBuf := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBuf); err != nil {
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, socksRequest{host: host, port: binary.BigEndian.Uint16(portBuf)})
	s.mu.Unlock()

	if _, err := conn.Write([]byte{0x05, s.reply, 0x00, 0x01, 127, 0, 0, 1, 0x1f, 0x90}); err != nil {
		return
	}
	if s.reply != 0x00 {
		return
	}

	_, _ = io.Copy(conn, conn)
}

// startSilentServer accepts connections and never writes anything.
func startSilentServer(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(io.Discard, conn)
			}()
		}
	}()
	return listener.Addr().String()
}

// closedAddress returns a loopback address nothing listens on.
func closedAddress(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return addr
}

// recordingDialer dials with net.Dialer and counts opened and closed
// connections.
type recordingDialer struct {
	opened  atomic.Int32
	closed  atomic.Int32
	dialed  chan struct{}
	dialer  net.Dialer
	dialErr error
}

func newRecordingDialer() *recordingDialer {
	return &recordingDialer{dialed: make(chan struct{}, 16)}
}

func (d *recordingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	conn, err := d.dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	d.opened.Add(1)
	d.dialed <- struct{}{}
	return &recordedConn{Conn: conn, d: d}, nil
}

type recordedConn struct {
	net.Conn
	d    *recordingDialer
	once sync.Once
}

func (c *recordedConn) Close() error {
	c.once.Do(func() { c.d.closed.Add(1) })
	return c.Conn.Close()
}

// fakeDaemon is a Daemon whose SOCKS address points at a test server.
type fakeDaemon struct {
	socksAddr string
	stops     atomic.Int32
}

func (d *fakeDaemon) SocksAddr() string { return d.socksAddr }

func (d *fakeDaemon) Stop() error {
	d.stops.Add(1)
	return nil
}

// gatedBootstrapper counts bootstrap calls and blocks each one until the
// gate channel is closed.
type gatedBootstrapper struct {
	calls  atomic.Int32
	gate   chan struct{}
	daemon *fakeDaemon
	err    error
}

func newGatedBootstrapper(daemon *fakeDaemon, err error) *gatedBootstrapper {
	return &gatedBootstrapper{gate: make(chan struct{}), daemon: daemon, err: err}
}

func (b *gatedBootstrapper) Bootstrap(_ context.Context) (Daemon, error) {
	b.calls.Add(1)
	<-b.gate
	if b.err != nil {
		return nil, b.err
	}
	return b.daemon, nil
}

func (b *gatedBootstrapper) open() {
	close(b.gate)
}
