package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/torhybrid/internal/route"
)

// connectCall is one recorded Connect invocation.
type connectCall struct {
	host string
	port uint16
}

// recordingConnector records calls and returns one end of an in-memory
// pipe whose other end echoes everything back.
type recordingConnector struct {
	backend string
	err     error

	mu    sync.Mutex
	calls []connectCall
}

func newRecordingConnector(backend string) *recordingConnector {
	return &recordingConnector{backend: backend}
}

func (c *recordingConnector) Connect(_ context.Context, host string, port uint16) (net.Conn, error) {
	c.mu.Lock()
	c.calls = append(c.calls, connectCall{host: host, port: port})
	c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}

	client, server := net.Pipe()
	go func() {
		defer server.Close()
		_, _ = io.Copy(server, server)
	}()
	return client, nil
}

func (c *recordingConnector) Backend() string {
	return c.backend
}

func (c *recordingConnector) recorded() []connectCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]connectCall(nil), c.calls...)
}

// countingClassifier delegates to route.Classify and counts calls.
type countingClassifier struct {
	calls atomic.Int32
}

func (c *countingClassifier) classify(host string) route.Domain {
	c.calls.Add(1)
	return route.Classify(host)
}

// startEchoServer starts a TCP echo server on 127.0.0.1.
func startEchoServer(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start echo server: %v", err)
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
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()
	return listener.Addr().String()
}

// closeCountingConn counts Close calls made by whoever owns the conn.
type closeCountingConn struct {
	net.Conn
	closed *atomic.Int32
}

func (c *closeCountingConn) Close() error {
	c.closed.Add(1)
	return c.Conn.Close()
}
