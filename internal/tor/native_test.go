package tor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/torhybrid/internal/route"
)

func TestNewNativeConnector(t *testing.T) {
	t.Parallel()

	t.Run("defaults to an embedded daemon", func(t *testing.T) {
		t.Parallel()

		c := NewNativeConnector()
		if c.Backend() != "native" {
			t.Errorf("Backend() = %q, expected native", c.Backend())
		}
		if _, ok := c.Session().bootstrapper.(*EmbeddedTor); !ok {
			t.Errorf("expected *EmbeddedTor bootstrapper, got %T", c.Session().bootstrapper)
		}
		if c.Session().State() != SessionUninitialized {
			t.Error("expected construction not to start Tor")
		}
	})
}

func TestNativeConnectorConnect(t *testing.T) {
	t.Parallel()

	t.Run("bootstraps and relays through the daemon SOCKS port", func(t *testing.T) {
		t.Parallel()

		server := startFakeSOCKS5(t, 0x00)
		b := newGatedBootstrapper(&fakeDaemon{socksAddr: server.addr()}, nil)
		b.open()
		c := NewNativeConnector(WithBootstrapper(b))
		defer c.Close()

		conn, err := c.Connect(context.Background(), testOnionHost, 443)
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		defer conn.Close()

		if _, err := conn.Write([]byte("hello")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(buf) != "hello" {
			t.Errorf("read %q, expected hello", buf)
		}

		reqs := server.received()
		if len(reqs) != 1 || reqs[0].host != testOnionHost || reqs[0].port != 443 {
			t.Errorf("proxy received %+v", reqs)
		}
	})

	t.Run("bootstrap failure is reported on every call", func(t *testing.T) {
		t.Parallel()

		bootErr := errors.New("tor binary not found")
		b := newGatedBootstrapper(nil, bootErr)
		b.open()
		c := NewNativeConnector(WithBootstrapper(b))
		defer c.Close()

		for i := range 2 {
			_, err := c.Connect(context.Background(), testOnionHost, 80)
			var ce *route.ConnectError
			if !errors.As(err, &ce) {
				t.Fatalf("attempt %d: expected *route.ConnectError, got %v", i, err)
			}
			if ce.Kind != route.KindBootstrap {
				t.Errorf("attempt %d: Kind = %v, expected bootstrap", i, ce.Kind)
			}
			if ce.Backend != "native" || ce.Domain != route.Overlay {
				t.Errorf("attempt %d: origin = %v/%s", i, ce.Domain, ce.Backend)
			}
			if !errors.Is(err, bootErr) {
				t.Errorf("attempt %d: cause lost: %v", i, err)
			}
		}
		if got := b.calls.Load(); got != 1 {
			t.Errorf("bootstrap ran %d times, expected 1", got)
		}
	})

	t.Run("SOCKS failures keep the native backend", func(t *testing.T) {
		t.Parallel()

		server := startFakeSOCKS5(t, 0x04)
		b := newGatedBootstrapper(&fakeDaemon{socksAddr: server.addr()}, nil)
		b.open()
		c := NewNativeConnector(WithBootstrapper(b))
		defer c.Close()

		_, err := c.Connect(context.Background(), testOnionHost, 80)
		var ce *route.ConnectError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *route.ConnectError, got %v", err)
		}
		if ce.Kind != route.KindUnreachable || ce.Backend != "native" {
			t.Errorf("got %v/%s, expected unreachable/native", ce.Kind, ce.Backend)
		}
	})

	t.Run("waiting caller gives up on its own context", func(t *testing.T) {
		t.Parallel()

		b := newGatedBootstrapper(&fakeDaemon{socksAddr: "127.0.0.1:9050"}, nil)
		c := NewNativeConnector(WithBootstrapper(b))
		defer c.Close()
		defer b.open()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.Connect(ctx, testOnionHost, 80)
		if !route.IsKind(err, route.KindTimeout) {
			t.Errorf("expected KindTimeout, got %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}

		cctx, ccancel := context.WithCancel(context.Background())
		ccancel()
		_, err = c.Connect(cctx, testOnionHost, 80)
		if !route.IsKind(err, route.KindIO) || !errors.Is(err, context.Canceled) {
			t.Errorf("expected cancelled IO error, got %v", err)
		}
	})

	t.Run("forward dialer reaches the daemon", func(t *testing.T) {
		t.Parallel()

		server := startFakeSOCKS5(t, 0x00)
		b := newGatedBootstrapper(&fakeDaemon{socksAddr: server.addr()}, nil)
		b.open()
		dialer := newRecordingDialer()
		c := NewNativeConnector(WithBootstrapper(b), WithNativeForwardDialer(dialer))
		defer c.Close()

		conn, err := c.Connect(context.Background(), "example.org", 80)
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if err := conn.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if opened, closed := dialer.opened.Load(), dialer.closed.Load(); opened != 1 || closed != 1 {
			t.Errorf("opened %d closed %d, expected 1 and 1", opened, closed)
		}
	})
}

func TestNativeConnectorSharing(t *testing.T) {
	t.Parallel()

	t.Run("clones share one bootstrap", func(t *testing.T) {
		t.Parallel()

		server := startFakeSOCKS5(t, 0x00)
		daemon := &fakeDaemon{socksAddr: server.addr()}
		b := newGatedBootstrapper(daemon, nil)
		c := NewNativeConnector(WithBootstrapper(b))

		connectors := []*NativeConnector{c}
		for range 3 {
			clone, err := c.Clone()
			if err != nil {
				t.Fatalf("Clone failed: %v", err)
			}
			connectors = append(connectors, clone)
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(connectors))
		for _, nc := range connectors {
			wg.Add(1)
			go func() {
				defer wg.Done()
				conn, err := nc.Connect(context.Background(), testOnionHost, 80)
				if err != nil {
					errs <- err
					return
				}
				_ = conn.Close()
			}()
		}

		waitFor(t, func() bool { return b.calls.Load() == 1 })
		b.open()
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Errorf("Connect failed: %v", err)
		}
		if got := b.calls.Load(); got != 1 {
			t.Errorf("bootstrap ran %d times, expected 1", got)
		}

		for i, nc := range connectors {
			if err := nc.Close(); err != nil {
				t.Errorf("Close %d failed: %v", i, err)
			}
			want := int32(0)
			if i == len(connectors)-1 {
				want = 1
			}
			if got := daemon.stops.Load(); got != want {
				t.Errorf("after closing %d connectors daemon stopped %d times, expected %d", i+1, got, want)
			}
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		t.Parallel()

		b := newGatedBootstrapper(&fakeDaemon{}, nil)
		b.open()
		c := NewNativeConnector(WithBootstrapper(b))
		clone, err := c.Clone()
		if err != nil {
			t.Fatalf("Clone failed: %v", err)
		}

		// Closing the same connector twice must not release the clone's hold.
		_ = c.Close()
		_ = c.Close()
		if c.Session().State() == SessionClosed {
			t.Fatal("double Close released another connector's hold")
		}
		_ = clone.Close()
		if c.Session().State() != SessionClosed {
			t.Errorf("State() = %v, expected closed", c.Session().State())
		}
	})

	t.Run("closed connector fails without bootstrapping", func(t *testing.T) {
		t.Parallel()

		b := newGatedBootstrapper(&fakeDaemon{}, nil)
		b.open()
		c := NewNativeConnector(WithBootstrapper(b))
		_ = c.Close()

		if _, err := c.Clone(); !errors.Is(err, ErrSessionClosed) {
			t.Errorf("Clone: expected ErrSessionClosed, got %v", err)
		}
		_, err := c.Connect(context.Background(), testOnionHost, 80)
		if !errors.Is(err, ErrSessionClosed) || !route.IsKind(err, route.KindIO) {
			t.Errorf("Connect: expected closed IO error, got %v", err)
		}
		if got := b.calls.Load(); got != 0 {
			t.Errorf("bootstrap ran %d times, expected 0", got)
		}
	})
}
