package tor

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout is how long the embedded daemon may take to
// bootstrap. Fetching the consensus and building the first circuits
// usually takes one to three minutes.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor launches a private Tor daemon with tornago.
// It implements Bootstrapper and is the default for NativeConnector.
//
// The daemon listens on OS-assigned SOCKS and control ports, so several
// instances can run side by side with a system Tor.
type EmbeddedTor struct {
	// startupTimeout is the maximum time to wait for Tor to bootstrap.
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.startupTimeout = timeout
	}
}

// NewEmbeddedTor creates an embedded Tor launcher. Nothing is started
// until Bootstrap is called.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: DefaultStartupTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartupTimeout returns the configured bootstrap timeout.
func (e *EmbeddedTor) StartupTimeout() time.Duration {
	return e.startupTimeout
}

// Bootstrap starts the daemon and blocks until it is bootstrapped, the
// startup timeout passes or ctx ends.
//
// tornago's start call cannot be interrupted. When ctx ends first,
// Bootstrap returns immediately and the daemon is stopped as soon as it
// finishes starting.
func (e *EmbeddedTor) Bootstrap(ctx context.Context) (Daemon, error) {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	type startResult struct {
		process *tornago.TorProcess
		err     error
	}
	resultCh := make(chan startResult, 1)

	go func() {
		process, err := tornago.StartTorDaemon(launchCfg)
		resultCh <- startResult{process, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor daemon: %w", res.err)
		}
		return res.process, nil
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.err == nil {
				_ = res.process.Stop() //nolint:errcheck // best effort cleanup
			}
		}()
		return nil, ctx.Err()
	}
}
