package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/nao1215/torhybrid/internal/config"
	seclog "github.com/nao1215/torhybrid/internal/log"
	"github.com/nao1215/torhybrid/internal/route"
	"github.com/nao1215/torhybrid/internal/tor"
	"github.com/nao1215/torhybrid/internal/transport"
	"github.com/spf13/cobra"
)

// addTransportFlags registers the flags that shape the transport. They
// override values from the configuration file only when set.
func addTransportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mode", "m", config.DefaultMode,
		"Routing mode: hybrid, tor or clearnet")
	cmd.Flags().StringP("backend", "b", config.DefaultBackend,
		"Tor backend: proxy (running SOCKS5 proxy) or native (start Tor on demand)")
	cmd.Flags().StringP("proxy", "x", config.DefaultProxyAddress,
		"Tor SOCKS5 proxy address used by the proxy backend")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for native Tor startup")
	cmd.Flags().Bool("strict-onion", false,
		"Reject .onion hosts that are not valid v3 addresses")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig builds the configuration from defaults, the configuration
// file and the flags the user set on cmd, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag the user changed onto cfg. Flags that cmd
// does not define are skipped.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	var err error
	if changed("mode") {
		if cfg.Mode, err = flags.GetString("mode"); err != nil {
			return err
		}
	}
	if changed("backend") {
		if cfg.Backend, err = flags.GetString("backend"); err != nil {
			return err
		}
	}
	if changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return err
		}
	}
	if changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return err
		}
	}
	if changed("strict-onion") {
		if cfg.StrictOnion, err = flags.GetBool("strict-onion"); err != nil {
			return err
		}
	}
	if changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return err
		}
	}
	if changed("no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return err
		}
		cfg.SaveHistory = !noHistory
	}
	return nil
}

// setupLogger creates the CLI logger. Non-verbose loggers mask onion
// hostnames.
func setupLogger(cmd *cobra.Command, w io.Writer, verbose bool) *slog.Logger {
	jsonLog, err := cmd.Flags().GetBool("log-json")
	if err == nil && jsonLog {
		return seclog.NewSecureJSONLogger(w, verbose)
	}
	return seclog.NewSecureLogger(w, verbose)
}

// newService builds the transport service described by cfg. The returned
// cleanup function releases the Tor backend and must always be called.
func newService(cfg *config.Config) (*transport.Service, func() error, error) {
	mode, err := transport.ParseMode(cfg.Mode)
	if err != nil {
		return nil, nil, err
	}

	var opts []transport.Option
	if cfg.StrictOnion {
		opts = append(opts, transport.WithStrictOnion())
	}

	cleanup := func() error { return nil }
	clearnet := transport.NewClearnetConnector()
	if mode == transport.ClearnetOnly {
		svc, err := transport.NewClearnetOnly(clearnet, opts...)
		return svc, cleanup, err
	}

	var overlay transport.Connector
	switch cfg.Backend {
	case config.BackendNative:
		native := tor.NewNativeConnector(tor.WithBootstrapper(
			tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout)),
		))
		overlay = native
		cleanup = native.Close
	default:
		overlay, err = tor.NewProxyConnector(cfg.ProxyAddress)
		if err != nil {
			return nil, nil, err
		}
	}

	var svc *transport.Service
	if mode == transport.OverlayOnly {
		svc, err = transport.NewOverlayOnly(overlay, opts...)
	} else {
		svc, err = transport.NewHybrid(clearnet, overlay, opts...)
	}
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// normalizeTarget turns a command line argument into a URL. Arguments
// without a scheme get http://. A bare v3 onion address may omit ".onion"
// and is lowercased; v2 addresses are refused because Tor no longer serves
// them. Other hosts are left as given.
func normalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		return raw, nil
	}

	host, rest := raw, ""
	if i := strings.IndexAny(raw, "/?#"); i >= 0 {
		host, rest = raw[:i], raw[i:]
	}
	name, port := host, ""
	if h, p, err := net.SplitHostPort(host); err == nil {
		name, port = h, p
	}

	if route.IsOnion(name) || (len(name) == tor.OnionV3Length && !strings.Contains(name, ".")) {
		addr, err := tor.NormalizeAddress(name)
		switch {
		case errors.Is(err, tor.ErrV2AddressDeprecated):
			return "", fmt.Errorf("%w: %s", err, name)
		case err == nil:
			name = addr
		}
	}

	if port != "" {
		host = net.JoinHostPort(name, port)
	} else {
		host = name
	}
	return "http://" + host + rest, nil
}

// needsOverlay reports whether any of the requests is routed through Tor.
func needsOverlay(svc *transport.Service, reqs []route.Request) bool {
	for _, req := range reqs {
		if svc.Route(req.Host) == route.Overlay {
			return true
		}
	}
	return false
}
