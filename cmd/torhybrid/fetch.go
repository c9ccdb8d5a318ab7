package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/torhybrid/internal/config"
	"github.com/nao1215/torhybrid/internal/history"
	seclog "github.com/nao1215/torhybrid/internal/log"
	"github.com/nao1215/torhybrid/internal/route"
	"github.com/nao1215/torhybrid/internal/tor"
	"github.com/nao1215/torhybrid/internal/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 << 20

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch URL...",
		Short: "Fetch URLs over the hybrid transport",
		Long: `Fetch sends an HTTP GET request to every URL and prints the result.

Onion URLs are fetched through Tor and other URLs directly, unless --mode
forces every request to one side. An onion URL is never fetched without
Tor, even when Tor is unavailable.

Examples:
  # Fetch a clearnet and an onion URL
  torhybrid fetch https://example.com http://duckduckgogg42xjoc72x3sjasowoarfbgcmvfimaftt6twagswzczad.onion

  # Send all traffic through Tor Browser's proxy
  torhybrid fetch --mode tor --proxy 127.0.0.1:9150 https://check.torproject.org

  # Start a Tor daemon instead of using a running proxy
  torhybrid fetch --backend native http://duckduckgogg42xjoc72x3sjasowoarfbgcmvfimaftt6twagswzczad.onion

  # Write the last response body to a file
  torhybrid fetch -o page.html https://example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFetchCmd,
	}

	addTransportFlags(cmd)
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each fetch")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of URLs fetched at the same time")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().BoolP("insecure", "k", false,
		"Skip TLS certificate verification")
	cmd.Flags().Bool("no-history", false,
		"Do not record fetches in the history database")
	cmd.Flags().StringP("output", "o", "",
		"Write the response body to this file (single URL only)")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	return cmd
}

// fetchResult is the outcome of one fetch.
type fetchResult struct {
	URL      string
	Request  route.Request
	Domain   route.Domain
	Backend  string
	Status   int
	Bytes    int64
	Duration time.Duration
	Err      error
}

// entry converts r into a history entry.
func (r fetchResult) entry(started time.Time) history.Entry {
	e := history.Entry{
		URL:        r.URL,
		Host:       r.Request.Host,
		Domain:     r.Domain.String(),
		Backend:    r.Backend,
		StatusCode: r.Status,
		Duration:   r.Duration,
		Timestamp:  started,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// fetchOptions holds the fetch flags that are not part of config.Config.
type fetchOptions struct {
	insecure bool
	output   string
}

// runFetchCmd executes the fetch command.
func runFetchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var opts fetchOptions
	if opts.insecure, err = cmd.Flags().GetBool("insecure"); err != nil {
		return err
	}
	if opts.output, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	if opts.output != "" && len(args) != 1 {
		return errors.New("--output requires exactly one URL")
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runFetch(ctx, cmd.OutOrStdout(), cfg, opts, args, logger)
}

// runFetch fetches every target and prints one line per result.
func runFetch(ctx context.Context, out io.Writer, cfg *config.Config, opts fetchOptions, targets []string, logger *slog.Logger) error {
	urls := make([]string, len(targets))
	reqs := make([]route.Request, len(targets))
	for i, target := range targets {
		u, err := normalizeTarget(target)
		if err != nil {
			return fmt.Errorf("invalid URL %q: %w", target, err)
		}
		urls[i] = u
		req, err := route.ParseRequest(u)
		if err != nil {
			return fmt.Errorf("invalid URL %q: %w", target, err)
		}
		reqs[i] = req
	}

	svc, cleanup, err := newService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("failed to stop Tor", "error", err)
		}
	}()

	logger.Info("starting fetch",
		"targets", len(urls),
		"mode", svc.Mode().String(),
		"backend", svc.Backend(route.Overlay),
		"concurrency", cfg.Concurrency,
	)

	if cfg.Backend == config.BackendProxy && needsOverlay(svc, reqs) {
		if err := tor.CheckProxy(ctx, cfg.ProxyAddress).Error(); err != nil {
			return fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)", err, cfg.ProxyAddress)
		}
		logger.Debug("Tor proxy connection verified", "address", cfg.ProxyAddress)
	}

	var store *history.Store
	if cfg.SaveHistory {
		store, err = history.Open(ctx, cfg.HistoryPath(), history.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer store.Close()
	}

	mask := history.HostMasker(nil)
	if !cfg.Verbose {
		mask = seclog.MaskOnion
	}

	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i := range urls {
		g.Go(func() error {
			started := time.Now()
			result := fetchOne(gctx, svc, cfg, opts, urls[i], reqs[i])

			if store != nil {
				// History outlives a cancelled fetch.
				if _, err := store.Record(context.WithoutCancel(gctx), result.entry(started)); err != nil {
					logger.Error("failed to record fetch", "url", result.URL, "error", err)
				}
			}

			mu.Lock()
			defer mu.Unlock()
			printResult(out, i+1, len(urls), result, mask)
			if result.Err != nil {
				failed++
				logger.Warn("fetch failed", "url", result.URL, "error", result.Err)
			}
			// Failures are reported per URL; the group keeps going.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d fetches failed", failed, len(urls))
	}
	return nil
}

// fetchOne performs a single GET request through svc.
func fetchOne(ctx context.Context, svc *transport.Service, cfg *config.Config, opts fetchOptions, rawURL string, req route.Request) (result fetchResult) {
	domain := svc.Route(req.Host)
	result = fetchResult{
		URL:     rawURL,
		Request: req,
		Domain:  domain,
		Backend: svc.Backend(domain),
	}

	site := cfg.SiteConfig(req.Host)
	httpOpts := []transport.HTTPOption{
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithSite(req.Host, site.Cookie, site.Headers),
	}
	if opts.insecure {
		httpOpts = append(httpOpts, transport.WithInsecureSkipVerify())
	}
	client := transport.NewHTTPClient(svc, httpOpts...)
	defer client.CloseIdleConnections()

	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		result.Err = err
		return result
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		result.Err = err
		return result
	}
	defer resp.Body.Close()
	result.Status = resp.StatusCode

	var body io.Writer = io.Discard
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			result.Err = fmt.Errorf("failed to create output file: %w", err)
			return result
		}
		defer f.Close()
		body = f
	}

	result.Bytes, err = io.Copy(body, io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		result.Err = fmt.Errorf("failed to read response body: %w", err)
	}
	return result
}

// printResult writes one result line.
func printResult(w io.Writer, index, total int, r fetchResult, mask history.HostMasker) {
	url := r.URL
	if mask != nil {
		url = mask(url)
	}

	via := r.Domain.String()
	if r.Backend != "" {
		via += "/" + r.Backend
	}

	if r.Err != nil {
		msg := r.Err.Error()
		if mask != nil {
			msg = mask(msg)
		}
		fmt.Fprintf(w, "[%d/%d] %s (%s) error: %s\n", index, total, url, via, msg)
		return
	}
	fmt.Fprintf(w, "[%d/%d] %s (%s) %d %s, %d bytes in %s\n",
		index, total, url, via, r.Status, http.StatusText(r.Status), r.Bytes,
		r.Duration.Round(time.Millisecond))
}
