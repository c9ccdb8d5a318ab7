package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nao1215/torhybrid/internal/config"
	"github.com/nao1215/torhybrid/internal/route"
	"github.com/nao1215/torhybrid/internal/tor"
	"github.com/nao1215/torhybrid/internal/transport"
	"github.com/spf13/cobra"
)

// NewRouteCmd creates the route command.
func NewRouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route HOST...",
		Short: "Show how hosts would be routed",
		Long: `Route prints the routing decision for each host without connecting.

Arguments may be hostnames, host:port pairs or URLs. The port shown is the
one a connection would use: the explicit port, otherwise 443 for https and
wss, otherwise 80.

Examples:
  torhybrid route example.com duckduckgogg42xjoc72x3sjasowoarfbgcmvfimaftt6twagswzczad.onion
  torhybrid route --mode tor https://example.com:8443`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRouteCmd,
	}
	addTransportFlags(cmd)
	return cmd
}

// runRouteCmd executes the route command.
func runRouteCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	svc, cleanup, err := newService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	defer cleanup() //nolint:errcheck // nothing was started

	return printRoutes(cmd.OutOrStdout(), svc, cfg, args)
}

// parseTarget accepts a URL, a host:port pair or a bare host.
func parseTarget(target string) (route.Request, error) {
	u, err := normalizeTarget(target)
	if err != nil {
		return route.Request{}, err
	}
	return route.ParseRequest(u)
}

// printRoutes writes one routing line per target.
func printRoutes(w io.Writer, svc *transport.Service, cfg *config.Config, targets []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "HOST\tPORT\tDOMAIN\tBACKEND\tNOTE\n")
	for _, target := range targets {
		req, err := parseTarget(target)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("invalid target %q: %w", target, err)
		}

		domain := svc.Route(req.Host)
		note := "-"
		if route.IsOnion(req.Host) && !tor.IsValidOnionHost(req.Host) {
			note = "not a valid v3 onion address"
			if cfg.StrictOnion && domain == route.Overlay {
				note += " (rejected)"
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			req.Host, req.ResolvedPort(), domain, svc.Backend(domain), note)
	}
	return tw.Flush()
}
