package main

import (
	"fmt"

	"github.com/nao1215/torhybrid/internal/tor"
	"github.com/spf13/cobra"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the Tor SOCKS5 proxy is usable",
		Long: `Check connects to the configured Tor SOCKS5 proxy and asks it to open a
stream to an onion address. It reports whether the proxy answered like Tor.

Examples:
  torhybrid check
  torhybrid check --proxy 127.0.0.1:9150`,
		Args: cobra.NoArgs,
		RunE: runCheckCmd,
	}
	cmd.Flags().StringP("proxy", "x", tor.DefaultProxyAddress,
		"Tor SOCKS5 proxy address")
	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	status := tor.CheckProxy(cmd.Context(), cfg.ProxyAddress)
	fmt.Fprintf(cmd.OutOrStdout(), "Tor proxy at %s: %s\n", cfg.ProxyAddress, status)
	if err := status.Error(); err != nil {
		return fmt.Errorf("tor proxy check failed: %w", err)
	}
	return nil
}
