package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for torhybrid.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "torhybrid",
		Short: "Fetch clearnet and onion URLs through one transport",
		Long: `torhybrid opens connections over a hybrid transport.

Hosts ending in .onion are reached through Tor, every other host is dialed
directly. Tor is reached through a running SOCKS5 proxy (default
127.0.0.1:9050) or through a Tor daemon started on first use
(--backend native).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging (shows onion hostnames)")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .torhybrid in current or home directory)")

	cmd.AddCommand(NewFetchCmd())
	cmd.AddCommand(NewRouteCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
