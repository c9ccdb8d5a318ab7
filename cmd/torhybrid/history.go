package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/nao1215/torhybrid/internal/config"
	"github.com/nao1215/torhybrid/internal/history"
	seclog "github.com/nao1215/torhybrid/internal/log"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is how many entries the history command shows.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent fetches",
		Long: `History lists the most recent fetches recorded by the fetch command.

Onion hostnames are masked unless --verbose is given.

Examples:
  # Show the last 20 fetches
  torhybrid history

  # Write every fetch as a Markdown report
  torhybrid history --limit 0 --markdown -o history.md`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Number of entries to show (0 shows all)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown report")
	cmd.Flags().StringP("output", "o", "",
		"Write the output to a file instead of stdout")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return showHistory(cmd, out, cfg, limit, asMarkdown)
}

// showHistory renders the latest entries of the history database.
func showHistory(cmd *cobra.Command, out io.Writer, cfg *config.Config, limit int, asMarkdown bool) error {
	ctx := cmd.Context()

	var mask history.HostMasker
	if !cfg.Verbose {
		mask = seclog.MaskOnion
	}

	opts := history.DefaultOptions()
	opts.CreateIfNotExists = false
	store, err := history.Open(ctx, cfg.HistoryPath(), opts)
	if errors.Is(err, history.ErrNotFound) {
		if asMarkdown {
			return history.WriteMarkdown(out, nil, mask)
		}
		return history.WriteText(out, nil, mask)
	}
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if asMarkdown {
		return history.WriteMarkdown(out, entries, mask)
	}

	if err := history.WriteText(out, entries, mask); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	counts, err := store.DomainCounts(ctx)
	if err != nil {
		return err
	}
	totals := make([]string, 0, len(counts))
	for _, domain := range slices.Sorted(maps.Keys(counts)) {
		totals = append(totals, fmt.Sprintf("%s=%d", domain, counts[domain]))
	}
	_, err = fmt.Fprintf(out, "\nTotal recorded: %s\n", strings.Join(totals, " "))
	return err
}
