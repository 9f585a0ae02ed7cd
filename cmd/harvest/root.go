package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/harvest/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for harvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Polite web crawler for structured data, text and subdomains",
		Long: `harvest crawls a website within its own host and collects the JSON-LD
structured data and readable text of every page. It can also enumerate the
subdomains of a domain from a wordlist.

Results are appended to JSON files and stored in a SQLite database in the XDG
data directory, where the analyze commands read them.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory of the results database and default output files")
	cmd.PersistentFlags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address while the command runs (e.g., 127.0.0.1:9090)")

	cmd.AddCommand(NewScrapeJSONLDCmd())
	cmd.AddCommand(NewScrapeTextCmd())
	cmd.AddCommand(NewScrapeAllCmd())
	cmd.AddCommand(NewEnumerateSubdomainsCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewAnalyzeTextCmd())
	cmd.AddCommand(NewAnalyzePropertyCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command. An interrupt cancels the running command,
// which still flushes the records collected so far.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
