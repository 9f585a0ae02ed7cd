package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/harvest/internal/analysis"
	"github.com/nao1215/harvest/internal/config"
	"github.com/nao1215/harvest/internal/database"
	"github.com/nao1215/harvest/internal/model"
	"github.com/nao1215/harvest/internal/report"
	"github.com/nao1215/harvest/internal/resolver"
	"github.com/nao1215/harvest/internal/sink"
	"github.com/spf13/cobra"
)

// NewEnumerateSubdomainsCmd creates the enumerate-subdomains command.
func NewEnumerateSubdomainsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enumerate-subdomains <domain>",
		Short: "Find subdomains of a domain from a wordlist",
		Long: `Enumerate resolves <word>.<domain> for every entry of a wordlist and
reports the subdomains that exist, grouped by IP address.

The base domain must resolve, otherwise nothing is looked up. The domain may be
given as a URL; the scheme and path are removed. Unresolved candidates are only
written with --show-all.

Examples:
  # Enumerate with a wordlist
  harvest enumerate-subdomains example.com -w words.txt

  # Use a specific nameserver and at most 50 queries per second
  harvest enumerate-subdomains https://example.com/ -w words.txt --nameserver 1.1.1.1 --qps 50

  # Keep unresolved candidates in the output
  harvest enumerate-subdomains example.com -w words.txt -a`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEnumerateCmd,
	}

	cmd.Flags().StringP("wordlist", "w", "",
		"Wordlist file with one subdomain label per line")
	cmd.Flags().BoolP("show-all", "a", false,
		"Also write and print candidates that did not resolve")
	cmd.Flags().IntP("concurrency", "c", config.DefaultResolverConcurrency,
		"Maximum number of concurrent DNS lookups")
	cmd.Flags().Duration("lookup-timeout", config.DefaultLookupTimeout,
		"Timeout for each DNS lookup")
	cmd.Flags().String("nameserver", "",
		"DNS server to query (host or host:port; default: system resolver)")
	cmd.Flags().Float64("qps", 0,
		"Maximum DNS queries per second (0: unlimited)")
	cmd.Flags().StringP("output", "o", "",
		"JSON file results are appended to (default: subdomains.json in --db-dir)")
	cmd.Flags().Bool("no-db", false,
		"Do not store results in the results database")
	cmd.Flags().StringP("format", "f", string(report.FormatSimple),
		"Summary format: simple, markdown or json")
	cmd.Flags().String("config", "",
		"Configuration file path (default: .harvest in current or home directory)")

	return cmd
}

// runEnumerateCmd executes the enumerate-subdomains command.
func runEnumerateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildEnumerateConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return configError(err)
	}
	if err := cfg.Subdomain.Validate(); err != nil {
		return configError(err)
	}

	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return configError(err)
	}

	logger := setupLogger(cmd)
	return runEnumerate(cmd.Context(), cmd.OutOrStdout(), cfg, format, logger)
}

// buildEnumerateConfig applies file values and then explicitly set flags.
func buildEnumerateConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	sd := &cfg.Subdomain
	if len(args) > 0 {
		domain, err := resolver.NormalizeDomain(args[0])
		if err != nil {
			return nil, configError(err)
		}
		sd.Domain = domain
	}

	o := &flagOverrides{cmd: cmd}
	o.string("wordlist", &sd.WordlistPath)
	o.bool("show-all", &sd.ShowAll)
	o.int("concurrency", &sd.Concurrency)
	o.duration("lookup-timeout", &sd.LookupTimeout)
	o.string("nameserver", &sd.Nameserver)
	o.float("qps", &sd.QueriesPerSecond)
	o.string("output", &cfg.OutputFile)

	var noDB bool
	o.bool("no-db", &noDB)
	if o.err != nil {
		return nil, o.err
	}
	if noDB {
		cfg.SaveToDB = false
	}
	return cfg, nil
}

// runEnumerate resolves every candidate and prints the summary. extra options
// are applied after the configured ones.
func runEnumerate(
	ctx context.Context,
	w io.Writer,
	cfg *config.Config,
	format report.Format,
	logger *slog.Logger,
	extra ...resolver.Option,
) error {
	sd := cfg.Subdomain

	words, err := resolver.LoadWordlist(sd.WordlistPath)
	if err != nil {
		return err
	}

	m, stopMetrics, err := startMetrics(cfg, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	opts := []resolver.Option{
		resolver.WithConcurrency(sd.Concurrency),
		resolver.WithLookupTimeout(sd.LookupTimeout),
		resolver.WithLogger(logger),
		resolver.WithMetrics(m),
	}
	if sd.Nameserver != "" {
		opts = append(opts, resolver.WithNameserver(sd.Nameserver))
	}
	if sd.QueriesPerSecond > 0 {
		opts = append(opts, resolver.WithQPS(sd.QueriesPerSecond))
	}
	res := resolver.New(append(opts, extra...)...)

	if err := res.CheckBase(ctx, sd.Domain); err != nil {
		return err
	}

	out, err := openOutput(ctx, cfg, config.DefaultSubdomainsFile, database.RunKindSubdomains,
		sd.Domain, "", m, logger, sink.WithShowAll(sd.ShowAll))
	if err != nil {
		return err
	}

	if format == report.FormatSimple {
		fmt.Fprintf(w, "Checking %d candidates for %s...\n", len(words), sd.Domain)
	}
	startTime := time.Now()

	results, runErr := res.Resolve(ctx, sd.Domain, words, func(r model.SubdomainResult) error {
		return out.adapter.Append(ctx, r)
	})
	closeErr := out.Close()

	summary := analysis.SummarizeSubdomains(sd.Domain, results)
	if !sd.ShowAll {
		summary.Unresolved = nil
	}
	writer, err := newReportWriter(format, w, sd.ShowAll)
	if err != nil {
		return err
	}
	if _, err := writer.WriteSubdomains(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if format == report.FormatSimple {
		counts := out.adapter.Counts()
		fmt.Fprintf(w, "Finished in %s; %d results written to %s\n",
			time.Since(startTime).Round(time.Millisecond), counts.Written, out.jsonPath)
	}

	switch {
	case errors.Is(runErr, context.Canceled):
		runErr = fmt.Errorf("enumeration interrupted: %w", runErr)
	case runErr != nil:
		runErr = fmt.Errorf("enumeration failed: %w", runErr)
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("failed to save results: %w", closeErr)
	}
	return errors.Join(runErr, closeErr)
}

// newReportWriter returns the writer for format.
func newReportWriter(format report.Format, w io.Writer, showUnresolved bool) (report.Writer, error) {
	if format == report.FormatSimple {
		return report.NewSimpleWriter(w, report.WithShowUnresolved(showUnresolved)), nil
	}
	return report.New(format, w)
}
