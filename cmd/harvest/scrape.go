package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/harvest/internal/config"
	"github.com/nao1215/harvest/internal/crawler"
	"github.com/nao1215/harvest/internal/database"
	"github.com/nao1215/harvest/internal/metrics"
	"github.com/nao1215/harvest/internal/model"
	"github.com/nao1215/harvest/internal/ratelimit"
	"github.com/spf13/cobra"
)

// NewScrapeJSONLDCmd creates the scrape-jsonld command.
func NewScrapeJSONLDCmd() *cobra.Command {
	return newScrapeCmd(model.ModeJSONLD, "scrape-jsonld",
		"Crawl a website and collect its JSON-LD structured data")
}

// NewScrapeTextCmd creates the scrape-text command.
func NewScrapeTextCmd() *cobra.Command {
	return newScrapeCmd(model.ModeText, "scrape-text",
		"Crawl a website and collect its readable text")
}

// NewScrapeAllCmd creates the scrape-all command.
func NewScrapeAllCmd() *cobra.Command {
	return newScrapeCmd(model.ModeBoth, "scrape-all",
		"Crawl a website and collect both JSON-LD and readable text")
}

func newScrapeCmd(mode model.ExtractionMode, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <url>",
		Short: short,
		Long: short + `.

The crawl starts at the given URL and follows links on the same host only
(or the same registered domain with --include-subdomains). Each worker waits a
random delay between --min-delay and --max-delay before every request.
One record is written per visited URL, failed fetches included.

Delays accept plain seconds (1.5) or Go durations (1500ms).

Examples:
  # Crawl up to 50 pages
  harvest ` + use + ` https://example.com -p 50

  # Faster crawl for a site you own
  harvest ` + use + ` https://example.com --min-delay 0.2 --max-delay 0.5 -w 8

  # Honor robots.txt and write to a specific file
  harvest ` + use + ` https://example.com --respect-robots -o out/pages.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrapeCmd(cmd, args, mode)
		},
	}

	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to record")
	cmd.Flags().Var(newDelayValue(config.DefaultMinDelay), "min-delay",
		"Minimum delay before each request")
	cmd.Flags().Var(newDelayValue(config.DefaultMaxDelay), "max-delay",
		"Maximum delay before each request")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent workers")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout for each request attempt")
	cmd.Flags().Int("retries", config.DefaultMaxRetries,
		"Retries after a timeout or refused connection")
	cmd.Flags().String("proxy", "",
		"Proxy URL (http, https or socks5), e.g. socks5://127.0.0.1:9050")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().StringP("output", "o", "",
		"JSON file records are appended to (default: pages.json in --db-dir)")
	cmd.Flags().Bool("no-db", false,
		"Do not store records in the results database")
	cmd.Flags().Bool("respect-robots", false,
		"Skip URLs disallowed by robots.txt")
	cmd.Flags().Bool("include-subdomains", false,
		"Follow links to subdomains of the seed's registered domain")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .harvest in current or home directory)")

	return cmd
}

// runScrapeCmd executes a scrape command.
func runScrapeCmd(cmd *cobra.Command, args []string, mode model.ExtractionMode) error {
	cfg, err := buildScrapeConfig(cmd, args, mode)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return configError(err)
	}
	if err := cfg.Crawl.Validate(); err != nil {
		return configError(err)
	}

	logger := setupLogger(cmd)
	return runScrape(cmd.Context(), cmd, cfg, logger)
}

// buildScrapeConfig applies file values and then explicitly set flags.
func buildScrapeConfig(cmd *cobra.Command, args []string, mode model.ExtractionMode) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	cr := &cfg.Crawl
	cr.SeedURL = args[0]
	cr.Mode = mode

	o := &flagOverrides{cmd: cmd}
	o.int("max-pages", &cr.MaxPages)
	o.delay("min-delay", &cr.MinDelay)
	o.delay("max-delay", &cr.MaxDelay)
	o.int("workers", &cr.Workers)
	o.duration("timeout", &cr.Timeout)
	o.int("retries", &cr.MaxRetries)
	o.string("proxy", &cr.Proxy)
	o.string("user-agent", &cr.UserAgent)
	o.bool("respect-robots", &cr.RespectRobots)
	o.bool("include-subdomains", &cr.IncludeSubdomains)
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

// runScrape wires the crawl components and runs one crawl.
func runScrape(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	cr := cfg.Crawl

	m, stopMetrics, err := startMetrics(cfg, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	spider, err := newSpider(cfg, m, logger)
	if err != nil {
		return err
	}

	out, err := openOutput(ctx, cfg, config.DefaultPagesFile, database.RunKindCrawl,
		cr.SeedURL, cr.Mode.String(), m, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Crawling %s (%s, up to %d pages)...\n", cr.SeedURL, cr.Mode, cr.MaxPages)
	startTime := time.Now()

	stats, runErr := spider.Run(ctx, cr.SeedURL, out.adapter)
	closeErr := out.Close()

	elapsed := time.Since(startTime)
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d pages (%d failed, %d discovered) from %s in %s\n",
		stats.Recorded, stats.Failed, stats.Discovered, stats.AnchorHost, elapsed.Round(time.Millisecond))
	fmt.Fprintf(cmd.OutOrStdout(), "Results: %s\n", out.jsonPath)
	if out.dbPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", out.dbPath)
	}

	switch {
	case errors.Is(runErr, context.Canceled):
		runErr = fmt.Errorf("crawl interrupted: %w", runErr)
	case runErr != nil:
		runErr = fmt.Errorf("crawl failed: %w", runErr)
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("failed to save results: %w", closeErr)
	}
	return errors.Join(runErr, closeErr)
}

// newSpider builds a Spider from the crawl configuration.
func newSpider(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*crawler.Spider, error) {
	cr := cfg.Crawl

	client, err := crawler.NewHTTPClient(cr.Proxy)
	if err != nil {
		return nil, configError(err)
	}

	limiter, err := ratelimit.NewDelayWindow(cr.MinDelay, cr.MaxDelay)
	if err != nil {
		return nil, configError(err)
	}

	fetcher := crawler.NewHTTPFetcher(client,
		crawler.WithTimeout(cr.Timeout),
		crawler.WithRetryPolicy(crawler.RetryPolicy{MaxRetries: cr.MaxRetries, BaseDelay: cr.RetryBaseDelay}),
		crawler.WithUserAgent(cr.UserAgent),
		crawler.WithMaxBodySize(cr.MaxBodySize),
		crawler.WithSiteConfig(cfg.Sites),
		crawler.WithFetcherLogger(logger),
		crawler.WithFetcherMetrics(m),
	)

	var seedHost string
	if u, err := url.Parse(cr.SeedURL); err == nil {
		seedHost = u.Host
	}
	site := cfg.Sites.GetSiteConfig(seedHost)
	scope := crawler.NewScope(
		crawler.WithIncludeSubdomains(cr.IncludeSubdomains),
		crawler.WithSkipExtensions(cr.SkipExtensions),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
	)

	opts := []crawler.SpiderOption{
		crawler.WithWorkers(cr.Workers),
		crawler.WithMaxPages(cr.MaxPages),
		crawler.WithLimiter(limiter),
		crawler.WithScope(scope),
		crawler.WithMode(cr.Mode),
		crawler.WithLogger(logger),
		crawler.WithMetrics(m),
	}
	if cr.RespectRobots {
		opts = append(opts, crawler.WithRobots(crawler.NewRobots(client, cr.UserAgent, logger)))
	}
	return crawler.NewSpider(fetcher, opts...), nil
}
