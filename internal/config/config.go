package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/harvest/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "harvest"

	// DefaultMaxPages bounds the number of pages recorded per crawl.
	DefaultMaxPages = 100

	// DefaultMinDelay and DefaultMaxDelay bound the random politeness delay
	// each worker waits before a request.
	DefaultMinDelay = 1 * time.Second
	DefaultMaxDelay = 3 * time.Second

	// DefaultWorkers is the number of concurrent crawl workers.
	DefaultWorkers = 4

	// DefaultRequestTimeout is the timeout of a single HTTP attempt.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of retries after a timeout or a refused
	// connection. HTTP error statuses are never retried.
	DefaultMaxRetries = 2

	// DefaultRetryBaseDelay is the first backoff interval; it doubles per retry.
	DefaultRetryBaseDelay = 500 * time.Millisecond

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent mimics a desktop browser. Many sites serve reduced
	// markup (and no JSON-LD) to unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// DefaultResolverConcurrency caps in-flight DNS lookups.
	DefaultResolverConcurrency = 20

	// DefaultLookupTimeout is the timeout of a single DNS lookup.
	DefaultLookupTimeout = 2 * time.Second

	// DefaultSinkBatchSize is the number of records buffered before a flush.
	DefaultSinkBatchSize = 16

	// DefaultPagesFile and DefaultSubdomainsFile are the JSON output file
	// names inside the data directory.
	DefaultPagesFile      = "pages.json"
	DefaultSubdomainsFile = "subdomains.json"
)

// DefaultSkipExtensions lists URL path suffixes the crawler never follows.
var DefaultSkipExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".pdf"}

// CrawlRunConfig holds the options of one crawl.
type CrawlRunConfig struct {
	// SeedURL is the first URL of the crawl. Its host becomes the crawl scope.
	SeedURL string

	// MaxPages is the maximum number of pages recorded, failures included.
	MaxPages int

	// MinDelay and MaxDelay bound the uniform random delay before each request.
	MinDelay time.Duration
	MaxDelay time.Duration

	// Mode selects JSON-LD, text or both.
	Mode model.ExtractionMode

	// Workers is the number of concurrent fetches.
	Workers int

	// Timeout is the per-attempt HTTP timeout.
	Timeout time.Duration

	// MaxRetries and RetryBaseDelay configure retries of transient failures.
	MaxRetries     int
	RetryBaseDelay time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the maximum number of body bytes read. 0 selects the default.
	MaxBodySize int64

	// Proxy is an optional proxy URL (http, https or socks5).
	Proxy string

	// RespectRobots makes the crawler honor robots.txt disallow rules.
	RespectRobots bool

	// IncludeSubdomains widens the scope from the seed host to every host
	// sharing its registered domain.
	IncludeSubdomains bool

	// SkipExtensions lists URL path suffixes that are never followed.
	SkipExtensions []string
}

// SubdomainRunConfig holds the options of one subdomain enumeration.
type SubdomainRunConfig struct {
	// Domain is the base domain, e.g. "example.com".
	Domain string

	// WordlistPath is a file with one candidate label per line.
	WordlistPath string

	// ShowAll keeps unresolved results in the output.
	ShowAll bool

	// Concurrency caps in-flight lookups.
	Concurrency int

	// LookupTimeout is the timeout of a single lookup.
	LookupTimeout time.Duration

	// Nameserver is an optional "host:port" DNS server. Empty uses the system resolver.
	Nameserver string

	// QueriesPerSecond is an optional global query ceiling. 0 disables it.
	QueriesPerSecond float64
}

// Config holds all configuration options for harvest.
// It is populated from defaults, the config file and CLI flags, in that order,
// and passed down explicitly.
type Config struct {
	Crawl     CrawlRunConfig
	Subdomain SubdomainRunConfig

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit config file path, if any.
	ConfigFilePath string

	// Sites holds per-host settings loaded from the config file.
	Sites *File

	// OutputFile is the JSON array file records are appended to.
	// Empty selects the default file in the data directory.
	OutputFile string

	// DBDir is the directory of the SQLite database.
	DBDir string

	// SaveToDB enables the SQLite store next to the JSON file.
	SaveToDB bool

	// SinkBatchSize is the number of records buffered before a flush.
	SinkBatchSize int

	// MetricsAddr is an optional listen address for the Prometheus endpoint.
	MetricsAddr string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Crawl: CrawlRunConfig{
			MaxPages:       DefaultMaxPages,
			MinDelay:       DefaultMinDelay,
			MaxDelay:       DefaultMaxDelay,
			Mode:           model.ModeJSONLD,
			Workers:        DefaultWorkers,
			Timeout:        DefaultRequestTimeout,
			MaxRetries:     DefaultMaxRetries,
			RetryBaseDelay: DefaultRetryBaseDelay,
			UserAgent:      DefaultUserAgent,
			MaxBodySize:    DefaultMaxBodySize,
			SkipExtensions: append([]string(nil), DefaultSkipExtensions...),
		},
		Subdomain: SubdomainRunConfig{
			Concurrency:   DefaultResolverConcurrency,
			LookupTimeout: DefaultLookupTimeout,
		},
		DBDir:         XDGDataDir(),
		SaveToDB:      true,
		SinkBatchSize: DefaultSinkBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for harvest.
// On Linux: ~/.local/share/harvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for harvest.
// On Linux: ~/.config/harvest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// OutputPath returns the JSON file records are written to. An explicit
// OutputFile wins; otherwise defaultName is placed in DBDir (or the XDG data
// directory when DBDir is empty).
func (c *Config) OutputPath(defaultName string) string {
	if c.OutputFile != "" {
		return c.OutputFile
	}
	dir := c.DBDir
	if dir == "" {
		dir = XDGDataDir()
	}
	return filepath.Join(dir, defaultName)
}

// Validate checks the options shared by every command.
func (c *Config) Validate() error {
	if c.SinkBatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	return nil
}

// Validate checks the crawl options and returns the first problem found.
// It never touches the network, so a bad delay range fails before any request.
func (c *CrawlRunConfig) Validate() error {
	if c.MinDelay < 0 || c.MaxDelay < 0 || c.MinDelay > c.MaxDelay {
		return fmt.Errorf("%w (min %s, max %s)", ErrInvalidDelayRange, c.MinDelay, c.MaxDelay)
	}

	if c.SeedURL == "" {
		return ErrNoSeedURL
	}
	u, err := url.Parse(c.SeedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSeedURL, c.SeedURL)
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 || c.RetryBaseDelay < 0 {
		return ErrInvalidRetries
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// Validate checks the subdomain enumeration options.
func (c *SubdomainRunConfig) Validate() error {
	if c.Domain == "" {
		return ErrNoDomain
	}
	if c.WordlistPath == "" {
		return ErrNoWordlist
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.LookupTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.QueriesPerSecond < 0 {
		return ErrInvalidQPS
	}
	return nil
}
