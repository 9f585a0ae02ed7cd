package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/harvest/internal/model"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".harvest"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .harvest configuration file.
// Pointer fields distinguish "unset" from zero values so only the keys present
// in the file override defaults.
type File struct {
	Crawl     CrawlSection     `yaml:"crawl,omitempty"`
	Subdomain SubdomainSection `yaml:"subdomain,omitempty"`
	Output    OutputSection    `yaml:"output,omitempty"`

	// Sites maps host names to host-specific settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every host unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// CrawlSection is the "crawl" section of the config file.
type CrawlSection struct {
	MaxPages          *int           `yaml:"max_pages,omitempty"`
	MinDelay          *time.Duration `yaml:"min_delay,omitempty"`
	MaxDelay          *time.Duration `yaml:"max_delay,omitempty"`
	Workers           *int           `yaml:"workers,omitempty"`
	Timeout           *time.Duration `yaml:"timeout,omitempty"`
	MaxRetries        *int           `yaml:"max_retries,omitempty"`
	RetryBaseDelay    *time.Duration `yaml:"retry_base_delay,omitempty"`
	UserAgent         *string        `yaml:"user_agent,omitempty"`
	MaxBodySize       *int64         `yaml:"max_body_size,omitempty"`
	Proxy             *string        `yaml:"proxy,omitempty"`
	RespectRobots     *bool          `yaml:"respect_robots,omitempty"`
	IncludeSubdomains *bool          `yaml:"include_subdomains,omitempty"`
	SkipExtensions    []string       `yaml:"skip_extensions,omitempty"`
	Mode              *string        `yaml:"mode,omitempty"`
}

// SubdomainSection is the "subdomain" section of the config file.
type SubdomainSection struct {
	Wordlist         *string        `yaml:"wordlist,omitempty"`
	ShowAll          *bool          `yaml:"show_all,omitempty"`
	Concurrency      *int           `yaml:"concurrency,omitempty"`
	LookupTimeout    *time.Duration `yaml:"lookup_timeout,omitempty"`
	Nameserver       *string        `yaml:"nameserver,omitempty"`
	QueriesPerSecond *float64       `yaml:"qps,omitempty"`
}

// OutputSection is the "output" section of the config file.
type OutputSection struct {
	DBDir     *string `yaml:"db_dir,omitempty"`
	SaveToDB  *bool   `yaml:"save_to_db,omitempty"`
	BatchSize *int    `yaml:"batch_size,omitempty"`
}

// LoadConfigFile loads the configuration file at path.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	} else {
		normalized := make(map[string]SiteConfig, len(cf.Sites))
		for host, site := range cf.Sites {
			normalized[strings.ToLower(host)] = site
		}
		cf.Sites = normalized
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .harvest in the current directory
// 3. Look for .harvest in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Apply copies every value present in the file over c and keeps f as the
// site configuration source. CLI flags are applied afterwards by the caller.
func (f *File) Apply(c *Config) error {
	if f == nil {
		return nil
	}
	c.Sites = f

	cr := f.Crawl
	setInt(&c.Crawl.MaxPages, cr.MaxPages)
	setDuration(&c.Crawl.MinDelay, cr.MinDelay)
	setDuration(&c.Crawl.MaxDelay, cr.MaxDelay)
	setInt(&c.Crawl.Workers, cr.Workers)
	setDuration(&c.Crawl.Timeout, cr.Timeout)
	setInt(&c.Crawl.MaxRetries, cr.MaxRetries)
	setDuration(&c.Crawl.RetryBaseDelay, cr.RetryBaseDelay)
	setString(&c.Crawl.UserAgent, cr.UserAgent)
	if cr.MaxBodySize != nil {
		c.Crawl.MaxBodySize = *cr.MaxBodySize
	}
	setString(&c.Crawl.Proxy, cr.Proxy)
	setBool(&c.Crawl.RespectRobots, cr.RespectRobots)
	setBool(&c.Crawl.IncludeSubdomains, cr.IncludeSubdomains)
	if len(cr.SkipExtensions) > 0 {
		c.Crawl.SkipExtensions = cr.SkipExtensions
	}
	if cr.Mode != nil {
		mode, err := model.ParseExtractionMode(*cr.Mode)
		if err != nil {
			return err
		}
		c.Crawl.Mode = mode
	}

	sd := f.Subdomain
	setString(&c.Subdomain.WordlistPath, sd.Wordlist)
	setBool(&c.Subdomain.ShowAll, sd.ShowAll)
	setInt(&c.Subdomain.Concurrency, sd.Concurrency)
	setDuration(&c.Subdomain.LookupTimeout, sd.LookupTimeout)
	setString(&c.Subdomain.Nameserver, sd.Nameserver)
	if sd.QueriesPerSecond != nil {
		c.Subdomain.QueriesPerSecond = *sd.QueriesPerSecond
	}

	out := f.Output
	setString(&c.DBDir, out.DBDir)
	setBool(&c.SaveToDB, out.SaveToDB)
	setInt(&c.SinkBatchSize, out.BatchSize)
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
