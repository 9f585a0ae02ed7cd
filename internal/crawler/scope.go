package crawler

import (
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Scope decides which discovered links belong to the crawl.
//
// The anchor is the host of the first successfully fetched page. A link is in
// scope when it is http(s), its host matches the anchor (or shares the
// anchor's registered domain when subdomains are included), its path does
// not end with a skipped extension, and it passes the ignore/follow patterns.
type Scope struct {
	includeSubdomains bool
	skipExtensions    []string
	ignorePatterns    []string
	followPatterns    []string

	mu     sync.RWMutex
	host   string
	domain string
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithIncludeSubdomains widens the scope to the anchor's registered domain.
func WithIncludeSubdomains(include bool) ScopeOption {
	return func(s *Scope) {
		s.includeSubdomains = include
	}
}

// WithSkipExtensions sets path suffixes that are never followed.
func WithSkipExtensions(exts []string) ScopeOption {
	return func(s *Scope) {
		s.skipExtensions = make([]string, 0, len(exts))
		for _, ext := range exts {
			s.skipExtensions = append(s.skipExtensions, strings.ToLower(ext))
		}
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.zip", "/logout*").
func WithIgnorePatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts the crawl to URL paths matching a pattern.
// An empty slice allows every path.
func WithFollowPatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.followPatterns = patterns
	}
}

// NewScope creates a scope without an anchor.
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Anchor sets the anchor host unless one is already set. It reports whether
// this call set it.
func (s *Scope) Anchor(host string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.host != "" {
		return false
	}
	s.host = host
	s.domain = registeredDomain(host)
	return true
}

// AnchorHost returns the anchor host, or "" before the first success.
func (s *Scope) AnchorHost() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.host
}

// Allows reports whether rawURL is in scope. Nothing is in scope before the
// anchor is set.
func (s *Scope) Allows(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !s.sameSite(strings.ToLower(u.Host)) {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	lowerPath := strings.ToLower(path)
	for _, ext := range s.skipExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return false
		}
	}
	return s.shouldCrawl(path)
}

func (s *Scope) sameSite(host string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.host == "" {
		return false
	}
	if host == s.host {
		return true
	}
	if !s.includeSubdomains || s.domain == "" {
		return false
	}
	return registeredDomain(host) == s.domain
}

// shouldCrawl checks a path against ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (s *Scope) shouldCrawl(path string) bool {
	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// registeredDomain returns the eTLD+1 of host (port stripped). Hosts without
// a registered domain (IP addresses, "localhost") are returned unchanged.
func registeredDomain(host string) string {
	hostname := host
	if u, err := url.Parse("//" + host); err == nil && u.Hostname() != "" {
		hostname = u.Hostname()
	}
	if net.ParseIP(hostname) != nil {
		return hostname
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return hostname
	}
	return domain
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a directory
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/42"
//   - "*.zip" matches "/downloads/file.zip"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
