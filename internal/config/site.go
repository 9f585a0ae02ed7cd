package config

import "strings"

// SiteConfig holds host-specific crawl settings.
type SiteConfig struct {
	// Cookie is sent as the Cookie header to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers for this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are glob patterns matched against the URL path.
	// Matching URLs are never enqueued.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict the crawl to URL paths matching one of them.
	// The seed URL is always fetched.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// GetSiteConfig returns the configuration for host, merged over Defaults.
// Hosts are matched case-insensitively and without a port.
func (f *File) GetSiteConfig(host string) SiteConfig {
	if f == nil {
		return SiteConfig{}
	}
	result := f.Defaults

	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}

	site, ok := f.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(site.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range site.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}
