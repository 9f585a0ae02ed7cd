package analysis

import (
	"strings"

	"github.com/nao1215/harvest/internal/model"
)

// MatchSite reports whether host is site or one of its subdomains.
// An empty site matches every host.
func MatchSite(host, site string) bool {
	site = strings.ToLower(strings.TrimSuffix(site, "."))
	if site == "" {
		return true
	}
	host = strings.ToLower(host)
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host == site || strings.HasSuffix(host, "."+site)
}

// FilterPages returns the successfully fetched pages whose host matches site.
func FilterPages(pages []model.PageRecord, site string) []model.PageRecord {
	out := make([]model.PageRecord, 0, len(pages))
	for _, p := range pages {
		if p.Failed() || !MatchSite(p.Host(), site) {
			continue
		}
		out = append(out, p)
	}
	return out
}
