package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsAgent is the product token matched against robots.txt groups.
const RobotsAgent = "harvest"

// robotsTimeout bounds the robots.txt request of one host.
const robotsTimeout = 10 * time.Second

// Robots answers robots.txt queries, fetching each host's file once.
// Hosts whose robots.txt cannot be fetched are treated as allowing everything;
// server errors are treated as disallowing everything, following robotstxt.
type Robots struct {
	client    Doer
	userAgent string
	logger    *slog.Logger

	mu    sync.Mutex
	hosts map[string]*robotsEntry
}

type robotsEntry struct {
	once  sync.Once
	group *robotstxt.Group
}

// NewRobots creates a robots.txt policy that fetches through client.
func NewRobots(client Doer, userAgent string, logger *slog.Logger) *Robots {
	if logger == nil {
		logger = slog.Default()
	}
	return &Robots{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		hosts:     make(map[string]*robotsEntry),
	}
}

// Allowed reports whether rawURL may be crawled.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	key := strings.ToLower(u.Scheme + "://" + u.Host)
	r.mu.Lock()
	entry, ok := r.hosts[key]
	if !ok {
		entry = &robotsEntry{}
		r.hosts[key] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.group = r.load(ctx, key)
	})
	if entry.group == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return entry.group.Test(path)
}

// load fetches and parses robots.txt of origin. A nil group allows all.
func (r *Robots) load(ctx context.Context, origin string) *robotstxt.Group {
	ctx, cancel := context.WithTimeout(ctx, robotsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		r.logger.Debug("robots.txt unparsable", "origin", origin, "error", err)
		return nil
	}
	return data.FindGroup(RobotsAgent)
}
