package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/harvest/internal/config"
	"github.com/nao1215/harvest/internal/metrics"
	"golang.org/x/net/proxy"
)

// DefaultMaxRedirects is the redirect limit of clients built by NewHTTPClient.
const DefaultMaxRedirects = 10

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves one URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// Response is a fetched page.
type Response struct {
	// URL is the requested URL.
	URL string
	// FinalURL is the URL after redirects.
	FinalURL    string
	StatusCode  int
	Header      http.Header
	ContentType string
	Body        []byte
	// Duration covers every attempt and backoff.
	Duration time.Duration
}

// NewHTTPClient builds the client used for crawling. proxyURL may be empty or
// an http, https, socks5 or socks5h URL.
func NewHTTPClient(proxyURL string) (*http.Client, error) {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errors.New("unexpected default transport type")
	}
	transport = transport.Clone()

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		case "socks5", "socks5h":
			dialer, err := proxy.FromURL(u, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS dialer: %w", err)
			}
			contextDialer, ok := dialer.(proxy.ContextDialer)
			if !ok {
				return nil, errors.New("SOCKS dialer does not support contexts")
			}
			transport.Proxy = nil
			transport.DialContext = contextDialer.DialContext
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= DefaultMaxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}, nil
}

// HTTPFetcher fetches pages with a per-attempt timeout and retries transient
// failures (timeouts and refused connections) with exponential backoff.
// HTTP error statuses are returned immediately together with the response.
type HTTPFetcher struct {
	client      Doer
	timeout     time.Duration
	retry       RetryPolicy
	userAgent   string
	maxBodySize int64
	sites       *config.File
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) FetcherOption {
	return func(f *HTTPFetcher) {
		f.retry = p
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits the number of body bytes read. Values <= 0 are ignored.
func WithMaxBodySize(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithSiteConfig supplies per-host cookies and headers.
func WithSiteConfig(sites *config.File) FetcherOption {
	return func(f *HTTPFetcher) {
		f.sites = sites
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// WithFetcherMetrics sets the metrics sink.
func WithFetcherMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *HTTPFetcher) {
		f.metrics = m
	}
}

// NewHTTPFetcher creates a fetcher sending requests through client.
func NewHTTPFetcher(client Doer, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      client,
		timeout:     config.DefaultRequestTimeout,
		retry:       DefaultRetryPolicy(),
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL. On a transient failure it retries up to
// MaxRetries times. If ctx is cancelled, ctx.Err() is returned unwrapped so
// callers can tell an abandoned fetch from a failed one.
//
// For KindHTTPError the returned Response is non-nil.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	start := time.Now()
	defer func() { f.metrics.ObserveFetch(time.Since(start)) }()

	for attempt := 0; ; attempt++ {
		resp, err := f.attempt(ctx, rawURL)
		if resp != nil {
			resp.Duration = time.Since(start)
		}
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !f.retry.ShouldRetry(attempt, err) {
			var fe *FetchError
			if errors.As(err, &fe) {
				f.metrics.FetchFailed(fe.Kind.String())
			}
			return resp, err
		}

		backoff := f.retry.Backoff(attempt)
		f.metrics.FetchRetried()
		f.logger.Debug("retrying fetch",
			"url", rawURL,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if err := sleepContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

// attempt performs a single request under the per-attempt timeout.
func (f *HTTPFetcher) attempt(ctx context.Context, rawURL string) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindOther, URL: rawURL, Err: err}
	}
	f.decorate(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classifyError(attemptCtx, err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &FetchError{Kind: classifyError(attemptCtx, err), URL: rawURL, Err: err}
	}

	out := &Response{
		URL:         rawURL,
		FinalURL:    rawURL,
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		out.FinalURL = resp.Request.URL.String()
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return out, &FetchError{Kind: KindHTTPError, URL: rawURL, StatusCode: resp.StatusCode}
	}
	return out, nil
}

// decorate sets browser-like headers plus any host-specific cookie and headers.
func (f *HTTPFetcher) decorate(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	if f.sites == nil {
		return
	}
	site := f.sites.GetSiteConfig(req.URL.Host)
	if site.Cookie != "" {
		req.Header.Set("Cookie", site.Cookie)
	}
	for name, value := range site.Headers {
		req.Header.Set(name, value)
	}
}
