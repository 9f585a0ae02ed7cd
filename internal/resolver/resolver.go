package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/nao1215/harvest/internal/metrics"
	"github.com/nao1215/harvest/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultConcurrency is the default number of in-flight lookups.
	DefaultConcurrency = 20
	// DefaultLookupTimeout is the default timeout of a single lookup.
	DefaultLookupTimeout = 2 * time.Second
)

// HostResolver looks up the addresses of a host. *net.Resolver satisfies it.
type HostResolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Resolver resolves subdomain candidates concurrently.
type Resolver struct {
	lookup      HostResolver
	concurrency int
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency sets the maximum number of in-flight lookups.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLookupTimeout sets the timeout of a single lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithQPS caps lookups per second across all workers. Zero means unlimited.
func WithQPS(qps float64) Option {
	return func(r *Resolver) {
		if qps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(qps), 1)
		}
	}
}

// WithHostResolver replaces the system resolver.
func WithHostResolver(h HostResolver) Option {
	return func(r *Resolver) {
		if h != nil {
			r.lookup = h
		}
	}
}

// WithNameserver sends every query to addr ("host" or "host:port") instead
// of the system resolver. An empty addr keeps the current resolver.
func WithNameserver(addr string) Option {
	return func(r *Resolver) {
		if addr == "" {
			return
		}
		r.lookup = NewNameserverResolver(addr)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New creates a Resolver using the system resolver by default.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		lookup:      net.DefaultResolver,
		concurrency: DefaultConcurrency,
		timeout:     DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// NewNameserverResolver returns a pure Go resolver that queries addr. Port 53
// is assumed when addr has none.
func NewNameserverResolver(addr string) *net.Resolver {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "53")
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
}

// CheckBase verifies that domain itself resolves.
func (r *Resolver) CheckBase(ctx context.Context, domain string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addrs, err := r.lookup.LookupNetIP(ctx, "ip", domain)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrBaseUnresolved, domain, lookupReason(err))
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: %s", ErrBaseUnresolved, domain)
	}
	return nil
}

// Resolve looks up every candidate built from domain and words and returns
// one result per candidate, in wordlist order. emit, when non-nil, is called
// once per result as soon as it is known; calls are serialized. An emit error
// stops the enumeration and is returned together with the results gathered so
// far. Lookups abandoned because ctx was cancelled produce no result.
func (r *Resolver) Resolve(
	ctx context.Context,
	domain string,
	words []string,
	emit func(model.SubdomainResult) error,
) ([]model.SubdomainResult, error) {
	candidates := Candidates(domain, words)
	results := make([]model.SubdomainResult, len(candidates))
	done := make([]bool, len(candidates))

	r.logger.Info("enumeration started",
		"domain", domain,
		"candidates", len(candidates),
		"concurrency", r.concurrency,
	)
	startTime := time.Now()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(gctx); err != nil {
					return err
				}
			}

			res := r.lookupOne(gctx, c.FQDN)
			if gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			done[i] = true
			if emit != nil {
				if err := emit(res); err != nil {
					return fmt.Errorf("emit %s: %w", c.FQDN, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		partial := make([]model.SubdomainResult, 0, len(results))
		for i, ok := range done {
			if ok {
				partial = append(partial, results[i])
			}
		}
		results = partial
	}

	r.logger.Info("enumeration finished",
		"domain", domain,
		"results", len(results),
		"duration", time.Since(startTime),
	)
	return results, err
}

// lookupOne resolves fqdn once, without retry.
func (r *Resolver) lookupOne(ctx context.Context, fqdn string) model.SubdomainResult {
	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addrs, err := r.lookup.LookupNetIP(lctx, "ip", fqdn)
	if err != nil || len(addrs) == 0 {
		reason := "no addresses"
		if err != nil {
			reason = lookupReason(err)
		}
		r.metrics.LookupDone(false)
		r.logger.Debug("candidate unresolved", "fqdn", fqdn, "reason", reason)
		return model.SubdomainResult{
			FQDN:        fqdn,
			ResolvedIPs: []netip.Addr{},
			Error:       reason,
		}
	}

	res := model.NewSubdomainResult(fqdn, addrs)
	r.metrics.LookupDone(true)
	r.logger.Debug("candidate resolved", "fqdn", fqdn, "ips", res.IPStrings())
	return res
}

// lookupReason condenses a lookup error into a short reason.
func lookupReason(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return "no such host"
		case dnsErr.IsTimeout:
			return "timeout"
		}
		return dnsErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}
