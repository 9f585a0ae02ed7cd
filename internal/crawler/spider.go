package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/nao1215/harvest/internal/metrics"
	"github.com/nao1215/harvest/internal/model"
	"golang.org/x/sync/errgroup"
)

// Waiter paces requests. *ratelimit.DelayWindow satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Sink receives the records of a crawl. A returned error is fatal and stops
// the crawl.
type Sink interface {
	Append(ctx context.Context, rec model.Record) error
}

// Spider coordinates a crawl: a pool of workers takes tasks from a Frontier,
// waits out the politeness delay, fetches, parses, offers in-scope links back
// to the frontier and emits one PageRecord per task.
//
// We call it "Spider" rather than "Crawler" to distinguish the type from the
// package name: crawler.NewSpider() reads better than crawler.NewCrawler().
type Spider struct {
	fetcher  Fetcher
	parser   PageParser
	limiter  Waiter
	robots   *Robots
	scope    *Scope
	workers  int
	maxPages int
	mode     model.ExtractionMode
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxPages sets the maximum number of pages recorded.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// WithLimiter sets the politeness delay applied before each request.
func WithLimiter(w Waiter) SpiderOption {
	return func(s *Spider) {
		s.limiter = w
	}
}

// WithParser replaces the default HTMLParser.
func WithParser(p PageParser) SpiderOption {
	return func(s *Spider) {
		s.parser = p
	}
}

// WithRobots enables robots.txt checks for discovered links and the seed.
func WithRobots(r *Robots) SpiderOption {
	return func(s *Spider) {
		s.robots = r
	}
}

// WithScope replaces the default scope (same host, default skip list).
func WithScope(scope *Scope) SpiderOption {
	return func(s *Spider) {
		s.scope = scope
	}
}

// WithMode sets the extraction mode.
func WithMode(mode model.ExtractionMode) SpiderOption {
	return func(s *Spider) {
		s.mode = mode
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) SpiderOption {
	return func(s *Spider) {
		s.metrics = m
	}
}

// NewSpider creates a Spider fetching through fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:  fetcher,
		workers:  4,
		maxPages: 100,
		mode:     model.ModeJSONLD,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = NewHTMLParser(s.logger)
	}
	if s.scope == nil {
		s.scope = NewScope(WithSkipExtensions([]string{".jpg", ".jpeg", ".png", ".gif", ".pdf"}))
	}
	return s
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// Recorded is the number of records emitted.
	Recorded int
	// Failed is the number of records without content.
	Failed int
	// Discovered is the number of distinct URLs admitted to the frontier.
	Discovered int
	// AnchorHost is the host the crawl was scoped to.
	AnchorHost string
}

// runState is shared by the workers of one Run.
type runState struct {
	frontier *Frontier
	sink     Sink
	started  atomic.Bool
	recorded atomic.Int64
	failed   atomic.Int64
}

// Run crawls from seedURL until the frontier drains, the page budget is used
// up or ctx is cancelled. Every taken URL yields exactly one record unless the
// crawl was cancelled while that URL was in flight. A sink error stops every
// worker and is returned.
func (s *Spider) Run(ctx context.Context, seedURL string, sink Sink) (SpiderStats, error) {
	seed, err := NormalizeURL(seedURL)
	if err != nil {
		return SpiderStats{}, fmt.Errorf("invalid seed URL: %w", err)
	}
	if s.robots != nil && !s.robots.Allowed(ctx, seed) {
		return SpiderStats{}, ErrSeedDisallowed
	}

	state := &runState{
		frontier: NewFrontier(s.maxPages),
		sink:     sink,
	}
	state.frontier.Offer(seed, 0)

	s.logger.Info("crawl started",
		"seed", seed,
		"workers", s.workers,
		"max_pages", s.maxPages,
		"mode", s.mode.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	for range s.workers {
		g.Go(func() error {
			return s.work(gctx, state)
		})
	}
	runErr := g.Wait()
	state.frontier.Close()

	stats := SpiderStats{
		Recorded:   int(state.recorded.Load()),
		Failed:     int(state.failed.Load()),
		Discovered: state.frontier.Stats().Visited,
		AnchorHost: s.scope.AnchorHost(),
	}

	s.logger.Info("crawl finished",
		"recorded", stats.Recorded,
		"failed", stats.Failed,
		"anchor", stats.AnchorHost,
	)

	if runErr != nil {
		return stats, runErr
	}
	return stats, ctx.Err()
}

// work is the loop of one worker.
func (s *Spider) work(ctx context.Context, state *runState) error {
	for {
		task, ok := state.frontier.Take(ctx)
		if !ok {
			return nil
		}

		s.metrics.WorkerStarted()
		err := s.process(ctx, state, task)
		s.metrics.WorkerFinished()
		state.frontier.Done(task)

		if err != nil {
			state.frontier.Close()
			return err
		}
	}
}

// process handles one task: Pending -> Fetching -> Parsed|FetchFailed -> Recorded.
func (s *Spider) process(ctx context.Context, state *runState, task CrawlTask) error {
	// The very first request of a run is sent without delay.
	if state.started.Swap(true) && s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
	}

	resp, fetchErr := s.fetcher.Fetch(ctx, task.URL)
	if ctx.Err() != nil {
		s.logger.Debug("abandoned in-flight fetch", "url", task.URL)
		return nil
	}

	rec := model.PageRecord{
		URL:       task.URL,
		FetchedAt: s.now().UTC(),
		Depth:     task.Depth,
	}
	if resp != nil {
		rec.StatusCode = resp.StatusCode
		rec.Headers = model.HeadersFromHTTP(resp.Header)
		rec.DurationMs = resp.Duration.Milliseconds()
		rec.ContentHash = model.ContentHash(resp.Body)
		if resp.FinalURL != "" && resp.FinalURL != task.URL {
			rec.FinalURL = resp.FinalURL
			state.frontier.MarkVisited(resp.FinalURL)
		}
	}

	outcome := metrics.OutcomeOK
	switch {
	case fetchErr != nil:
		outcome = metrics.OutcomeFetchError
		rec.Error = fetchErr.Error()
		s.logger.Warn("fetch failed", "url", task.URL, "error", fetchErr)
	default:
		if err := s.parseInto(ctx, state, task, resp, &rec); err != nil {
			outcome = metrics.OutcomeParseError
			rec.Error = err.Error()
			s.logger.Warn("parse failed", "url", task.URL, "error", err)
		}
	}

	// A completed page is recorded even if cancellation arrives now.
	if err := state.sink.Append(context.WithoutCancel(ctx), rec); err != nil {
		return fmt.Errorf("record %s: %w", task.URL, err)
	}

	state.recorded.Add(1)
	if rec.Failed() {
		state.failed.Add(1)
	}
	s.metrics.PageRecorded(outcome)
	s.logger.Debug("page recorded",
		"url", task.URL,
		"status", rec.StatusCode,
		"depth", task.Depth,
		"headers", rec.Headers,
	)
	return nil
}

// parseInto anchors the scope, parses the page into rec and offers in-scope
// links to the frontier.
func (s *Spider) parseInto(ctx context.Context, state *runState, task CrawlTask, resp *Response, rec *model.PageRecord) error {
	finalURL := resp.FinalURL
	if finalURL == "" {
		finalURL = task.URL
	}
	if u, err := url.Parse(finalURL); err == nil && s.scope.Anchor(u.Host) {
		s.logger.Info("crawl anchored", "host", u.Host)
	}

	result, err := s.parser.Parse(ParseInput{
		URL:         finalURL,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		Mode:        s.mode,
	})
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			err = &ParseError{URL: finalURL, Err: err}
		}
		return err
	}
	rec.Extracted = result.Content

	for _, link := range result.Links {
		if !s.scope.Allows(link) {
			continue
		}
		if state.frontier.Visited(link) {
			continue
		}
		if s.robots != nil && !s.robots.Allowed(ctx, link) {
			s.logger.Debug("link disallowed by robots.txt", "url", link)
			continue
		}
		state.frontier.Offer(link, task.Depth+1)
	}
	return nil
}
