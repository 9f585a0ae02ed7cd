// Package crawler implements the polite, bounded web crawl.
//
// # Architecture
//
// The Spider coordinates a fixed pool of workers. Each worker takes a task
// from the Frontier, waits out the politeness delay, fetches the page through
// a Fetcher, parses it with a PageParser, offers in-scope links back to the
// Frontier and hands exactly one model.PageRecord to the Sink.
//
// # Components
//
//   - Frontier: deduplicating FIFO queue bounded by the page budget
//   - HTTPFetcher: browser-like GET with per-attempt timeout and retries
//   - HTMLParser: JSON-LD and readable text extraction plus link discovery
//   - Scope: anchor host, subdomain, extension and pattern filtering
//   - Robots: optional robots.txt policy, fetched once per host
//
// # Politeness
//
//   - A random delay from a configured window before every request but the first
//   - A bounded number of concurrent workers
//   - robots.txt when enabled
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(client, crawler.WithTimeout(10*time.Second))
//	spider := crawler.NewSpider(fetcher,
//		crawler.WithWorkers(4),
//		crawler.WithMaxPages(100),
//		crawler.WithLimiter(window),
//	)
//	stats, err := spider.Run(ctx, "https://example.com", sink)
package crawler
