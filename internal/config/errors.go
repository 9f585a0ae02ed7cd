package config

import "errors"

// Configuration validation errors.
// These errors are returned by the Validate methods before any network
// activity starts. Callers use errors.Is to tell them apart; the CLI treats
// every one of them as fatal.
var (
	// ErrNoSeedURL is returned when a crawl has no seed URL.
	ErrNoSeedURL = errors.New("no seed URL specified")

	// ErrInvalidSeedURL is returned when the seed URL is not an absolute http(s) URL.
	ErrInvalidSeedURL = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidDelayRange is returned when the minimum delay is greater than
	// the maximum delay, or either bound is negative.
	ErrInvalidDelayRange = errors.New("invalid delay range: min delay must be non-negative and not greater than max delay")

	// ErrInvalidWorkers is returned when the crawl worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when a request or lookup timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the retry count or retry delay is negative.
	ErrInvalidRetries = errors.New("invalid retry policy: retries and base delay must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to select the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrNoDomain is returned when subdomain enumeration has no base domain.
	ErrNoDomain = errors.New("no domain specified")

	// ErrNoWordlist is returned when subdomain enumeration has no wordlist path.
	ErrNoWordlist = errors.New("no wordlist specified: use --wordlist")

	// ErrInvalidConcurrency is returned when the resolver pool size is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidQPS is returned when the queries-per-second ceiling is negative.
	ErrInvalidQPS = errors.New("invalid queries per second: must be non-negative")

	// ErrInvalidBatchSize is returned when the sink batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")
)
