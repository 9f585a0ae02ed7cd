package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrTooManyRedirects is returned when a fetch exceeds the redirect limit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrNotHTML is wrapped in a ParseError when the response is not HTML.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrSeedDisallowed is returned when robots.txt forbids the seed URL.
	ErrSeedDisallowed = errors.New("seed URL disallowed by robots.txt")
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind int

const (
	// KindOther is any failure not covered by a more specific kind.
	KindOther FetchErrorKind = iota
	// KindTimeout is a per-attempt timeout. Retried.
	KindTimeout
	// KindConnectionRefused is a refused TCP connection. Retried.
	KindConnectionRefused
	// KindTooManyRedirects is a redirect chain over the limit. Not retried.
	KindTooManyRedirects
	// KindHTTPError is a response with status 400 or above. Not retried.
	KindHTTPError
)

// String returns the kind as used in logs and metric labels.
func (k FetchErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionRefused:
		return "connection_refused"
	case KindTooManyRedirects:
		return "too_many_redirects"
	case KindHTTPError:
		return "http_error"
	default:
		return "other"
	}
}

// FetchError describes a failed fetch.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	// StatusCode is set for KindHTTPError.
	StatusCode int
	Err        error
}

// Error implements error.
func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindHTTPError:
		return fmt.Sprintf("fetch %s: http error: status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether the failure is transient and worth retrying.
func (e *FetchError) Temporary() bool {
	return e.Kind == KindTimeout || e.Kind == KindConnectionRefused
}

// ParseError describes a page that was fetched but could not be parsed.
type ParseError struct {
	URL string
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// classifyError maps a transport error to a FetchErrorKind. attemptCtx is the
// per-attempt context; its deadline firing means the attempt timed out.
func classifyError(attemptCtx context.Context, err error) FetchErrorKind {
	switch {
	case errors.Is(err, ErrTooManyRedirects):
		return KindTooManyRedirects
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindOther
}
