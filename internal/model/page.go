package model

import (
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// PageRecord is the outcome of processing one URL during a crawl.
// A record is produced for every taken URL, including failed fetches, so the
// output reflects the crawl exactly. Records are immutable once created.
//
// The JSON names url, fetchedAt, statusCode, headers and extracted are part of
// the output schema; the remaining fields are omitted when empty.
type PageRecord struct {
	// URL is the normalized URL that was taken from the frontier.
	URL string `json:"url"`

	// FinalURL is the URL after redirects, when it differs from URL.
	FinalURL string `json:"finalUrl,omitempty"`

	// FetchedAt is the UTC time at which the fetch completed.
	FetchedAt time.Time `json:"fetchedAt"`

	// StatusCode is the HTTP status code. Zero when no response was received.
	StatusCode int `json:"statusCode"`

	// Headers holds the response headers, multiple values joined by ", ".
	Headers map[string]string `json:"headers"`

	// Extracted is the parsed content. Nil when the fetch or parse failed.
	Extracted ExtractedContent `json:"extracted"`

	// Depth is the number of links followed from the seed URL.
	Depth int `json:"depth"`

	// DurationMs is the wall time spent fetching, retries included.
	DurationMs int64 `json:"durationMs,omitempty"`

	// ContentHash is the BLAKE2b-256 hash of the response body.
	ContentHash string `json:"contentHash,omitempty"`

	// Error describes why the page has no extracted content.
	Error string `json:"error,omitempty"`
}

// RecordKind implements Record.
func (PageRecord) RecordKind() RecordKind { return RecordKindPage }

func (PageRecord) isRecord() {}

// Failed reports whether the page could not be fetched or parsed.
func (p PageRecord) Failed() bool {
	return p.Error != ""
}

// Host returns the lower-cased host of the record's URL.
func (p PageRecord) Host() string {
	rest := p.URL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}

// Hostname returns Host without the port.
func (p PageRecord) Hostname() string {
	host := p.Host()
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// JSONLD returns the JSON-LD payload carried by the record, if any.
func (p PageRecord) JSONLD() *JSONLDPayload {
	switch c := p.Extracted.(type) {
	case *JSONLDPayload:
		return c
	case *BundlePayload:
		return c.JSONLD
	default:
		return nil
	}
}

// Text returns the text payload carried by the record, if any.
func (p PageRecord) Text() *TextPayload {
	switch c := p.Extracted.(type) {
	case *TextPayload:
		return c
	case *BundlePayload:
		return c.Text
	default:
		return nil
	}
}

// pageRecordJSON mirrors PageRecord with the polymorphic field left raw.
type pageRecordJSON struct {
	URL         string            `json:"url"`
	FinalURL    string            `json:"finalUrl,omitempty"`
	FetchedAt   time.Time         `json:"fetchedAt"`
	StatusCode  int               `json:"statusCode"`
	Headers     map[string]string `json:"headers"`
	Extracted   json.RawMessage   `json:"extracted"`
	Depth       int               `json:"depth"`
	DurationMs  int64             `json:"durationMs,omitempty"`
	ContentHash string            `json:"contentHash,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p PageRecord) MarshalJSON() ([]byte, error) {
	extracted := json.RawMessage("null")
	if p.Extracted != nil {
		data, err := json.Marshal(p.Extracted)
		if err != nil {
			return nil, err
		}
		extracted = data
	}
	return json.Marshal(pageRecordJSON{
		URL:         p.URL,
		FinalURL:    p.FinalURL,
		FetchedAt:   p.FetchedAt,
		StatusCode:  p.StatusCode,
		Headers:     p.Headers,
		Extracted:   extracted,
		Depth:       p.Depth,
		DurationMs:  p.DurationMs,
		ContentHash: p.ContentHash,
		Error:       p.Error,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PageRecord) UnmarshalJSON(data []byte) error {
	var raw pageRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, err := DecodeContent(raw.Extracted)
	if err != nil {
		return err
	}
	*p = PageRecord{
		URL:         raw.URL,
		FinalURL:    raw.FinalURL,
		FetchedAt:   raw.FetchedAt,
		StatusCode:  raw.StatusCode,
		Headers:     raw.Headers,
		Extracted:   content,
		Depth:       raw.Depth,
		DurationMs:  raw.DurationMs,
		ContentHash: raw.ContentHash,
		Error:       raw.Error,
	}
	return nil
}

// HeadersFromHTTP flattens response headers into the record representation.
// Header names keep their canonical form and multiple values are joined.
func HeadersFromHTTP(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// HeaderNames returns the header names of the record in sorted order.
func (p PageRecord) HeaderNames() []string {
	names := make([]string, 0, len(p.Headers))
	for name := range p.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContentHash returns the hex encoded BLAKE2b-256 hash of body.
// An empty body has an empty hash.
func ContentHash(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}
