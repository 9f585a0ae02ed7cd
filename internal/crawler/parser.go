package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/harvest/internal/model"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

// Text extraction thresholds.
const (
	// minHeadingLength drops headings of five characters or fewer ("Menu", "Home").
	minHeadingLength = 6
	// minParagraphLength drops short blocks such as captions and buttons.
	minParagraphLength = 51
)

// noiseSelector lists elements removed before text extraction.
const noiseSelector = "script, style, noscript, nav, header, footer, button, input, form, iframe"

// boilerplateMarkers mark paragraphs that belong to consent or newsletter banners.
var boilerplateMarkers = []string{"cookie", "accept", "subscribe"}

// PageParser extracts content and links from a fetched page.
type PageParser interface {
	Parse(in ParseInput) (*ParseResult, error)
}

// ParseInput is a fetched page handed to a PageParser.
type ParseInput struct {
	// URL is the final URL of the page; relative links resolve against it.
	URL         string
	ContentType string
	Body        []byte
	Mode        model.ExtractionMode
}

// ParseResult contains all information extracted from a page.
type ParseResult struct {
	// Content is the extracted content for the requested mode.
	Content model.ExtractedContent

	// Links are the absolute URLs of every <a href>, in document order and
	// without duplicates. Scope filtering is the caller's job.
	Links []string

	// Title is the page title, extracted in every mode.
	Title string
}

// HTMLParser is the goquery based PageParser.
type HTMLParser struct {
	logger *slog.Logger
}

// NewHTMLParser creates an HTMLParser. A nil logger uses slog.Default.
func NewHTMLParser(logger *slog.Logger) *HTMLParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLParser{logger: logger}
}

// Parse decodes the body to UTF-8, collects links and extracts the content
// selected by in.Mode. Invalid JSON-LD blocks are skipped, not fatal.
func (p *HTMLParser) Parse(in ParseInput) (*ParseResult, error) {
	if !isHTML(in.ContentType) {
		return nil, &ParseError{URL: in.URL, Err: fmt.Errorf("%w: %s", ErrNotHTML, in.ContentType)}
	}

	base, err := url.Parse(in.URL)
	if err != nil {
		return nil, &ParseError{URL: in.URL, Err: err}
	}

	reader, err := charset.NewReader(bytes.NewReader(in.Body), in.ContentType)
	if err != nil {
		return nil, &ParseError{URL: in.URL, Err: fmt.Errorf("decode charset: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, &ParseError{URL: in.URL, Err: err}
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(b)
		}
	}

	result := &ParseResult{
		Links: extractLinks(doc, base),
		Title: cleanText(doc.Find("title").First().Text()),
	}

	var jsonld *model.JSONLDPayload
	if in.Mode.WantsJSONLD() {
		jsonld = p.extractJSONLD(doc, in.URL)
	}
	var text *model.TextPayload
	if in.Mode.WantsText() {
		// Text extraction removes nodes, so it runs last.
		text = extractText(doc, result.Title)
	}

	switch in.Mode {
	case model.ModeJSONLD:
		result.Content = jsonld
	case model.ModeText:
		result.Content = text
	default:
		result.Content = &model.BundlePayload{JSONLD: jsonld, Text: text}
	}
	return result, nil
}

// isHTML reports whether a Content-Type denotes HTML. A missing type is
// assumed to be HTML.
func isHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// extractLinks resolves every anchor against base.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link := resolveReference(base, href)
		if link == "" {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// extractJSONLD collects <script type="application/ld+json"> blocks.
func (p *HTMLParser) extractJSONLD(doc *goquery.Document, pageURL string) *model.JSONLDPayload {
	payload := &model.JSONLDPayload{}
	doc.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(typ), "application/ld+json") {
			return
		}

		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(raw)); err != nil {
			p.logger.Warn("skipping invalid JSON-LD block", "url", pageURL, "error", err)
			return
		}
		payload.RawBlocks = append(payload.RawBlocks, json.RawMessage(buf.Bytes()))
	})
	return payload
}

// extractText removes navigation and form noise, then collects headings and
// paragraphs.
func extractText(doc *goquery.Document, title string) *model.TextPayload {
	payload := &model.TextPayload{Title: title}

	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		content, _ := s.Attr("content")
		payload.MetaDescription = cleanText(content)
		return false
	})

	doc.Find(noiseSelector).Remove()

	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if len([]rune(text)) < minHeadingLength {
			return
		}
		level := int(goquery.NodeName(s)[1] - '0')
		payload.Headings = append(payload.Headings, model.Heading{Level: level, Text: text})
	})

	seen := make(map[string]struct{})
	doc.Find("p, article, section, div").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if len([]rune(text)) < minParagraphLength || isBoilerplate(text) {
			return
		}
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		payload.Paragraphs = append(payload.Paragraphs, text)
		payload.WordCount += len(strings.Fields(text))
	})

	return payload
}

func isBoilerplate(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range boilerplateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// cleanText collapses whitespace and applies Unicode NFC normalization.
func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
