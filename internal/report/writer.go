package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/harvest/internal/analysis"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names an output format.
type Format string

const (
	// FormatSimple is plain text for the terminal.
	FormatSimple Format = "simple"
	// FormatMarkdown is GitHub-flavored Markdown.
	FormatMarkdown Format = "markdown"
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatSimple, FormatMarkdown, FormatJSON}
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatSimple, FormatMarkdown, FormatJSON:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "":
		return FormatSimple, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Writer renders analysis reports.
// Each method returns the number of bytes written.
type Writer interface {
	WriteJSONLD(report *analysis.JSONLDReport) (int, error)
	WriteText(report *analysis.TextReport) (int, error)
	WriteProperty(report *analysis.PropertyReport) (int, error)
	WriteSubdomains(report *analysis.SubdomainReport) (int, error)
}

// New returns the Writer for format.
func New(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatSimple:
		return NewSimpleWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// MultiWriter writes every report to several Writers.
// It stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteJSONLD implements Writer.
func (m *MultiWriter) WriteJSONLD(report *analysis.JSONLDReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteJSONLD(report) })
}

// WriteText implements Writer.
func (m *MultiWriter) WriteText(report *analysis.TextReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteText(report) })
}

// WriteProperty implements Writer.
func (m *MultiWriter) WriteProperty(report *analysis.PropertyReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteProperty(report) })
}

// WriteSubdomains implements Writer.
func (m *MultiWriter) WriteSubdomains(report *analysis.SubdomainReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSubdomains(report) })
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// siteLabel describes the host filter of a report.
func siteLabel(site string) string {
	if site == "" {
		return "all sites"
	}
	return site
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
