package model

import (
	"fmt"
	"strings"
)

// ExtractionMode selects which content a crawl extracts from each page.
type ExtractionMode int

const (
	// ModeJSONLD extracts only <script type="application/ld+json"> blocks.
	ModeJSONLD ExtractionMode = iota

	// ModeText extracts the readable text of the page (title, headings, paragraphs).
	ModeText

	// ModeBoth extracts JSON-LD and text and stores them in a single BundlePayload.
	ModeBoth
)

// String returns the textual form used on the command line and in config files.
func (m ExtractionMode) String() string {
	switch m {
	case ModeJSONLD:
		return "jsonld"
	case ModeText:
		return "text"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseExtractionMode converts "jsonld", "text" or "both" into an ExtractionMode.
func ParseExtractionMode(s string) (ExtractionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jsonld", "json-ld":
		return ModeJSONLD, nil
	case "text":
		return ModeText, nil
	case "both", "all":
		return ModeBoth, nil
	default:
		return ModeJSONLD, fmt.Errorf("unknown extraction mode %q", s)
	}
}

// WantsJSONLD reports whether the mode includes JSON-LD extraction.
func (m ExtractionMode) WantsJSONLD() bool {
	return m == ModeJSONLD || m == ModeBoth
}

// WantsText reports whether the mode includes text extraction.
func (m ExtractionMode) WantsText() bool {
	return m == ModeText || m == ModeBoth
}

// MarshalText implements encoding.TextMarshaler.
func (m ExtractionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ExtractionMode) UnmarshalText(text []byte) error {
	parsed, err := ParseExtractionMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
