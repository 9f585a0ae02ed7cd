package model

import (
	"encoding/json"
	"fmt"
)

// ContentKind tags the variant of an ExtractedContent value in JSON.
type ContentKind string

const (
	// ContentKindJSONLD tags a JSONLDPayload.
	ContentKindJSONLD ContentKind = "jsonld"
	// ContentKindText tags a TextPayload.
	ContentKindText ContentKind = "text"
	// ContentKindBundle tags a BundlePayload.
	ContentKindBundle ContentKind = "both"
)

// ExtractedContent is the content extracted from a page.
// The set of implementations is closed: *JSONLDPayload, *TextPayload and
// *BundlePayload. Consumers switch on the concrete type.
type ExtractedContent interface {
	// Kind returns the tag written to the "kind" JSON field.
	Kind() ContentKind
	// Empty reports whether nothing was extracted.
	Empty() bool

	isExtractedContent()
}

// JSONLDPayload holds the JSON-LD blocks found on a page.
// Each block is kept verbatim (compacted); blocks that were not valid JSON are
// dropped by the parser.
type JSONLDPayload struct {
	RawBlocks []json.RawMessage `json:"rawBlocks"`
}

// Kind implements ExtractedContent.
func (*JSONLDPayload) Kind() ContentKind { return ContentKindJSONLD }

// Empty implements ExtractedContent.
func (p *JSONLDPayload) Empty() bool { return p == nil || len(p.RawBlocks) == 0 }

func (*JSONLDPayload) isExtractedContent() {}

// MarshalJSON implements json.Marshaler.
func (p *JSONLDPayload) MarshalJSON() ([]byte, error) {
	type payload JSONLDPayload
	return json.Marshal(struct {
		Kind ContentKind `json:"kind"`
		*payload
	}{ContentKindJSONLD, (*payload)(p)})
}

// Items decodes every block into generic values. A block holding an array is
// flattened, and a block with an "@graph" member contributes the graph items.
func (p *JSONLDPayload) Items() []map[string]any {
	if p == nil {
		return nil
	}
	var items []map[string]any
	for _, block := range p.RawBlocks {
		var v any
		if err := json.Unmarshal(block, &v); err != nil {
			continue
		}
		items = appendItems(items, v)
	}
	return items
}

func appendItems(items []map[string]any, v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		for _, elem := range t {
			items = appendItems(items, elem)
		}
	case map[string]any:
		if graph, ok := t["@graph"].([]any); ok {
			for _, elem := range graph {
				items = appendItems(items, elem)
			}
			return items
		}
		items = append(items, t)
	}
	return items
}

// Heading is a page heading (h1 to h3).
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// TextPayload holds the readable text of a page.
type TextPayload struct {
	Title           string    `json:"title"`
	MetaDescription string    `json:"metaDescription"`
	Headings        []Heading `json:"headings,omitempty"`
	Paragraphs      []string  `json:"paragraphs,omitempty"`
	// WordCount is the sum of the word counts of Paragraphs.
	WordCount int `json:"wordCount"`
}

// Kind implements ExtractedContent.
func (*TextPayload) Kind() ContentKind { return ContentKindText }

// Empty implements ExtractedContent.
func (p *TextPayload) Empty() bool {
	return p == nil || (p.Title == "" && p.MetaDescription == "" && len(p.Headings) == 0 && len(p.Paragraphs) == 0)
}

func (*TextPayload) isExtractedContent() {}

// MarshalJSON implements json.Marshaler.
func (p *TextPayload) MarshalJSON() ([]byte, error) {
	type payload TextPayload
	return json.Marshal(struct {
		Kind ContentKind `json:"kind"`
		*payload
	}{ContentKindText, (*payload)(p)})
}

// BundlePayload carries both payloads for pages crawled with ModeBoth.
type BundlePayload struct {
	JSONLD *JSONLDPayload `json:"jsonld,omitempty"`
	Text   *TextPayload   `json:"text,omitempty"`
}

// Kind implements ExtractedContent.
func (*BundlePayload) Kind() ContentKind { return ContentKindBundle }

// Empty implements ExtractedContent.
func (p *BundlePayload) Empty() bool {
	return p == nil || (p.JSONLD.Empty() && p.Text.Empty())
}

func (*BundlePayload) isExtractedContent() {}

// MarshalJSON implements json.Marshaler.
func (p *BundlePayload) MarshalJSON() ([]byte, error) {
	type payload BundlePayload
	return json.Marshal(struct {
		Kind ContentKind `json:"kind"`
		*payload
	}{ContentKindBundle, (*payload)(p)})
}

// DecodeContent decodes a tagged ExtractedContent value.
// JSON null and empty input decode to a nil ExtractedContent.
func DecodeContent(data []byte) (ExtractedContent, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var head struct {
		Kind ContentKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode extracted content: %w", err)
	}

	var content ExtractedContent
	switch head.Kind {
	case ContentKindJSONLD:
		content = &JSONLDPayload{}
	case ContentKindText:
		content = &TextPayload{}
	case ContentKindBundle:
		content = &BundlePayload{}
	default:
		return nil, fmt.Errorf("decode extracted content: unknown kind %q", head.Kind)
	}
	if err := json.Unmarshal(data, content); err != nil {
		return nil, fmt.Errorf("decode extracted content: %w", err)
	}
	return content, nil
}
