package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nao1215/harvest/internal/model"
)

const topValues = 10

// ValueCount is a property value with the share of occurrences it covers.
type ValueCount struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	// SampleURL is a page on which the value occurs.
	SampleURL string `json:"sampleUrl"`
}

// PropertyReport describes how one JSON-LD property is used.
type PropertyReport struct {
	Property          string       `json:"property"`
	Site              string       `json:"site,omitempty"`
	Occurrences       int          `json:"occurrences"`
	NestedOccurrences int          `json:"nestedOccurrences"`
	Pages             int          `json:"pages"`
	UniqueValues      int          `json:"uniqueValues"`
	Types             []Count      `json:"types"`
	Contexts          []Count      `json:"contexts"`
	DataTypes         []Count      `json:"dataTypes"`
	Values            []ValueCount `json:"values"`
}

// Empty reports whether the property was never seen.
func (r *PropertyReport) Empty() bool {
	return r == nil || r.Occurrences == 0
}

type propertyStats struct {
	name      string
	url       string
	report    *PropertyReport
	types     counter
	contexts  counter
	dataTypes counter
	values    counter
	samples   map[string]string
	pages     map[string]struct{}
}

// AnalyzeProperty reports on every occurrence of the JSON-LD property name,
// at any nesting depth, across pages.
func AnalyzeProperty(name, site string, pages []model.PageRecord) *PropertyReport {
	s := &propertyStats{
		name:      name,
		report:    &PropertyReport{Property: name, Site: site},
		types:     counter{},
		contexts:  counter{},
		dataTypes: counter{},
		values:    counter{},
		samples:   map[string]string{},
		pages:     map[string]struct{}{},
	}

	for _, p := range pages {
		payload := p.JSONLD()
		if payload.Empty() {
			continue
		}
		s.url = p.URL
		for _, block := range payload.RawBlocks {
			var v any
			if err := json.Unmarshal(block, &v); err != nil {
				continue
			}
			s.walk(v, 0, "")
		}
	}

	r := s.report
	r.Pages = len(s.pages)
	r.UniqueValues = len(s.values)
	r.Types = s.types.top(0)
	r.Contexts = s.contexts.top(0)
	r.DataTypes = s.dataTypes.top(0)

	total := s.values.total()
	for _, c := range s.values.top(topValues) {
		r.Values = append(r.Values, ValueCount{
			Value:      c.Name,
			Count:      c.Count,
			Percentage: 100 * ratio(c.Count, total),
			SampleURL:  s.samples[c.Name],
		})
	}
	return r
}

// walk visits every object once. context is the nearest enclosing @context.
func (s *propertyStats) walk(v any, depth int, context string) {
	switch t := v.(type) {
	case []any:
		for _, elem := range t {
			s.walk(elem, depth, context)
		}
	case map[string]any:
		if c, ok := t["@context"].(string); ok {
			context = c
		}
		if value, ok := t[s.name]; ok {
			s.record(t, value, depth, context)
		}
		for key, value := range t {
			if key == "@graph" {
				s.walk(value, depth, context)
				continue
			}
			s.walk(value, depth+1, context)
		}
	}
}

func (s *propertyStats) record(obj map[string]any, value any, depth int, context string) {
	s.report.Occurrences++
	if depth > 0 {
		s.report.NestedOccurrences++
	}
	s.pages[s.url] = struct{}{}

	types := typeNames(obj["@type"])
	if len(types) == 0 {
		s.types.add("(untyped)")
	}
	for _, name := range types {
		s.types.add(name)
	}
	s.contexts.add(context)
	s.dataTypes.add(dataType(value))

	key := valueString(value)
	s.values.add(key)
	if _, ok := s.samples[key]; !ok {
		s.samples[key] = s.url
	}
}

// dataType names the JSON type of v.
func dataType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// valueString renders v for value counting. Objects are identified by their
// @id, name or @type when present.
func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for _, key := range []string{"@id", "name", "@type"} {
			if s, ok := t[key].(string); ok && s != "" {
				return s
			}
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
