package analysis

import (
	"encoding/json"
	"strings"

	"github.com/nao1215/harvest/internal/model"
)

// Report list sizes.
const (
	topTypes      = 10
	topAuthors    = 10
	topOrgs       = 10
	topProperties = 15
)

// organizationTypes are the @type values counted as organizations.
var organizationTypes = map[string]bool{
	"Organization": true,
	"Corporation":  true,
	"Company":      true,
}

// JSONLDReport summarizes the structured data of a set of pages.
type JSONLDReport struct {
	// Site is the host filter the report was built for, empty for all sites.
	Site          string  `json:"site,omitempty"`
	Pages         int     `json:"pages"`
	Items         int     `json:"items"`
	ItemsPerPage  float64 `json:"itemsPerPage"`
	Types         []Count `json:"types"`
	NestedTypes   []Count `json:"nestedTypes"`
	Authors       []Count `json:"authors"`
	Organizations []Count `json:"organizations"`
	Properties    []Count `json:"properties"`
	// Contexts lists every @context value, most used first.
	Contexts       []Count `json:"contexts"`
	DatesPublished []Count `json:"datesPublished"`
	DatesModified  []Count `json:"datesModified"`
}

// Empty reports whether no structured data was found.
func (r *JSONLDReport) Empty() bool {
	return r == nil || r.Pages == 0
}

type jsonldStats struct {
	items         int
	types         counter
	nestedTypes   counter
	contexts      counter
	authors       counter
	organizations counter
	properties    counter
	published     counter
	modified      counter
}

// AnalyzeJSONLD builds a JSONLDReport from the JSON-LD payloads of pages.
// Pages without JSON-LD are ignored.
func AnalyzeJSONLD(site string, pages []model.PageRecord) *JSONLDReport {
	stats := &jsonldStats{
		types:         counter{},
		nestedTypes:   counter{},
		contexts:      counter{},
		authors:       counter{},
		organizations: counter{},
		properties:    counter{},
		published:     counter{},
		modified:      counter{},
	}

	urls := make(map[string]struct{})
	for _, p := range pages {
		payload := p.JSONLD()
		if payload.Empty() {
			continue
		}
		urls[p.URL] = struct{}{}
		for _, block := range payload.RawBlocks {
			var v any
			if err := json.Unmarshal(block, &v); err != nil {
				continue
			}
			stats.block(v)
		}
	}

	return &JSONLDReport{
		Site:           site,
		Pages:          len(urls),
		Items:          stats.items,
		ItemsPerPage:   ratio(stats.items, len(urls)),
		Types:          stats.types.top(topTypes),
		NestedTypes:    stats.nestedTypes.top(topTypes),
		Authors:        stats.authors.top(topAuthors),
		Organizations:  stats.organizations.top(topOrgs),
		Properties:     stats.properties.top(topProperties),
		Contexts:       stats.contexts.top(0),
		DatesPublished: stats.published.top(0),
		DatesModified:  stats.modified.top(0),
	}
}

// block walks a top-level JSON-LD value. Arrays and @graph members are
// flattened into top-level items.
func (s *jsonldStats) block(v any) {
	switch t := v.(type) {
	case []any:
		for _, elem := range t {
			s.block(elem)
		}
	case map[string]any:
		if graph, ok := t["@graph"].([]any); ok {
			s.context(t["@context"])
			for _, elem := range graph {
				s.block(elem)
			}
			return
		}
		s.items++
		s.item(t, 0)
	}
}

// item records one object and recurses into its members.
func (s *jsonldStats) item(obj map[string]any, depth int) {
	types := typeNames(obj["@type"])
	for _, name := range types {
		if depth == 0 {
			s.types.add(name)
		} else {
			s.nestedTypes.add(name)
		}
	}

	s.context(obj["@context"])

	if author, ok := obj["author"]; ok {
		s.author(author)
	}

	for _, name := range types {
		if organizationTypes[name] {
			orgName, _ := obj["name"].(string)
			if orgName == "" {
				orgName = "Unknown Organization"
			}
			s.organizations.add(orgName)
			break
		}
	}

	if date, ok := obj["datePublished"].(string); ok {
		s.published.add(datePart(date))
	}
	if date, ok := obj["dateModified"].(string); ok {
		s.modified.add(datePart(date))
	}

	for key, value := range obj {
		if !strings.HasPrefix(key, "@") {
			s.properties.add(key)
		}
		s.nested(value, depth+1)
	}
}

func (s *jsonldStats) nested(v any, depth int) {
	switch t := v.(type) {
	case map[string]any:
		s.item(t, depth)
	case []any:
		for _, elem := range t {
			s.nested(elem, depth)
		}
	}
}

func (s *jsonldStats) context(v any) {
	switch t := v.(type) {
	case string:
		s.contexts.add(t)
	case []any:
		for _, elem := range t {
			if name, ok := elem.(string); ok {
				s.contexts.add(name)
			}
		}
	case map[string]any:
		for key := range t {
			s.contexts.add(key)
		}
	}
}

func (s *jsonldStats) author(v any) {
	switch t := v.(type) {
	case string:
		s.authors.add(t)
	case []any:
		for _, elem := range t {
			s.author(elem)
		}
	case map[string]any:
		name, _ := t["name"].(string)
		if name == "" {
			name = "Unknown Author"
		}
		s.authors.add(name)
	}
}

// typeNames returns the @type value as a list of names.
func typeNames(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		names := make([]string, 0, len(t))
		for _, elem := range t {
			if name, ok := elem.(string); ok {
				names = append(names, name)
			}
		}
		return names
	}
	return nil
}

// datePart returns the YYYY-MM-DD prefix of an ISO 8601 date.
func datePart(date string) string {
	if len(date) > 10 {
		return date[:10]
	}
	return date
}
