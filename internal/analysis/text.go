package analysis

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/nao1215/harvest/internal/model"
)

const (
	topHeadings     = 10
	topKeywords     = 20
	topLongestPages = 5
	// minKeywordLen is the length a word must exceed to count as a keyword.
	minKeywordLen = 3
)

// Paragraph length buckets, in characters.
const (
	veryShortParagraph = 50
	shortParagraph     = 100
	mediumParagraph    = 200
)

// stopWords are excluded from keyword counts.
var stopWords = map[string]bool{
	"about": true, "after": true, "also": true, "been": true, "before": true,
	"being": true, "between": true, "both": true, "could": true, "does": true,
	"each": true, "from": true, "have": true, "here": true, "into": true,
	"just": true, "like": true, "more": true, "most": true, "much": true,
	"only": true, "other": true, "over": true, "same": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "through": true, "very": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"will": true, "with": true, "would": true, "your": true, "ours": true,
}

// ParagraphLengths buckets paragraphs by character length.
type ParagraphLengths struct {
	VeryShort int `json:"veryShort"`
	Short     int `json:"short"`
	Medium    int `json:"medium"`
	Long      int `json:"long"`
}

// Total returns the number of paragraphs.
func (p ParagraphLengths) Total() int {
	return p.VeryShort + p.Short + p.Medium + p.Long
}

// CrawlDate aggregates the pages fetched on one day.
type CrawlDate struct {
	Date  string `json:"date"`
	Pages int    `json:"pages"`
	Words int    `json:"words"`
}

// PageWords is the word count of one page.
type PageWords struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Words int    `json:"words"`
}

// TextReport summarizes the readable text of a set of pages.
type TextReport struct {
	Site                 string           `json:"site,omitempty"`
	Pages                int              `json:"pages"`
	TotalWords           int              `json:"totalWords"`
	AverageWords         float64          `json:"averageWords"`
	AverageParagraphs    float64          `json:"averageParagraphs"`
	PagesWithTitle       int              `json:"pagesWithTitle"`
	PagesWithDescription int              `json:"pagesWithDescription"`
	PagesWithHeadings    int              `json:"pagesWithHeadings"`
	HeadingsByLevel      map[int]int      `json:"headingsByLevel"`
	CommonHeadings       []Count          `json:"commonHeadings"`
	ParagraphLengths     ParagraphLengths `json:"paragraphLengths"`
	Keywords             []Count          `json:"keywords"`
	LongestPages         []PageWords      `json:"longestPages"`
	CrawlDates           []CrawlDate      `json:"crawlDates"`
}

// Empty reports whether no text was found.
func (r *TextReport) Empty() bool {
	return r == nil || r.Pages == 0
}

// AnalyzeText builds a TextReport from the text payloads of pages.
// Pages without a text payload are ignored.
func AnalyzeText(site string, pages []model.PageRecord) *TextReport {
	report := &TextReport{
		Site:            site,
		HeadingsByLevel: map[int]int{},
	}
	headings := counter{}
	keywords := counter{}
	dates := map[string]*CrawlDate{}
	var (
		paragraphs int
		longest    []PageWords
	)

	for _, p := range pages {
		text := p.Text()
		if text.Empty() {
			continue
		}
		report.Pages++
		report.TotalWords += text.WordCount
		longest = append(longest, PageWords{URL: p.URL, Title: text.Title, Words: text.WordCount})
		paragraphs += len(text.Paragraphs)

		if text.Title != "" {
			report.PagesWithTitle++
		}
		if text.MetaDescription != "" {
			report.PagesWithDescription++
		}
		if len(text.Headings) > 0 {
			report.PagesWithHeadings++
		}
		for _, h := range text.Headings {
			report.HeadingsByLevel[h.Level]++
			headings.add(strings.ToLower(strings.TrimSpace(h.Text)))
		}

		for _, para := range text.Paragraphs {
			report.ParagraphLengths.add(para)
			for _, word := range words(para) {
				if len([]rune(word)) > minKeywordLen && !stopWords[word] {
					keywords.add(word)
				}
			}
		}

		if !p.FetchedAt.IsZero() {
			day := p.FetchedAt.UTC().Format("2006-01-02")
			d, ok := dates[day]
			if !ok {
				d = &CrawlDate{Date: day}
				dates[day] = d
			}
			d.Pages++
			d.Words += text.WordCount
		}
	}

	report.AverageWords = ratio(report.TotalWords, report.Pages)
	report.AverageParagraphs = ratio(paragraphs, report.Pages)
	report.CommonHeadings = headings.top(topHeadings)
	report.Keywords = keywords.top(topKeywords)

	slices.SortStableFunc(longest, func(a, b PageWords) int {
		return cmp.Compare(b.Words, a.Words)
	})
	if len(longest) > topLongestPages {
		longest = longest[:topLongestPages]
	}
	report.LongestPages = longest

	days := make(map[string]struct{}, len(dates))
	for day := range dates {
		days[day] = struct{}{}
	}
	for _, day := range sortedKeys(days) {
		report.CrawlDates = append(report.CrawlDates, *dates[day])
	}
	return report
}

func (p *ParagraphLengths) add(paragraph string) {
	switch n := len([]rune(paragraph)); {
	case n < veryShortParagraph:
		p.VeryShort++
	case n < shortParagraph:
		p.Short++
	case n < mediumParagraph:
		p.Medium++
	default:
		p.Long++
	}
}

// words splits s into lower-cased words of letters and digits.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
