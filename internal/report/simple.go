package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/harvest/internal/analysis"
	"github.com/olekukonko/tablewriter"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
// Lists are rendered as ASCII tables.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// showUnresolved lists unresolved subdomains with their reason.
	showUnresolved bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithShowUnresolved lists subdomains that did not resolve.
func WithShowUnresolved(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showUnresolved = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// simpleDoc accumulates a text report. The first table error is kept.
type simpleDoc struct {
	sb  strings.Builder
	err error
}

// WriteJSONLD implements Writer.
func (w *SimpleWriter) WriteJSONLD(report *analysis.JSONLDReport) (int, error) {
	doc := &simpleDoc{}
	doc.banner("JSON-LD ANALYSIS")
	doc.field("Site", siteLabel(report.Site))
	doc.field("Pages", strconv.Itoa(report.Pages))
	doc.field("Items", strconv.Itoa(report.Items))
	doc.field("Items/page", fmt.Sprintf("%.2f", report.ItemsPerPage))
	doc.sb.WriteString("\n")

	if report.Empty() {
		doc.sb.WriteString("  No JSON-LD data found\n\n")
		return w.flush(doc)
	}

	w.counts(doc, "TOP SCHEMA TYPES", "Type", report.Types, report.Items)
	w.counts(doc, "NESTED TYPES", "Type", report.NestedTypes, 0)
	w.counts(doc, "TOP AUTHORS", "Author", report.Authors, 0)
	w.counts(doc, "TOP ORGANIZATIONS", "Organization", report.Organizations, 0)
	w.counts(doc, "MOST COMMON PROPERTIES", "Property", report.Properties, 0)
	w.counts(doc, "CONTEXTS", "Context", report.Contexts, 0)
	w.counts(doc, "PUBLISHED DATES", "Date", report.DatesPublished, 0)
	w.counts(doc, "MODIFIED DATES", "Date", report.DatesModified, 0)
	return w.flush(doc)
}

// WriteText implements Writer.
func (w *SimpleWriter) WriteText(report *analysis.TextReport) (int, error) {
	doc := &simpleDoc{}
	doc.banner("TEXT CONTENT ANALYSIS")
	doc.field("Site", siteLabel(report.Site))
	doc.field("Pages", strconv.Itoa(report.Pages))
	doc.field("Total words", strconv.Itoa(report.TotalWords))
	doc.field("Avg words/page", fmt.Sprintf("%.1f", report.AverageWords))
	doc.field("Avg paragraphs", fmt.Sprintf("%.1f", report.AverageParagraphs))
	doc.sb.WriteString("\n")

	if report.Empty() {
		doc.sb.WriteString("  No text content found\n\n")
		return w.flush(doc)
	}

	doc.section("PAGE COVERAGE")
	doc.table([]string{"Element", "Pages", "Share"}, [][]string{
		{"Title", strconv.Itoa(report.PagesWithTitle), percent(report.PagesWithTitle, report.Pages)},
		{"Meta description", strconv.Itoa(report.PagesWithDescription), percent(report.PagesWithDescription, report.Pages)},
		{"Headings", strconv.Itoa(report.PagesWithHeadings), percent(report.PagesWithHeadings, report.Pages)},
	})

	if len(report.HeadingsByLevel) > 0 || w.showEmpty {
		doc.section("HEADINGS BY LEVEL")
		var rows [][]string
		for level := 1; level <= 6; level++ {
			if n, ok := report.HeadingsByLevel[level]; ok {
				rows = append(rows, []string{"h" + strconv.Itoa(level), strconv.Itoa(n)})
			}
		}
		doc.table([]string{"Level", "Count"}, rows)
	}

	w.counts(doc, "COMMON HEADINGS", "Heading", report.CommonHeadings, 0)

	pl := report.ParagraphLengths
	doc.section("PARAGRAPH LENGTHS")
	doc.table([]string{"Length", "Paragraphs", "Share"}, [][]string{
		{"Very short (<50)", strconv.Itoa(pl.VeryShort), percent(pl.VeryShort, pl.Total())},
		{"Short (50-99)", strconv.Itoa(pl.Short), percent(pl.Short, pl.Total())},
		{"Medium (100-199)", strconv.Itoa(pl.Medium), percent(pl.Medium, pl.Total())},
		{"Long (200+)", strconv.Itoa(pl.Long), percent(pl.Long, pl.Total())},
	})

	if len(report.LongestPages) > 0 {
		doc.section("LONGEST PAGES")
		rows := make([][]string, 0, len(report.LongestPages))
		for _, p := range report.LongestPages {
			rows = append(rows, []string{truncateString(p.URL, 60), strconv.Itoa(p.Words)})
		}
		doc.table([]string{"URL", "Words"}, rows)
	}

	w.counts(doc, "MOST COMMON WORDS", "Word", report.Keywords, 0)

	if len(report.CrawlDates) > 0 {
		doc.section("CRAWL DATES")
		rows := make([][]string, 0, len(report.CrawlDates))
		for _, d := range report.CrawlDates {
			rows = append(rows, []string{d.Date, strconv.Itoa(d.Pages), strconv.Itoa(d.Words)})
		}
		doc.table([]string{"Date", "Pages", "Words"}, rows)
	}
	return w.flush(doc)
}

// WriteProperty implements Writer.
func (w *SimpleWriter) WriteProperty(report *analysis.PropertyReport) (int, error) {
	doc := &simpleDoc{}
	doc.banner("PROPERTY ANALYSIS: " + report.Property)
	doc.field("Site", siteLabel(report.Site))
	doc.field("Occurrences", strconv.Itoa(report.Occurrences))
	doc.field("Nested", strconv.Itoa(report.NestedOccurrences))
	doc.field("Pages", strconv.Itoa(report.Pages))
	doc.field("Unique values", strconv.Itoa(report.UniqueValues))
	doc.sb.WriteString("\n")

	if report.Empty() {
		fmt.Fprintf(&doc.sb, "  Property %q not found\n\n", report.Property)
		return w.flush(doc)
	}

	w.counts(doc, "FOUND IN TYPES", "Type", report.Types, 0)
	w.counts(doc, "DATA TYPES", "Data type", report.DataTypes, 0)
	w.counts(doc, "CONTEXTS", "Context", report.Contexts, 0)

	doc.section("TOP VALUES")
	rows := make([][]string, 0, len(report.Values))
	for _, v := range report.Values {
		rows = append(rows, []string{
			truncateString(v.Value, 50),
			strconv.Itoa(v.Count),
			fmt.Sprintf("%.1f%%", v.Percentage),
			truncateString(v.SampleURL, 60),
		})
	}
	doc.table([]string{"Value", "Count", "Share", "Sample URL"}, rows)
	return w.flush(doc)
}

// WriteSubdomains implements Writer.
func (w *SimpleWriter) WriteSubdomains(report *analysis.SubdomainReport) (int, error) {
	doc := &simpleDoc{}
	doc.banner("SUBDOMAINS OF " + report.Domain)

	if len(report.Groups) == 0 {
		doc.sb.WriteString("  No subdomains resolved\n\n")
	} else {
		rows := make([][]string, 0, len(report.Groups))
		for _, g := range report.Groups {
			rows = append(rows, []string{g.IP.String(), strings.Join(g.Subdomains, "\n")})
		}
		doc.table([]string{"IP Address", "Subdomains"}, rows)
	}

	if w.showUnresolved && len(report.Unresolved) > 0 {
		doc.section("UNRESOLVED")
		rows := make([][]string, 0, len(report.Unresolved))
		for _, r := range report.Unresolved {
			rows = append(rows, []string{r.FQDN, r.Error})
		}
		doc.table([]string{"Subdomain", "Reason"}, rows)
	}

	doc.section("STATISTICS")
	doc.table([]string{"Metric", "Value"}, [][]string{
		{"Candidates checked", strconv.Itoa(report.Candidates)},
		{"Subdomains found", strconv.Itoa(report.Resolved)},
		{"Unique IP addresses", strconv.Itoa(report.UniqueIPs)},
	})
	return w.flush(doc)
}

// counts writes a ranked list. When total is positive a share column is added.
func (w *SimpleWriter) counts(doc *simpleDoc, title, label string, counts []analysis.Count, total int) {
	if len(counts) == 0 && !w.showEmpty {
		return
	}
	doc.section(title)
	if len(counts) == 0 {
		doc.sb.WriteString("  None\n\n")
		return
	}

	header := []string{label, "Count"}
	if total > 0 {
		header = append(header, "Share")
	}
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		row := []string{truncateString(c.Name, 60), strconv.Itoa(c.Count)}
		if total > 0 {
			row = append(row, percent(c.Count, total))
		}
		rows = append(rows, row)
	}
	doc.table(header, rows)
}

func (w *SimpleWriter) flush(doc *simpleDoc) (int, error) {
	if doc.err != nil {
		return 0, doc.err
	}
	return io.WriteString(w.output, doc.sb.String())
}

func (d *simpleDoc) banner(title string) {
	d.sb.WriteString("\n")
	d.sb.WriteString(strings.Repeat("=", ruleWidth))
	d.sb.WriteString("\n")
	pad := max((ruleWidth-len(title))/2, 0)
	d.sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	d.sb.WriteString(strings.Repeat("=", ruleWidth))
	d.sb.WriteString("\n\n")
}

func (d *simpleDoc) section(title string) {
	d.sb.WriteString(strings.Repeat("-", ruleWidth))
	d.sb.WriteString("\n")
	d.sb.WriteString(title + "\n")
	d.sb.WriteString(strings.Repeat("-", ruleWidth))
	d.sb.WriteString("\n\n")
}

func (d *simpleDoc) field(name, value string) {
	fmt.Fprintf(&d.sb, "%-16s%s\n", name+":", value)
}

func (d *simpleDoc) table(header []string, rows [][]string) {
	if d.err != nil {
		return
	}
	table := tablewriter.NewWriter(&d.sb)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			d.err = fmt.Errorf("render table: %w", err)
			return
		}
	}
	if err := table.Render(); err != nil {
		d.err = fmt.Errorf("render table: %w", err)
		return
	}
	d.sb.WriteString("\n")
}

// percent formats part/total as a percentage.
func percent(part, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(part)/float64(total))
}
