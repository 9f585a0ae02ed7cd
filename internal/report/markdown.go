package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/harvest/internal/analysis"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteJSONLD implements Writer.
func (w *MarkdownWriter) WriteJSONLD(report *analysis.JSONLDReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("JSON-LD Analysis")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + siteLabel(report.Site) + "`"},
			{"Pages", strconv.Itoa(report.Pages)},
			{"Items", strconv.Itoa(report.Items)},
			{"Items per page", fmt.Sprintf("%.2f", report.ItemsPerPage)},
		},
	})
	md.PlainText("")

	if report.Empty() {
		md.Note("No JSON-LD data found.")
		return w.build(md)
	}

	w.writeCounts(md, "Top Schema Types", "Type", report.Types)
	w.writePieChart(md, "Schema Type Distribution", report.Types)
	w.writeCounts(md, "Nested Types", "Type", report.NestedTypes)
	w.writeCounts(md, "Top Authors", "Author", report.Authors)
	w.writeCounts(md, "Top Organizations", "Organization", report.Organizations)
	w.writeCounts(md, "Most Common Properties", "Property", report.Properties)

	if len(report.Contexts) > 0 {
		md.H2("Contexts")
		md.PlainText("")
		items := make([]string, 0, len(report.Contexts))
		for _, c := range report.Contexts {
			items = append(items, fmt.Sprintf("`%s` (%d)", c.Name, c.Count))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	w.writeCounts(md, "Published Dates", "Date", report.DatesPublished)
	w.writeCounts(md, "Modified Dates", "Date", report.DatesModified)
	return w.build(md)
}

// WriteText implements Writer.
func (w *MarkdownWriter) WriteText(report *analysis.TextReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Text Content Analysis")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + siteLabel(report.Site) + "`"},
			{"Pages", strconv.Itoa(report.Pages)},
			{"Total words", strconv.Itoa(report.TotalWords)},
			{"Average words per page", fmt.Sprintf("%.1f", report.AverageWords)},
			{"Average paragraphs per page", fmt.Sprintf("%.1f", report.AverageParagraphs)},
			{"Pages with title", strconv.Itoa(report.PagesWithTitle)},
			{"Pages with meta description", strconv.Itoa(report.PagesWithDescription)},
			{"Pages with headings", strconv.Itoa(report.PagesWithHeadings)},
		},
	})
	md.PlainText("")

	if report.Empty() {
		md.Note("No text content found.")
		return w.build(md)
	}

	if len(report.HeadingsByLevel) > 0 {
		md.H2("Headings by Level")
		md.PlainText("")
		var rows [][]string
		for level := 1; level <= 6; level++ {
			if n, ok := report.HeadingsByLevel[level]; ok {
				rows = append(rows, []string{"h" + strconv.Itoa(level), strconv.Itoa(n)})
			}
		}
		md.Table(markdown.TableSet{Header: []string{"Level", "Count"}, Rows: rows})
		md.PlainText("")
	}

	w.writeCounts(md, "Common Headings", "Heading", report.CommonHeadings)

	pl := report.ParagraphLengths
	md.H2("Paragraph Lengths")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Length", "Paragraphs", "Share"},
		Rows: [][]string{
			{"Very short (<50)", strconv.Itoa(pl.VeryShort), percent(pl.VeryShort, pl.Total())},
			{"Short (50-99)", strconv.Itoa(pl.Short), percent(pl.Short, pl.Total())},
			{"Medium (100-199)", strconv.Itoa(pl.Medium), percent(pl.Medium, pl.Total())},
			{"Long (200+)", strconv.Itoa(pl.Long), percent(pl.Long, pl.Total())},
		},
	})
	md.PlainText("")

	if len(report.LongestPages) > 0 {
		md.H2("Longest Pages")
		md.PlainText("")
		rows := make([][]string, 0, len(report.LongestPages))
		for _, p := range report.LongestPages {
			title := p.Title
			if title == "" {
				title = "-"
			}
			rows = append(rows, []string{escapeCell(p.URL), escapeCell(title), strconv.Itoa(p.Words)})
		}
		md.Table(markdown.TableSet{Header: []string{"URL", "Title", "Words"}, Rows: rows})
		md.PlainText("")
	}

	w.writeCounts(md, "Most Common Words", "Word", report.Keywords)

	if len(report.CrawlDates) > 0 {
		md.H2("Crawl Dates")
		md.PlainText("")
		rows := make([][]string, 0, len(report.CrawlDates))
		for _, d := range report.CrawlDates {
			rows = append(rows, []string{d.Date, strconv.Itoa(d.Pages), strconv.Itoa(d.Words)})
		}
		md.Table(markdown.TableSet{Header: []string{"Date", "Pages", "Words"}, Rows: rows})
		md.PlainText("")
	}
	return w.build(md)
}

// WriteProperty implements Writer.
func (w *MarkdownWriter) WriteProperty(report *analysis.PropertyReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Property Analysis: `" + report.Property + "`")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + siteLabel(report.Site) + "`"},
			{"Occurrences", strconv.Itoa(report.Occurrences)},
			{"Nested occurrences", strconv.Itoa(report.NestedOccurrences)},
			{"Pages", strconv.Itoa(report.Pages)},
			{"Unique values", strconv.Itoa(report.UniqueValues)},
		},
	})
	md.PlainText("")

	if report.Empty() {
		md.Warningf("Property `%s` was not found.", report.Property)
		return w.build(md)
	}

	w.writeCounts(md, "Found in Types", "Type", report.Types)

	dataTypes := make([]analysis.Count, 0, len(report.DataTypes))
	title := cases.Title(language.English)
	for _, c := range report.DataTypes {
		dataTypes = append(dataTypes, analysis.Count{Name: title.String(c.Name), Count: c.Count})
	}
	w.writeCounts(md, "Data Types", "Data type", dataTypes)
	w.writeCounts(md, "Contexts", "Context", report.Contexts)

	md.H2("Top Values")
	md.PlainText("")
	rows := make([][]string, 0, len(report.Values))
	for _, v := range report.Values {
		rows = append(rows, []string{
			escapeCell(truncateString(v.Value, 60)),
			strconv.Itoa(v.Count),
			fmt.Sprintf("%.1f%%", v.Percentage),
			v.SampleURL,
		})
	}
	md.Table(markdown.TableSet{Header: []string{"Value", "Count", "Share", "Sample URL"}, Rows: rows})
	md.PlainText("")
	return w.build(md)
}

// WriteSubdomains implements Writer.
func (w *MarkdownWriter) WriteSubdomains(report *analysis.SubdomainReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Subdomains of `" + report.Domain + "`")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Candidates checked", strconv.Itoa(report.Candidates)},
			{"Subdomains found", strconv.Itoa(report.Resolved)},
			{"Unique IP addresses", strconv.Itoa(report.UniqueIPs)},
		},
	})
	md.PlainText("")

	md.H2("Grouped by IP Address")
	md.PlainText("")
	if len(report.Groups) == 0 {
		md.Tip("No subdomains resolved.")
	} else {
		rows := make([][]string, 0, len(report.Groups))
		for _, g := range report.Groups {
			rows = append(rows, []string{"`" + g.IP.String() + "`", strings.Join(g.Subdomains, "<br>")})
		}
		md.Table(markdown.TableSet{Header: []string{"IP Address", "Subdomains"}, Rows: rows})
	}
	md.PlainText("")

	if len(report.Unresolved) > 0 {
		items := make([]string, 0, len(report.Unresolved))
		for _, r := range report.Unresolved {
			items = append(items, r.FQDN+": "+r.Error)
		}
		md.Details("Unresolved ("+strconv.Itoa(len(report.Unresolved))+")", strings.Join(items, "\n"))
		md.PlainText("")
	}
	return w.build(md)
}

// writeCounts writes a ranked table. Empty lists are skipped.
func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, title, label string, counts []analysis.Count) {
	if len(counts) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{escapeCell(truncateString(c.Name, 80)), strconv.Itoa(c.Count)})
	}
	md.Table(markdown.TableSet{Header: []string{label, "Count"}, Rows: rows})
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of counts.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, title string, counts []analysis.Count) {
	if len(counts) < 2 {
		return
	}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle(title),
		piechart.WithShowData(true),
	)
	for _, c := range counts {
		chart.LabelAndIntValue(c.Name, uint64(c.Count))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) build(md *markdown.Markdown) (int, error) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [harvest](https://github.com/nao1215/harvest)*")
	return len(md.String()), md.Build()
}

// escapeCell keeps a value from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
