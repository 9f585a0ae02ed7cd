// Package report renders analysis reports.
//
// Writers:
//   - SimpleWriter: plain text with ASCII tables for the terminal
//   - MarkdownWriter: GitHub-flavored Markdown with mermaid charts
//   - JSONWriter: JSON for tool integration
//
// The report values themselves live in the analysis package. New picks a
// Writer by Format name.
package report
