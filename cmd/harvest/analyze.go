package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/harvest/internal/analysis"
	"github.com/nao1215/harvest/internal/database"
	"github.com/nao1215/harvest/internal/model"
	"github.com/nao1215/harvest/internal/report"
	"github.com/nao1215/harvest/internal/sink"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [url]",
		Short: "Summarize collected JSON-LD data",
		Long: `Analyze summarizes the JSON-LD data collected by scrape-jsonld and
scrape-all: schema types, authors, organizations, properties and contexts.

Give a URL or host to limit the report to that site and its subdomains.

Examples:
  harvest analyze
  harvest analyze https://example.com -f markdown -o report.md
  harvest analyze --input pages.json -f json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, args, func(w report.Writer, site string, pages []model.PageRecord) error {
				_, err := w.WriteJSONLD(analysis.AnalyzeJSONLD(site, pages))
				return err
			})
		},
	}
	addAnalysisFlags(cmd)
	return cmd
}

// NewAnalyzeTextCmd creates the analyze-text command.
func NewAnalyzeTextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze-text [url]",
		Short: "Summarize collected text content",
		Long: `Analyze-text summarizes the text collected by scrape-text and scrape-all:
word counts, headings, paragraph lengths and the most common words.

Examples:
  harvest analyze-text
  harvest analyze-text example.com -f markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, args, func(w report.Writer, site string, pages []model.PageRecord) error {
				_, err := w.WriteText(analysis.AnalyzeText(site, pages))
				return err
			})
		},
	}
	addAnalysisFlags(cmd)
	return cmd
}

// NewAnalyzePropertyCmd creates the analyze-property command.
func NewAnalyzePropertyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze-property <property> [url]",
		Short: "Show how one JSON-LD property is used",
		Long: `Analyze-property reports every occurrence of a JSON-LD property at any
nesting depth: the types that carry it, its data types and its most common
values with a sample page for each.

Examples:
  harvest analyze-property author
  harvest analyze-property datePublished https://example.com`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			property := args[0]
			return runAnalysis(cmd, args[1:], func(w report.Writer, site string, pages []model.PageRecord) error {
				_, err := w.WriteProperty(analysis.AnalyzeProperty(property, site, pages))
				return err
			})
		},
	}
	addAnalysisFlags(cmd)
	return cmd
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", string(report.FormatSimple),
		"Report format: simple, markdown or json")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file instead of stdout")
	cmd.Flags().StringP("input", "i", "",
		"Read records from a JSON file instead of the results database")
}

// analyzeFunc renders one report for the selected pages.
type analyzeFunc func(w report.Writer, site string, pages []model.PageRecord) error

// runAnalysis loads pages, filters them by site and writes the report.
func runAnalysis(cmd *cobra.Command, args []string, analyze analyzeFunc) error {
	setupLogger(cmd)

	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return configError(err)
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	inputPath, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}

	var site string
	if len(args) > 0 {
		site, err = siteFilter(args[0])
		if err != nil {
			return configError(err)
		}
	}

	pages, err := loadPages(cmd.Context(), cmd, inputPath, site)
	if err != nil {
		return err
	}
	pages = analysis.FilterPages(pages, site)

	return writeReport(cmd.OutOrStdout(), outputPath, format, func(w report.Writer) error {
		return analyze(w, site, pages)
	})
}

// siteFilter extracts the host from a URL or bare host name.
func siteFilter(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid site %q", raw)
	}
	return strings.ToLower(u.Hostname()), nil
}

// loadPages reads pages from a JSON file or from the results database.
func loadPages(ctx context.Context, cmd *cobra.Command, inputPath, site string) ([]model.PageRecord, error) {
	if inputPath != "" {
		pages, _, err := sink.ReadJSONFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", inputPath, err)
		}
		return pages, nil
	}

	db, err := openResultsDB(cmd)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return db.ListPages(ctx, database.PageFilter{Host: site})
}

// openResultsDB opens the existing database in --db-dir.
func openResultsDB(cmd *cobra.Command) (*database.HarvestDB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	return database.Open(cfg.DBDir, opts)
}

// writeReport renders to stdout or, when outputPath is set, to a file that
// only the owner can read.
func writeReport(stdout io.Writer, outputPath string, format report.Format, render func(report.Writer) error) (err error) {
	w := stdout
	if outputPath != "" {
		dir := filepath.Dir(outputPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		var f *os.File
		f, err = os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			err = errors.Join(err, f.Close())
		}()
		w = f
	}

	writer, err := report.New(format, w)
	if err != nil {
		return err
	}
	if err := render(writer); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if outputPath != "" {
		fmt.Fprintf(stdout, "Report written to %s\n", outputPath)
	}
	return nil
}

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List stored crawls and enumerations",
		Long:  `Runs lists every crawl and subdomain enumeration in the results database, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogger(cmd)

			db, err := openResultsDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Started", "Kind", "Target", "Mode", "Records", "ID")
			for _, r := range runs {
				if err := table.Append([]string{
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					string(r.Kind),
					r.Target,
					r.Mode,
					strconv.Itoa(r.Records),
					r.ID[:8],
				}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}
