package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/harvest/internal/database"
)

func TestAnalyzeCmdFlags(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	for _, name := range []string{"analyze", "analyze-text", "analyze-property"} {
		c := findCommand(root, name)
		if c == nil {
			t.Fatalf("expected %s command", name)
		}
		for flagName, short := range map[string]string{"format": "f", "output": "o", "input": "i"} {
			flag := c.Flags().Lookup(flagName)
			if flag == nil {
				t.Errorf("%s: expected %s flag", name, flagName)
				continue
			}
			if flag.Shorthand != short {
				t.Errorf("%s: expected shorthand %q for %s, got %q", name, short, flagName, flag.Shorthand)
			}
		}
	}

	if err := NewAnalyzePropertyCmd().Args(nil, nil); err == nil {
		t.Error("analyze-property requires a property name")
	}
}

func TestAnalyzeCommands(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	jsonPath := scrapeTestSite(t, dbDir)

	t.Run("analyze simple", func(t *testing.T) {
		out, err := executeRoot(t, "analyze", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"JSON-LD ANALYSIS", "TOP SCHEMA TYPES", "WebSite", "Article"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("analyze-text json", func(t *testing.T) {
		out, err := executeRoot(t, "analyze-text", "--db-dir", dbDir, "-f", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var report struct {
			Pages      int `json:"pages"`
			TotalWords int `json:"totalWords"`
		}
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if report.Pages != 2 {
			t.Errorf("expected 2 pages, got %d", report.Pages)
		}
		if report.TotalWords == 0 {
			t.Error("expected words to be counted")
		}
	})

	t.Run("analyze-property markdown to file", func(t *testing.T) {
		reportPath := filepath.Join(t.TempDir(), "reports", "author.md")
		out, err := executeRoot(t, "analyze-property", "author", "127.0.0.1",
			"--db-dir", dbDir, "-f", "md", "-o", reportPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Report written to") {
			t.Errorf("expected confirmation, got %q", out)
		}

		content, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		for _, want := range []string{"# Property Analysis: `author`", "Jane"} {
			if !strings.Contains(string(content), want) {
				t.Errorf("expected %q in report:\n%s", want, content)
			}
		}

		info, err := os.Stat(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm&0o077 != 0 {
			t.Errorf("report must be private, got %v", perm)
		}
	})

	t.Run("site filter excludes other hosts", func(t *testing.T) {
		out, err := executeRoot(t, "analyze", "https://other.example/", "--db-dir", dbDir, "-f", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var report struct {
			Site  string `json:"site"`
			Pages int    `json:"pages"`
		}
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if report.Site != "other.example" || report.Pages != 0 {
			t.Errorf("unexpected report %+v", report)
		}
	})

	t.Run("input file instead of database", func(t *testing.T) {
		out, err := executeRoot(t, "analyze", "--db-dir", t.TempDir(), "-i", jsonPath, "-f", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var report struct {
			Pages int `json:"pages"`
		}
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if report.Pages != 2 {
			t.Errorf("expected 2 pages, got %d", report.Pages)
		}
	})

	t.Run("runs", func(t *testing.T) {
		out, err := executeRoot(t, "runs", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "crawl") || !strings.Contains(out, "both") {
			t.Errorf("expected the crawl run in output:\n%s", out)
		}
	})
}

func TestAnalyzeWithoutDatabase(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	if _, err := executeRoot(t, "analyze", "--db-dir", dbDir); err == nil {
		t.Fatal("expected error without a database")
	}
	if _, err := os.Stat(filepath.Join(dbDir, database.DBFileName)); !os.IsNotExist(err) {
		t.Error("analyze must not create a database")
	}
}

func TestAnalyzeUnknownFormat(t *testing.T) {
	t.Parallel()

	if _, err := executeRoot(t, "analyze-text", "--db-dir", t.TempDir(), "-f", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestSiteFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "example.com", want: "example.com"},
		{in: "https://Blog.Example.com/posts?page=2", want: "blog.example.com"},
		{in: "http://localhost:8080", want: "localhost"},
		{in: "https://", wantErr: true},
	}

	for _, tt := range tests {
		got, err := siteFilter(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("siteFilter(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("siteFilter(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("siteFilter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
