package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/harvest/internal/config"
	"github.com/nao1215/harvest/internal/database"
	"github.com/nao1215/harvest/internal/log"
	"github.com/nao1215/harvest/internal/report"
	"github.com/nao1215/harvest/internal/resolver"
	"github.com/nao1215/harvest/internal/sink"
)

// staticResolver answers lookups from a fixed table.
type staticResolver map[string][]string

func (s staticResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	ips, ok := s[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	addrs := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, netip.MustParseAddr(ip))
	}
	return addrs, nil
}

var testZone = staticResolver{
	"example.com":      {"93.184.216.34"},
	"www.example.com":  {"93.184.216.34"},
	"mail.example.com": {"10.0.0.25"},
}

func writeWordlist(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "words.txt")
	content := "# common names\nwww\nmail\nftp\n\nWWW\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newEnumerateConfig(t *testing.T, showAll bool) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.DBDir = t.TempDir()
	cfg.Sites = &config.File{Sites: make(map[string]config.SiteConfig)}
	cfg.Subdomain.Domain = "example.com"
	cfg.Subdomain.WordlistPath = writeWordlist(t)
	cfg.Subdomain.ShowAll = showAll
	return cfg
}

func TestRunEnumerate(t *testing.T) {
	t.Parallel()

	cfg := newEnumerateConfig(t, false)
	var out bytes.Buffer
	err := runEnumerate(context.Background(), &out, cfg, report.FormatSimple,
		log.NewSecureLogger(io.Discard, false), resolver.WithHostResolver(testZone))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	for _, want := range []string{"SUBDOMAINS OF example.com", "www.example.com", "mail.example.com", "93.184.216.34"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output:\n%s", want, text)
		}
	}
	if strings.Contains(text, "ftp.example.com") {
		t.Errorf("unresolved names must be hidden without show-all:\n%s", text)
	}

	_, results, err := sink.ReadJSONFile(cfg.OutputPath(config.DefaultSubdomainsFile))
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 resolved results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Resolved {
			t.Errorf("unexpected unresolved result %s", r.FQDN)
		}
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	stored, err := db.ListSubdomains(context.Background(), "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Errorf("expected 2 stored results, got %d", len(stored))
	}
}

func TestRunEnumerateShowAllJSON(t *testing.T) {
	t.Parallel()

	cfg := newEnumerateConfig(t, true)
	cfg.SaveToDB = false
	var out bytes.Buffer
	err := runEnumerate(context.Background(), &out, cfg, report.FormatJSON,
		log.NewSecureLogger(io.Discard, false), resolver.WithHostResolver(testZone))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var summary struct {
		Candidates int `json:"candidates"`
		Resolved   int `json:"resolved"`
		Unresolved []struct {
			FQDN string `json:"fqdn"`
		} `json:"unresolved"`
	}
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("expected a single JSON document, got %v:\n%s", err, out.String())
	}
	if summary.Candidates != 3 || summary.Resolved != 2 {
		t.Errorf("unexpected counts %+v", summary)
	}
	if len(summary.Unresolved) != 1 || summary.Unresolved[0].FQDN != "ftp.example.com" {
		t.Errorf("unexpected unresolved list %+v", summary.Unresolved)
	}

	_, results, err := sink.ReadJSONFile(cfg.OutputPath(config.DefaultSubdomainsFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("show-all keeps every candidate, got %d", len(results))
	}
}

func TestRunEnumerateBaseUnresolved(t *testing.T) {
	t.Parallel()

	cfg := newEnumerateConfig(t, false)
	cfg.Subdomain.Domain = "missing.test"
	err := runEnumerate(context.Background(), io.Discard, cfg, report.FormatSimple,
		log.NewSecureLogger(io.Discard, false), resolver.WithHostResolver(testZone))
	if !errors.Is(err, resolver.ErrBaseUnresolved) {
		t.Fatalf("expected ErrBaseUnresolved, got %v", err)
	}
	if _, err := os.Stat(cfg.OutputPath(config.DefaultSubdomainsFile)); !os.IsNotExist(err) {
		t.Error("nothing may be written when the base domain does not resolve")
	}
}

func TestEnumerateCmdInvalidConfig(t *testing.T) {
	t.Parallel()

	wordlist := writeWordlist(t)
	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "no domain", args: []string{"-w", wordlist}, want: config.ErrNoDomain},
		{name: "no wordlist", args: []string{"example.com"}, want: config.ErrNoWordlist},
		{name: "zero concurrency", args: []string{"example.com", "-w", wordlist, "-c", "0"}, want: config.ErrInvalidConcurrency},
		{name: "negative qps", args: []string{"example.com", "-w", wordlist, "--qps", "-1"}, want: config.ErrInvalidQPS},
		{name: "unknown format", args: []string{"example.com", "-w", wordlist, "-f", "xml"}, want: report.ErrUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"enumerate-subdomains", "--db-dir", t.TempDir()}, tt.args...)
			_, err := executeRoot(t, args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
