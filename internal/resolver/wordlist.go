package resolver

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nao1215/harvest/internal/model"
	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
)

var (
	// ErrInvalidDomain is returned when a base domain cannot be normalized.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrEmptyWordlist is returned when a wordlist has no usable entries.
	ErrEmptyWordlist = errors.New("wordlist has no usable entries")

	// ErrBaseUnresolved is returned by CheckBase when the base domain does
	// not resolve.
	ErrBaseUnresolved = errors.New("base domain does not resolve")
)

// LoadWordlist reads one entry per line from path and normalizes the entries
// with NormalizeWords.
func LoadWordlist(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is provided by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open wordlist: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wordlist: %w", err)
	}

	words := NormalizeWords(lines)
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyWordlist, path)
	}
	return words, nil
}

// NormalizeWords trims entries, drops blanks and "#" comments, folds case,
// converts internationalized labels to ASCII and removes duplicates. The
// first occurrence of each entry keeps its position. Entries that are not
// valid DNS labels are dropped.
func NormalizeWords(words []string) []string {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))

	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		w = strings.Trim(fold.String(w), ".")
		if w == "" {
			continue
		}

		label, err := idna.Lookup.ToASCII(w)
		if err != nil || label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// NormalizeDomain turns user input such as "https://Example.com/" into a bare
// ASCII domain ("example.com").
func NormalizeDomain(raw string) (string, error) {
	d := strings.TrimSpace(raw)
	lower := strings.ToLower(d)
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, prefix) {
			d = d[len(prefix):]
			break
		}
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, ".")
	if d == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}

	ascii, err := idna.Lookup.ToASCII(cases.Fold().String(d))
	if err != nil || !strings.Contains(ascii, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	return ascii, nil
}

// Candidates joins every word with domain.
func Candidates(domain string, words []string) []model.SubdomainCandidate {
	out := make([]model.SubdomainCandidate, 0, len(words))
	for _, w := range words {
		out = append(out, model.SubdomainCandidate{
			Word: w,
			FQDN: w + "." + domain,
		})
	}
	return out
}
