package analysis

import (
	"cmp"
	"slices"
)

// Count is a named occurrence count.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// counter accumulates occurrences by name.
type counter map[string]int

func (c counter) add(name string) {
	if name != "" {
		c[name]++
	}
}

// top returns the n most frequent names, ties broken by name. n <= 0 returns
// every name.
func (c counter) top(n int) []Count {
	out := make([]Count, 0, len(c))
	for name, count := range c {
		out = append(out, Count{Name: name, Count: count})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (c counter) total() int {
	var sum int
	for _, n := range c {
		sum += n
	}
	return sum
}

// sortedKeys returns the keys of a set in ascending order.
func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// ratio returns a/b, or 0 when b is 0.
func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
