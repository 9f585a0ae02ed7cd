package model

import (
	"net/netip"
	"slices"
	"strings"
)

// RecordKind identifies the concrete type of a Record.
type RecordKind string

const (
	// RecordKindPage identifies a PageRecord.
	RecordKindPage RecordKind = "page"
	// RecordKindSubdomain identifies a SubdomainResult.
	RecordKindSubdomain RecordKind = "subdomain"
)

// Record is a unit of output accepted by the result sink.
// It is implemented by PageRecord and SubdomainResult only.
type Record interface {
	RecordKind() RecordKind
	isRecord()
}

// SubdomainCandidate is a wordlist entry combined with the base domain.
type SubdomainCandidate struct {
	// Word is the normalized wordlist entry, e.g. "www".
	Word string
	// FQDN is Word + "." + base domain, e.g. "www.example.com".
	FQDN string
}

// SubdomainResult is the outcome of resolving one candidate.
// Exactly one result is produced per candidate, resolved or not.
type SubdomainResult struct {
	FQDN string `json:"fqdn"`
	// ResolvedIPs is de-duplicated and sorted. Empty when Resolved is false.
	ResolvedIPs []netip.Addr `json:"resolvedIPs"`
	Resolved    bool         `json:"resolved"`
	// Error holds the lookup failure reason for unresolved results.
	Error string `json:"error,omitempty"`
}

// RecordKind implements Record.
func (SubdomainResult) RecordKind() RecordKind { return RecordKindSubdomain }

func (SubdomainResult) isRecord() {}

// NewSubdomainResult builds a resolved result from the addresses returned by a
// lookup. Duplicates are removed and IPv4-mapped IPv6 addresses are unmapped.
func NewSubdomainResult(fqdn string, addrs []netip.Addr) SubdomainResult {
	ips := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.Unmap())
	}
	slices.SortFunc(ips, func(a, b netip.Addr) int { return a.Compare(b) })
	ips = slices.Compact(ips)
	return SubdomainResult{
		FQDN:        strings.ToLower(fqdn),
		ResolvedIPs: ips,
		Resolved:    len(ips) > 0,
	}
}

// IPStrings returns the resolved addresses in their textual form.
func (r SubdomainResult) IPStrings() []string {
	out := make([]string, 0, len(r.ResolvedIPs))
	for _, ip := range r.ResolvedIPs {
		out = append(out, ip.String())
	}
	return out
}
