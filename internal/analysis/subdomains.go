package analysis

import (
	"net/netip"
	"slices"

	"github.com/nao1215/harvest/internal/model"
)

// IPGroup lists the subdomains that resolved to one address.
type IPGroup struct {
	IP         netip.Addr `json:"ip"`
	Subdomains []string   `json:"subdomains"`
}

// SubdomainReport summarizes an enumeration run.
type SubdomainReport struct {
	Domain     string    `json:"domain"`
	Candidates int       `json:"candidates"`
	Resolved   int       `json:"resolved"`
	UniqueIPs  int       `json:"uniqueIPs"`
	Groups     []IPGroup `json:"groups"`
	// Unresolved lists the candidates that did not resolve, with their reason.
	Unresolved []model.SubdomainResult `json:"unresolved,omitempty"`
}

// SummarizeSubdomains groups resolved results by address. Groups are ordered
// by address and subdomains within a group by name.
func SummarizeSubdomains(domain string, results []model.SubdomainResult) *SubdomainReport {
	report := &SubdomainReport{Domain: domain, Candidates: len(results)}
	byIP := map[netip.Addr][]string{}

	for _, r := range results {
		if !r.Resolved {
			report.Unresolved = append(report.Unresolved, r)
			continue
		}
		report.Resolved++
		for _, ip := range r.ResolvedIPs {
			byIP[ip] = append(byIP[ip], r.FQDN)
		}
	}

	for ip, names := range byIP {
		slices.Sort(names)
		report.Groups = append(report.Groups, IPGroup{IP: ip, Subdomains: slices.Compact(names)})
	}
	slices.SortFunc(report.Groups, func(a, b IPGroup) int { return a.IP.Compare(b.IP) })
	slices.SortFunc(report.Unresolved, func(a, b model.SubdomainResult) int {
		switch {
		case a.FQDN < b.FQDN:
			return -1
		case a.FQDN > b.FQDN:
			return 1
		}
		return 0
	})
	report.UniqueIPs = len(report.Groups)
	return report
}
