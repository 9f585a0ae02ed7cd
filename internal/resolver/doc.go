// Package resolver enumerates subdomains by resolving wordlist candidates.
//
// Each wordlist entry is joined with the base domain and looked up once, with
// a bounded number of concurrent lookups and an optional global
// queries-per-second ceiling. Every candidate yields exactly one
// model.SubdomainResult, resolved or not; filtering unresolved results is the
// sink's job.
//
// # Usage
//
//	words, err := resolver.LoadWordlist("subdomains.txt")
//	r := resolver.New(resolver.WithConcurrency(20))
//	if err := r.CheckBase(ctx, "example.com"); err != nil {
//		return err
//	}
//	results, err := r.Resolve(ctx, "example.com", words, emit)
package resolver
