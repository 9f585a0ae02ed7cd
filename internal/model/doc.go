// Package model defines the records produced by harvest.
//
// This package contains the following main types:
//   - PageRecord: one fetched (or failed) page with its extracted content
//   - ExtractedContent: the sealed sum of JSON-LD, text and bundled payloads
//   - SubdomainResult: the outcome of resolving one subdomain candidate
//   - Record: the common interface accepted by the result sink
//
// Models live in their own package so that the crawler, resolver, sink,
// database and report packages can share them without import cycles.
// Every record is serializable to JSON with stable field names.
package model
