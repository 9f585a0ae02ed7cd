// Package database provides SQLite-based storage for harvest.
//
// This package implements the HarvestDB, which stores:
//   - Runs: one row per scrape or enumeration
//   - Page records of every crawl, queryable by host
//   - Subdomain lookup results
//
// Analysis commands read the stored pages back with ListPages.
//
// SQLite is provided by modernc.org/sqlite, which is CGO-free, so the binary
// cross-compiles without a C toolchain. The database lives in the XDG data
// directory unless --db-dir is given.
package database
