// Package sink serializes crawl and enumeration records into stores.
//
// The Adapter is the only writer: producers call Append concurrently, the
// Adapter filters unresolved subdomain results (unless show-all is set),
// buffers records and hands full batches to a Store. A store failure is
// sticky; every later call returns the same *SinkError so the producer can
// stop.
//
// Stores:
//   - JSONFileStore: a JSON array file that stays valid after every write
//   - database.HarvestDB: SQLite, used by the analysis commands
//   - MultiStore: writes each batch to several stores
package sink
