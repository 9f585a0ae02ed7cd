// Package analysis summarizes stored crawl and enumeration results.
//
// Reports are plain values built from model records; the report package
// renders them. AnalyzeJSONLD counts schema types, authors, organizations,
// properties and dates. AnalyzeText covers word counts, headings, paragraph
// lengths and keywords. AnalyzeProperty follows a single JSON-LD property at
// any depth. SummarizeSubdomains groups resolved subdomains by address.
package analysis
