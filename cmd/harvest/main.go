// Package main provides the entry point for the harvest CLI.
//
// harvest crawls a website politely and collects its JSON-LD structured data
// and readable text, enumerates subdomains from a wordlist, and analyzes what
// it collected.
//
// Usage:
//
//	harvest scrape-jsonld <url>
//	harvest enumerate-subdomains <domain> --wordlist words.txt
//	harvest analyze [url]
//
// See --help for all available options.
package main

// main is the entry point for harvest.
func main() {
	Execute()
}
