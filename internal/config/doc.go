// Package config provides configuration structures and utilities for harvest.
// It defines the crawl and subdomain enumeration options, their defaults,
// validation, the optional YAML configuration file and the XDG directories
// used for output.
package config
