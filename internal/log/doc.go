// Package log provides slog loggers that mask secrets before they are written.
//
// Crawls log request and response headers at debug level, and the proxy
// option may carry credentials. The SecureHandler masks:
//   - attributes whose key names a secret (cookie, authorization, token, ...)
//   - entries of header maps (map[string]string, http.Header) with such names
//   - values that look like bearer tokens, JWTs or private keys
//   - passwords embedded in URLs
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
