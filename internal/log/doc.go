// Package log builds the slog loggers used across linkscan.
//
// Records are rendered by github.com/charmbracelet/log and pass through a
// SecureHandler first, which masks credentials before they reach the
// output: cookies and authorization headers from the site config, tokens,
// and values that look like secrets (JWTs, bearer/basic credentials, PEM
// keys).
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("request sent", "url", u, "cookie", cookie) // cookie is masked
package log
