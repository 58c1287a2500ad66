// Package version exposes build metadata for rustup-mirror.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// UserAgent derives the HTTP User-Agent sent to the upstream distribution server.
package version
