// Package fetcher retrieves files from the upstream distribution server.
//
// HTTPFetcher resolves paths relative to the upstream base URL, rejects
// responses that are not 200 or lack a content length, optionally throttles
// requests and reports transfer progress through the context logger.
package fetcher
