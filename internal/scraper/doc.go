// Package scraper fetches calendar listing pages and pulls schema.org Event
// objects out of their embedded JSON-LD blocks.
//
// Fetching goes through a colly collector wrapped in an explicit RetryPolicy:
// transport failures are retried with exponential backoff, HTTP error statuses
// surface as HTTPStatusError so callers can treat 404 as the end of the
// listing. Extraction is pure and tolerant: a malformed block is reported as a
// ParseError and the remaining blocks are still read.
package scraper
