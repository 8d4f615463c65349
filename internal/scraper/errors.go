package scraper

import (
	"fmt"
	"net/http"
)

// HTTPStatusError is returned when the server answers with a 4xx or 5xx status
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.URL)
}

// IsNotFound reports whether the status was 404
func (e *HTTPStatusError) IsNotFound() bool {
	return e.Code == http.StatusNotFound
}

// Transient reports whether the status is worth retrying
func (e *HTTPStatusError) Transient() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// FetchError wraps the last transport error once retries are exhausted
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError describes one structured-data block that could not be decoded
type ParseError struct {
	Block int
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("structured data block %d: %v", e.Block, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
