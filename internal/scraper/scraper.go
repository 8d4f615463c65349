package scraper

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://calendar.uoregon.edu"
	DefaultUserAgent = "ducksgather/1.0 (+https://github.com/pfrederiksen/ducksgather)"
	DefaultTimeout   = 10 * time.Second
)

// Config controls how pages are fetched
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Retry     RetryPolicy
	// Transport replaces the default HTTP transport when set
	Transport http.RoundTripper
}

// DefaultConfig returns the production fetch settings
func DefaultConfig() Config {
	return Config{
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
		Retry:     DefaultRetryPolicy(),
	}
}

// PageURL returns the listing URL for a 1-based page number.
// Page 1 is the base URL itself, later pages live under /calendar/{n}.
func PageURL(baseURL string, page int) string {
	base := strings.TrimRight(baseURL, "/")
	if page <= 1 {
		return base
	}
	return fmt.Sprintf("%s/calendar/%d", base, page)
}
