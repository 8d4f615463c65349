package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/pfrederiksen/ducksgather/internal/logger"
)

// Fetcher retrieves listing pages over HTTP
type Fetcher struct {
	cfg Config
	log *logger.Logger
}

// NewFetcher creates a Fetcher. Zero config fields fall back to defaults.
func NewFetcher(cfg Config, log *logger.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Fetcher{cfg: cfg, log: log}
}

// Fetch returns the body of pageURL.
// HTTP error statuses are returned as *HTTPStatusError. Any other failure that
// survives the retry policy is returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	var (
		body     string
		attempts int
	)

	err := f.cfg.Retry.Do(ctx, func() error {
		attempts++
		b, err := f.get(ctx, pageURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, func(err error, wait time.Duration) {
		f.log.Warn("Fetch failed, retrying", logger.Fields{
			"url":     pageURL,
			"attempt": attempts,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	})
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			return "", statusErr
		}
		return "", &FetchError{URL: pageURL, Attempts: attempts, Err: err}
	}

	f.log.Debug("Fetched page", logger.Fields{"url": pageURL, "bytes": len(body), "attempts": attempts})
	return body, nil
}

// get performs a single GET with a fresh collector
func (f *Fetcher) get(ctx context.Context, pageURL string) (string, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.cfg.Timeout)
	if f.cfg.Transport != nil {
		c.WithTransport(f.cfg.Transport)
	}

	var resp *colly.Response
	c.OnResponse(func(r *colly.Response) {
		resp = r
	})

	if err := c.Visit(pageURL); err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("fetching page: no response from %s", pageURL)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &HTTPStatusError{URL: pageURL, Code: resp.StatusCode}
	}

	return string(resp.Body), nil
}
