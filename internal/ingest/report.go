package ingest

import (
	"errors"
	"fmt"
	"time"
)

// ErrAborted wraps the cause of every aborted run
var ErrAborted = errors.New("ingestion aborted")

// PersistenceError describes one record that could not be stored
type PersistenceError struct {
	Title string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %q: %v", e.Title, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Report summarizes one run
type Report struct {
	RunID      string     `json:"run_id"`
	BaseURL    string     `json:"base_url"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	State      State      `json:"state"`
	StopReason StopReason `json:"stop_reason"`
	Error      string     `json:"error,omitempty"`

	Pages       int `json:"pages"`
	Extracted   int `json:"extracted"`
	ParseErrors int `json:"parse_errors"`
	Validated   int `json:"validated"`
	Rejected    int `json:"rejected"`
	Expired     int `json:"expired"`
	Duplicates  int `json:"duplicates"`
	Persisted   int `json:"persisted"`
	Failed      int `json:"failed"`
}

// SuccessCount is the number of events stored
func (r *Report) SuccessCount() int {
	return r.Persisted
}

// FailureCount counts records dropped for a fault: failed validation or a
// failed insert. Expired listings and duplicates are not failures.
func (r *Report) FailureCount() int {
	return r.Rejected + r.Failed
}

// TotalProcessed is the number of event records extracted
func (r *Report) TotalProcessed() int {
	return r.Extracted
}

// Duration is the wall-clock length of the run
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
