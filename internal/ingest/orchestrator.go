package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/ducksgather/internal/dedupe"
	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/logger"
	"github.com/pfrederiksen/ducksgather/internal/scraper"
	"github.com/pfrederiksen/ducksgather/internal/validate"
)

// DefaultMaxPages caps pagination when the source never runs out
const DefaultMaxPages = 10

// Fetcher returns the body of a page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Normalizer validates one raw record
type Normalizer interface {
	Normalize(raw event.RawRecord) validate.Result
}

// Store is where surviving records are committed. Persist must resolve the
// draft's location and organization and insert the event as one unit, and
// return event.ErrDuplicateTitle when the title is already stored.
type Store interface {
	dedupe.TitleQuerier
	Persist(ctx context.Context, d *event.Draft) (int64, error)
}

// Locker excludes concurrent runs
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Extender is implemented by locks that expire unless refreshed. A Locker
// that also implements Extender is extended before every page after the
// first, and a failed extension aborts the run.
type Extender interface {
	Extend(ctx context.Context) error
}

// RunLog records run bookkeeping
type RunLog interface {
	StartRun(ctx context.Context, r *Report) error
	FinishRun(ctx context.Context, r *Report) error
}

// Metrics receives run counters
type Metrics interface {
	PageFetched(result string)
	RecordsSeen(outcome string, n int)
	RunFinished(state string, d time.Duration)
}

// Config controls a run
type Config struct {
	BaseURL  string
	MaxPages int
	// Category is stored on every ingested event
	Category string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithLocker makes each run hold l for its duration
func WithLocker(l Locker) Option {
	return func(o *Orchestrator) { o.lock = l }
}

// WithRunLog records each run through r
func WithRunLog(r RunLog) Option {
	return func(o *Orchestrator) { o.runs = r }
}

// WithMetrics reports counters to m
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs the crawl. It is not safe for concurrent use; use a
// Locker to keep separate processes apart.
type Orchestrator struct {
	cfg        Config
	fetcher    Fetcher
	normalizer Normalizer
	store      Store
	filter     *dedupe.Filter
	log        *logger.Logger
	lock       Locker
	runs       RunLog
	metrics    Metrics
	now        func() time.Time
}

// New creates an Orchestrator
func New(cfg Config, fetcher Fetcher, normalizer Normalizer, store Store, opts ...Option) *Orchestrator {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = scraper.DefaultBaseURL
	}
	if cfg.Category == "" {
		cfg.Category = event.ScrapedCategory
	}

	o := &Orchestrator{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: normalizer,
		store:      store,
		filter:     dedupe.New(store),
		log:        logger.NewNop(),
		metrics:    nopMetrics{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run crawls from page 1 until a stop condition. The returned report is
// always non-nil. The error is non-nil only for aborted runs and wraps
// ErrAborted together with the cause.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		BaseURL:   o.cfg.BaseURL,
		StartedAt: o.now().UTC(),
		State:     StateIdle,
	}
	log := o.log.With(logger.Fields{"run_id": report.RunID, "base_url": o.cfg.BaseURL})

	if o.lock != nil {
		if err := o.lock.Acquire(ctx); err != nil {
			return o.abort(ctx, log, report, StopLockUnavailable, fmt.Errorf("acquiring run lock: %w", err))
		}
		if k, ok := o.lock.(interface{ Key() string }); ok {
			log = log.With(logger.Fields{"lock_key": k.Key()})
		}
		defer func() {
			if err := o.lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Releasing run lock failed", logger.Fields{"error": err.Error()})
			}
		}()
	}

	if o.runs != nil {
		if err := o.runs.StartRun(ctx, report); err != nil {
			log.Warn("Recording run start failed", logger.Fields{"error": err.Error()})
		}
	}

	log.Info("Ingestion started", logger.Fields{"max_pages": o.cfg.MaxPages})

	for page := 1; ; page++ {
		if page > o.cfg.MaxPages {
			report.StopReason = StopPageLimit
			break
		}
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, log, report, StopCanceled, err)
		}
		if ext, ok := o.lock.(Extender); ok && page > 1 {
			if err := ext.Extend(ctx); err != nil {
				return o.abort(ctx, log, report, StopLockUnavailable, fmt.Errorf("extending run lock: %w", err))
			}
		}

		stop, err := o.processPage(ctx, log, report, page)
		if err != nil {
			if ctx.Err() != nil {
				stop = StopCanceled
			}
			return o.abort(ctx, log, report, stop, err)
		}
		if stop != "" {
			report.StopReason = stop
			break
		}
	}

	o.finish(ctx, log, report, StateDone)
	return report, nil
}

// processPage handles one page. A non-empty reason with a nil error ends the
// run normally; with an error it is the abort reason.
func (o *Orchestrator) processPage(ctx context.Context, log *logger.Logger, report *Report, page int) (StopReason, error) {
	pageURL := scraper.PageURL(o.cfg.BaseURL, page)
	log = log.With(logger.Fields{"page": page, "url": pageURL})

	o.transition(log, report, StateFetchingPage)
	html, err := o.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		var statusErr *scraper.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.IsNotFound() {
			o.metrics.PageFetched("not_found")
			log.Info("Page not found, ending crawl", nil)
			return StopNotFound, nil
		}
		o.metrics.PageFetched("error")
		return StopFetchFailed, fmt.Errorf("fetching page %d: %w", page, err)
	}
	o.metrics.PageFetched("ok")
	report.Pages++

	o.transition(log, report, StateExtracting)
	extraction, err := scraper.Extract(html, pageURL)
	if err != nil {
		return StopFetchFailed, fmt.Errorf("extracting page %d: %w", page, err)
	}
	for _, pe := range extraction.ParseErrors {
		log.Warn("Skipping malformed structured data block", logger.Fields{"block": pe.Block, "error": pe.Err.Error()})
	}
	report.ParseErrors += len(extraction.ParseErrors)
	report.Extracted += len(extraction.Records)

	if len(extraction.Records) == 0 {
		log.Info("Page has no events, ending crawl", logger.Fields{"blocks": extraction.Blocks})
		return StopEmptyPage, nil
	}

	o.transition(log, report, StateValidating)
	batch := o.validate(log, report, extraction.Records)

	o.transition(log, report, StatePersistingBatch)
	if err := o.persist(ctx, log, report, batch); err != nil {
		return StopStorageFailed, err
	}

	log.Info("Page processed", logger.Fields{
		"extracted": len(extraction.Records),
		"accepted":  len(batch),
	})
	return "", nil
}

func (o *Orchestrator) validate(log *logger.Logger, report *Report, records []event.RawRecord) []*event.Record {
	batch := make([]*event.Record, 0, len(records))
	for _, raw := range records {
		res := o.normalizer.Normalize(raw)
		switch res.Outcome {
		case validate.Accepted:
			report.Validated++
			batch = append(batch, res.Record)
		case validate.Expired:
			report.Expired++
			log.Debug("Skipping past event", logger.Fields{"title": res.Record.Title})
		default:
			report.Rejected++
			fields := logger.Fields{"title": raw.Title}
			if res.Failure != nil {
				fields["field"] = res.Failure.Field
				fields["reason"] = res.Failure.Reason
			}
			log.Warn("Dropping invalid event", fields)
		}
	}
	return batch
}

func (o *Orchestrator) persist(ctx context.Context, log *logger.Logger, report *Report, batch []*event.Record) error {
	if len(batch) == 0 {
		return nil
	}

	fresh, dupes, err := o.filter.Partition(ctx, batch)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	report.Duplicates += len(dupes)
	for _, rec := range dupes {
		log.Debug("Skipping duplicate event", logger.Fields{"title": rec.Title})
	}

	for _, rec := range fresh {
		if err := ctx.Err(); err != nil {
			return err
		}

		id, err := o.store.Persist(ctx, event.NewScrapedDraft(rec, o.cfg.Category))
		switch {
		case err == nil:
			report.Persisted++
			log.Debug("Event stored", logger.Fields{"title": rec.Title, "event_id": id})
		case errors.Is(err, event.ErrDuplicateTitle):
			report.Duplicates++
			log.Debug("Event stored concurrently, skipping", logger.Fields{"title": rec.Title})
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			report.Failed++
			perr := &PersistenceError{Title: rec.Title, Err: err}
			log.Warn("Persisting event failed", logger.Fields{"title": rec.Title, "error": perr.Error()})
		}
	}
	return nil
}

func (o *Orchestrator) transition(log *logger.Logger, report *Report, next State) {
	log.Debug("State transition", logger.Fields{"from": report.State.String(), "to": next.String()})
	report.State = next
}

func (o *Orchestrator) abort(ctx context.Context, log *logger.Logger, report *Report, reason StopReason, cause error) (*Report, error) {
	report.StopReason = reason
	report.Error = cause.Error()
	o.finish(ctx, log, report, StateAborted)
	return report, fmt.Errorf("%w: %w", ErrAborted, cause)
}

func (o *Orchestrator) finish(ctx context.Context, log *logger.Logger, report *Report, final State) {
	o.transition(log, report, final)
	report.FinishedAt = o.now().UTC()

	o.metrics.RecordsSeen("extracted", report.Extracted)
	o.metrics.RecordsSeen("parse_error", report.ParseErrors)
	o.metrics.RecordsSeen("validated", report.Validated)
	o.metrics.RecordsSeen("rejected", report.Rejected)
	o.metrics.RecordsSeen("expired", report.Expired)
	o.metrics.RecordsSeen("duplicate", report.Duplicates)
	o.metrics.RecordsSeen("persisted", report.Persisted)
	o.metrics.RecordsSeen("failed", report.Failed)
	o.metrics.RunFinished(final.String(), report.Duration())

	if o.runs != nil {
		if err := o.runs.FinishRun(context.WithoutCancel(ctx), report); err != nil {
			log.Warn("Recording run result failed", logger.Fields{"error": err.Error()})
		}
	}

	fields := logger.Fields{
		"state":       final.String(),
		"stop_reason": string(report.StopReason),
		"pages":       report.Pages,
		"extracted":   report.Extracted,
		"validated":   report.Validated,
		"persisted":   report.Persisted,
		"failures":    report.FailureCount(),
		"duplicates":  report.Duplicates,
		"duration":    report.Duration().String(),
	}
	if final == StateAborted {
		log.Error("Ingestion aborted", fields, errors.New(report.Error))
		return
	}
	log.Info("Ingestion finished", fields)
}

type nopMetrics struct{}

func (nopMetrics) PageFetched(string)                {}
func (nopMetrics) RecordsSeen(string, int)           {}
func (nopMetrics) RunFinished(string, time.Duration) {}
