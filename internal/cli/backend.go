package cli

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/pfrederiksen/ducksgather/internal/api"
	"github.com/pfrederiksen/ducksgather/internal/config"
	"github.com/pfrederiksen/ducksgather/internal/database"
	"github.com/pfrederiksen/ducksgather/internal/ingest"
	"github.com/pfrederiksen/ducksgather/internal/lock"
	"github.com/pfrederiksen/ducksgather/internal/scraper"
	"github.com/pfrederiksen/ducksgather/internal/seed"
	"github.com/pfrederiksen/ducksgather/internal/storage"
	"github.com/pfrederiksen/ducksgather/internal/validate"
)

// backend is an opened event store. db is nil for the snapshot driver.
type backend struct {
	driver    string
	db        *sqlx.DB
	events    ingest.Store
	reader    api.EventReader
	locations seed.LocationUpserter
	runs      *database.RunRepository
}

func (a *app) openBackend(driver, dataDir string) (*backend, error) {
	if driver == "" {
		driver = a.cfg.Storage.Driver
	}
	if dataDir == "" {
		dataDir = a.cfg.Storage.DataDir
	}

	switch driver {
	case config.StoreSnapshot:
		s, err := storage.New(dataDir)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot store: %w", err)
		}
		return &backend{driver: driver, events: s, reader: s, locations: s}, nil
	case config.StorePostgres:
		db, err := a.openDB()
		if err != nil {
			return nil, err
		}
		events := database.NewEventRepository(db)
		return &backend{
			driver:    driver,
			db:        db,
			events:    events,
			reader:    events,
			locations: database.NewLocationRepository(db),
			runs:      database.NewRunRepository(db),
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q (want postgres or snapshot)", driver)
}

func (a *app) openDB() (*sqlx.DB, error) {
	db, err := database.NewPostgresConnection(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.log.Debug("Connected to database", nil)
	return db, nil
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// pipeline holds what an orchestrator needs besides its store
type pipeline struct {
	cfg     ingest.Config
	fetcher *scraper.Fetcher
	norm    *validate.Normalizer
	opts    []ingest.Option
	closers []func() error
}

func (p *pipeline) orchestrator(store ingest.Store, extra ...ingest.Option) *ingest.Orchestrator {
	opts := append(append([]ingest.Option{}, p.opts...), extra...)
	return ingest.New(p.cfg, p.fetcher, p.norm, store, opts...)
}

func (p *pipeline) Close() {
	for _, c := range p.closers {
		_ = c()
	}
}

// newPipeline builds the fetcher, normalizer and run options. b may be nil
// for runs that do not persist; such runs take no lock and keep no run log.
func (a *app) newPipeline(baseURL string, maxPages int, b *backend) (*pipeline, error) {
	normCfg, err := a.cfg.NormalizerConfig()
	if err != nil {
		return nil, err
	}

	runCfg := a.cfg.RunConfig()
	if baseURL != "" {
		runCfg.BaseURL = baseURL
	}
	if maxPages > 0 {
		runCfg.MaxPages = maxPages
	}

	p := &pipeline{
		cfg:     runCfg,
		fetcher: scraper.NewFetcher(a.cfg.FetchConfig(), a.log.Named("fetcher")),
		norm:    validate.New(normCfg),
		opts:    []ingest.Option{ingest.WithLogger(a.log.Named("ingest"))},
	}
	if b == nil {
		return p, nil
	}

	if b.runs != nil {
		p.opts = append(p.opts, ingest.WithRunLog(b.runs))
	}

	switch a.cfg.Ingest.Lock {
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		p.closers = append(p.closers, client.Close)
		p.opts = append(p.opts, ingest.WithLocker(lock.NewRedisLock(client, a.cfg.Redis.LockKey, a.cfg.Redis.LockTTL)))
	case config.LockPostgres:
		if b.db == nil {
			return nil, fmt.Errorf("postgres lock needs the postgres store")
		}
		p.opts = append(p.opts, ingest.WithLocker(database.NewAdvisoryLock(b.db, a.cfg.Redis.LockKey)))
	}
	return p, nil
}
