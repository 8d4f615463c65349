// Package config loads ducksgather settings from defaults, an optional YAML
// file, a .env file and the environment, in increasing precedence.
//
// Environment variables use the DUCKS_ prefix with dots replaced by
// underscores (scraper.max_pages is DUCKS_SCRAPER_MAX_PAGES). DATABASE_URL
// and SUPABASE_JWT_SECRET are also honored for compatibility with existing
// deployments.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/pfrederiksen/ducksgather/internal/database"
	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/ingest"
	"github.com/pfrederiksen/ducksgather/internal/lock"
	"github.com/pfrederiksen/ducksgather/internal/logger"
	"github.com/pfrederiksen/ducksgather/internal/scraper"
	"github.com/pfrederiksen/ducksgather/internal/storage"
	"github.com/pfrederiksen/ducksgather/internal/validate"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "DUCKS"

// Storage backends
const (
	StorePostgres = "postgres"
	StoreSnapshot = "snapshot"
)

// Lock backends
const (
	LockNone     = "none"
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

// Config is the full application configuration
type Config struct {
	Scraper  ScraperConfig   `mapstructure:"scraper"`
	Retry    RetryConfig     `mapstructure:"retry"`
	Ingest   IngestConfig    `mapstructure:"ingest"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Database database.Config `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Log      logger.Config   `mapstructure:"log"`
	Schedule ScheduleConfig  `mapstructure:"schedule"`
	Server   ServerConfig    `mapstructure:"server"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
}

// ScraperConfig controls page fetching
type ScraperConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	MaxPages       int           `mapstructure:"max_pages"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RetryConfig controls fetch retries
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// IngestConfig controls validation and the stored category
type IngestConfig struct {
	Category        string `mapstructure:"category"`
	MaxTitle        int    `mapstructure:"max_title"`
	MaxDescription  int    `mapstructure:"max_description"`
	ReferenceOffset string `mapstructure:"reference_offset"`
	// Lock selects the run lock backend: none, redis or postgres
	Lock string `mapstructure:"lock"`
}

// StorageConfig selects where events are kept
type StorageConfig struct {
	Driver  string `mapstructure:"driver"`
	DataDir string `mapstructure:"data_dir"`
}

// RedisConfig configures the run lock
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockKey  string        `mapstructure:"lock_key"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// ScheduleConfig configures recurring ingestion
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// MetricsConfig configures the metrics listener of the scheduler
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// Load reads configuration. path may name a config file; when empty,
// config.yaml is searched in . and ./config and may be absent.
func Load(path string) (*Config, error) {
	// A missing .env file is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := bindCompatEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.base_url", scraper.DefaultBaseURL)
	v.SetDefault("scraper.max_pages", ingest.DefaultMaxPages)
	v.SetDefault("scraper.user_agent", scraper.DefaultUserAgent)
	v.SetDefault("scraper.request_timeout", scraper.DefaultTimeout)

	v.SetDefault("retry.max_attempts", scraper.DefaultMaxAttempts)
	v.SetDefault("retry.initial_delay", scraper.DefaultInitialDelay)
	v.SetDefault("retry.max_delay", scraper.DefaultMaxDelay)
	v.SetDefault("retry.multiplier", scraper.DefaultMultiplier)

	v.SetDefault("ingest.category", event.ScrapedCategory)
	v.SetDefault("ingest.max_title", validate.DefaultMaxTitle)
	v.SetDefault("ingest.max_description", validate.DefaultMaxDescription)
	v.SetDefault("ingest.reference_offset", "-08:00")
	v.SetDefault("ingest.lock", LockNone)

	v.SetDefault("storage.driver", StorePostgres)
	v.SetDefault("storage.data_dir", storage.DefaultDataDir)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "ducksgather")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_key", lock.DefaultKey)
	v.SetDefault("redis.lock_ttl", lock.DefaultTTL)

	v.SetDefault("log.level", string(logger.LevelInfo))
	v.SetDefault("log.encoding", "json")

	v.SetDefault("schedule.cron", "0 */6 * * *")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("metrics.address", ":9090")
}

// bindCompatEnv maps the unprefixed variables existing deployments set
func bindCompatEnv(v *viper.Viper) error {
	if err := v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return fmt.Errorf("failed to bind DATABASE_URL: %w", err)
	}
	if err := v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "SUPABASE_JWT_SECRET"); err != nil {
		return fmt.Errorf("failed to bind SUPABASE_JWT_SECRET: %w", err)
	}
	return nil
}

// Validate checks the values a run depends on
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Scraper.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("scraper.base_url must be an http(s) URL, got %q", c.Scraper.BaseURL))
	}
	if c.Scraper.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("scraper.max_pages must be at least 1"))
	}
	if c.Scraper.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scraper.request_timeout must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1"))
	}
	if c.Retry.InitialDelay <= 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		errs = append(errs, fmt.Errorf("retry delays must satisfy 0 < initial_delay <= max_delay"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry.multiplier must be at least 1"))
	}
	if c.Ingest.Category == "" {
		errs = append(errs, fmt.Errorf("ingest.category must not be empty"))
	}
	if c.Ingest.MaxTitle < 1 || c.Ingest.MaxDescription < 1 {
		errs = append(errs, fmt.Errorf("ingest length limits must be positive"))
	}
	if _, err := event.FixedOffset(c.Ingest.ReferenceOffset); err != nil {
		errs = append(errs, fmt.Errorf("ingest.reference_offset: %w", err))
	}
	switch c.Ingest.Lock {
	case LockNone, LockRedis, LockPostgres:
	default:
		errs = append(errs, fmt.Errorf("ingest.lock must be one of none, redis, postgres"))
	}
	switch c.Storage.Driver {
	case StorePostgres, StoreSnapshot:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be postgres or snapshot"))
	}
	if c.Ingest.Lock == LockPostgres && c.Storage.Driver != StorePostgres {
		errs = append(errs, fmt.Errorf("ingest.lock postgres requires storage.driver postgres"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
	}

	return errors.Join(errs...)
}

// FetchConfig returns the fetcher settings
func (c *Config) FetchConfig() scraper.Config {
	return scraper.Config{
		UserAgent: c.Scraper.UserAgent,
		Timeout:   c.Scraper.RequestTimeout,
		Retry: scraper.RetryPolicy{
			MaxAttempts:  c.Retry.MaxAttempts,
			InitialDelay: c.Retry.InitialDelay,
			MaxDelay:     c.Retry.MaxDelay,
			Multiplier:   c.Retry.Multiplier,
		},
	}
}

// NormalizerConfig returns the validation settings
func (c *Config) NormalizerConfig() (validate.Config, error) {
	ref, err := event.FixedOffset(c.Ingest.ReferenceOffset)
	if err != nil {
		return validate.Config{}, err
	}
	return validate.Config{
		MaxTitle:       c.Ingest.MaxTitle,
		MaxDescription: c.Ingest.MaxDescription,
		Reference:      ref,
		Now:            time.Now,
	}, nil
}

// RunConfig returns the orchestrator settings
func (c *Config) RunConfig() ingest.Config {
	return ingest.Config{
		BaseURL:  c.Scraper.BaseURL,
		MaxPages: c.Scraper.MaxPages,
		Category: c.Ingest.Category,
	}
}
