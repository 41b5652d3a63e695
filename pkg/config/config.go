// Package config loads and validates service configuration from the
// environment. Required settings are the GLPI base URL and the two tokens;
// everything else has defaults tuned for a single mid-sized GLPI instance.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full service configuration.
type Config struct {
	GLPIURL   string `validate:"required,url"`
	AppToken  string `validate:"required"`
	UserToken string `validate:"required"`

	HTTPPort string

	// Outbound timeout classes, selected by endpoint path (see glpi.Client).
	FastTimeout    time.Duration `validate:"gt=0"`
	DefaultTimeout time.Duration `validate:"gt=0"`
	SlowTimeout    time.Duration `validate:"gt=0"`

	// Retry policy for outbound calls and session authentication.
	MaxRetries  int           `validate:"min=1"`
	BackoffUnit time.Duration `validate:"gt=0"`

	SessionTTL  time.Duration `validate:"gt=0"`
	RenewBuffer time.Duration `validate:"gte=0"`

	TTL CacheTTLs

	// Pagination limits for aggregate searches.
	PageSize   int `validate:"min=1,max=1000"`
	MaxRecords int `validate:"min=1"`

	// Ranking fan-out widths and per-worker timeout.
	NameWorkers   int           `validate:"min=1"`
	MetricWorkers int           `validate:"min=1"`
	WorkerTimeout time.Duration `validate:"gt=0"`
	CandidateCap  int           `validate:"min=1"`
	BatchSize     int           `validate:"min=1,max=25"`

	// Date-field split: general totals filter on date of creation, per-level
	// metrics on date of last modification. Overridable, never guessed.
	DateFieldGeneral string `validate:"required"`
	DateFieldLevels  string `validate:"required"`

	// Support-level group ids in GLPI, and the optional technician-name
	// fallback table loaded from YAML.
	Levels LevelConfig
}

// CacheTTLs groups every tunable cache TTL.
type CacheTTLs struct {
	Dashboard         time.Duration `validate:"gt=0"`
	Ranking           time.Duration `validate:"gt=0"`
	TechnicianMetrics time.Duration `validate:"gt=0"`
	FieldIDs          time.Duration `validate:"gt=0"`
	Names             time.Duration `validate:"gt=0"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		GLPIURL:   os.Getenv("GLPI_URL"),
		AppToken:  os.Getenv("GLPI_APP_TOKEN"),
		UserToken: os.Getenv("GLPI_USER_TOKEN"),
		HTTPPort:  getEnv("HTTP_PORT", "8080"),

		FastTimeout:    durationEnv("GLPI_FAST_TIMEOUT", 5*time.Second),
		DefaultTimeout: durationEnv("GLPI_DEFAULT_TIMEOUT", 12*time.Second),
		SlowTimeout:    durationEnv("GLPI_SLOW_TIMEOUT", 20*time.Second),

		MaxRetries:  intEnv("GLPI_MAX_RETRIES", 3),
		BackoffUnit: durationEnv("GLPI_BACKOFF_UNIT", time.Second),

		SessionTTL:  durationEnv("GLPI_SESSION_TTL", time.Hour),
		RenewBuffer: durationEnv("GLPI_SESSION_RENEW_BUFFER", 5*time.Minute),

		TTL: CacheTTLs{
			Dashboard:         durationEnv("CACHE_TTL_DASHBOARD", 180*time.Second),
			Ranking:           durationEnv("CACHE_TTL_RANKING", 300*time.Second),
			TechnicianMetrics: durationEnv("CACHE_TTL_TECH_METRICS", time.Hour),
			FieldIDs:          durationEnv("CACHE_TTL_FIELD_IDS", 30*time.Minute),
			Names:             durationEnv("CACHE_TTL_NAMES", time.Hour),
		},

		PageSize:   intEnv("GLPI_PAGE_SIZE", 1000),
		MaxRecords: intEnv("GLPI_MAX_RECORDS", 100000),

		NameWorkers:   intEnv("RANKING_NAME_WORKERS", 5),
		MetricWorkers: intEnv("RANKING_METRIC_WORKERS", 3),
		WorkerTimeout: durationEnv("RANKING_WORKER_TIMEOUT", 15*time.Second),
		CandidateCap:  intEnv("RANKING_CANDIDATE_CAP", 100),
		BatchSize:     intEnv("RANKING_BATCH_SIZE", 25),

		DateFieldGeneral: getEnv("GLPI_DATE_FIELD_GENERAL", "15"),
		DateFieldLevels:  getEnv("GLPI_DATE_FIELD_LEVELS", "19"),
	}

	levels, err := loadLevelConfig()
	if err != nil {
		return nil, fmt.Errorf("load level config: %w", err)
	}
	cfg.Levels = levels

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// durationEnv accepts Go duration syntax ("30s", "5m") or a bare number of
// seconds, matching the original deployment's env files.
func durationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
