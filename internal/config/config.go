// Package config loads service configuration from the environment with
// an optional YAML overlay. Env wins for secrets, YAML for structured
// per-deployment tuning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the full service configuration.
type Config struct {
	DatabaseURL string `validate:"required"`
	HTTPAddr    string `validate:"required"`

	// CycleInterval is how often the dispatch cycle runs.
	CycleInterval time.Duration `validate:"gt=0"`
	// Workers is the ingestion pool size.
	Workers int `validate:"gte=1"`
	// JobTimeout bounds one fetch job.
	JobTimeout time.Duration `validate:"gt=0"`
	// MaxGapSpanDays caps a single history job's range.
	MaxGapSpanDays int `validate:"gte=1"`

	OpenMeteoBaseURL string
	HTTPTimeout      time.Duration `validate:"gt=0"`

	// RecomputeIndicators toggles the post-ingestion indicator pass.
	RecomputeIndicators bool
}

// yamlOverlay mirrors Config with string durations, the way the config
// file spells them.
type yamlOverlay struct {
	DatabaseURL         string `yaml:"database_url"`
	HTTPAddr            string `yaml:"http_addr"`
	CycleInterval       string `yaml:"cycle_interval"`
	Workers             int    `yaml:"workers"`
	JobTimeout          string `yaml:"job_timeout"`
	MaxGapSpanDays      int    `yaml:"max_gap_span_days"`
	OpenMeteoBaseURL    string `yaml:"open_meteo_base_url"`
	HTTPTimeout         string `yaml:"http_timeout"`
	RecomputeIndicators *bool  `yaml:"recompute_indicators"`
}

// Load reads configuration. Order: .env file (if present), environment
// defaults, then the YAML file named by AGROMET_CONFIG overriding both.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		CycleInterval:       getenvDuration("CYCLE_INTERVAL", 15*time.Minute),
		Workers:             getenvIntDefault("INGEST_WORKERS", 4),
		JobTimeout:          getenvDuration("JOB_TIMEOUT", 2*time.Minute),
		MaxGapSpanDays:      getenvIntDefault("MAX_GAP_SPAN_DAYS", 30),
		OpenMeteoBaseURL:    getenvDefault("OPEN_METEO_BASE_URL", ""),
		HTTPTimeout:         getenvDuration("HTTP_CLIENT_TIMEOUT", 30*time.Second),
		RecomputeIndicators: getenvBoolDefault("RECOMPUTE_INDICATORS", true),
	}

	if path := os.Getenv("AGROMET_CONFIG"); path != "" {
		if err := applyOverlay(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if overlay.DatabaseURL != "" {
		cfg.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.HTTPAddr != "" {
		cfg.HTTPAddr = overlay.HTTPAddr
	}
	if overlay.Workers > 0 {
		cfg.Workers = overlay.Workers
	}
	if overlay.MaxGapSpanDays > 0 {
		cfg.MaxGapSpanDays = overlay.MaxGapSpanDays
	}
	if overlay.OpenMeteoBaseURL != "" {
		cfg.OpenMeteoBaseURL = overlay.OpenMeteoBaseURL
	}
	if overlay.RecomputeIndicators != nil {
		cfg.RecomputeIndicators = *overlay.RecomputeIndicators
	}
	for _, d := range []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{overlay.CycleInterval, &cfg.CycleInterval, "cycle_interval"},
		{overlay.JobTimeout, &cfg.JobTimeout, "job_timeout"},
		{overlay.HTTPTimeout, &cfg.HTTPTimeout, "http_timeout"},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
