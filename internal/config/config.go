// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingDatabaseURL is returned by RequireDatabase when no connection
// string was configured.
var ErrMissingDatabaseURL = errors.New("connection string missing")

// Config holds application configuration
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	Port        string `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"true"`

	// Market data
	QuoteBaseURL   string        `env:"QUOTE_BASE_URL" envDefault:"https://query1.finance.yahoo.com"`
	QuoteTimeout   time.Duration `env:"QUOTE_TIMEOUT" envDefault:"10s"`
	QuoteRateLimit int           `env:"QUOTE_RATE_LIMIT" envDefault:"2"`

	// Cache
	FreshnessWindow time.Duration `env:"FRESHNESS_WINDOW" envDefault:"6h"`
	MaxBackoffSteps int           `env:"MAX_BACKOFF_STEPS" envDefault:"4"`

	// Import
	PrimeOnImport  bool  `env:"PRIME_ON_IMPORT" envDefault:"true"`
	UploadMaxBytes int64 `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
}

// Load reads a .env file when present and parses the environment.
func Load() (*Config, error) {
	// Load .env file if it exists (local dev)
	_ = godotenv.Load()

	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges. A missing DATABASE_URL is not an error here:
// the server still starts and answers store-backed routes with a 500.
func (c *Config) Validate() error {
	if c.FreshnessWindow <= 0 {
		return fmt.Errorf("FRESHNESS_WINDOW must be positive, got %s", c.FreshnessWindow)
	}
	if c.QuoteTimeout <= 0 {
		return fmt.Errorf("QUOTE_TIMEOUT must be positive, got %s", c.QuoteTimeout)
	}
	if c.QuoteRateLimit <= 0 {
		return fmt.Errorf("QUOTE_RATE_LIMIT must be positive, got %d", c.QuoteRateLimit)
	}
	if c.MaxBackoffSteps < 0 {
		return fmt.Errorf("MAX_BACKOFF_STEPS must not be negative, got %d", c.MaxBackoffSteps)
	}
	return nil
}

// RequireDatabase reports ErrMissingDatabaseURL when no connection string is set.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}
