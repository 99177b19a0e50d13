// Package config loads the proxy configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Config holds the proxy configuration.
type Config struct {
	UpstreamURL     string        `env:"RESERVATIONS_API_URL,required"`
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8000"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	BulkTimeout     time.Duration `env:"BULK_TIMEOUT" envDefault:"5s"`
	BulkConcurrency int           `env:"BULK_CONCURRENCY" envDefault:"10"`
	UserAgent       string        `env:"USER_AGENT"`
	RedisURL        string        `env:"REDIS_URL"` // empty disables caching
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty       bool          `env:"LOG_PRETTY" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the given .env files (".env" when none are named) into the
// process environment without overriding variables that are already set,
// then parses and validates the configuration. Missing .env files are
// ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("RESERVATIONS_API_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("RESERVATIONS_API_URL must be http or https (got %q)", c.UpstreamURL)
	}
	if u.Host == "" {
		return fmt.Errorf("RESERVATIONS_API_URL has no host (got %q)", c.UpstreamURL)
	}

	switch {
	case c.BulkConcurrency <= 0:
		return fmt.Errorf("BULK_CONCURRENCY must be positive (got %d)", c.BulkConcurrency)
	case c.UpstreamTimeout <= 0:
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive (got %s)", c.UpstreamTimeout)
	case c.BulkTimeout <= 0:
		return fmt.Errorf("BULK_TIMEOUT must be positive (got %s)", c.BulkTimeout)
	case c.CacheTTL <= 0:
		return fmt.Errorf("CACHE_TTL must be positive (got %s)", c.CacheTTL)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive (got %s)", c.ShutdownTimeout)
	}

	if c.CacheEnabled() {
		if _, err := c.RedisOptions(); err != nil {
			return err
		}
	}
	return nil
}

// CacheEnabled reports whether a Redis URL was configured.
func (c *Config) CacheEnabled() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}

// RedisOptions accepts either a redis:// (or rediss://) URL or a bare
// host:port address.
func (c *Config) RedisOptions() (*redis.Options, error) {
	raw := strings.TrimSpace(c.RedisURL)
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		return opts, nil
	}
	if raw == "" {
		return nil, errors.New("REDIS_URL is empty")
	}
	return &redis.Options{Addr: raw}, nil
}
