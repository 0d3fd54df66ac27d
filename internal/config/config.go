// Package config handles YAML configuration loading with environment
// variable substitution. Configuration files support ${VAR} syntax; every
// knob has a default so the service also runs with no file at all.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration for the portfolio engine service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Prices      PricesConfig      `yaml:"prices"`
	Competition CompetitionConfig `yaml:"competition"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig holds the PostgreSQL connection. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// RedisConfig holds the quote-cache connection. An empty URL disables the
// cache and quotes are fetched upstream every time.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	QuoteTTL time.Duration `yaml:"quote_ttl"`
}

// PricesConfig holds the market-data client settings.
type PricesConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// CompetitionConfig holds the competition rules.
type CompetitionConfig struct {
	InitialCapital decimal.Decimal `yaml:"initial_capital"`
	SessionTTL     time.Duration   `yaml:"session_ttl"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 2
	}
	if c.Redis.QuoteTTL == 0 {
		c.Redis.QuoteTTL = 5 * time.Minute
	}
	if c.Prices.Timeout == 0 {
		c.Prices.Timeout = 10 * time.Second
	}
	if c.Prices.Concurrency == 0 {
		c.Prices.Concurrency = 4
	}
	if c.Competition.InitialCapital.IsZero() {
		c.Competition.InitialCapital = decimal.NewFromInt(500)
	}
	if c.Competition.SessionTTL == 0 {
		c.Competition.SessionTTL = 24 * time.Hour
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Competition.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("competition.initial_capital must be positive, got %s", c.Competition.InitialCapital)
	}
	if c.Redis.QuoteTTL < 0 {
		return fmt.Errorf("redis.quote_ttl must not be negative")
	}
	if c.Prices.Concurrency < 1 {
		return fmt.Errorf("prices.concurrency must be at least 1, got %d", c.Prices.Concurrency)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}
