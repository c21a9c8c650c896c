// Package config loads casboard configuration from a YAML file and the
// environment, and converts it into the configs of the library packages.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/cas-client/pkg/cache"
	"github.com/Sternrassler/cas-client/pkg/client"
	"github.com/Sternrassler/cas-client/pkg/enrich"
	"github.com/Sternrassler/cas-client/pkg/logging"
	"github.com/Sternrassler/cas-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config is the complete casboard configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Pagination PaginationConfig `yaml:"pagination"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Redis      RedisConfig      `yaml:"redis"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// APIConfig configures the CAS REST API client.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PaginationConfig bounds collection drains.
type PaginationConfig struct {
	MaxPages    int           `yaml:"max_pages"`
	PageTimeout time.Duration `yaml:"page_timeout"`
}

// EnrichmentConfig configures the label backfill.
type EnrichmentConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
}

// RedisConfig configures the shared label cache. An empty Addr keeps labels
// in process memory.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// ServerConfig configures casboard serve. IdleTimeout drops the dashboard
// of a token that has not been used for that long.
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the default configuration.
func Default() Config {
	pages := pagination.DefaultConfig()
	enr := enrich.DefaultConfig()

	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000/api/",
			UserAgent: "cas-client/1.0",
			Timeout:   30 * time.Second,
		},
		Pagination: PaginationConfig{
			MaxPages:    pages.MaxPages,
			PageTimeout: pages.PageTimeout,
		},
		Enrichment: EnrichmentConfig{
			MaxConcurrency: enr.MaxConcurrency,
			Timeout:        enr.Timeout,
		},
		Redis: RedisConfig{
			TTL: cache.DefaultTTL,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			IdleTimeout: 30 * time.Minute,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvAPIURL        = "CAS_API_URL"
	EnvUserAgent     = "CAS_USER_AGENT"
	EnvRedisAddr     = "CAS_REDIS_ADDR"
	EnvRedisPassword = "CAS_REDIS_PASSWORD"
	EnvListenAddr    = "CAS_LISTEN_ADDR"
	EnvLogLevel      = "CAS_LOG_LEVEL"
)

// ApplyEnv overrides fields with the non-empty environment variables returned
// by getenv (os.Getenv when nil).
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.API.BaseURL, EnvAPIURL)
	set(&c.API.UserAgent, EnvUserAgent)
	set(&c.Redis.Addr, EnvRedisAddr)
	set(&c.Redis.Password, EnvRedisPassword)
	set(&c.Server.Addr, EnvListenAddr)
	set(&c.Log.Level, EnvLogLevel)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive (got %s)", c.API.Timeout)
	}
	if c.Pagination.MaxPages <= 0 {
		return fmt.Errorf("pagination.max_pages must be positive (got %d)", c.Pagination.MaxPages)
	}
	if c.Pagination.PageTimeout <= 0 {
		return fmt.Errorf("pagination.page_timeout must be positive (got %s)", c.Pagination.PageTimeout)
	}
	if c.Enrichment.MaxConcurrency <= 0 {
		return fmt.Errorf("enrichment.max_concurrency must be positive (got %d)", c.Enrichment.MaxConcurrency)
	}
	if c.Enrichment.Timeout <= 0 {
		return fmt.Errorf("enrichment.timeout must be positive (got %s)", c.Enrichment.Timeout)
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return fmt.Errorf("redis.ttl must be positive (got %s)", c.Redis.TTL)
	}
	if c.Server.IdleTimeout <= 0 {
		return fmt.Errorf("server.idle_timeout must be positive (got %s)", c.Server.IdleTimeout)
	}
	if err := logging.LogLevel(c.Log.Level).Validate(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// ClientConfig returns the API client configuration.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.API.BaseURL)
	if c.API.UserAgent != "" {
		cfg.UserAgent = c.API.UserAgent
	}
	if c.API.Timeout > 0 {
		cfg.Timeout = c.API.Timeout
	}
	return cfg
}

// PaginationConfig returns the drainer configuration.
func (c Config) PaginationConfig() pagination.Config {
	return pagination.Config{
		MaxPages:    c.Pagination.MaxPages,
		PageTimeout: c.Pagination.PageTimeout,
	}
}

// EnrichConfig returns the backfiller configuration.
func (c Config) EnrichConfig() enrich.Config {
	return enrich.Config{
		MaxConcurrency: c.Enrichment.MaxConcurrency,
		Timeout:        c.Enrichment.Timeout,
	}
}

// LoggingConfig returns the logger configuration.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// RedisOptions returns the go-redis options, or nil when no cache is configured.
func (c Config) RedisOptions() *redis.Options {
	if c.Redis.Addr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}
