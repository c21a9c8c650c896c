package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/cas-client/pkg/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Pagination.MaxPages != 1000 {
		t.Errorf("MaxPages = %d, want 1000", cfg.Pagination.MaxPages)
	}
	if cfg.Enrichment.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.Enrichment.MaxConcurrency)
	}
	if cfg.RedisOptions() != nil {
		t.Error("RedisOptions() should be nil without an address")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "casboard.yaml")
	data := `
api:
  base_url: https://cas.example.org/api/
  timeout: 5s
pagination:
  max_pages: 50
enrichment:
  max_concurrency: 8
redis:
  addr: localhost:6379
  ttl: 10m
log:
  level: debug
  pretty: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://cas.example.org/api/" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s, want 5s", cfg.API.Timeout)
	}
	if cfg.API.UserAgent != "cas-client/1.0" {
		t.Errorf("UserAgent = %q, want default", cfg.API.UserAgent)
	}
	if cfg.Pagination.MaxPages != 50 || cfg.Pagination.PageTimeout != 15*time.Second {
		t.Errorf("Pagination = %+v", cfg.Pagination)
	}
	if cfg.Enrichment.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.Enrichment.MaxConcurrency)
	}
	if cfg.Redis.TTL != 10*time.Minute {
		t.Errorf("TTL = %s, want 10m", cfg.Redis.TTL)
	}
	if opts := cfg.RedisOptions(); opts == nil || opts.Addr != "localhost:6379" {
		t.Errorf("RedisOptions() = %+v", opts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != Default().API.BaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.API.BaseURL)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("api: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAPIURL:     "https://other.example.org/api/",
		EnvRedisAddr:  "redis:6379",
		EnvListenAddr: " :9090 ",
		EnvLogLevel:   "warn",
	}
	cfg := Default()
	cfg.API.UserAgent = "custom/2.0"
	cfg.ApplyEnv(func(key string) string { return env[key] })

	if cfg.API.BaseURL != "https://other.example.org/api/" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.UserAgent != "custom/2.0" {
		t.Errorf("UserAgent = %q, unset variables must not override", cfg.API.UserAgent)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Server.Addr != ":9090" || cfg.Log.Level != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty base url", mutate: func(c *Config) { c.API.BaseURL = " " }, wantErr: "base_url"},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: "api.timeout"},
		{name: "zero pages", mutate: func(c *Config) { c.Pagination.MaxPages = 0 }, wantErr: "max_pages"},
		{name: "negative concurrency", mutate: func(c *Config) { c.Enrichment.MaxConcurrency = -1 }, wantErr: "max_concurrency"},
		{name: "redis without ttl", mutate: func(c *Config) { c.Redis.Addr = "x:1"; c.Redis.TTL = 0 }, wantErr: "redis.ttl"},
		{name: "zero idle timeout", mutate: func(c *Config) { c.Server.IdleTimeout = 0 }, wantErr: "server.idle_timeout"},
		{name: "unknown level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "https://cas.example.org/api/"
	cfg.API.UserAgent = "casboard/test"
	cfg.Log.Level = "debug"
	cfg.Log.Pretty = true

	cc := cfg.ClientConfig()
	if cc.BaseURL != cfg.API.BaseURL || cc.UserAgent != "casboard/test" || cc.MaxIdleConns == 0 {
		t.Errorf("ClientConfig() = %+v", cc)
	}

	if pc := cfg.PaginationConfig(); pc.MaxPages != cfg.Pagination.MaxPages {
		t.Errorf("PaginationConfig() = %+v", pc)
	}
	if ec := cfg.EnrichConfig(); ec.MaxConcurrency != cfg.Enrichment.MaxConcurrency {
		t.Errorf("EnrichConfig() = %+v", ec)
	}

	lc := cfg.LoggingConfig()
	if lc.Level != logging.LevelDebug || !lc.Pretty || lc.Output == nil {
		t.Errorf("LoggingConfig() = %+v", lc)
	}
}
