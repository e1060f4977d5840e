// Package config loads boot-time configuration: the handful of values
// needed before the settings Cache exists to read anything else (DSN,
// listen addresses, the symbol/interval this deployment serves, the
// exchange stream URL, the API key gating mutating HTTP endpoints).
// Everything else - thresholds, budgets, cooldowns - lives in the
// Postgres-backed settings store per spec section 6.3 and is read
// through settings.Cache, not this package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the full boot configuration, loaded from YAML with
// environment variable overrides applied on top.
type AppConfig struct {
	Symbol   string         `yaml:"symbol" env:"BOTTOMRUN_SYMBOL"`
	Interval string         `yaml:"interval" env:"BOTTOMRUN_INTERVAL"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Stream   StreamConfig   `yaml:"stream"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig holds Postgres connection configuration, grounded on
// the teacher's db.Config field set and env-override behavior.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" env:"PG_DSN"`
	Enabled         bool          `yaml:"enabled" env:"PG_ENABLED"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PG_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"PG_CONN_MAX_IDLE_TIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"PG_QUERY_TIMEOUT"`
}

// CacheConfig configures the optional Redis-backed hot-path cache;
// REDIS_ADDR unset means internal/cache falls back to its in-memory
// implementation.
type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
}

// StreamConfig configures the realtime exchange feed and its REST
// backfill source.
type StreamConfig struct {
	WSURL       string `yaml:"ws_url" env:"BOTTOMRUN_WS_URL"`
	RESTBaseURL string `yaml:"rest_base_url" env:"BOTTOMRUN_REST_BASE_URL"`
	RESTRPS     int    `yaml:"rest_rps" env:"BOTTOMRUN_REST_RPS"`
	RESTBurst   int    `yaml:"rest_burst" env:"BOTTOMRUN_REST_BURST"`
}

// HTTPConfig configures the HTTP surface in internal/httpapi.
type HTTPConfig struct {
	Addr   string `yaml:"addr" env:"BOTTOMRUN_HTTP_ADDR"`
	APIKey string `yaml:"api_key" env:"BOTTOMRUN_API_KEY"`
}

// MetricsConfig configures the Prometheus /metrics listener.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"BOTTOMRUN_METRICS_ADDR"`
}

// Default returns the fixed defaults this platform boots with when a
// value is absent from both the YAML file and the environment.
func Default() AppConfig {
	return AppConfig{
		Symbol:   "BTC-USD",
		Interval: "1m",
		Database: DatabaseConfig{
			Enabled:         false,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Stream: StreamConfig{
			RESTRPS:   5,
			RESTBurst: 10,
		},
		HTTP: HTTPConfig{
			Addr: ":8090",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads configPath if it exists, falling back to Default for any
// field the file leaves unset, then applies environment overrides.
func Load(configPath string) (AppConfig, error) {
	cfg := Default()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return AppConfig{}, fmt.Errorf("read config %s: %w", configPath, err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return AppConfig{}, fmt.Errorf("parse config %s: %w", configPath, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("BOTTOMRUN_SYMBOL"); v != "" {
		cfg.Symbol = v
	}
	if v := os.Getenv("BOTTOMRUN_INTERVAL"); v != "" {
		cfg.Interval = v
	}
	if v := os.Getenv("PG_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("PG_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Database.Enabled = b
		}
	}
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxOpenConns = n
		}
	}
	if v := os.Getenv("PG_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxIdleConns = n
		}
	}
	if v := os.Getenv("PG_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.ConnMaxLifetime = d
		}
	}
	if v := os.Getenv("PG_CONN_MAX_IDLE_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.ConnMaxIdleTime = d
		}
	}
	if v := os.Getenv("PG_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.QueryTimeout = d
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("BOTTOMRUN_WS_URL"); v != "" {
		cfg.Stream.WSURL = v
	}
	if v := os.Getenv("BOTTOMRUN_REST_BASE_URL"); v != "" {
		cfg.Stream.RESTBaseURL = v
	}
	if v := os.Getenv("BOTTOMRUN_REST_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.RESTRPS = n
		}
	}
	if v := os.Getenv("BOTTOMRUN_REST_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.RESTBurst = n
		}
	}
	if v := os.Getenv("BOTTOMRUN_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("BOTTOMRUN_API_KEY"); v != "" {
		cfg.HTTP.APIKey = v
	}
	if v := os.Getenv("BOTTOMRUN_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// Validate rejects a configuration that cannot boot safely.
func (c AppConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.Interval == "" {
		return fmt.Errorf("interval is required")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required when database is enabled")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database max_idle_conns cannot exceed max_open_conns")
	}
	if c.Database.Enabled && c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database query_timeout must be positive")
	}
	return nil
}
