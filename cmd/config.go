package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	toml "github.com/pelletier/go-toml/v2"
)

// envPrefix prefixes every environment override, e.g. MFM_STORAGE_BACKEND.
const envPrefix = "MFM_"

// eodhdAPIKeyEnv is read when no key is configured.
const eodhdAPIKeyEnv = "EODHD_API_KEY"

// Storage backends.
const (
	BackendFile     = "file"
	BackendSurreal  = "surreal"
	BackendPostgres = "postgres"
)

// Config holds all the configuration of mfm.
type Config struct {
	Storage   StorageConfig   `toml:"storage" envPrefix:"STORAGE_"`
	Clients   ClientsConfig   `toml:"clients" envPrefix:"CLIENTS_"`
	Valuation ValuationConfig `toml:"valuation" envPrefix:"VALUATION_"`
	Server    ServerConfig    `toml:"server" envPrefix:"SERVER_"`
	Logging   LoggingConfig   `toml:"logging" envPrefix:"LOG_"`
}

// StorageConfig selects and configures the repository.
type StorageConfig struct {
	Backend  string         `toml:"backend" env:"BACKEND"` // file, surreal or postgres
	Path     string         `toml:"path" env:"PATH"`       // folder of the file backend
	Surreal  SurrealConfig  `toml:"surreal" envPrefix:"SURREAL_"`
	Postgres PostgresConfig `toml:"postgres" envPrefix:"POSTGRES_"`
}

// SurrealConfig locates a SurrealDB database.
type SurrealConfig struct {
	Address   string `toml:"address" env:"ADDRESS"`
	Namespace string `toml:"namespace" env:"NAMESPACE"`
	Database  string `toml:"database" env:"DATABASE"`
	Username  string `toml:"username" env:"USERNAME"`
	Password  string `toml:"password" env:"PASSWORD"`
}

// PostgresConfig locates a PostgreSQL database.
type PostgresConfig struct {
	URL string `toml:"url" env:"URL"`
}

// ClientsConfig holds the market data clients configuration.
type ClientsConfig struct {
	EODHD     EODHDConfig     `toml:"eodhd" envPrefix:"EODHD_"`
	BizPortal BizPortalConfig `toml:"bizportal" envPrefix:"BIZPORTAL_"`
	Maya      MayaConfig      `toml:"maya" envPrefix:"MAYA_"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url" env:"BASE_URL"`
	APIKey    string `toml:"api_key" env:"API_KEY"`
	RateLimit int    `toml:"rate_limit" env:"RATE_LIMIT"`
	Timeout   string `toml:"timeout" env:"TIMEOUT"`
}

// BizPortalConfig holds the BizPortal quote API configuration.
type BizPortalConfig struct {
	BaseURL   string `toml:"base_url" env:"BASE_URL"`
	RateLimit int    `toml:"rate_limit" env:"RATE_LIMIT"`
	Timeout   string `toml:"timeout" env:"TIMEOUT"`
}

// MayaConfig holds the TASE fund pages configuration.
type MayaConfig struct {
	BaseURL string `toml:"base_url" env:"BASE_URL"`
	Timeout string `toml:"timeout" env:"TIMEOUT"`
	// Disabled removes maya from the fund price sources.
	Disabled bool `toml:"disabled" env:"DISABLED"`
}

// ValuationConfig tunes the revaluation of the lots.
type ValuationConfig struct {
	Workers      int    `toml:"workers" env:"WORKERS"`
	CallTimeout  string `toml:"call_timeout" env:"CALL_TIMEOUT"`
	RateCacheTTL string `toml:"rate_cache_ttl" env:"RATE_CACHE_TTL"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host" env:"HOST"`
	Port int    `toml:"port" env:"PORT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level" env:"LEVEL"` // debug, info, warn or error
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    ".mfm",
			Surreal: SurrealConfig{
				Address:   "ws://localhost:8000/rpc",
				Namespace: "mfm",
				Database:  "portfolio",
				Username:  "root",
				Password:  "root",
			},
			Postgres: PostgresConfig{URL: "postgres://localhost:5432/mfm?sslmode=disable"},
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			BizPortal: BizPortalConfig{
				BaseURL:   "http://externalapi.bizportal.co.il",
				RateLimit: 2,
				Timeout:   "15s",
			},
			Maya: MayaConfig{
				BaseURL: "https://maya.tase.co.il",
				Timeout: "20s",
			},
		},
		Valuation: ValuationConfig{
			Workers:      8,
			CallTimeout:  "10s",
			RateCacheTTL: "5m",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Logging: LoggingConfig{Level: "warn"},
	}
}

// LoadConfig loads configuration from files with environment overrides.
//
// Later files override earlier ones, missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if config.Clients.EODHD.APIKey == "" {
		config.Clients.EODHD.APIKey = os.Getenv(eodhdAPIKeyEnv)
	}

	switch config.Storage.Backend {
	case BackendFile, BackendSurreal, BackendPostgres:
	default:
		return nil, fmt.Errorf("unknown storage backend %q, want %q, %q or %q", config.Storage.Backend, BackendFile, BackendSurreal, BackendPostgres)
	}
	return config, nil
}

// duration parses s, or returns def if s is empty or invalid.
func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
