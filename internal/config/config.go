// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Data   DataConfig
	Server ServerConfig
	ISBNdb ISBNdbConfig
	Queue  QueueConfig
	Cache  CacheConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `env:"ENV" envDefault:"development"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// DataConfig holds on-disk locations. Empty paths are derived from BasePath.
type DataConfig struct {
	BasePath     string `env:"DATA_PATH"`
	DatabasePath string `env:"DATABASE_PATH"`
	CachePath    string `env:"SEARCH_CACHE_PATH"`
	IndexPath    string `env:"SEARCH_INDEX_PATH"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"90s"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitRPS   float64       `env:"API_RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int           `env:"API_RATE_LIMIT_BURST" envDefault:"20"`
}

// ISBNdbConfig holds external metadata provider configuration.
// An empty APIKey disables every upstream call.
type ISBNdbConfig struct {
	APIKey     string        `env:"ISBNDB_API_KEY"`
	BaseURL    string        `env:"ISBNDB_BASE_URL" envDefault:"https://api2.isbndb.com"`
	Timeout    time.Duration `env:"ISBNDB_TIMEOUT" envDefault:"10s"`
	WithPrices bool          `env:"ISBNDB_WITH_PRICES" envDefault:"false"`
}

// QueueConfig holds lookup queue tuning.
type QueueConfig struct {
	RateWindow   time.Duration `env:"LOOKUP_RATE_WINDOW" envDefault:"1s"`
	RetryDelay   time.Duration `env:"LOOKUP_RETRY_DELAY" envDefault:"5s"`
	MaxRetries   int           `env:"LOOKUP_MAX_RETRIES" envDefault:"3"`
	PollInterval time.Duration `env:"LOOKUP_POLL_INTERVAL" envDefault:"1s"`
	HistorySize  int           `env:"LOOKUP_HISTORY_SIZE" envDefault:"1000"`
}

// CacheConfig holds search response cache configuration.
type CacheConfig struct {
	SearchTTL time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"24h"`
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("openshelf", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	envName := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for database, cache and index")
	dbPath := fs.String("db-path", "", "Path to the SQLite database")
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	isbndbURL := fs.String("isbndb-url", "", "ISBNdb API base URL")
	rateWindow := fs.Duration("rate-window", 0, "Minimum spacing between ISBNdb calls (default: 1s)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Existing environment variables win over the .env file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %q: %w", *envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	override(&cfg.App.Environment, *envName)
	override(&cfg.Logger.Level, *logLevel)
	override(&cfg.Data.BasePath, *dataPath)
	override(&cfg.Data.DatabasePath, *dbPath)
	override(&cfg.Server.Port, *serverPort)
	override(&cfg.ISBNdb.BaseURL, *isbndbURL)
	if *rateWindow > 0 {
		cfg.Queue.RateWindow = *rateWindow
	}

	if err := cfg.expandDataPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.ISBNdb.BaseURL == "" {
		return errors.New("ISBNDB_BASE_URL cannot be empty")
	}
	if c.ISBNdb.Timeout <= 0 {
		return fmt.Errorf("invalid isbndb timeout: %s", c.ISBNdb.Timeout)
	}

	if c.Queue.RateWindow <= 0 {
		return fmt.Errorf("invalid lookup rate window: %s", c.Queue.RateWindow)
	}
	if c.Queue.RetryDelay <= 0 {
		return fmt.Errorf("invalid lookup retry delay: %s", c.Queue.RetryDelay)
	}
	if c.Queue.MaxRetries < 1 {
		return fmt.Errorf("invalid lookup max retries: %d (must be at least 1)", c.Queue.MaxRetries)
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("invalid lookup poll interval: %s", c.Queue.PollInterval)
	}
	if c.Queue.HistorySize < 1 {
		return fmt.Errorf("invalid lookup history size: %d (must be at least 1)", c.Queue.HistorySize)
	}

	if c.Cache.SearchTTL < 0 {
		return fmt.Errorf("invalid search cache ttl: %s", c.Cache.SearchTTL)
	}

	return nil
}

// HasISBNdbKey reports whether upstream lookups are enabled.
func (c *Config) HasISBNdbKey() bool {
	return strings.TrimSpace(c.ISBNdb.APIKey) != ""
}

func override(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPaths resolves the base path and derives the per-store paths from it.
func (c *Config) expandDataPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.Data.BasePath, filepath.Join(homeDir, ".openshelf"))
	if err != nil {
		return err
	}
	c.Data.BasePath = base

	paths := []struct {
		dst  *string
		def  string
		name string
	}{
		{&c.Data.DatabasePath, filepath.Join(base, "openshelf.db"), "database"},
		{&c.Data.CachePath, filepath.Join(base, "cache"), "cache"},
		{&c.Data.IndexPath, filepath.Join(base, "index"), "index"},
	}
	for _, p := range paths {
		expanded, err := expandPath(*p.dst, p.def)
		if err != nil {
			return fmt.Errorf("%s path: %w", p.name, err)
		}
		*p.dst = expanded
	}

	return nil
}
