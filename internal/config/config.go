// Package config loads service configuration from an optional TOML file and
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Holytrade/blockscout-rs/internal/solidity/compiler"
)

// Fetcher strategy names.
const (
	FetcherList = "list"
	FetcherS3   = "s3"
)

// Config holds all configuration for the server.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Logging   LoggingConfig   `toml:"logging"`
	Solidity  SolidityConfig  `toml:"solidity"`
	Sourcify  SourcifyConfig  `toml:"sourcify"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  int    `toml:"read_timeout"`  // seconds
	WriteTimeout int    `toml:"write_timeout"` // seconds
	IdleTimeout  int    `toml:"idle_timeout"`  // seconds
}

// MetricsConfig holds the separate metrics listener configuration.
type MetricsConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Endpoint string `toml:"endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// SolidityConfig holds the solidity verification settings.
type SolidityConfig struct {
	Enabled         bool          `toml:"enabled"`
	CompilersDir    string        `toml:"compilers_dir"`
	RefreshSchedule string        `toml:"refresh_versions_schedule"`
	FetchRetries    int           `toml:"fetch_retries"`
	Fetcher         FetcherConfig `toml:"fetcher"`
	// MiddlewareFailClosed makes a post-success middleware failure fail the
	// verification. Fail-open by default.
	MiddlewareFailClosed bool `toml:"middleware_fail_closed"`
}

// FetcherConfig selects exactly one fetch strategy.
type FetcherConfig struct {
	Type string            `toml:"type"` // "list" or "s3"
	List ListFetcherConfig `toml:"list"`
	S3   S3FetcherConfig   `toml:"s3"`
}

// ListFetcherConfig configures the remote manifest strategy.
type ListFetcherConfig struct {
	URL string `toml:"url"`
}

// S3FetcherConfig configures the object-storage bucket strategy.
type S3FetcherConfig struct {
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
}

// SourcifyConfig holds the Sourcify proxy settings.
type SourcifyConfig struct {
	Enabled              bool   `toml:"enabled"`
	APIURL               string `toml:"api_url"`
	VerificationAttempts int    `toml:"verification_attempts"`
	RequestTimeout       int    `toml:"request_timeout"` // seconds
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled        bool `toml:"enabled"`
	RequestsPerMin int  `toml:"requests_per_min"`
	BurstSize      int  `toml:"burst_size"`
	CleanupMinutes int  `toml:"cleanup_minutes"`
}

// Load reads configuration: defaults, then the TOML file named by
// VERIFIER_CONFIG (if set), then environment variable overrides. The result
// is validated before use.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("VERIFIER_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8043,
			ReadTimeout:  30,
			WriteTimeout: 120,
			IdleTimeout:  120,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Host:     "0.0.0.0",
			Port:     6060,
			Endpoint: "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Solidity: SolidityConfig{
			Enabled:         true,
			CompilersDir:    defaultCompilersDir(),
			RefreshSchedule: compiler.DefaultRefreshSchedule,
			Fetcher: FetcherConfig{
				Type: FetcherList,
				List: ListFetcherConfig{URL: compiler.DefaultListURL},
			},
		},
		Sourcify: SourcifyConfig{
			Enabled:              true,
			APIURL:               "https://sourcify.dev/server/",
			VerificationAttempts: 3,
			RequestTimeout:       10,
		},
		RateLimit: RateLimitConfig{
			Enabled:        false,
			RequestsPerMin: 300,
			BurstSize:      50,
			CleanupMinutes: 10,
		},
	}
}

func defaultCompilersDir() string {
	return os.TempDir() + "/compilers"
}

// applyEnv overrides the loaded configuration from environment variables.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Host = getEnv("METRICS_HOST", cfg.Metrics.Host)
	cfg.Metrics.Port = getEnvInt("METRICS_PORT", cfg.Metrics.Port)
	cfg.Metrics.Endpoint = getEnv("METRICS_ENDPOINT", cfg.Metrics.Endpoint)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Solidity.Enabled = getEnvBool("SOLIDITY_ENABLED", cfg.Solidity.Enabled)
	cfg.Solidity.CompilersDir = getEnv("SOLIDITY_COMPILERS_DIR", cfg.Solidity.CompilersDir)
	cfg.Solidity.RefreshSchedule = getEnv("SOLIDITY_REFRESH_SCHEDULE", cfg.Solidity.RefreshSchedule)
	cfg.Solidity.FetchRetries = getEnvInt("SOLIDITY_FETCH_RETRIES", cfg.Solidity.FetchRetries)
	cfg.Solidity.Fetcher.Type = getEnv("SOLIDITY_FETCHER_TYPE", cfg.Solidity.Fetcher.Type)
	cfg.Solidity.Fetcher.List.URL = getEnv("SOLIDITY_FETCHER_LIST_URL", cfg.Solidity.Fetcher.List.URL)
	cfg.Solidity.Fetcher.S3.AccessKey = getEnv("SOLIDITY_FETCHER_S3_ACCESS_KEY", cfg.Solidity.Fetcher.S3.AccessKey)
	cfg.Solidity.Fetcher.S3.SecretKey = getEnv("SOLIDITY_FETCHER_S3_SECRET_KEY", cfg.Solidity.Fetcher.S3.SecretKey)
	cfg.Solidity.Fetcher.S3.Region = getEnv("SOLIDITY_FETCHER_S3_REGION", cfg.Solidity.Fetcher.S3.Region)
	cfg.Solidity.Fetcher.S3.Endpoint = getEnv("SOLIDITY_FETCHER_S3_ENDPOINT", cfg.Solidity.Fetcher.S3.Endpoint)
	cfg.Solidity.Fetcher.S3.Bucket = getEnv("SOLIDITY_FETCHER_S3_BUCKET", cfg.Solidity.Fetcher.S3.Bucket)

	cfg.Sourcify.Enabled = getEnvBool("SOURCIFY_ENABLED", cfg.Sourcify.Enabled)
	cfg.Sourcify.APIURL = getEnv("SOURCIFY_API_URL", cfg.Sourcify.APIURL)
	cfg.Sourcify.VerificationAttempts = getEnvInt("SOURCIFY_ATTEMPTS", cfg.Sourcify.VerificationAttempts)
	cfg.Sourcify.RequestTimeout = getEnvInt("SOURCIFY_REQUEST_TIMEOUT", cfg.Sourcify.RequestTimeout)

	cfg.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMin = getEnvInt("RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMin)
	cfg.RateLimit.BurstSize = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimit.BurstSize)
}

// Validate enforces configuration rules at startup, before first use.
func (c *Config) Validate() error {
	if c.Solidity.Enabled {
		switch c.Solidity.Fetcher.Type {
		case FetcherList:
			if c.Solidity.Fetcher.List.URL == "" {
				return fmt.Errorf("list fetcher requires a url")
			}
		case FetcherS3:
			if err := c.Solidity.Fetcher.S3.Settings().Validate(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown fetcher type %q (want %q or %q)",
				c.Solidity.Fetcher.Type, FetcherList, FetcherS3)
		}
		if _, err := compiler.ParseSchedule(c.Solidity.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", c.Solidity.RefreshSchedule, err)
		}
	}
	if c.Sourcify.Enabled && c.Sourcify.VerificationAttempts < 1 {
		return fmt.Errorf("sourcify verification_attempts must be at least 1")
	}
	return nil
}

// Settings converts the S3 section into the compiler package's settings type.
func (s S3FetcherConfig) Settings() compiler.S3Settings {
	return compiler.S3Settings{
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Region:    s.Region,
		Endpoint:  s.Endpoint,
		Bucket:    s.Bucket,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
