// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Storage. DatabaseURL selects PostgreSQL; SQLitePath selects the
	// embedded store; with neither set the server runs in-memory.
	DatabaseURL string `koanf:"database_url"`
	SQLitePath  string `koanf:"sqlite_path"`

	// Redis (readiness checks and shared rate limit state)
	RedisURL string `koanf:"redis_url"`

	// Language-analysis service (intent resolution and summaries)
	NLPBaseURL        string `koanf:"nlp_base_url"`
	NLPAPIKey         string `koanf:"nlp_api_key"`
	NLPTimeoutSeconds int    `koanf:"nlp_timeout_seconds"`

	// Interaction firehose (WebSocket)
	FirehoseURL string `koanf:"firehose_url"`

	// Trending cache
	TrendingTTLSeconds   int    `koanf:"trending_ttl_seconds"`
	SweepIntervalSeconds int    `koanf:"sweep_interval_seconds"`
	CalibrationPath      string `koanf:"calibration_path"`

	// Summary backfill job
	EnrichIntervalSeconds int `koanf:"enrich_interval_seconds"`

	// Sample data loaded at startup when the store is empty
	SampleDataPath string `koanf:"sample_data_path"`

	// Comma-separated list of allowed CORS origins; empty disables CORS
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// Token guarding the /metrics endpoint; empty leaves it open
	MetricsToken string `koanf:"metrics_token"`

	// Rate limiting
	RateLimitEnabled bool `koanf:"rate_limit_enabled"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrPortOutOfRange      = errors.New("PORT must be between 1 and 65535")
	ErrInvalidTrendingTTL  = errors.New("TRENDING_TTL_SECONDS must be positive")
	ErrInvalidSweep        = errors.New("SWEEP_INTERVAL_SECONDS must be positive")
	ErrInvalidNLPTimeout   = errors.New("NLP_TIMEOUT_SECONDS must be positive")
	ErrInvalidEnrich       = errors.New("ENRICH_INTERVAL_SECONDS must be positive")
	ErrMissingNLPBaseURL   = errors.New("NLP_BASE_URL is required when NLP_API_KEY is set")
	ErrInvalidSamplingRate = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort                  = 8080
	DefaultEnv                   = "development"
	DefaultNLPTimeoutSeconds     = 2
	DefaultTrendingTTLSeconds    = 300
	DefaultSweepIntervalSeconds  = 60
	DefaultEnrichIntervalSeconds = 60
	DefaultTracingSamplingRate   = 0.1
	DefaultRateLimitEnabled      = true
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try NEWSLOOM_PORT first, then PORT for container conventions
	port, portErr := getEnvIntOrDefaultMulti([]string{"NEWSLOOM_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	nlpTimeout, err := getEnvIntOrDefault("NLP_TIMEOUT_SECONDS", k.Int("nlp_timeout_seconds"), DefaultNLPTimeoutSeconds)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	trendingTTL, err := getEnvIntOrDefault("TRENDING_TTL_SECONDS", k.Int("trending_ttl_seconds"), DefaultTrendingTTLSeconds)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	sweepInterval, err := getEnvIntOrDefault("SWEEP_INTERVAL_SECONDS", k.Int("sweep_interval_seconds"), DefaultSweepIntervalSeconds)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	enrichInterval, err := getEnvIntOrDefault("ENRICH_INTERVAL_SECONDS", k.Int("enrich_interval_seconds"), DefaultEnrichIntervalSeconds)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	samplingRate, err := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                  port,
		Env:                   getEnvOrDefaultMulti([]string{"NEWSLOOM_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:           getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		SQLitePath:            getEnvOrKoanf("SQLITE_PATH", k, "sqlite_path"),
		RedisURL:              getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		NLPBaseURL:            getEnvOrKoanf("NLP_BASE_URL", k, "nlp_base_url"),
		NLPAPIKey:             getEnvOrKoanf("NLP_API_KEY", k, "nlp_api_key"),
		NLPTimeoutSeconds:     nlpTimeout,
		FirehoseURL:           getEnvOrKoanf("FIREHOSE_URL", k, "firehose_url"),
		TrendingTTLSeconds:    trendingTTL,
		SweepIntervalSeconds:  sweepInterval,
		CalibrationPath:       getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		EnrichIntervalSeconds: enrichInterval,
		SampleDataPath:        getEnvOrKoanf("SAMPLE_DATA_PATH", k, "sample_data_path"),
		CORSAllowedOrigins:    getEnvOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		MetricsToken:          getEnvOrKoanf("METRICS_TOKEN", k, "metrics_token"),
		RateLimitEnabled:      getEnvBool("RATE_LIMIT_ENABLED", k, "rate_limit_enabled", DefaultRateLimitEnabled),
		TracingEnabled:        getEnvBool("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:       getEnvOrKoanf("TRACING_EXPORTER", k, "tracing_exporter"),
		TracingEndpoint:       getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSamplingRate:   samplingRate,
		TracingInsecure:       getEnvBool("TRACING_INSECURE", k, "tracing_insecure", false),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// NLPTimeout returns the language-analysis request timeout as a duration.
func (c *Config) NLPTimeout() time.Duration {
	return time.Duration(c.NLPTimeoutSeconds) * time.Second
}

// TrendingTTL returns the trending cache TTL as a duration.
func (c *Config) TrendingTTL() time.Duration {
	return time.Duration(c.TrendingTTLSeconds) * time.Second
}

// SweepInterval returns the cache sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// EnrichInterval returns the summary backfill interval as a duration.
func (c *Config) EnrichInterval() time.Duration {
	return time.Duration(c.EnrichIntervalSeconds) * time.Second
}

// CORSOrigins returns the allowed CORS origins as a slice.
func (c *Config) CORSOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer", envKey)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBool returns the environment variable as bool if set, otherwise the
// koanf value if present, or the default. Env vars take precedence over file
// config.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	out := defaultVal
	if k.Exists(koanfKey) {
		out = k.Bool(koanfKey)
	}
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			out = true
		case "false", "0", "no", "off":
			out = false
		}
	}
	return out
}

// Validate checks that all configuration values are sane.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrPortOutOfRange)
	}
	if c.TrendingTTLSeconds <= 0 {
		errs = append(errs, ErrInvalidTrendingTTL)
	}
	if c.SweepIntervalSeconds <= 0 {
		errs = append(errs, ErrInvalidSweep)
	}
	if c.NLPTimeoutSeconds <= 0 {
		errs = append(errs, ErrInvalidNLPTimeout)
	}
	if c.EnrichIntervalSeconds <= 0 {
		errs = append(errs, ErrInvalidEnrich)
	}
	if c.NLPAPIKey != "" && c.NLPBaseURL == "" {
		errs = append(errs, ErrMissingNLPBaseURL)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                    fmt.Sprintf("%d", c.Port),
		"env":                     c.Env,
		"database_url":            maskDatabaseURL(c.DatabaseURL),
		"sqlite_path":             orNotSet(c.SQLitePath),
		"redis_url":               maskDatabaseURL(c.RedisURL),
		"nlp_base_url":            orNotSet(c.NLPBaseURL),
		"nlp_api_key":             maskSecret(c.NLPAPIKey),
		"nlp_timeout_seconds":     fmt.Sprintf("%d", c.NLPTimeoutSeconds),
		"firehose_url":            orNotSet(c.FirehoseURL),
		"trending_ttl_seconds":    fmt.Sprintf("%d", c.TrendingTTLSeconds),
		"sweep_interval_seconds":  fmt.Sprintf("%d", c.SweepIntervalSeconds),
		"calibration_path":        orNotSet(c.CalibrationPath),
		"enrich_interval_seconds": fmt.Sprintf("%d", c.EnrichIntervalSeconds),
		"sample_data_path":        orNotSet(c.SampleDataPath),
		"cors_allowed_origins":    orNotSet(c.CORSAllowedOrigins),
		"metrics_token":           maskSecret(c.MetricsToken),
		"rate_limit_enabled":      fmt.Sprintf("%t", c.RateLimitEnabled),
		"tracing_enabled":         fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":        orNotSet(c.TracingExporter),
		"tracing_endpoint":        orNotSet(c.TracingEndpoint),
		"tracing_sampling_rate":   fmt.Sprintf("%g", c.TracingSamplingRate),
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Supports postgres://, postgresql://, and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
