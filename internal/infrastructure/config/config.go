// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	weights := cfg.Matching.Weights
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Matching      MatchingConfig      `yaml:"matching"`
	Reasoning     ReasoningConfig     `yaml:"reasoning"`
	Storage       StorageConfig       `yaml:"storage"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// MatchingConfig holds the tolerances and weights driving candidate scoring
// and cross-ledger arbitration.
type MatchingConfig struct {
	AmountTolerance float64 `yaml:"amount_tolerance"` // fraction, default 0.01 (1%)
	DateTolerance   int     `yaml:"date_tolerance"`   // days, default 3
	FuzzyThreshold  float64 `yaml:"fuzzy_threshold"`  // vendor similarity floor, default 0.45
	MinScore        float64 `yaml:"min_score"`        // candidates below this are dropped
	MaxConcurrency  int     `yaml:"max_concurrency"`  // concurrent expense scoring cap
	Weights         Weights `yaml:"weights"`
}

// Weights holds the per-criterion weights for the weighted score. The
// defaults carry the documented 40/30/20/10 business split; the scoring
// path never hardcodes them.
type Weights struct {
	Amount   float64 `yaml:"amount"`
	Date     float64 `yaml:"date"`
	Vendor   float64 `yaml:"vendor"`
	Currency float64 `yaml:"currency"`
}

// Validate checks that the weights form a sensible distribution.
func (w Weights) Validate() error {
	if w.Amount < 0 || w.Date < 0 || w.Vendor < 0 || w.Currency < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", w)
	}
	sum := w.Amount + w.Date + w.Vendor + w.Currency
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// ReasoningConfig holds the external reasoning service configuration.
// Absence of the service (Enabled=false or empty BaseURL) is valid; the
// matcher then scores deterministically.
type ReasoningConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultMatching returns the documented default matching configuration.
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		AmountTolerance: 0.01,
		DateTolerance:   3,
		FuzzyThreshold:  0.45,
		MinScore:        0.3,
		MaxConcurrency:  4,
		Weights: Weights{
			Amount:   0.4,
			Date:     0.3,
			Vendor:   0.2,
			Currency: 0.1,
		},
	}
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${REASONING_API_KEY})
	expanded := os.ExpandEnv(string(data))

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Matching.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching weights: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := defaults()
	cfg.Storage.DatabasePath = getEnv("RECONCILE_DB_PATH", "reconcile.db")
	cfg.Reasoning.Enabled = getEnvBool("REASONING_ENABLED", false)
	cfg.Reasoning.BaseURL = os.Getenv("REASONING_BASE_URL")
	cfg.Reasoning.APIKey = os.Getenv("REASONING_API_KEY")
	cfg.Reasoning.Model = getEnv("REASONING_MODEL", "gpt-4o-mini")
	cfg.API.Port = getEnvInt("API_PORT", 8080)
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", "text")
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func defaults() *Config {
	return &Config{
		Matching: DefaultMatching(),
		Reasoning: ReasoningConfig{
			Model:          "gpt-4o-mini",
			RequestTimeout: 15 * time.Second,
			MaxRetries:     2,
		},
		Storage: StorageConfig{
			DatabasePath: "reconcile.db",
		},
		API: APIConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}
