package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	LLM         LLMConfig       `toml:"llm"`
	Claude      ClaudeConfig    `toml:"claude"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Cache       CacheConfig     `toml:"cache"`
	Reports     ReportsConfig   `toml:"reports"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// SchedulerConfig controls the in-process job scheduler.
type SchedulerConfig struct {
	MaxConcurrentJobs  int    `toml:"max_concurrent_jobs"` // Worker slots (default: 3)
	PollInterval       string `toml:"poll_interval"`       // Fallback dispatch tick, e.g. "1s"
	CleanupInterval    string `toml:"cleanup_interval"`    // Terminal job sweep interval (default: "30m")
	RetentionWindow    string `toml:"retention_window"`    // How long terminal job statuses are kept (default: "12h")
	DefaultMaxAttempts int    `toml:"default_max_attempts"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig contains the two-tier model hierarchy and retry behavior shared
// by all providers.
type LLMConfig struct {
	PrimaryModel     string      `toml:"primary_model"`     // Model for first-choice generation
	FallbackModel    string      `toml:"fallback_model"`    // Model used after a capacity error on the primary
	FallbackProvider LLMProvider `toml:"fallback_provider"` // "claude" (default) or "gemini"
	MaxRetries       int         `toml:"max_retries"`       // Transient-error retry attempts (default: 3)
	InitialDelay     string      `toml:"initial_delay"`     // First backoff delay (default: "1s")
	MaxDelay         string      `toml:"max_delay"`         // Backoff ceiling (default: "10s")
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`    // Anthropic API key (or ANTHROPIC_API_KEY)
	Timeout   string `toml:"timeout"`    // Per-request timeout as duration string (default: "2m")
	RateLimit int    `toml:"rate_limit"` // Requests per second (default: 5)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey    string `toml:"api_key"`    // Google API key (or GEMINI_API_KEY)
	Timeout   string `toml:"timeout"`    // Per-request timeout as duration string (default: "2m")
	RateLimit int    `toml:"rate_limit"` // Requests per second (default: 5)
}

// CacheConfig controls the completion response cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	MaxSize int    `toml:"max_size"` // Entry cap, FIFO eviction (default: 100)
	TTL     string `toml:"ttl"`      // Entry lifetime (default: "30m")
}

// ReportsConfig controls report generation behavior.
type ReportsConfig struct {
	TokenBudget     int    `toml:"token_budget"`     // Prompt token ceiling before shrink/truncate (default: 4000)
	DefaultTemplate string `toml:"default_template"` // Section template when request omits one (default: "standard")
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings should be exposed in reportgen.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Scheduler: SchedulerConfig{
			MaxConcurrentJobs:  3,
			PollInterval:       "1s",
			CleanupInterval:    "30m",
			RetentionWindow:    "12h",
			DefaultMaxAttempts: 2,
		},
		LLM: LLMConfig{
			PrimaryModel:     "claude-sonnet-4-20250514",
			FallbackModel:    "claude-3-5-haiku-20241022",
			FallbackProvider: LLMProviderClaude,
			MaxRetries:       3,
			InitialDelay:     "1s",
			MaxDelay:         "10s",
		},
		Claude: ClaudeConfig{
			Timeout:   "2m",
			RateLimit: 5,
		},
		Gemini: GeminiConfig{
			Timeout:   "2m",
			RateLimit: 5,
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 100,
			TTL:     "30m",
		},
		Reports: ReportsConfig{
			TokenBudget:     4000,
			DefaultTemplate: "standard",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/reportgen",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFile loads configuration with the precedence:
// defaults -> TOML file (optional) -> environment variables.
func LoadFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies REPORTGEN_* environment variables on top of the
// loaded configuration. API keys also honor the provider-native variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPORTGEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPORTGEN_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPORTGEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REPORTGEN_BADGER_PATH"); v != "" {
		cfg.Storage.Badger.Path = v
	}

	if v := os.Getenv("REPORTGEN_CLAUDE_API_KEY"); v != "" {
		cfg.Claude.APIKey = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Claude.APIKey == "" {
		cfg.Claude.APIKey = v
	}

	if v := os.Getenv("REPORTGEN_GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(cfg *Config, port int, host string) {
	if port != 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
}

// Validate checks configuration consistency before services start.
func (c *Config) Validate() error {
	if c.Scheduler.MaxConcurrentJobs < 1 {
		return fmt.Errorf("scheduler.max_concurrent_jobs must be at least 1, got %d", c.Scheduler.MaxConcurrentJobs)
	}
	if c.Scheduler.DefaultMaxAttempts < 1 {
		return fmt.Errorf("scheduler.default_max_attempts must be at least 1, got %d", c.Scheduler.DefaultMaxAttempts)
	}
	for name, value := range map[string]string{
		"scheduler.poll_interval":    c.Scheduler.PollInterval,
		"scheduler.cleanup_interval": c.Scheduler.CleanupInterval,
		"scheduler.retention_window": c.Scheduler.RetentionWindow,
		"llm.initial_delay":          c.LLM.InitialDelay,
		"llm.max_delay":              c.LLM.MaxDelay,
		"cache.ttl":                  c.Cache.TTL,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q: %w", name, value, err)
		}
	}
	switch c.LLM.FallbackProvider {
	case LLMProviderClaude, LLMProviderGemini:
	default:
		return fmt.Errorf("invalid llm.fallback_provider %q: must be 'claude' or 'gemini'", c.LLM.FallbackProvider)
	}
	return nil
}

// MustDuration parses a duration string that Validate has already checked.
func MustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("invalid duration %q: %v", s, err))
	}
	return d
}
