package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for forge-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3470"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional generation result cache)
	Redis RedisConfig `yaml:"redis"`

	// Generation configuration
	Generation GenerationConfig `yaml:"generation"`

	// Credential encryption key for secrets stored in the settings table.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	CredentialsKey string `yaml:"-" env:"PROJECT_CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"forge"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"forge_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL builds a PostgreSQL connection URL from the configuration.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis configuration for the generation cache.
// If Host is empty, the engine falls back to an in-process cache.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// GenerationConfig holds settings for the code generation pipeline.
type GenerationConfig struct {
	// Provider selects the generation backend: "gemini" or "openai".
	Provider string `yaml:"provider" env:"GENERATION_PROVIDER" env-default:"gemini"`

	// APIKey is the upstream credential. For Gemini this is an AIza-prefixed key.
	APIKey string `yaml:"-" env:"GEMINI_API_KEY"` // Secret - not in YAML

	// Model is the primary generation model.
	Model string `yaml:"model" env:"GENERATION_MODEL" env-default:"gemini-2.0-flash"`

	// FallbackModelsStr is a comma-separated list of models tried in order
	// when the primary model is quota-exhausted.
	FallbackModelsStr string `yaml:"fallback_models" env:"GENERATION_FALLBACK_MODELS" env-default:"gemini-2.0-flash-lite,gemini-1.5-flash"`

	// FallbackModels is the parsed list from FallbackModelsStr (not from config file).
	FallbackModels []string `yaml:"-"`

	// OpenAIBaseURL is the endpoint for the OpenAI-compatible provider.
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`

	// MaxAttempts is the generation retry budget. Attempts, not wall clock.
	MaxAttempts int `yaml:"max_attempts" env:"GENERATION_MAX_ATTEMPTS" env-default:"3"`

	// BackoffUnitSeconds is the linear backoff unit for transient errors;
	// attempt N sleeps N*unit before retrying.
	BackoffUnitSeconds int `yaml:"backoff_unit_seconds" env:"GENERATION_BACKOFF_UNIT_SECONDS" env-default:"2"`

	// MaxRetryHintSeconds caps server-suggested retry delays; longer hints
	// fail the request instead of blocking the caller.
	MaxRetryHintSeconds int `yaml:"max_retry_hint_seconds" env:"GENERATION_MAX_RETRY_HINT_SECONDS" env-default:"60"`

	// LockTimeoutSeconds is how long a generation may hold the global lock
	// before it is force-released.
	LockTimeoutSeconds int `yaml:"lock_timeout_seconds" env:"GENERATION_LOCK_TIMEOUT_SECONDS" env-default:"120"`

	// CacheTTLMinutes is the Redis TTL for cached generation results.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" env:"GENERATION_CACHE_TTL_MINUTES" env-default:"1440"`
}

// BackoffUnit returns the linear backoff unit as a duration.
func (c *GenerationConfig) BackoffUnit() time.Duration {
	return time.Duration(c.BackoffUnitSeconds) * time.Second
}

// MaxRetryHint returns the retry hint cap as a duration.
func (c *GenerationConfig) MaxRetryHint() time.Duration {
	return time.Duration(c.MaxRetryHintSeconds) * time.Second
}

// LockTimeout returns the lock auto-release timeout as a duration.
func (c *GenerationConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// CacheTTL returns the cache TTL as a duration.
func (c *GenerationConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
// Used when no config.yaml is present (containers, tests).
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) parseComplexFields() error {
	c.Generation.FallbackModels = nil
	for _, m := range strings.Split(c.Generation.FallbackModelsStr, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			c.Generation.FallbackModels = append(c.Generation.FallbackModels, m)
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Generation.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("invalid generation provider %q (expected gemini or openai)", c.Generation.Provider)
	}

	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation max_attempts must be at least 1, got %d", c.Generation.MaxAttempts)
	}

	if c.Generation.LockTimeoutSeconds < 1 {
		return fmt.Errorf("generation lock_timeout_seconds must be at least 1, got %d", c.Generation.LockTimeoutSeconds)
	}

	return nil
}
