package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendAuto     = "auto"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StoreBackend string `env:"STORE_BACKEND" envDefault:"auto"`
	DatabaseURL  string `env:"DATABASE_URL"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"./data/teamroom.db"`
	RedisURL     string `env:"REDIS_URL"`

	// Reply generation
	LLMProvider      string  `env:"LLM_PROVIDER" envDefault:"auto"`
	OpenAIAPIKey     string  `env:"OPENAI_API_KEY"`
	OpenAIModel      string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	AnthropicAPIKey  string  `env:"ANTHROPIC_API_KEY"`
	AnthropicModel   string  `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`
	ReplyMaxTokens   int64   `env:"REPLY_MAX_TOKENS" envDefault:"1000"`
	ReplyTemperature float64 `env:"REPLY_TEMPERATURE" envDefault:"0.7"`
	PersonasFile     string  `env:"PERSONAS_FILE"`

	// Orchestration
	ContextWindow            int           `env:"CONTEXT_WINDOW" envDefault:"10"`
	ReplyDelayMin            time.Duration `env:"REPLY_DELAY_MIN" envDefault:"1s"`
	ReplyDelayMax            time.Duration `env:"REPLY_DELAY_MAX" envDefault:"4s"`
	GenerationTimeout        time.Duration `env:"GENERATION_TIMEOUT" envDefault:"60s"`
	GenerationRetries        int           `env:"GENERATION_RETRIES" envDefault:"0"`
	PersistRetries           int           `env:"PERSIST_RETRIES" envDefault:"0"`
	RetryInitialInterval     time.Duration `env:"RETRY_INITIAL_INTERVAL" envDefault:"500ms"`
	MaxConcurrentGenerations int64         `env:"MAX_CONCURRENT_GENERATIONS" envDefault:"0"`

	// Rate limiting
	RateLimitWhitelist []string `env:"RATE_LIMIT_WHITELIST" envSeparator:","` // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     `env:"AUTO_BLOCK_ENABLED" envDefault:"false"` // Enable auto-blocking after repeated violations

	// Observability
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"teamroom"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	var whitelist []string
	for _, entry := range cfg.RateLimitWhitelist {
		if entry = strings.TrimSpace(entry); entry != "" {
			whitelist = append(whitelist, entry)
		}
	}
	cfg.RateLimitWhitelist = whitelist
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.ContextWindow < 1 {
		return errors.New("CONTEXT_WINDOW must be at least 1")
	}
	if c.ReplyDelayMin < 0 || c.ReplyDelayMax < c.ReplyDelayMin {
		return fmt.Errorf("REPLY_DELAY_MIN (%s) must be non-negative and not exceed REPLY_DELAY_MAX (%s)", c.ReplyDelayMin, c.ReplyDelayMax)
	}
	if c.GenerationRetries < 0 || c.PersistRetries < 0 {
		return errors.New("retry counts must not be negative")
	}
	if c.MaxConcurrentGenerations < 0 {
		return errors.New("MAX_CONCURRENT_GENERATIONS must not be negative")
	}

	switch c.StoreBackend {
	case BackendAuto, BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	// In production, require database and redis URLs
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required in production")
		}
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required in production")
		}
	}
	return nil
}

// ResolvedStoreBackend returns the backend to open, resolving auto.
func (c *Config) ResolvedStoreBackend() string {
	if c.StoreBackend != BackendAuto && c.StoreBackend != "" {
		return c.StoreBackend
	}
	if c.DatabaseURL != "" {
		return BackendPostgres
	}
	return BackendSQLite
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
