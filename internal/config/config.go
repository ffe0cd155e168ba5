// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
// A .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Snapshot backends.
const (
	SnapshotBackendFile = "file"
	SnapshotBackendGCS  = "gcs"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// Cache (Redis)
	RedisURL      string `env:"REDIS_URL,required"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Public base URL, used in confirmation links and page metadata
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	LogBufferSize int    `env:"LOG_BUFFER_SIZE" envDefault:"500"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Sessions and auth
	JWTSecret                string        `env:"JWT_SECRET" envDefault:""`
	SessionTTL               time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	RequireEmailConfirmation bool          `env:"REQUIRE_EMAIL_CONFIRMATION" envDefault:"false"`

	// Rate limiting
	RateLimitEnabled          bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	AuthRateLimitPerMinute    int  `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	ContactRateLimitPerMinute int  `env:"CONTACT_RATE_LIMIT_PER_MINUTE" envDefault:"3"`

	// AI providers
	OpenAIAPIKey         string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL        string        `env:"OPENAI_BASE_URL" envDefault:""`
	AnthropicAPIKey      string        `env:"ANTHROPIC_API_KEY" envDefault:""`
	AnthropicBaseURL     string        `env:"ANTHROPIC_BASE_URL" envDefault:""`
	GoogleAPIKey         string        `env:"GOOGLE_API_KEY" envDefault:""`
	GeminiBaseURL        string        `env:"GEMINI_BASE_URL" envDefault:""`
	ProviderTimeout      time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"30s"`
	ModelRefreshInterval time.Duration `env:"MODEL_REFRESH_INTERVAL" envDefault:"0s"`

	// Model snapshots
	DataDir          string        `env:"DATA_DIR" envDefault:"public/data"`
	SnapshotBackend  string        `env:"SNAPSHOT_BACKEND" envDefault:"file"`
	GCSBucket        string        `env:"GCS_BUCKET" envDefault:""`
	GCSPrefix        string        `env:"GCS_PREFIX" envDefault:"data/"`
	SnapshotCacheTTL time.Duration `env:"SNAPSHOT_CACHE_TTL" envDefault:"10m"`

	// Contact notifications
	ContactWebhookURL    string `env:"CONTACT_WEBHOOK_URL" envDefault:""`
	ContactWebhookSecret string `env:"CONTACT_WEBHOOK_SECRET" envDefault:""`
	SendGridAPIKey       string `env:"SENDGRID_API_KEY" envDefault:""`
	ContactFromEmail     string `env:"CONTACT_FROM_EMAIL" envDefault:"no-reply@quillscribe.local"`
	ContactToEmail       string `env:"CONTACT_TO_EMAIL" envDefault:""`

	// Metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}

	switch c.SnapshotBackend {
	case SnapshotBackendFile:
		if c.DataDir == "" {
			return errors.New("DATA_DIR is required for the file snapshot backend")
		}
	case SnapshotBackendGCS:
		if c.GCSBucket == "" {
			return errors.New("GCS_BUCKET is required for the gcs snapshot backend")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}

	if c.ContactWebhookURL != "" && c.ContactWebhookSecret == "" {
		return errors.New("CONTACT_WEBHOOK_SECRET is required when CONTACT_WEBHOOK_URL is set")
	}
	if c.SendGridAPIKey != "" && c.ContactToEmail == "" {
		return errors.New("CONTACT_TO_EMAIL is required when SENDGRID_API_KEY is set")
	}
	if c.LogBufferSize < 0 {
		return errors.New("LOG_BUFFER_SIZE must not be negative")
	}

	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := loadDotEnv(envFile()); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envFile() string {
	if path := os.Getenv("ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}

// loadDotEnv loads variables from path without overriding the real environment.
// A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
