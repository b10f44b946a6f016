// Package config loads LexCrew configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order. A .env file
// in the working directory is auto-loaded (the keys become regular env vars,
// real environment variables win).
package config

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config is the complete LexCrew configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Kanoon    KanoonConfig    `yaml:"kanoon" env:"KANOON"`
	Research  ResearchConfig  `yaml:"research" env:"RESEARCH"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	MinIO     MinIOConfig     `yaml:"minio" env:"MINIO"`
	Auth      AuthConfig      `yaml:"auth" env:"AUTH"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP and metrics listeners.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// LLMConfig configures the Groq provider.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// KanoonConfig configures the Indian Kanoon API client.
type KanoonConfig struct {
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RatePerSec float64       `yaml:"rate_per_sec" env:"RATE_PER_SEC"`
}

// ResearchConfig tunes the research pipeline.
type ResearchConfig struct {
	MaxIterations int           `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	DocTokenLimit int           `yaml:"doc_token_limit" env:"DOC_TOKEN_LIMIT"`
	CacheTTL      time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	SearchPages   int           `yaml:"search_pages" env:"SEARCH_PAGES"`
}

// RedisConfig configures the answer cache.
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig configures the research run store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"` // sqlite or postgres
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"` // db name, or file path for sqlite
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN returns the connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// MinIOConfig configures original-document object storage.
type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
}

// AuthConfig configures API authentication. Auth is disabled when the
// secret is empty.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format           string   `yaml:"format" env:"FORMAT"` // json, console
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm temperature must be between 0 and 2")
	}
	if c.Research.MaxIterations <= 0 {
		errs = append(errs, "research max_iterations must be positive")
	}
	if c.Research.DocTokenLimit <= 0 {
		errs = append(errs, "research doc_token_limit must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
