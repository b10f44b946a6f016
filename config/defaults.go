package config

import "time"

// DefaultConfig returns the baseline configuration. YAML and environment
// overrides are applied on top of these values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9091,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second, // crew runs are slow
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
		LLM: LLMConfig{
			Model:       "llama3-8b-8192",
			Temperature: 0.1,
			MaxTokens:   4096,
			Timeout:     60 * time.Second,
		},
		Kanoon: KanoonConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			RatePerSec: 5,
		},
		Research: ResearchConfig{
			MaxIterations: 10,
			DocTokenLimit: 4000,
			CacheTTL:      1 * time.Hour,
			SearchPages:   1,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Name:            "lexcrew.db",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		MinIO: MinIOConfig{
			Bucket: "lexcrew-origdocs",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "lexcrew",
			SampleRate:  1.0,
		},
	}
}
