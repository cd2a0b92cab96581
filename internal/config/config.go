// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Evidence storage
	EvidenceBucket       string // GCS bucket for report attachments (optional, uses in-memory if not set)
	GCSCredentialsFile   string // Service account key path; empty uses default credentials
	MaxEvidencePerReport int

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint (optional, tracing disabled if not set)

	// Security
	RateLimitRPS   int
	MaxRequestBody int64 // Max request body bytes for multipart intake
}

const (
	DefaultPort                 = "8080"
	DefaultEnv                  = "development"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
	DefaultRateLimit            = 100
	DefaultMaxEvidencePerReport = 5
	DefaultMaxRequestBody       = 48 << 20 // 48 MiB, a few video clips
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:            getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:          os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		EvidenceBucket:       os.Getenv("EVIDENCE_BUCKET"),
		GCSCredentialsFile:   os.Getenv("GCS_CREDENTIALS_FILE"),
		MaxEvidencePerReport: int(getEnvInt64("MAX_EVIDENCE_PER_REPORT", DefaultMaxEvidencePerReport)),
		OTLPEndpoint:         os.Getenv("OTLP_ENDPOINT"),
		RateLimitRPS:         int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		MaxRequestBody:       getEnvInt64("MAX_REQUEST_BODY", DefaultMaxRequestBody),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if c.MaxEvidencePerReport < 0 {
		return fmt.Errorf("MAX_EVIDENCE_PER_REPORT must not be negative")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if c.GCSCredentialsFile != "" && c.EvidenceBucket == "" {
		return fmt.Errorf("GCS_CREDENTIALS_FILE set without EVIDENCE_BUCKET")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
