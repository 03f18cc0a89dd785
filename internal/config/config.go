// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Image assets
	AssetBackend     string // "fs" or "s3"
	UploadDir        string
	UploadURLPrefix  string
	DefaultImagePath string // shared placeholder, never deleted

	// S3-compatible object storage (ASSET_BACKEND=s3)
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string

	// Meilisearch (optional; Postgres full-text search is used without it)
	MeiliURL    string
	MeiliAPIKey string

	// Browser origins allowed to call the API
	AllowedOrigins []string

	// Window within which repeat reads by a viewer are not counted again
	ViewWindow time.Duration
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "postdesk"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "postdesk"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		AssetBackend:     envOrDefault("ASSET_BACKEND", "fs"),
		UploadDir:        envOrDefault("UPLOAD_DIR", "./uploads"),
		UploadURLPrefix:  envOrDefault("UPLOAD_URL_PREFIX", "/uploads"),
		DefaultImagePath: envOrDefault("DEFAULT_IMAGE_PATH", "/uploads/default-placeholder.png"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    envOrDefault("S3_BUCKET", "postdesk-uploads"),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),

		MeiliURL:    os.Getenv("MEILI_URL"),
		MeiliAPIKey: os.Getenv("MEILI_API_KEY"),

		AllowedOrigins: splitList(envOrDefault("ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	window, err := time.ParseDuration(envOrDefault("VIEW_WINDOW", "24h"))
	if err != nil || window <= 0 {
		return nil, fmt.Errorf("VIEW_WINDOW must be a positive duration, got %q", os.Getenv("VIEW_WINDOW"))
	}
	cfg.ViewWindow = window

	switch cfg.AssetBackend {
	case "fs":
	case "s3":
		if cfg.S3Endpoint == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return nil, fmt.Errorf("ASSET_BACKEND=s3 requires S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY")
		}
	default:
		return nil, fmt.Errorf("ASSET_BACKEND must be fs or s3, got %q", cfg.AssetBackend)
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// ValkeyAddr returns the Valkey address (host:port).
func (c *Config) ValkeyAddr() string {
	return fmt.Sprintf("%s:%s", c.ValkeyHost, c.ValkeyPort)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
