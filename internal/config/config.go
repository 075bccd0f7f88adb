// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Database settings
	DBDriver        string
	DBDSN           string
	DBAutoMigrate   bool
	DBMigrationsDir string

	// Auth settings
	JWTSecret string

	// Hosted free model (no user key required)
	HostedAPIKey  string
	HostedBaseURL string

	// Feature unlock codes
	CreatorUnlockCode   string
	IncognitoUnlockCode string

	// Transport-level rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Analytics
	AnalyticsTimezone string
	HeartbeatOnline   time.Duration

	// Event bus (optional)
	NATSURL          string
	NATSEventSubject string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Database
		DBDriver:        getEnv("DB_DRIVER", "postgres"),
		DBDSN:           getEnv("DB_DSN", ""),
		DBAutoMigrate:   getBoolEnv("DB_AUTO_MIGRATE", true),
		DBMigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),

		// Auth
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Hosted free model
		HostedAPIKey:  getEnv("HUGGINGFACE_API_KEY", ""),
		HostedBaseURL: getEnv("HOSTED_MODEL_BASE_URL", "https://router.huggingface.co/v1/chat/completions"),

		// Feature unlock codes
		CreatorUnlockCode:   getEnv("CREATOR_UNLOCK_CODE", "maker15"),
		IncognitoUnlockCode: getEnv("INCOGNITO_UNLOCK_CODE", "incog25"),

		// Transport-level rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Analytics
		AnalyticsTimezone: getEnv("ANALYTICS_TIMEZONE", "America/Denver"),
		HeartbeatOnline:   getDurationEnv("HEARTBEAT_ONLINE_WINDOW", 15*time.Minute),

		// Event bus
		NATSURL:          getEnv("NATS_URL", ""),
		NATSEventSubject: getEnv("NATS_EVENT_SUBJECT", "trexai.analytics"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
