package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// HTTP
	Port string

	// Auth
	JWTSecret []byte

	// Database (DATABASE_URL wins over the individual DB_* components)
	DatabaseURL string

	// Redis (optional - the server runs without it, losing the count
	// cache and falling back to in-memory post cooldowns)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Logging
	LogLevel string
	LogFile  string

	// Post creation cooldown window
	PostCooldown time.Duration

	Environment string
}

// Load reads configuration from the environment. A .env file is loaded
// first when present, matching local development setups.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnvOrDefault("PORT", "5000"),
		JWTSecret:     []byte(os.Getenv("JWT_SECRET")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:       getEnvOrDefault("LOG_FILE", "server.log"),
		PostCooldown:  getEnvSeconds("POST_COOLDOWN_SECONDS", 60),
		Environment:   getEnvOrDefault("ENVIRONMENT", "development"),
	}
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvSeconds reads a whole-second count from the environment and
// returns it as a duration. Unset, malformed, or non-positive values
// fall back to the default.
func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	seconds := defaultSeconds
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			seconds = n
		}
	}
	return time.Duration(seconds) * time.Second
}
