package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendSQL   = "sql"
	BackendRedis = "redis"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     string
	StoreBackend   string
	DatabaseDriver string
	DatabaseURL    string // required for the sql backend
	RedisURL       string // required for the redis backend
	RedisKeyPrefix string
	BaseURL        string
	JWTSecret      string

	MaxGenerationAttempts int
	ResolverCacheSize     int

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

// LoadConfig loads configuration from environment variables.
// It looks for a .env file in the current directory for development convenience.
func LoadConfig() error {
	// Attempt to load .env file, but don't fail if it's not there (for production)
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:            getEnv("SERVER_PORT", ":8080"),
		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", BackendSQL)),
		DatabaseDriver:        getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisKeyPrefix:        getEnv("REDIS_KEY_PREFIX", "shortcut:"),
		BaseURL:               strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		MaxGenerationAttempts: getEnvInt("MAX_GENERATION_ATTEMPTS", 10),
		ResolverCacheSize:     getEnvInt("RESOLVER_CACHE_SIZE", 10000),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

// Validate checks required values for the selected backend.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQL:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL environment variable is required")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL environment variable is required")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.MaxGenerationAttempts < 1 {
		return fmt.Errorf("MAX_GENERATION_ATTEMPTS must be positive, got %d", c.MaxGenerationAttempts)
	}
	return nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
