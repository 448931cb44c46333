package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/rikardbq/serf/internal/logger"
)

var (
	customLog = logger.NewLogger()
	validate  = validator.New()
)

// Config holds application configuration values.
type Config struct {
	ServerHost    string `validate:"required"`
	ServerPort    int    `validate:"gt=0,lte=65535"`
	RootDir       string `validate:"required"`
	DBMaxConns    int    `validate:"gt=0"`
	DBMaxIdleTime time.Duration
	DBMaxLifetime time.Duration
	BodyLimitMB   int `validate:"gt=0"`
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (skipped in production).
func LoadConfig() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	port, err := strconv.Atoi(getEnv("SERF_PORT", "8080"))
	if err != nil {
		return nil, errors.New("SERF_PORT must be an integer")
	}

	maxConns, err := strconv.Atoi(getEnv("SERF_DB_MAX_CONN", "12"))
	if err != nil {
		return nil, errors.New("SERF_DB_MAX_CONN must be an integer")
	}

	bodyLimitMB, err := strconv.Atoi(getEnv("SERF_BODY_LIMIT_MB", "100"))
	if err != nil {
		return nil, errors.New("SERF_BODY_LIMIT_MB must be an integer")
	}

	cfg := &Config{
		ServerHost:    getEnv("SERF_HOST", "127.0.0.1"),
		ServerPort:    port,
		RootDir:       getEnv("SERF_ROOT_DIR", ".serf"),
		DBMaxConns:    maxConns,
		DBMaxIdleTime: getEnvSeconds("SERF_DB_MAX_IDLE_TIME", 3600),
		DBMaxLifetime: getEnvSeconds("SERF_DB_MAX_LIFETIME", 3600),
		BodyLimitMB:   bodyLimitMB,
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, err
	}

	customLog.Printf("Configuration loaded. Host: %s, Port: %d, Root: %s", cfg.ServerHost, cfg.ServerPort, cfg.RootDir)
	return cfg, nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvSeconds reads an integer environment variable expressed in seconds.
func getEnvSeconds(key string, fallback int64) time.Duration {
	raw := getEnv(key, strconv.FormatInt(fallback, 10))
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		customLog.Warnf("Invalid %s '%s'. Using default %ds.", key, raw, fallback)
		secs = fallback
	}
	return time.Duration(secs) * time.Second
}
