// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the settings both binaries read from the environment. .env files are
// loaded by the binaries through godotenv before Load runs.
type Config struct {
	Port     string
	LogLevel logrus.Level

	NopeWindow     time.Duration
	HandSize       int
	SeeFutureCount int

	RedisAddr   string
	RedisDB     int
	QueueName   string
	PostgresDSN string // empty when Postgres is not configured

	TokenExpire string

	HistorianBatchSize  int
	HistorianFlushDelay time.Duration
	HistorianInactivity time.Duration
}

// Load reads the environment, applying defaults for anything unset.
func Load() (*Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "debug"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            level,
		NopeWindow:          time.Duration(getEnvInt("NOPE_WINDOW_MS", 2000)) * time.Millisecond,
		HandSize:            getEnvInt("HAND_SIZE", 5),
		SeeFutureCount:      getEnvInt("SEE_FUTURE_COUNT", 3),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		QueueName:           getEnv("HISTORIAN_QUEUE_NAME", "kaboom_actions"),
		PostgresDSN:         postgresDSN(),
		TokenExpire:         os.Getenv("TOKEN_EXPIRE_TIME"),
		HistorianBatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		HistorianInactivity: time.Duration(getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
	}

	if cfg.NopeWindow <= 0 {
		return nil, fmt.Errorf("NOPE_WINDOW_MS must be positive")
	}
	if cfg.HandSize < 0 {
		return nil, fmt.Errorf("HAND_SIZE must be non-negative")
	}
	if cfg.SeeFutureCount < 1 {
		return nil, fmt.Errorf("SEE_FUTURE_COUNT must be at least 1")
	}
	if cfg.HistorianBatchSize < 1 {
		return nil, fmt.Errorf("HISTORIAN_BATCH_SIZE must be at least 1")
	}
	return cfg, nil
}

// postgresDSN assembles the connection string from the POSTGRES_* and PG_* variables.
func postgresDSN() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:   host + ":" + getEnv("PG_PORT", "5432"),
		Path:   "/" + os.Getenv("PG_DATABASE"),
	}
	return u.String()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, falling back to def.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
