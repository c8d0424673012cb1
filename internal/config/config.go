package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Messaging MessagingConfig
	Outbox    OutboxConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

// MessagingConfig carries the message lifecycle rules.
type MessagingConfig struct {
	EditWindow      time.Duration
	RecallWindow    time.Duration
	MaxContentBytes int
	HistoryPageMax  int
	CatchUpLimitMax int
}

// OutboxConfig tunes the background dispatch loop. DispatchLease bounds how
// long a DISPATCHING claim stays invisible to polling before it is reclaimed.
type OutboxConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	MaxRetries      int
	DispatchTimeout time.Duration
	DispatchLease   time.Duration
	Workers         int
}

// LoadConfig loads configuration from environment variables.
// Defaults can be set here if needed.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "relaychat"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret"),
		},
		Messaging: MessagingConfig{
			EditWindow:      getEnvAsDuration("MSG_EDIT_WINDOW", 15*time.Minute),
			RecallWindow:    getEnvAsDuration("MSG_RECALL_WINDOW", 2*time.Minute),
			MaxContentBytes: getEnvAsInt("MSG_MAX_CONTENT_BYTES", 8192),
			HistoryPageMax:  getEnvAsInt("MSG_HISTORY_PAGE_MAX", 100),
			CatchUpLimitMax: getEnvAsInt("MSG_CATCHUP_LIMIT_MAX", 200),
		},
		Outbox: OutboxConfig{
			PollInterval:    getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:       getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
			MaxRetries:      getEnvAsInt("OUTBOX_MAX_RETRIES", 10),
			DispatchTimeout: getEnvAsDuration("OUTBOX_DISPATCH_TIMEOUT", 5*time.Second),
			DispatchLease:   getEnvAsDuration("OUTBOX_DISPATCH_LEASE", time.Minute),
			Workers:         getEnvAsInt("OUTBOX_WORKERS", 4),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
