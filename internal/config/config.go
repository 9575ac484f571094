package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"biblioteca/internal/lookup"
)

// Storage drivers
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite3"
	StoragePostgres = "postgres"
	StorageMySQL    = "mysql"
)

// Login log backends
const (
	LoginLogSQL        = "sql"
	LoginLogClickHouse = "clickhouse"
)

// Config holds the application configuration
type Config struct {
	HTTPAddr string
	Env      string // "development" or "production"
	LogLevel string

	// Authentication
	JWTSecret              string
	TokenTTL               time.Duration
	SuperAdminID           string
	BootstrapAdminPassword string
	LoginRatePerMinute     int

	// Storage
	StorageDriver string
	DatabaseDSN   string
	CoversDir     string

	// Login log; "sql" keeps it in the main store
	LoginLogBackend string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	// ISBN lookup
	LookupURL     string
	LookupTimeout time.Duration
	LookupRetries int

	// Telegram loan notifications, disabled without a token
	TelegramToken  string
	TelegramChatID int64
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		Env:             getEnv("APP_ENV", "production"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SuperAdminID:    getEnv("SUPERADMIN_ID", "0"),
		StorageDriver:   getEnv("STORAGE_DRIVER", StorageSQLite),
		DatabaseDSN:     getEnv("DATABASE_DSN", "library.db"),
		CoversDir:       getEnv("COVERS_DIR", "data/covers"),
		LoginLogBackend: getEnv("LOGIN_LOG_BACKEND", LoginLogSQL),
		LookupURL:       getEnv("LOOKUP_URL", lookup.DefaultBaseURL),
	}

	// JWT secret (required)
	config.JWTSecret = os.Getenv("JWT_SECRET")
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	config.BootstrapAdminPassword = os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")

	var err error
	if config.TokenTTL, err = getDuration("TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if config.LoginRatePerMinute, err = getInt("LOGIN_RATE_PER_MINUTE", 10); err != nil {
		return nil, err
	}

	switch config.StorageDriver {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageMySQL:
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q (memory, sqlite3, postgres or mysql)", config.StorageDriver)
	}

	// ClickHouse configuration (required for the clickhouse login log)
	switch config.LoginLogBackend {
	case LoginLogSQL:
	case LoginLogClickHouse:
		config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
		if config.ClickHouseHost == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST is required when LOGIN_LOG_BACKEND is clickhouse")
		}
		if config.ClickHousePort, err = getInt("CLICKHOUSE_PORT", 9000); err != nil {
			return nil, err
		}
		config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
		config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
		// Password is optional, can be empty
		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	default:
		return nil, fmt.Errorf("invalid LOGIN_LOG_BACKEND %q (sql or clickhouse)", config.LoginLogBackend)
	}

	if config.LookupTimeout, err = getDuration("LOOKUP_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if config.LookupRetries, err = getInt("LOOKUP_RETRIES", 2); err != nil {
		return nil, err
	}

	// Telegram chat is required once a token is set
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken != "" {
		chatID := os.Getenv("TELEGRAM_CHAT_ID")
		if chatID == "" {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
		}
		config.TelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}

	return config, nil
}

// Development reports whether the application runs in development mode
func (c *Config) Development() bool {
	return c.Env == "development"
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
