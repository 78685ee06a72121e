package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	HTTPAddr string

	AuthJWTSecret string
	SessionTTL    time.Duration

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MatcherWorkers      int
	WebhookWorkers      int
	TransferMaxAttempts int
	TransferBackoffBase time.Duration
	WebhookMaxAttempts  int
	WebhookBackoffBase  time.Duration
	WebhookTimeout      time.Duration
	DedupTTL            time.Duration

	// TokenDecimals maps token contract addresses to their decimal
	// precision, e.g. "0xA0b8...:6,0xC02a...:18". Tokens not listed
	// fall back to DefaultTokenDecimals.
	TokenDecimals        string
	DefaultTokenDecimals int
}

var (
	ErrMissingRedisAddr = errors.New("REDIS_ADDR is required")
	ErrMissingJWTSecret = errors.New("AUTH_JWT_SECRET is required")
)

// Load loads configuration from environment variables and .env file.
// Missing connection configuration is a startup failure, not a default.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "paygate"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		SessionTTL:    getenvDuration("SESSION_TTL", 24*time.Hour),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "paygate"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       getenvInt("REDIS_DB", 0),

		MatcherWorkers:      getenvInt("MATCHER_WORKERS", 4),
		WebhookWorkers:      getenvInt("WEBHOOK_WORKERS", 4),
		TransferMaxAttempts: getenvInt("TRANSFER_MAX_ATTEMPTS", 3),
		TransferBackoffBase: getenvDuration("TRANSFER_BACKOFF_BASE", 5*time.Second),
		WebhookMaxAttempts:  getenvInt("WEBHOOK_MAX_ATTEMPTS", 5),
		WebhookBackoffBase:  getenvDuration("WEBHOOK_BACKOFF_BASE", 30*time.Second),
		WebhookTimeout:      getenvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		DedupTTL:            getenvDuration("DEDUP_TTL", 24*time.Hour),

		TokenDecimals:        getenv("TOKEN_DECIMALS", ""),
		DefaultTokenDecimals: getenvInt("DEFAULT_TOKEN_DECIMALS", 6),
	}

	if cfg.RedisAddr == "" {
		return Config{}, ErrMissingRedisAddr
	}
	if cfg.AuthJWTSecret == "" {
		return Config{}, ErrMissingJWTSecret
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
