package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port     string
	Mode     string
	LogLevel string

	// Database configuration
	DatabaseURL string

	// Redis configuration, empty disables verification stats
	RedisURL string

	// Admin API key for project management routes
	AdminAPIKey string

	// App Store verification configuration
	AppStoreSharedSecret           string
	AppStoreExcludeOldTransactions bool
	AppStoreOpenTimeout            time.Duration
	AppStoreReadTimeout            time.Duration
	AppStoreMaxRetry               int
	VerificationEndpoint           string
	SandboxEndpoint                string

	// Batch verification
	BatchConcurrency int
	BatchMaxSize     int
}

var AppConfig *Config

// InitConfig loads the configuration into AppConfig.
func InitConfig() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// Ignore error if .env file doesn't exist
	_ = godotenv.Load()

	return &Config{
		Port:                           getEnv("PORT", "8080"),
		Mode:                           getEnv("GIN_MODE", "debug"),
		LogLevel:                       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:                    getEnv("DATABASE_URL", ""),
		RedisURL:                       getEnv("REDIS_URL", ""),
		AdminAPIKey:                    getEnv("ADMIN_API_KEY", ""),
		AppStoreSharedSecret:           getEnv("APPSTORE_SHARED_SECRET", ""),
		AppStoreExcludeOldTransactions: getEnvBool("APPSTORE_EXCLUDE_OLD_TRANSACTIONS", false),
		AppStoreOpenTimeout:            getEnvDuration("APPSTORE_OPEN_TIMEOUT", 5*time.Second),
		AppStoreReadTimeout:            getEnvDuration("APPSTORE_READ_TIMEOUT", 30*time.Second),
		AppStoreMaxRetry:               getEnvInt("APPSTORE_MAX_RETRY", 3),
		VerificationEndpoint:           getEnv("IAP_VERIFICATION_ENDPOINT", ""),
		SandboxEndpoint:                getEnv("IAP_SANDBOX_VERIFICATION_ENDPOINT", ""),
		BatchConcurrency:               getEnvInt("BATCH_CONCURRENCY", 4),
		BatchMaxSize:                   getEnvInt("BATCH_MAX_SIZE", 20),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("2s") or a plain number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
