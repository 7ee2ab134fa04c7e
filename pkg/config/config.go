package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	TokenCipherKey     string // 32-byte key for credential encryption, hex or raw
	TrackingBaseURL    string // public base URL for open-tracking pixels
	ScannerInterval    time.Duration
	SyncMaxResults     int64
	HistoryBatchSize   int64
	CredentialCacheTTL time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	scannerInterval := 1 * time.Minute
	if v := os.Getenv("SCANNER_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			scannerInterval = parsed
		}
	}

	credentialCacheTTL := 5 * time.Minute
	if v := os.Getenv("CREDENTIAL_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			credentialCacheTTL = parsed
		}
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=bizportal port=5432 sslmode=disable"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		TokenCipherKey:     getEnv("TOKEN_CIPHER_KEY", ""),
		TrackingBaseURL:    getEnv("TRACKING_BASE_URL", "http://localhost:8080"),
		ScannerInterval:    scannerInterval,
		SyncMaxResults:     getEnvInt64("SYNC_MAX_RESULTS", 50),
		HistoryBatchSize:   getEnvInt64("HISTORY_BATCH_SIZE", 100),
		CredentialCacheTTL: credentialCacheTTL,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
