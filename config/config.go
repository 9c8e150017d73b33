package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the process needs, loaded once at startup and
// passed explicitly to whoever needs it. No package-level state.
type Config struct {
	Port        string
	DatabaseURL string
	RedisAddr   string
	Env         string

	// LockWait bounds how long a transfer blocks on account row locks
	// before failing with a retryable timeout.
	LockWait time.Duration

	// IdempotencyTTL is how long cached transfer responses live in Redis.
	IdempotencyTTL time.Duration
}

// Load reads a .env file if present, then the process environment.
func Load() *Config {
	// Missing .env is fine in production; env vars take over.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    getEnv("DB_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		Env:            getEnv("ENV", "development"),
		LockWait:       getDuration("LOCK_WAIT_SECONDS", 5),
		IdempotencyTTL: getDuration("IDEMPOTENCY_TTL_SECONDS", 24*60*60),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getDuration(key string, fallbackSeconds int) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(fallbackSeconds) * time.Second
}
