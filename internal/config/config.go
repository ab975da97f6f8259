// Package config loads process configuration from the environment once at
// startup; the resulting struct is treated as immutable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the process needs to wire itself together. The
// entry point owns it; nothing reads the environment after Load returns.
type Config struct {
	// Database. Empty DSN runs the service on in-memory stores, which is
	// the mode the test suite and local demos use.
	DatabaseDSN string

	// Auth
	AuthSecret     string
	AccessTokenTTL time.Duration

	// Server
	ListenAddr      string
	ShutdownTimeout time.Duration
	StoreTimeout    time.Duration

	// Rate limiting (per client IP)
	RateBurst  int
	RatePerSec int

	// Request body cap in bytes
	MaxBodyBytes int64
}

// Load reads configuration from CYBRSENS_* environment variables.
// AuthSecret is required; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDSN:     os.Getenv("CYBRSENS_PG_DSN"),
		AuthSecret:      os.Getenv("CYBRSENS_AUTH_SECRET"),
		AccessTokenTTL:  getEnvDuration("CYBRSENS_ACCESS_TTL", 15*time.Minute),
		ListenAddr:      getEnvString("CYBRSENS_LISTEN_ADDR", ":8080"),
		ShutdownTimeout: getEnvDuration("CYBRSENS_SHUTDOWN_TIMEOUT", 10*time.Second),
		StoreTimeout:    getEnvDuration("CYBRSENS_STORE_TIMEOUT", 5*time.Second),
		RateBurst:       getEnvInt("CYBRSENS_RATE_BURST", 20),
		RatePerSec:      getEnvInt("CYBRSENS_RATE_PER_SEC", 10),
		MaxBodyBytes:    getEnvInt64("CYBRSENS_MAX_BODY_BYTES", 1<<20),
	}
	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("required environment variable is not set: CYBRSENS_AUTH_SECRET")
	}
	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
