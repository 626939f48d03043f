// Package config loads service configuration from a .env file (when
// present) and environment variables, with local-development defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the service reads at startup.
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// PaymentPendingTTL is how long a pending-payment registration may wait
	// for a gateway callback before the janitor reclaims its slot.
	PaymentPendingTTL time.Duration

	// JanitorInterval is how often the janitor sweeps stale registrations.
	JanitorInterval time.Duration
}

// Load reads .env (ignored if absent) and the environment.
func Load() (Config, error) {
	// A missing .env is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := Config{
		Port:       getEnv("PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "eventgrid"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	var err error
	if cfg.PaymentPendingTTL, err = getDuration("PAYMENT_PENDING_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.JanitorInterval, err = getDuration("JANITOR_INTERVAL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
