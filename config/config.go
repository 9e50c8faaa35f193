package config

import (
	"log"
	"os"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Exchange
	Exchange       string // e.g. "binance"
	MarketType     string // "spot" | "futures"
	ExchangeKey    string
	ExchangeSecret string

	// Postgres (settings store)
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	LogLevel      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Exchange:       getEnv("EXCHANGE", "binance"),
		MarketType:     getEnv("MARKET_TYPE", "futures"),
		ExchangeKey:    getEnv("EXCHANGE_API_KEY", ""),
		ExchangeSecret: getEnv("EXCHANGE_API_SECRET", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "screener"),
		PostgresUser:     getEnv("POSTGRES_USER", "screener"),
		PostgresPassword: mustEnv("POSTGRES_PASSWORD"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/klines.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
