package config

import (
	"fmt"
	"os"
	"time"
)

const defaultReconnectDelay = 30 * time.Minute

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	GatewayURL  string
	// VaultSecret feeds the credential vault's key derivation. Absence is
	// an operator error; weakness is not handled specially.
	VaultSecret    string
	RedisURL       string
	ReconnectDelay time.Duration
	LogLevel       string
	LogFormat      string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		GatewayURL:  getEnv("GATEWAY_URL", ""),
		VaultSecret: getEnv("VAULT_SECRET", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("GATEWAY_URL is required")
	}
	if cfg.VaultSecret == "" && cfg.AppEnv == "production" {
		return nil, fmt.Errorf("VAULT_SECRET is required in production")
	}

	cfg.ReconnectDelay = defaultReconnectDelay
	if raw := os.Getenv("RECONNECT_DELAY"); raw != "" {
		delay, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("RECONNECT_DELAY must be a duration like 30m: %w", err)
		}
		if delay <= 0 {
			return nil, fmt.Errorf("RECONNECT_DELAY must be positive")
		}
		cfg.ReconnectDelay = delay
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
