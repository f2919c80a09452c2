package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBFile      string
	AdminAddr   string
	APIAddr     string
	BaseURL     string
	RedisURL    string
	DatabaseURL string
	LogLevel    string
	LogFormat   string

	RelaySendBuffer   int
	RelayPingInterval time.Duration
	RelayReadTimeout  time.Duration
	RelayWriteTimeout time.Duration
}

func Load() (*Config, error) {
	sendBuffer, err := strconv.Atoi(getEnv("RELAY_SEND_BUFFER", "256"))
	if err != nil {
		return nil, fmt.Errorf("RELAY_SEND_BUFFER: %w", err)
	}
	pingInterval, err := time.ParseDuration(getEnv("RELAY_PING_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("RELAY_PING_INTERVAL: %w", err)
	}
	readTimeout, err := time.ParseDuration(getEnv("RELAY_READ_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("RELAY_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("RELAY_WRITE_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("RELAY_WRITE_TIMEOUT: %w", err)
	}

	cfg := &Config{
		DBFile:      getEnv("DOSKA_DB", "doska.db"),
		AdminAddr:   getEnv("ADMIN_ADDR", "localhost:8081"),
		APIAddr:     getEnv("API_ADDR", ":8080"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		RedisURL:    os.Getenv("REDIS_URL"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		RelaySendBuffer:   sendBuffer,
		RelayPingInterval: pingInterval,
		RelayReadTimeout:  readTimeout,
		RelayWriteTimeout: writeTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.DBFile == "" {
		return fmt.Errorf("DOSKA_DB is required when DATABASE_URL is not set")
	}

	if c.RelaySendBuffer <= 0 {
		return fmt.Errorf("RELAY_SEND_BUFFER must be greater than 0")
	}

	if c.RelayPingInterval <= 0 {
		return fmt.Errorf("RELAY_PING_INTERVAL must be greater than 0")
	}

	if c.RelayReadTimeout <= c.RelayPingInterval {
		return fmt.Errorf("RELAY_READ_TIMEOUT must be greater than RELAY_PING_INTERVAL")
	}

	if c.RelayWriteTimeout <= 0 {
		return fmt.Errorf("RELAY_WRITE_TIMEOUT must be greater than 0")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
