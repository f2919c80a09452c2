package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DOSKA_DB", "doska.db")
	t.Setenv("API_ADDR", ":8080")
	t.Setenv("RELAY_SEND_BUFFER", "256")
	t.Setenv("RELAY_PING_INTERVAL", "30s")
	t.Setenv("RELAY_READ_TIMEOUT", "60s")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "doska.db", cfg.DBFile)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 256, cfg.RelaySendBuffer)
	assert.Equal(t, 30*time.Second, cfg.RelayPingInterval)
	assert.Equal(t, 60*time.Second, cfg.RelayReadTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DOSKA_DB", "/tmp/boards.db")
	t.Setenv("RELAY_SEND_BUFFER", "32")
	t.Setenv("RELAY_PING_INTERVAL", "5s")
	t.Setenv("RELAY_READ_TIMEOUT", "12s")
	t.Setenv("RELAY_WRITE_TIMEOUT", "2s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/boards.db", cfg.DBFile)
	assert.Equal(t, 32, cfg.RelaySendBuffer)
	assert.Equal(t, 12*time.Second, cfg.RelayReadTimeout)
	assert.Equal(t, 2*time.Second, cfg.RelayWriteTimeout)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"RELAY_SEND_BUFFER":   "many",
		"RELAY_PING_INTERVAL": "soon",
		"LOG_FORMAT":          "xml",
		"LOG_LEVEL":           "loud",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		DBFile:            "doska.db",
		LogLevel:          "info",
		LogFormat:         "text",
		RelaySendBuffer:   1,
		RelayPingInterval: time.Second,
		RelayReadTimeout:  2 * time.Second,
		RelayWriteTimeout: time.Second,
	}
	require.NoError(t, valid.Validate())

	c := valid
	c.RelayReadTimeout = time.Second
	assert.Error(t, c.Validate(), "read timeout must exceed ping interval")

	c = valid
	c.RelaySendBuffer = 0
	assert.Error(t, c.Validate())

	c = valid
	c.DBFile = ""
	assert.Error(t, c.Validate())
	c.DatabaseURL = "postgres://localhost/doska"
	assert.NoError(t, c.Validate())
}
