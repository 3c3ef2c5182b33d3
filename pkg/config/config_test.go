package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 5, cfg.Store.TxMaxRetries)
	assert.Equal(t, 30, cfg.Cache.TTLSeconds)
	assert.Empty(t, cfg.Cache.RedisAddr, "sin REDIS_ADDR el cache queda deshabilitado")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TX_MAX_RETRIES", "9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 9, cfg.Store.TxMaxRetries)
}
