package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.handelsregister.de/rp_web", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HRFETCH_BASE_URL", "https://register.example/rp_web")
	t.Setenv("HRFETCH_TIMEOUT", "30s")
	t.Setenv("HRFETCH_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://register.example/rp_web", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestLoadClampsConcurrency(t *testing.T) {
	t.Setenv("HRFETCH_CONCURRENCY", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Concurrency)
}
