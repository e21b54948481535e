package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err, "missing config file should fall back to defaults")

	assert.Equal(t, "http://localhost:8080", cfg.SearxNG.BaseURL)
	assert.Equal(t, 3, cfg.Research.MaxDepth)
	assert.Equal(t, 30*time.Second, cfg.Coordination.AgentTimeout)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestLoadFromFile(t *testing.T) {
	writeConfig(t, `
searxng:
  base_url: http://searx.internal:8888
  timeout: 5s
research:
  max_depth: 2
redis:
  enabled: true
  addr: redis.internal:6379
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://searx.internal:8888", cfg.SearxNG.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.SearxNG.Timeout)
	assert.Equal(t, 2, cfg.Research.MaxDepth)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	// Sections absent from the file keep defaults.
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	writeConfig(t, "research:\n  max_depth: 2\n")
	t.Setenv("RESEARCH_RESEARCH_MAX_DEPTH", "4")
	t.Setenv("RESEARCH_SEARXNG_BASE_URL", "http://env-searx:8080")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Research.MaxDepth, "env should override the file")
	assert.Equal(t, "http://env-searx:8080", cfg.SearxNG.BaseURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	writeConfig(t, "research:\n  max_depth: 9\n")
	_, err := Load()
	assert.Error(t, err, "max_depth out of range must be rejected")
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.SearxNG.BaseURL = "http://localhost:8080"
	cfg.SearxNG.SafeSearch = 1
	cfg.Research.MaxDepth = 3
	cfg.Coordination.AgentTimeout = 30 * time.Second
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.Coordination.AgentTimeout = 100 * time.Millisecond
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.SearxNG.SafeSearch = 3
	assert.Error(t, bad.Validate())
}
