package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agentgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "tools:updates", cfg.Redis.QueueKey)
	assert.Equal(t, 100, cfg.Publisher.BufferSize)
	assert.Equal(t, 10*time.Second, cfg.Discovery.ResyncTimeout())
	assert.Empty(t, cfg.Discovery.Servers)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
model:
  provider: anthropic
  name: claude-sonnet-4-0
discovery:
  resyncTimeoutSeconds: 5
  servers:
    - name: github
      url: http://localhost:7007/rpc
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "claude-sonnet-4-0", cfg.Model.Name)
	assert.Equal(t, 5*time.Second, cfg.Discovery.ResyncTimeout())
	require.Len(t, cfg.Discovery.Servers, 1)
	assert.Equal(t, "github", cfg.Discovery.Servers[0].Name)

	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 100, cfg.Publisher.BufferSize)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
`)

	t.Setenv("AGENTGATE_ADDR", ":7777")
	t.Setenv("AGENTGATE_LOG_LEVEL", "debug")
	t.Setenv("AGENTGATE_REDIS_ENABLED", "true")
	t.Setenv("AGENTGATE_REDIS_DB", "3")
	t.Setenv("AGENTGATE_MODEL_PROVIDER", "mock")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "mock", cfg.Model.Provider)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAMLFails(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
model:
  provider: bedrock
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}

func TestLoadRejectsIncompleteServerEntry(t *testing.T) {
	path := writeConfig(t, `
discovery:
  servers:
    - name: github
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name and url are required")
}

func TestLoadRejectsNonPositiveResyncTimeout(t *testing.T) {
	t.Setenv("AGENTGATE_RESYNC_TIMEOUT_SECONDS", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resync timeout")
}
