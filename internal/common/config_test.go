package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8085, config.Server.Port)
	assert.Equal(t, 256, config.Redaction.MaxHitsPerTerm)
	assert.True(t, config.Detection.AIEnabled)
	assert.Equal(t, LLMProviderClaude, config.LLM.DefaultProvider)
	assert.Equal(t, int64(50<<20), config.MaxUploadBytes())
}

func TestLoadFromFilesMergesInOrder(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000
host = "0.0.0.0"

[redaction]
max_hits_per_term = 10
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9100

[detection]
ai_enabled = false
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 10, config.Redaction.MaxHitsPerTerm)
	assert.False(t, config.Detection.AIEnabled)
	assert.Equal(t, 4, config.Detection.PageConcurrency, "unset values keep their defaults")
}

func TestLoadFromFilesErrors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[server\nport = "), 0644))
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REDACTIQ_SERVER_PORT", "7777")
	t.Setenv("REDACTIQ_AI_ENABLED", "false")
	t.Setenv("REDACTIQ_LLM_PROVIDER", "Gemini")
	t.Setenv("REDACTIQ_LOG_OUTPUT", "stdout, file")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 7777, config.Server.Port)
	assert.False(t, config.Detection.AIEnabled)
	assert.Equal(t, LLMProviderGemini, config.LLM.DefaultProvider)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)

	ApplyFlagOverrides(config, 8000, "")
	assert.Equal(t, 8000, config.Server.Port)
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("REDACTIQ_CLAUDE_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := ResolveAPIKey("anthropic_api_key", "")
	assert.Error(t, err)

	key, err := ResolveAPIKey("anthropic_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	key, err = ResolveAPIKey("anthropic_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, ParseDuration("5m", time.Second))
	assert.Equal(t, time.Second, ParseDuration("", time.Second))
	assert.Equal(t, time.Second, ParseDuration("soon", time.Second))
	assert.Equal(t, time.Second, ParseDuration("-1m", time.Second))
}
