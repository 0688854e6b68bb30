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
	cfg := NewDefaultConfig()

	assert.Equal(t, 3, cfg.Scheduler.MaxConcurrentJobs)
	assert.Equal(t, "1s", cfg.Scheduler.PollInterval)
	assert.Equal(t, "30m", cfg.Scheduler.CleanupInterval)
	assert.Equal(t, "12h", cfg.Scheduler.RetentionWindow)
	assert.Equal(t, 2, cfg.Scheduler.DefaultMaxAttempts)

	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, "1s", cfg.LLM.InitialDelay)
	assert.Equal(t, "10s", cfg.LLM.MaxDelay)
	assert.Equal(t, LLMProviderClaude, cfg.LLM.FallbackProvider)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 100, cfg.Cache.MaxSize)
	assert.Equal(t, "30m", cfg.Cache.TTL)

	assert.Equal(t, 4000, cfg.Reports.TokenBudget)
	assert.Equal(t, "standard", cfg.Reports.DefaultTemplate)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reportgen.toml")
	content := `
environment = "production"

[server]
port = 9090

[scheduler]
max_concurrent_jobs = 5

[cache]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Scheduler.MaxConcurrentJobs)
	assert.False(t, cfg.Cache.Enabled)
	// Untouched sections keep defaults.
	assert.Equal(t, "30m", cfg.Scheduler.CleanupInterval)
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("REPORTGEN_PORT", "7070")
	t.Setenv("REPORTGEN_BADGER_PATH", "/tmp/reportgen-test-db")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/reportgen-test-db", cfg.Storage.Badger.Path)
	assert.Equal(t, "sk-test-key", cfg.Claude.APIKey)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Scheduler.MaxConcurrentJobs = 0
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Scheduler.PollInterval = "soon"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.LLM.FallbackProvider = "mistral"
	assert.Error(t, cfg.Validate())
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 8181, "0.0.0.0")
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 8181, cfg.Server.Port, "zero values must not override")
}

func TestMustDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, MustDuration("90s"))
	assert.Panics(t, func() { MustDuration("never") })
}
