package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Primary.Env)
	assert.Equal(t, ":8080", cfg.Server.Address())
	assert.Equal(t, "logs/bot.log", cfg.Log.Path)
	assert.Equal(t, int64(10<<20), cfg.Log.MaxSize)
	assert.True(t, cfg.Log.Compress)
	assert.Equal(t, "data/bot.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.InitialDelay)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ARENDABOT_PRIMARY__ENV", "prod")
	t.Setenv("ARENDABOT_SERVER__PORT", "9000")
	t.Setenv("ARENDABOT_LOG__PATH", "/var/log/arendabot/bot.log")
	t.Setenv("ARENDABOT_LOG__FLUSH_INTERVAL", "2s")
	t.Setenv("ARENDABOT_SCHEDULER__INTERVAL", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Primary.Env)
	assert.Equal(t, ":9000", cfg.Server.Address())
	assert.Equal(t, "/var/log/arendabot/bot.log", cfg.Log.Path)
	assert.Equal(t, 2*time.Second, cfg.Log.FlushInterval)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.Interval)
	// Untouched values keep their defaults.
	assert.Equal(t, 7, cfg.Log.MaxBackups)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	t.Setenv("ARENDABOT_PRIMARY__ENV", "staging")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate")
}

func TestLoadConfig_RejectsTooShortSchedulerInterval(t *testing.T) {
	t.Setenv("ARENDABOT_SCHEDULER__INTERVAL", "500ms")

	_, err := LoadConfig()
	require.Error(t, err)
}
