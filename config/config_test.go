package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rikardbq/serf/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, ".serf", cfg.RootDir)
	assert.Equal(t, 12, cfg.DBMaxConns)
	assert.Equal(t, time.Hour, cfg.DBMaxIdleTime)
	assert.Equal(t, time.Hour, cfg.DBMaxLifetime)
	assert.Equal(t, 100, cfg.BodyLimitMB)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERF_HOST", "0.0.0.0")
	t.Setenv("SERF_PORT", "9090")
	t.Setenv("SERF_ROOT_DIR", "/srv/serf")
	t.Setenv("SERF_DB_MAX_CONN", "24")
	t.Setenv("SERF_DB_MAX_IDLE_TIME", "60")
	t.Setenv("SERF_DB_MAX_LIFETIME", "120")
	t.Setenv("SERF_BODY_LIMIT_MB", "10")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "/srv/serf", cfg.RootDir)
	assert.Equal(t, 24, cfg.DBMaxConns)
	assert.Equal(t, time.Minute, cfg.DBMaxIdleTime)
	assert.Equal(t, 2*time.Minute, cfg.DBMaxLifetime)
	assert.Equal(t, 10, cfg.BodyLimitMB)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("SERF_PORT", "not-a-number")
	_, err := config.LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigValidatesRanges(t *testing.T) {
	t.Setenv("SERF_PORT", "70000")
	_, err := config.LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigFallsBackOnBadDurations(t *testing.T) {
	t.Setenv("SERF_DB_MAX_IDLE_TIME", "-5")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.DBMaxIdleTime)
}
