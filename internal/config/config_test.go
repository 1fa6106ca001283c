package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 0.05, cfg.Contamination)
	assert.Equal(t, 150, cfg.NEstimators)
	assert.Equal(t, 256, cfg.MaxSamples)
	assert.Equal(t, 0.8, cfg.MaxFeatures)
	assert.Equal(t, int64(42), cfg.RandomSeed)
	assert.Equal(t, 500, cfg.SyntheticEquipment)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)

	a := cfg.Anomaly()
	assert.Equal(t, int64(512<<20), a.MemoryLimit)
	assert.Positive(t, a.Workers)
	assert.Equal(t, 500, cfg.Synthetic().Equipment)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "contamination: 0.1\nn_estimators: 50\ncache_ttl: 30s\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("N_ESTIMATORS", "75")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Contamination)
	assert.Equal(t, 75, cfg.NEstimators, "env overrides file")
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis:6380", cfg.RedisAddr)
}

func TestLoadRejectsBadContamination(t *testing.T) {
	t.Setenv("CONTAMINATION", "0.9")
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "contamination")
}
