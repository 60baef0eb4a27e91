package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/strata/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Collab.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Collab.DrainTimeout)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: redis
  redis:
    addr: cache:6379
    db: 2
collab:
  idle_timeout: 30s
  queue_size: 8
log:
  format: json
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "strata", cfg.Store.Redis.Prefix)
	assert.Equal(t, 30*time.Second, cfg.Collab.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Collab.DrainTimeout)
	assert.Equal(t, 8, cfg.Collab.QueueSize)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown backend", "store:\n  backend: mongo\n", "Backend"},
		{"redis without addr", "store:\n  backend: redis\n  redis:\n    addr: \"\"\n", "Redis.Addr"},
		{"badger without path", "store:\n  backend: badger\n  badger:\n    path: \"\"\n", "Badger.Path"},
		{"zero queue", "collab:\n  queue_size: 0\n", "QueueSize"},
		{"zero drain", "collab:\n  drain_timeout: 0s\n", "DrainTimeout"},
		{"bad level", "log:\n  level: loud\n", "Level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_BadgerInMemoryNeedsNoPath(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "store:\n  backend: badger\n  badger:\n    path: \"\"\n    in_memory: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Store.Badger.InMemory)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = config.Load(writeConfig(t, "store: [\n"))
	assert.Error(t, err)
}
