package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
serp:
  endpoint: http://oracle.local/search
pipeline:
  scheduler:
    batch_delay: 250ms
cache:
  driver: redis
  redis:
    addr: redis.local:6379
`)

	cfg, err := NewManager().Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://oracle.local/search", cfg.SERP.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.SERP.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.Scheduler.BatchDelay)
	assert.Equal(t, 5, cfg.Pipeline.Scheduler.BatchSize)
	assert.Equal(t, 15, cfg.Pipeline.Keywords.MaxResults)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "redis.local:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.False(t, cfg.VolumeEnabled())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "serp:\n  endpoint: http://oracle.local/search\n")
	t.Setenv("SERP_SERP_API_KEY", "secret")
	t.Setenv("SERP_WORKER_MAX_WORKERS", "7")
	t.Setenv("SERP_VOLUME_ENDPOINT", "http://volume.local/metrics")

	cfg, err := NewManager().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.SERP.APIKey)
	assert.Equal(t, 7, cfg.Worker.MaxWorkers)
	assert.True(t, cfg.VolumeEnabled())
}

func TestLoad_WithoutFile(t *testing.T) {
	t.Setenv("SERP_SERP_ENDPOINT", "http://oracle.local/search")

	cfg, err := NewManager().Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing endpoint", "server:\n  port: 8080\n"},
		{"bad port", "server:\n  port: 70000\nserp:\n  endpoint: http://x\n"},
		{"unknown storage", "serp:\n  endpoint: http://x\nstorage:\n  driver: postgres\n"},
		{"unknown cache", "serp:\n  endpoint: http://x\ncache:\n  driver: memcached\n"},
		{"zero batch", "serp:\n  endpoint: http://x\npipeline:\n  scheduler:\n    batch_size: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager().Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestReload(t *testing.T) {
	path := writeConfig(t, "serp:\n  endpoint: http://oracle.local/search\n")
	m := NewManager()
	assert.Error(t, m.Reload())

	_, err := m.Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("serp:\n  endpoint: http://other.local/search\n"), 0o600))
	require.NoError(t, m.Reload())
	assert.Equal(t, "http://other.local/search", m.GetConfig().SERP.Endpoint)
}
