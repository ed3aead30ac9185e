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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.Search.K1)
	assert.Equal(t, 0.75, cfg.Search.B)
	assert.Equal(t, 4, cfg.Search.DefaultLimit)
	assert.Equal(t, StoreFile, cfg.Indexer.DocumentStore)
	assert.Equal(t, WritePolicyQueue, cfg.Indexer.WritePolicy)
	assert.True(t, cfg.Indexer.AutoSave)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
indexer:
  documentStore: sqlite
  writePolicy: reject
  persistTimeout: 5s
search:
  defaultLimit: 10
  k1: 1.2
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("BM25_SEARCH_B", "0.5")
	t.Setenv("BM25_REDIS_ADDR", "cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Indexer.DocumentStore)
	assert.Equal(t, WritePolicyReject, cfg.Indexer.WritePolicy)
	assert.Equal(t, 5*time.Second, cfg.Indexer.PersistTimeout)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 1.2, cfg.Search.K1)
	assert.Equal(t, 0.5, cfg.Search.B)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.Indexer.DocumentStore = "s3" }},
		{"unknown policy", func(c *Config) { c.Indexer.WritePolicy = "drop" }},
		{"zero limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxResults = 1; c.Search.DefaultLimit = 5 }},
		{"negative k1", func(c *Config) { c.Search.K1 = -0.1 }},
		{"b above one", func(c *Config) { c.Search.B = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
