package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 3072, cfg.Embedding.Dimension)
	assert.Equal(t, 50, cfg.Batch.BatchSize)
	assert.Equal(t, 2, cfg.Batch.MaxBatches)
	assert.Equal(t, 300, cfg.Fetcher.PageSize)
	assert.Equal(t, time.Hour, cfg.Scheduler.Fetch.Interval)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
}

func TestLoad_NonExistent(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvPostgresDSN, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ValidYAML(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvPostgresDSN, "")
	path := filepath.Join(t.TempDir(), "tenderscope.yaml")
	content := `
storage:
  backend: postgres
  postgres:
    dsn: postgres://localhost/tenders
    via_bouncer: true
embedding:
  model: text-embedding-3-small
  dimension: 1536
batch:
  batch_size: 20
  delay: 5s
scheduler:
  embed:
    enabled: true
    interval: 6h
    start_delay: 1m
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost/tenders", cfg.Storage.Postgres.DSN)
	assert.True(t, cfg.Storage.Postgres.ViaBouncer)
	assert.Equal(t, 4, cfg.Storage.Postgres.MaxConns, "unset keys keep defaults")
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedding.Host)
	assert.Equal(t, 20, cfg.Batch.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Batch.Delay)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.Embed.Interval)
	assert.Equal(t, time.Minute, cfg.Scheduler.Embed.StartDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-test")
	t.Setenv(EnvPostgresDSN, "postgres://env/db")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embedding.Token)
	assert.Equal(t, "postgres://env/db", cfg.Storage.Postgres.DSN)
}

func TestSave_RoundTrip(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvPostgresDSN, "")
	path := filepath.Join(t.TempDir(), "out.yaml")

	cfg := DefaultConfig()
	cfg.Embedding.Dimension = 1536
	cfg.Scheduler.Reap.Enabled = false
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "interval: 1h0m0s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "sqlite" }},
		{"badger without path", func(c *Config) { c.Storage.Path = " " }},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = BackendPostgres }},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"zero batch size", func(c *Config) { c.Batch.BatchSize = 0 }},
		{"zero fetch interval", func(c *Config) { c.Scheduler.Fetch.Interval = 0 }},
		{"missing base url", func(c *Config) { c.Fetcher.BaseURL = "" }},
		{"default above max", func(c *Config) { c.Search.DefaultLimit = 500 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "":  slog.LevelInfo, "INFO": slog.LevelInfo,
		"warn": slog.LevelWarn, "warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
