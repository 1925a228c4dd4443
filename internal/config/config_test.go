package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p := cfg.Paths()
	assert.Equal(t, "/opt/airflow/data", p.InputDir)
	assert.Equal(t, "/opt/airflow/destination", p.OutputDir)
	assert.Equal(t, "part-*.csv", p.Pattern)
	assert.Equal(t, "/opt/airflow/data/staging_merged.parquet", p.Merged)
	assert.Equal(t, "/opt/airflow/data/staging_enriched.parquet", p.Enriched)
	assert.Equal(t, "/opt/airflow/data/staging_transformed.parquet", p.Transformed)
	assert.Equal(t, "/opt/airflow/destination/processed_restaurants.parquet", p.OutputParquet)
	assert.Equal(t, "/opt/airflow/destination/processed_restaurants.csv", p.OutputCSV)
	assert.Equal(t, 5*time.Second, cfg.Geocoder.Timeout)
	assert.Zero(t, cfg.Geocoder.CacheSize)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restaurants.yaml")
	content := `
data_dir: /srv/in
dest_dir: /srv/out
pattern: "part-*.json"
geocoder:
  timeout: 10s
  cache_size: 128
secrets:
  backend: sqlite
server:
  schedule: "@hourly"
  watch: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/in", cfg.DataDir)
	assert.Equal(t, "part-*.json", cfg.Pattern)
	assert.Equal(t, 10*time.Second, cfg.Geocoder.Timeout)
	assert.Equal(t, 128, cfg.Geocoder.CacheSize)
	assert.Equal(t, "sqlite", cfg.Secrets.Backend)
	assert.Equal(t, "@hourly", cfg.Server.Schedule)
	assert.True(t, cfg.Server.Watch)

	// Unset sections keep their defaults.
	assert.Equal(t, "staging_merged.parquet", cfg.Files.Merged)
	assert.Equal(t, "lat", cfg.Columns.Latitude)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RESTAURANTS_DATA_DIR", "/env/in")
	t.Setenv("RESTAURANTS_DEST_DIR", "/env/out")
	t.Setenv("RESTAURANTS_DB", "/env/runs.db")
	t.Setenv("RESTAURANTS_SECRETS_BACKEND", "keychain")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/in", cfg.DataDir)
	assert.Equal(t, "/env/out", cfg.DestDir)
	assert.Equal(t, "/env/runs.db", cfg.Database.Path)
	assert.Equal(t, "keychain", cfg.Secrets.Backend)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("data_dir: [unterminated"), 0644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"empty dest dir", func(c *Config) { c.DestDir = "" }, "dest_dir"},
		{"bad pattern", func(c *Config) { c.Pattern = "part-[" }, "invalid pattern"},
		{"zero timeout", func(c *Config) { c.Geocoder.Timeout = 0 }, "timeout"},
		{"negative cache", func(c *Config) { c.Geocoder.CacheSize = -1 }, "cache_size"},
		{"unknown backend", func(c *Config) { c.Secrets.Backend = "vault" }, "secrets backend"},
		{"no geohash column", func(c *Config) { c.Columns.Geohash = "" }, "columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
