package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-newsletter/internal/source"
	"ai-newsletter/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"NEWSDASH_SOURCE", "SUPABASE_URL", "SUPABASE_ANON_KEY", "DATABASE_URL", "NEWSDASH_FILE",
	"NEWSDASH_STORE", "NEWSDASH_STORE_PATH", "REDIS_URL", "PORT",
}

// clearEnv blanks every variable Load reads; empty values are ignored.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Defaults()
	require.NoError(t, err)

	assert.Equal(t, source.KindPostgREST, cfg.Source.Kind)
	assert.Equal(t, store.BackendBadger, cfg.Store.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, source.DefaultLimit, cfg.Limit)
	require.Len(t, cfg.Feeds, 2)
	assert.Equal(t, "bens_bites", cfg.Feeds[0].Name)

	w, err := cfg.UploadWindow()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, w)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
source:
  kind: rss
store:
  backend: sqlite
server:
  port: 9090
feeds:
  - name: import_ai
    url: https://importai.substack.com/feed
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, source.KindRSS, cfg.Source.Kind)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Limit, "unset keys keep their default")
	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, "import_ai", cfg.Feeds[0].Name)
	assert.Equal(t, DefaultStorePath(store.BackendSQLite), cfg.Store.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "source:\n  kind: file\n  file: a.json\n")
	t.Setenv("NEWSDASH_SOURCE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/news")
	t.Setenv("NEWSDASH_STORE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PORT", "3000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, source.KindPostgres, cfg.Source.Kind)
	assert.Equal(t, "postgres://u:p@localhost:5432/news", cfg.Source.DatabaseURL)
	assert.Equal(t, store.BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())

	opts := cfg.StoreOptions()
	assert.Equal(t, "redis://localhost:6379/0", opts.RedisURL)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	_, err = Load(writeConfig(t, "source: [unterminated"))
	assert.Error(t, err)

	t.Setenv("PORT", "eighty")
	_, err = Load(writeConfig(t, ""))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Defaults()
		require.NoError(t, err)
		cfg.Source.SupabaseURL = "https://abc.supabase.co"
		cfg.Source.SupabaseKey = "anon"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing supabase key", func(c *Config) { c.Source.SupabaseKey = "" }},
		{"bad supabase scheme", func(c *Config) { c.Source.SupabaseURL = "ftp://abc" }},
		{"unknown source", func(c *Config) { c.Source.Kind = "kafka" }},
		{"postgres without url", func(c *Config) { c.Source.Kind = source.KindPostgres }},
		{"file without path", func(c *Config) { c.Source.Kind = source.KindFile }},
		{"rss without feeds", func(c *Config) { c.Source.Kind = source.KindRSS; c.Feeds = nil }},
		{"rss feed without name", func(c *Config) {
			c.Source.Kind = source.KindRSS
			c.Feeds = []source.Feed{{URL: "https://x"}}
		}},
		{"unknown store", func(c *Config) { c.Store.Backend = "etcd" }},
		{"redis without url", func(c *Config) { c.Store.Backend = store.BackendRedis }},
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too big", func(c *Config) { c.Server.Port = 70000 }},
		{"limit zero", func(c *Config) { c.Limit = 0 }},
		{"limit too big", func(c *Config) { c.Limit = MaxLimit + 1 }},
		{"bad window", func(c *Config) { c.Upload.Window = "yesterday" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestUploadWindow_Disabled(t *testing.T) {
	for _, v := range []string{"", "0"} {
		cfg := &Config{Upload: UploadConfig{Window: v}}
		w, err := cfg.UploadWindow()
		require.NoError(t, err)
		assert.Zero(t, w)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NEWSDASH_TEST_VALUE=from-dotenv\n"), 0o644))
	t.Setenv("NEWSDASH_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("NEWSDASH_TEST_VALUE"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("NEWSDASH_TEST_VALUE"))
}
