// Package config loads settings from the YAML file, .env and the environment.
package config

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ai-newsletter/internal/source"
	"ai-newsletter/internal/store"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const appName = "newsdash"

// MaxLimit caps how many rows a single load may request.
const MaxLimit = 1000

type SourceConfig struct {
	Kind        string `yaml:"kind"`
	SupabaseURL string `yaml:"supabase_url"`
	SupabaseKey string `yaml:"supabase_anon_key"`
	DatabaseURL string `yaml:"database_url"`
	File        string `yaml:"file"`
}

type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	Prefix   string `yaml:"prefix"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type UploadConfig struct {
	Window string `yaml:"window"`
	Enrich bool   `yaml:"enrich"`
}

type Config struct {
	Source SourceConfig  `yaml:"source"`
	Store  StoreConfig   `yaml:"store"`
	Server ServerConfig  `yaml:"server"`
	Limit  int           `yaml:"limit"`
	Feeds  []source.Feed `yaml:"feeds"`
	Upload UploadConfig  `yaml:"upload"`
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// DefaultStorePath is where a file-backed favorites store lives.
func DefaultStorePath(backend string) string {
	if backend == store.BackendSQLite {
		return filepath.Join(xdg.DataHome, appName, "favorites.db")
	}
	return filepath.Join(xdg.DataHome, appName, "favorites")
}

// Defaults returns the embedded configuration.
func Defaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv loads path into the environment without overriding variables
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load layers the file at path over the defaults, then applies environment
// overrides. An empty path means DefaultConfigPath, which may be absent.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath(cfg.Store.Backend)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"NEWSDASH_SOURCE":     &c.Source.Kind,
		"SUPABASE_URL":        &c.Source.SupabaseURL,
		"SUPABASE_ANON_KEY":   &c.Source.SupabaseKey,
		"DATABASE_URL":        &c.Source.DatabaseURL,
		"NEWSDASH_FILE":       &c.Source.File,
		"NEWSDASH_STORE":      &c.Store.Backend,
		"NEWSDASH_STORE_PATH": &c.Store.Path,
		"REDIS_URL":           &c.Store.RedisURL,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// UploadWindow parses upload.window; empty or "0" disables the filter.
func (c *Config) UploadWindow() (time.Duration, error) {
	if c.Upload.Window == "" || c.Upload.Window == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Upload.Window)
	if err != nil {
		return 0, fmt.Errorf("upload.window: %w", err)
	}
	return d, nil
}

// StoreOptions converts the store section for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:  c.Store.Backend,
		Path:     c.Store.Path,
		RedisURL: c.Store.RedisURL,
		Prefix:   c.Store.Prefix,
	}
}

func (c *Config) Validate() error {
	switch c.Source.Kind {
	case source.KindPostgREST:
		if c.Source.SupabaseURL == "" || c.Source.SupabaseKey == "" {
			return errors.New("source postgrest: SUPABASE_URL and SUPABASE_ANON_KEY are required")
		}
		if err := httpURL(c.Source.SupabaseURL); err != nil {
			return fmt.Errorf("source postgrest: %w", err)
		}
	case source.KindPostgres:
		if c.Source.DatabaseURL == "" {
			return errors.New("source postgres: DATABASE_URL is required")
		}
	case source.KindRSS:
		if len(c.Feeds) == 0 {
			return errors.New("source rss: at least one feed is required")
		}
		for i, f := range c.Feeds {
			if f.Name == "" {
				return fmt.Errorf("feed %d: name is required", i)
			}
			if err := httpURL(f.URL); err != nil {
				return fmt.Errorf("feed %q: %w", f.Name, err)
			}
		}
	case source.KindFile:
		if c.Source.File == "" {
			return errors.New("source file: a file path is required")
		}
	default:
		return fmt.Errorf("unknown source %q (valid: postgrest, postgres, rss, file)", c.Source.Kind)
	}

	valid := false
	for _, b := range store.Backends {
		if c.Store.Backend == b {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == store.BackendRedis && c.Store.RedisURL == "" {
		return errors.New("store redis: REDIS_URL is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Limit < 1 || c.Limit > MaxLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", MaxLimit, c.Limit)
	}
	if _, err := c.UploadWindow(); err != nil {
		return err
	}
	return nil
}

func httpURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}
