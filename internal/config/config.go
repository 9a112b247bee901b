// Package config loads runtime settings from defaults, an optional YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	Addr        string     `yaml:"addr"`
	Store       string     `yaml:"store"`
	DatabaseURL string     `yaml:"database_url"`
	Log         LogConfig  `yaml:"log"`
	OIDC        OIDCConfig `yaml:"oidc"`
	Feed        FeedConfig `yaml:"feed"`
}

// LogConfig selects logger level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OIDCConfig enables sign-in through a hosted OpenID Connect provider.
type OIDCConfig struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Enabled reports whether any OIDC setting is present.
func (o OIDCConfig) Enabled() bool {
	return o.Issuer != "" || o.ClientID != "" || o.ClientSecret != ""
}

// FeedConfig tunes live view aggregation.
type FeedConfig struct {
	ChartWindow int `yaml:"chart_window"`
	LabelEvery  int `yaml:"label_every"`
	EnrichLimit int `yaml:"enrich_limit"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:  ":8080",
		Store: StoreMemory,
		Log:   LogConfig{Level: "info", Format: "json"},
		Feed:  FeedConfig{ChartWindow: 15, LabelEvery: 3, EnrichLimit: 16},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// FromEnv builds the configuration using getenv. HYPERTENSION_CONFIG names an
// optional YAML file; individual variables override file values.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := getenv("HYPERTENSION_CONFIG"); path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}

	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}
	envInt := func(key string, fallback int) (int, error) {
		v := getenv(key)
		if v == "" {
			return fallback, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	}

	cfg.Addr = env("ADDR", cfg.Addr)
	cfg.Store = env("STORE", cfg.Store)
	cfg.DatabaseURL = env("DATABASE_URL", cfg.DatabaseURL)
	cfg.Log.Level = env("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env("LOG_FORMAT", cfg.Log.Format)
	cfg.OIDC.Issuer = env("OIDC_ISSUER", cfg.OIDC.Issuer)
	cfg.OIDC.ClientID = env("OIDC_CLIENT_ID", cfg.OIDC.ClientID)
	cfg.OIDC.ClientSecret = env("OIDC_CLIENT_SECRET", cfg.OIDC.ClientSecret)

	var err error
	if cfg.Feed.ChartWindow, err = envInt("CHART_WINDOW", cfg.Feed.ChartWindow); err != nil {
		return cfg, err
	}
	if cfg.Feed.EnrichLimit, err = envInt("ENRICH_LIMIT", cfg.Feed.EnrichLimit); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store %q: must be %q or %q", c.Store, StoreMemory, StorePostgres))
	}
	if c.OIDC.Enabled() && (c.OIDC.Issuer == "" || c.OIDC.ClientID == "") {
		errs = append(errs, errors.New("oidc requires both issuer and client_id"))
	}
	if c.Feed.ChartWindow < 2 {
		errs = append(errs, errors.New("chart_window must be at least 2"))
	}
	if c.Feed.LabelEvery < 1 {
		errs = append(errs, errors.New("label_every must be positive"))
	}
	if c.Feed.EnrichLimit < 1 {
		errs = append(errs, errors.New("enrich_limit must be positive"))
	}
	return errors.Join(errs...)
}
