package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the store section.
const (
	EnvDSN         = "STAGECHAT_DSN"
	EnvStoreDriver = "STAGECHAT_STORE_DRIVER"
)

// Config represents the global ~/.stagechat/config.toml.
type Config struct {
	DefaultInstance string    `toml:"default_instance"`
	Store           Store     `toml:"store"`
	Messaging       Messaging `toml:"messaging"`
	Metrics         Metrics   `toml:"metrics"`
	Log             Log       `toml:"log"`
}

// Store selects the database. An empty DSN means the instance's own SQLite
// file.
type Store struct {
	Driver  string   `toml:"driver"`
	DSN     string   `toml:"dsn"`
	Timeout Duration `toml:"timeout"`
}

// Messaging holds limits passed to the messaging core.
type Messaging struct {
	MaxMessageLength int `toml:"max_message_length"`
	DefaultPageSize  int `toml:"default_page_size"`
	MaxPageSize      int `toml:"max_page_size"`
	DirectCacheSize  int `toml:"direct_cache_size"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `toml:"addr"`
}

// Log configures the daemon logger.
type Log struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultInstance: "main",
		Store: Store{
			Driver:  "sqlite3",
			Timeout: Duration{5 * time.Second},
		},
		Messaging: Messaging{
			MaxMessageLength: 4000,
			DefaultPageSize:  50,
			MaxPageSize:      100,
			DirectCacheSize:  1024,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config from the given path on top of the defaults. Returns an
// error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides store settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvStoreDriver); v != "" {
		c.Store.Driver = v
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
