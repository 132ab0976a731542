// Package config loads bridge settings from YAML files.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the full set of settings understood by the bridge command.
type Config struct {
	Definition string   `mapstructure:"definition"` // Runtime definition file
	Store      string   `mapstructure:"store"`      // memory, redis, file or sqlite
	Sync       Sync     `mapstructure:"sync"`
	HTTP       HTTP     `mapstructure:"http"`
	Redis      Redis    `mapstructure:"redis"`
	File       File     `mapstructure:"file"`
	SQLite     SQLite   `mapstructure:"sqlite"`
	Security   Security `mapstructure:"security"`
	Log        Log      `mapstructure:"log"`
}

// Sync configures the sync engine.
type Sync struct {
	Mode     string        `mapstructure:"mode"`
	AutoSync bool          `mapstructure:"auto_sync"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// HTTP configures the HTTP surface.
type HTTP struct {
	Addr    string `mapstructure:"addr"`
	Metrics bool   `mapstructure:"metrics"`
}

// Redis configures the Redis store.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	Codec    string `mapstructure:"codec"` // json or cbor
}

// File configures the file store.
type File struct {
	Path string `mapstructure:"path"`
}

// SQLite configures the SQLite store.
type SQLite struct {
	Path string `mapstructure:"path"`
}

// Security configures store middleware. Keys are base64 encoded 32-byte AES keys.
type Security struct {
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	Encrypt       []string `mapstructure:"encrypt"` // path patterns to encrypt; empty means all
	Mask          []string `mapstructure:"mask"`    // key patterns masked in the store
}

// Keys decodes the active and fallback keys. The active key is nil when encryption is off.
func (s Security) Keys() ([]byte, [][]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err := decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	fallback := make([][]byte, 0, len(s.FallbackKeys))
	for _, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Log configures logging.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Store: "memory",
		Sync: Sync{
			Mode:     "bidirectional",
			AutoSync: true,
		},
		HTTP: HTTP{
			Addr:    ":8080",
			Metrics: true,
		},
		Redis: Redis{
			Addr:   "localhost:6379",
			Prefix: "bridge:",
			Codec:  "json",
		},
		File: File{
			Path: "bridge-store.yaml",
		},
		SQLite: SQLite{
			Path: "bridge.db",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file on top of the defaults.
// A missing file is not an error when path is empty.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML on top of the defaults.
func Parse(raw []byte) (Config, error) {
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return Decode(values)
}

// Decode applies loosely typed values on top of the defaults.
// Durations may be given as strings ("150ms") or integer nanoseconds.
func Decode(values map[string]any) (Config, error) {
	cfg := Default()
	if len(values) == 0 {
		return cfg, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Sync.Mode {
	case "push", "pull", "bidirectional":
	default:
		return fmt.Errorf("invalid sync mode %q", c.Sync.Mode)
	}
	switch c.Store {
	case "memory", "redis", "file", "sqlite":
	default:
		return fmt.Errorf("invalid store %q", c.Store)
	}
	switch c.Redis.Codec {
	case "json", "cbor":
	default:
		return fmt.Errorf("invalid redis codec %q", c.Redis.Codec)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if _, _, err := c.Security.Keys(); err != nil {
		return err
	}
	for _, p := range append(append([]string{}, c.Security.Encrypt...), c.Security.Mask...) {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	if c.Sync.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	return nil
}
