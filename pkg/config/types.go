package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent memoryapi configuration stored as
// config.toml in the .memoryapi/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Dedupe    DedupeConfig    `toml:"dedupe"`
	Events    EventsConfig    `toml:"events"`
	Client    ClientConfig    `toml:"client"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig selects and configures the chunk store.
type StorageConfig struct {
	// Provider is "postgres", "sqlite", "qdrant" or "memory". Empty picks
	// postgres when URL is set and memory otherwise.
	Provider string `toml:"provider,omitempty"`

	// URL is the PostgreSQL connection URL, or the Qdrant gRPC endpoint
	// (http(s)://host:6334, optional api_key query parameter).
	URL        string `toml:"url,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
	Schema     string `toml:"schema,omitempty"`
	Table      string `toml:"table,omitempty"`

	// Timeout is a Go duration string bounding each store call.
	Timeout      string `toml:"timeout,omitempty"`
	AutoMigrate  bool   `toml:"auto_migrate,omitempty"`
	StrictDelete bool   `toml:"strict_delete,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`

	// BatchSize caps the inputs sent in one provider request. Zero uses
	// the provider default.
	BatchSize uint `toml:"batch_size,omitempty"`

	// Timeout is a Go duration string bounding each provider call.
	Timeout string `toml:"timeout,omitempty"`
}

// ChunkingConfig holds text splitting settings, in characters.
type ChunkingConfig struct {
	Size    uint `toml:"size,omitempty"`
	Overlap uint `toml:"overlap,omitempty"`
}

// DedupeConfig controls near-duplicate chunk removal.
type DedupeConfig struct {
	Enabled   bool    `toml:"enabled,omitempty"`
	Threshold float64 `toml:"threshold"`
}

// EventsConfig selects the document event publisher.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (e.g. memoryapi store, memoryapi search). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// StorageTimeout parses Storage.Timeout, falling back to the default.
func (c *Config) StorageTimeout() time.Duration {
	return parseDuration(c.Storage.Timeout, defaultTimeout)
}

// EmbeddingTimeout parses Embedding.Timeout, falling back to the default.
func (c *Config) EmbeddingTimeout() time.Duration {
	return parseDuration(c.Embedding.Timeout, defaultTimeout)
}

// ResolvedStorageProvider returns the storage provider to use.
func (c *Config) ResolvedStorageProvider() string {
	if c.Storage.Provider != "" {
		return c.Storage.Provider
	}
	if c.Storage.URL != "" {
		return "postgres"
	}
	return "memory"
}

// ListenAddr normalizes API.Listen so a bare port such as "8081" becomes ":8081".
func (c *Config) ListenAddr() string {
	if _, err := strconv.Atoi(c.API.Listen); err == nil {
		return ":" + c.API.Listen
	}
	return c.API.Listen
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func oneOfKey(name string, allowed []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, a := range allowed {
				if v == a {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for %s: %q (allowed: %s)", name, v, strings.Join(allowed, ", "))
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"storage.provider":      oneOfKey("storage.provider", []string{"postgres", "sqlite", "qdrant", "memory"}, func(c *Config) *string { return &c.Storage.Provider }),
	"storage.url":           stringKey(func(c *Config) *string { return &c.Storage.URL }),
	"storage.sqlite_path":   stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.schema":        stringKey(func(c *Config) *string { return &c.Storage.Schema }),
	"storage.table":         stringKey(func(c *Config) *string { return &c.Storage.Table }),
	"storage.timeout":       durationKey("storage.timeout", func(c *Config) *string { return &c.Storage.Timeout }),
	"storage.auto_migrate":  boolKey("storage.auto_migrate", func(c *Config) *bool { return &c.Storage.AutoMigrate }),
	"storage.strict_delete": boolKey("storage.strict_delete", func(c *Config) *bool { return &c.Storage.StrictDelete }),

	"embedding.provider":   oneOfKey("embedding.provider", []string{"huggingface", "ollama", "openai"}, func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.api_key":    stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.batch_size": uintKey("embedding.batch_size", func(c *Config) *uint { return &c.Embedding.BatchSize }),
	"embedding.timeout":    durationKey("embedding.timeout", func(c *Config) *string { return &c.Embedding.Timeout }),

	"chunking.size":    uintKey("chunking.size", func(c *Config) *uint { return &c.Chunking.Size }),
	"chunking.overlap": uintKey("chunking.overlap", func(c *Config) *uint { return &c.Chunking.Overlap }),

	"dedupe.enabled": boolKey("dedupe.enabled", func(c *Config) *bool { return &c.Dedupe.Enabled }),
	"dedupe.threshold": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Dedupe.Threshold, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for dedupe.threshold: %w", err)
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("invalid value for dedupe.threshold: %v must be in [0, 1]", f)
			}
			c.Dedupe.Threshold = f
			return nil
		},
	},

	"events.provider": oneOfKey("events.provider", []string{"nop", "kafka"}, func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = splitList(v)
			return nil
		},
	},
	"events.topic": stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
}

// splitList splits a comma separated list, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
