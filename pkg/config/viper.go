package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/sumrendra/memory-api/pkg/dotdir"
)

// EnvPrefix is prepended to every dotted key when reading the environment,
// e.g. storage.url is read from MEMORYAPI_STORAGE_URL.
const EnvPrefix = "MEMORYAPI"

// legacyEnv maps config keys to the plain environment names accepted by
// earlier deployments. A MEMORYAPI_ variable wins over its legacy name.
var legacyEnv = map[string]string{
	"api.listen":           "PORT",
	"storage.url":          "DATABASE_URL",
	"storage.schema":       "RAG_SCHEMA",
	"storage.table":        "TABLE_NAME",
	"embedding.provider":   "EMBEDDING_PROVIDER",
	"embedding.model":      "EMBEDDING_MODEL_NAME",
	"embedding.api_key":    "OPENAI_API_KEY",
	"embedding.dimensions": "VECTOR_DIM",
	"chunking.size":        "CHUNK_SIZE",
	"chunking.overlap":     "CHUNK_OVERLAP",
	"dedupe.enabled":       "DEDUPE_ENABLED",
	"dedupe.threshold":     "DEDUPE_THRESHOLD",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MEMORYAPI_API_LISTEN, DATABASE_URL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	return v, nil
}

// FromViper materializes a Config from the merged viper state.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Storage: StorageConfig{
			Provider:     v.GetString("storage.provider"),
			URL:          v.GetString("storage.url"),
			SQLitePath:   v.GetString("storage.sqlite_path"),
			Schema:       v.GetString("storage.schema"),
			Table:        v.GetString("storage.table"),
			Timeout:      v.GetString("storage.timeout"),
			AutoMigrate:  v.GetBool("storage.auto_migrate"),
			StrictDelete: v.GetBool("storage.strict_delete"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			APIKey:     v.GetString("embedding.api_key"),
			Dimensions: v.GetUint("embedding.dimensions"),
			BatchSize:  v.GetUint("embedding.batch_size"),
			Timeout:    v.GetString("embedding.timeout"),
		},
		Chunking: ChunkingConfig{
			Size:    v.GetUint("chunking.size"),
			Overlap: v.GetUint("chunking.overlap"),
		},
		Dedupe: DedupeConfig{
			Enabled:   v.GetBool("dedupe.enabled"),
			Threshold: v.GetFloat64("dedupe.threshold"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  stringList(v, "events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
	}

	if cfg.Storage.URL == "" {
		cfg.Storage.URL = postgresURLFromEnv()
	}

	return cfg
}

// stringList reads a list that may come from TOML as an array or from the
// environment as a comma separated string.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, s := range v.GetStringSlice(key) {
		out = append(out, splitList(s)...)
	}
	return out
}

var postgresEnv = []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB"}

// postgresURLFromEnv builds a connection URL from the discrete POSTGRES_*
// variables. It returns "" when none of them is set; otherwise missing parts
// take their defaults.
func postgresURLFromEnv() string {
	set := false
	for _, key := range postgresEnv {
		if os.Getenv(key) != "" {
			set = true
			break
		}
	}
	if !set {
		return ""
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(envOr("POSTGRES_USER", "admin"), envOr("POSTGRES_PASSWORD", "password")),
		Host:   envOr("POSTGRES_HOST", "localhost") + ":" + envOr("POSTGRES_PORT", "5432"),
		Path:   "/" + envOr("POSTGRES_DB", "app"),
	}
	return u.String()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.url", d.Storage.URL)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.schema", d.Storage.Schema)
	v.SetDefault("storage.table", d.Storage.Table)
	v.SetDefault("storage.timeout", d.Storage.Timeout)
	v.SetDefault("storage.auto_migrate", d.Storage.AutoMigrate)
	v.SetDefault("storage.strict_delete", d.Storage.StrictDelete)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.timeout", d.Embedding.Timeout)

	// Chunking
	v.SetDefault("chunking.size", d.Chunking.Size)
	v.SetDefault("chunking.overlap", d.Chunking.Overlap)

	// Dedupe
	v.SetDefault("dedupe.enabled", d.Dedupe.Enabled)
	v.SetDefault("dedupe.threshold", d.Dedupe.Threshold)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)
}
