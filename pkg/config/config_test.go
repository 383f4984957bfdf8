package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/sumrendra/memory-api/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file", func() {
			data := `version = 0

[storage]
provider = "sqlite"
sqlite_path = "/tmp/memory.db"

[embedding]
provider = "ollama"
dimensions = 1024
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Provider).To(Equal("sqlite"))
			Expect(cfg.Storage.SQLitePath).To(Equal("/tmp/memory.db"))
			Expect(cfg.Embedding.Provider).To(Equal("ollama"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(1024)))
		})

		It("loads all config fields", func() {
			data := `version = 0

[api]
listen = ":9000"

[storage]
provider = "postgres"
url = "postgres://localhost/rag"
schema = "mem"
table = "docs"
timeout = "5s"
auto_migrate = true
strict_delete = true

[embedding]
provider = "openai"
target = "http://localhost:9999/v1"
model = "text-embedding-3-large"
api_key = "sk-test"
dimensions = 3072
timeout = "1m"

[chunking]
size = 400
overlap = 40

[dedupe]
enabled = true
threshold = 0.9

[events]
provider = "kafka"
brokers = ["k1:9092", "k2:9092"]
topic = "docs"

[client]
api_target = "http://memory:9000"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.API.Listen).To(Equal(":9000"))
			Expect(cfg.Storage).To(Equal(config.StorageConfig{
				Provider:     "postgres",
				URL:          "postgres://localhost/rag",
				Schema:       "mem",
				Table:        "docs",
				Timeout:      "5s",
				AutoMigrate:  true,
				StrictDelete: true,
			}))
			Expect(cfg.Embedding.Provider).To(Equal("openai"))
			Expect(cfg.Embedding.Target).To(Equal("http://localhost:9999/v1"))
			Expect(cfg.Embedding.Model).To(Equal("text-embedding-3-large"))
			Expect(cfg.Embedding.APIKey).To(Equal("sk-test"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(3072)))
			Expect(cfg.EmbeddingTimeout()).To(Equal(time.Minute))
			Expect(cfg.StorageTimeout()).To(Equal(5 * time.Second))
			Expect(cfg.Chunking.Size).To(Equal(uint(400)))
			Expect(cfg.Chunking.Overlap).To(Equal(uint(40)))
			Expect(cfg.Dedupe.Enabled).To(BeTrue())
			Expect(cfg.Dedupe.Threshold).To(Equal(0.9))
			Expect(cfg.Events.Provider).To(Equal("kafka"))
			Expect(cfg.Events.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
			Expect(cfg.Events.Topic).To(Equal("docs"))
			Expect(cfg.Client.APITarget).To(Equal("http://memory:9000"))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[storage\nprovider = "), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config TOML"))
		})

		It("returns error for unsupported config version", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 99\n"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version 99"))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Storage.Provider = "sqlite"
			cfg.Dedupe.Enabled = true
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SaveConfig(nil)).To(MatchError(ContainSubstring("nil config")))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("storage.url", "postgres://db/rag")).To(Succeed())

			val, err := c.GetConfigValue("storage.url")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("postgres://db/rag"))
		})

		It("sets a uint config key", func() {
			Expect(c.SetConfigValue("chunking.size", "1200")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Chunking.Size).To(Equal(uint(1200)))
		})

		It("sets a bool config key", func() {
			Expect(c.SetConfigValue("dedupe.enabled", "true")).To(Succeed())

			val, err := c.GetConfigValue("dedupe.enabled")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("true"))
		})

		It("accepts qdrant as a storage provider", func() {
			Expect(c.SetConfigValue("storage.provider", "qdrant")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ResolvedStorageProvider()).To(Equal("qdrant"))
		})

		It("keeps a zero dedupe threshold across save and load", func() {
			Expect(c.SetConfigValue("dedupe.threshold", "0")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Dedupe.Threshold).To(BeZero())
		})

		It("splits comma separated brokers", func() {
			Expect(c.SetConfigValue("events.brokers", "a:9092, b:9092,")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Events.Brokers).To(Equal([]string{"a:9092", "b:9092"}))
		})

		It("returns error for unknown key", func() {
			err := c.SetConfigValue("proxy.upstream", "x")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		DescribeTable("rejects invalid values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring("invalid value for " + key)))
			},
			Entry("uint", "embedding.dimensions", "wide"),
			Entry("bool", "storage.auto_migrate", "maybe"),
			Entry("duration", "storage.timeout", "soon"),
			Entry("threshold above one", "dedupe.threshold", "1.5"),
			Entry("threshold below zero", "dedupe.threshold", "-0.1"),
			Entry("storage provider", "storage.provider", "mysql"),
			Entry("embedding provider", "embedding.provider", "cohere"),
			Entry("events provider", "events.provider", "nats"),
		)

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("storage.schema", "mem")).To(Succeed())
			Expect(c.SetConfigValue("storage.table", "docs")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Schema).To(Equal("mem"))
			Expect(cfg.Storage.Table).To(Equal("docs"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default value when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("api.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal(":8081"))

			val, err = c.GetConfigValue("dedupe.threshold")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("0.95"))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("storage.url")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("nonexistent")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns every key once in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(24))
			Expect(keys[0]).To(Equal("api.listen"))
			Expect(keys[len(keys)-1]).To(Equal("client.api_target"))

			seen := map[string]bool{}
			for _, k := range keys {
				Expect(seen).NotTo(HaveKey(k))
				seen[k] = true
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
		})

		It("rejects unknown keys", func() {
			Expect(config.IsValidConfigKey("vector_store.provider")).To(BeFalse())
			Expect(config.IsValidConfigKey("")).To(BeFalse())
		})
	})
})

var _ = Describe("Config helpers", func() {
	It("falls back to the default timeout for empty or invalid durations", func() {
		cfg := &config.Config{}
		Expect(cfg.StorageTimeout()).To(Equal(30 * time.Second))

		cfg.Embedding.Timeout = "nonsense"
		Expect(cfg.EmbeddingTimeout()).To(Equal(30 * time.Second))

		cfg.Embedding.Timeout = "-1s"
		Expect(cfg.EmbeddingTimeout()).To(Equal(30 * time.Second))
	})

	It("resolves the storage provider", func() {
		cfg := &config.Config{}
		Expect(cfg.ResolvedStorageProvider()).To(Equal("memory"))

		cfg.Storage.URL = "postgres://db/rag"
		Expect(cfg.ResolvedStorageProvider()).To(Equal("postgres"))

		cfg.Storage.Provider = "sqlite"
		Expect(cfg.ResolvedStorageProvider()).To(Equal("sqlite"))
	})

	It("normalizes a bare port into a listen address", func() {
		cfg := &config.Config{API: config.APIConfig{Listen: "8081"}}
		Expect(cfg.ListenAddr()).To(Equal(":8081"))

		cfg.API.Listen = "127.0.0.1:9000"
		Expect(cfg.ListenAddr()).To(Equal("127.0.0.1:9000"))
	})
})

var _ = Describe("PresetConfig", func() {
	DescribeTable("sets the embedding section",
		func(name, provider, model string, dims uint) {
			cfg, err := config.PresetConfig(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Embedding.Provider).To(Equal(provider))
			Expect(cfg.Embedding.Model).To(Equal(model))
			Expect(cfg.Embedding.Dimensions).To(Equal(dims))
			Expect(cfg.API.Listen).To(Equal(":8081"))
		},
		Entry("huggingface", "huggingface", "huggingface", "sentence-transformers/all-mpnet-base-v2", uint(768)),
		Entry("ollama", "ollama", "ollama", "nomic-embed-text", uint(768)),
		Entry("openai", "openai", "openai", "text-embedding-3-small", uint(1536)),
		Entry("mixed case", "OLLAMA", "ollama", "nomic-embed-text", uint(768)),
	)

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("anthropic")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("lists the preset names", func() {
		Expect(config.ValidPresetNames()).To(Equal([]string{"huggingface", "ollama", "openai"}))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(&config.Config{}))
	})

	It("rejects unsupported config version", func() {
		_, err := config.ParseConfigTOML([]byte("version = 2\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	setenv := func(key, value string) {
		prev, had := os.LookupEnv(key)
		Expect(os.Setenv(key, value)).To(Succeed())
		DeferCleanup(func() {
			if had {
				os.Setenv(key, prev)
			} else {
				os.Unsetenv(key)
			}
		})
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())

		for _, key := range []string{"DATABASE_URL", "PORT", "CHUNK_SIZE", "TABLE_NAME", "MEMORYAPI_STORAGE_URL",
			"POSTGRES_DB", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_HOST", "POSTGRES_PORT"} {
			if prev, had := os.LookupEnv(key); had {
				os.Unsetenv(key)
				DeferCleanup(os.Setenv, key, prev)
			}
		}
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("api.listen")).To(Equal(defaults.API.Listen))
		Expect(v.GetString("storage.schema")).To(Equal(defaults.Storage.Schema))
		Expect(v.GetUint("chunking.size")).To(Equal(defaults.Chunking.Size))
		Expect(v.GetFloat64("dedupe.threshold")).To(Equal(defaults.Dedupe.Threshold))
	})

	It("reads config file values over defaults", func() {
		data := `[chunking]
size = 300
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetUint("chunking.size")).To(Equal(uint(300)))
		Expect(v.GetUint("chunking.overlap")).To(Equal(uint(150)))
	})

	It("respects environment variables with the MEMORYAPI_ prefix", func() {
		setenv("MEMORYAPI_EVENTS_TOPIC", "audit")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("events.topic")).To(Equal("audit"))
	})

	It("reads legacy environment names", func() {
		setenv("DATABASE_URL", "postgres://legacy/rag")
		setenv("CHUNK_SIZE", "256")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("storage.url")).To(Equal("postgres://legacy/rag"))
		Expect(v.GetUint("chunking.size")).To(Equal(uint(256)))
	})

	It("prefers the MEMORYAPI_ name over the legacy name", func() {
		setenv("DATABASE_URL", "postgres://legacy/rag")
		setenv("MEMORYAPI_STORAGE_URL", "postgres://new/rag")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("storage.url")).To(Equal("postgres://new/rag"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[storage]
table = "from_file"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		setenv("TABLE_NAME", "from_env")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("storage.table")).To(Equal("from_env"))
	})

	Describe("FromViper", func() {
		It("materializes the merged configuration", func() {
			setenv("PORT", "9090")
			setenv("MEMORYAPI_EVENTS_BROKERS", "k1:9092,k2:9092")

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.FromViper(v)
			Expect(cfg.ListenAddr()).To(Equal(":9090"))
			Expect(cfg.Events.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
			Expect(cfg.Embedding.Provider).To(Equal("huggingface"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
			Expect(cfg.StorageTimeout()).To(Equal(30 * time.Second))
		})

		It("builds a postgres URL from discrete variables", func() {
			setenv("POSTGRES_DB", "rag")
			setenv("POSTGRES_USER", "mem")
			setenv("POSTGRES_PASSWORD", "s3cret")
			setenv("POSTGRES_HOST", "db")
			setenv("POSTGRES_PORT", "6543")

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.FromViper(v)
			Expect(cfg.Storage.URL).To(Equal("postgres://mem:s3cret@db:6543/rag"))
			Expect(cfg.ResolvedStorageProvider()).To(Equal("postgres"))
		})

		It("fills missing postgres parts with defaults instead of ignoring them", func() {
			setenv("POSTGRES_HOST", "db")

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.FromViper(v)
			Expect(cfg.Storage.URL).To(Equal("postgres://admin:password@db:5432/app"))
			Expect(cfg.ResolvedStorageProvider()).To(Equal("postgres"))
		})

		It("stays on the in-memory store without postgres variables", func() {
			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.FromViper(v)
			Expect(cfg.Storage.URL).To(BeEmpty())
			Expect(cfg.ResolvedStorageProvider()).To(Equal("memory"))
		})

		It("prefers an explicit database URL over postgres variables", func() {
			setenv("DATABASE_URL", "postgres://u@elsewhere/rag")
			setenv("POSTGRES_HOST", "db")

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.FromViper(v)
			Expect(cfg.Storage.URL).To(Equal("postgres://u@elsewhere/rag"))
		})
	})
})

var _ = Describe("BindFlags", func() {
	var tmpDir string

	fs := config.FlagSet{
		config.FlagListen:        {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
		config.FlagAPITarget:     {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "memoryapi server URL"},
		config.FlagEmbeddingDims: {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, fs, config.FlagListen, &listen)

		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, fs, []string{config.FlagListen})

		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		data := `[api]
listen = ":5555"
`
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, fs, config.FlagListen, &listen)

		config.BindRegisteredFlags(v, cmd, fs, []string{config.FlagListen})

		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, fs, []string{"nonexistent"})

		Expect(v.GetString("client.api_target")).To(Equal("http://localhost:8081"))
	})

	It("AddStringFlag pulls name, shorthand, and description from FlagSet", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, fs, config.FlagAPITarget, &target)

		f := cmd.Flags().Lookup("api-target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("a"))
		Expect(f.Usage).To(Equal("memoryapi server URL"))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().Client.APITarget))
	})

	It("AddUintFlag defaults from the config defaults", func() {
		cmd := &cobra.Command{Use: "test"}
		var dims uint
		config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &dims)

		f := cmd.Flags().Lookup("embedding-dimensions")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("768"))
		Expect(dims).To(Equal(uint(768)))
	})
})
