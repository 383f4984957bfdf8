package config

import "time"

const (
	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultSchema     = "rag"
	defaultTable      = "chunks"
	defaultSQLiteFile = "memory.db"

	defaultEmbeddingProvider   = "huggingface"
	defaultEmbeddingDimensions = 768

	defaultChunkSize    = 800
	defaultChunkOverlap = 150

	defaultDedupeThreshold = 0.95

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "memory.documents"

	defaultTimeout = 30 * time.Second
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. The embedding
// model and target are left empty so each provider applies its own.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Storage: StorageConfig{
			Schema:  defaultSchema,
			Table:   defaultTable,
			Timeout: defaultTimeout.String(),
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Dimensions: defaultEmbeddingDimensions,
			Timeout:    defaultTimeout.String(),
		},
		Chunking: ChunkingConfig{
			Size:    defaultChunkSize,
			Overlap: defaultChunkOverlap,
		},
		Dedupe: DedupeConfig{
			Threshold: defaultDedupeThreshold,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}

// DefaultSQLiteFile is the database file name used under the .memoryapi/
// directory when the sqlite provider has no explicit path.
const DefaultSQLiteFile = defaultSQLiteFile
