package memory

// StoreRequest stores text under DocID, replacing any previous version.
type StoreRequest struct {
	DocID string         `json:"doc_id"`
	Text  string         `json:"text"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// StoreResult reports the number of chunks stored for the document after
// the write.
type StoreResult struct {
	DocID          string `json:"doc_id"`
	ChunksInserted int    `json:"chunks_inserted"`
}

// SearchRequest finds the chunks closest to Query.
type SearchRequest struct {
	Query  string         `json:"query"`
	TopK   int            `json:"top_k"`
	Filter map[string]any `json:"filter,omitempty"`
	DocID  string         `json:"doc_id,omitempty"`
}

// SearchHit is one ranked chunk. Meta excludes the id and doc_id keys.
type SearchHit struct {
	ID    int64          `json:"id"`
	DocID string         `json:"doc_id"`
	Chunk string         `json:"chunk"`
	Meta  map[string]any `json:"meta"`
	Score float64        `json:"score"`
}

// SearchResult lists hits in descending score order.
type SearchResult struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

// DeleteResult reports how many chunks were removed.
type DeleteResult struct {
	DocID         string `json:"doc_id"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// DimensionReport compares the configured, embedding and stored widths.
// DB is nil when the store cannot report its width.
type DimensionReport struct {
	Configured int  `json:"configured"`
	Embedding  int  `json:"embedding"`
	DB         *int `json:"db"`
	Match      bool `json:"match"`
}

// DedupeReport describes the dedupe settings.
type DedupeReport struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"`
}

// ConfigReport is the read-only view of the running configuration.
type ConfigReport struct {
	EmbeddingProvider string          `json:"embedding_provider"`
	EmbeddingModel    string          `json:"embedding_model"`
	Schema            string          `json:"schema"`
	Table             string          `json:"table"`
	ChunkSize         int             `json:"chunk_size"`
	ChunkOverlap      int             `json:"chunk_overlap"`
	VectorDim         DimensionReport `json:"vector_dim"`
	Dedupe            DedupeReport    `json:"dedupe"`
	Version           string          `json:"version"`
}
