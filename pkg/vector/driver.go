// Package vector provides interfaces and implementations for chunk storage
// and similarity search over embeddings.
package vector

import "context"

// Chunk is one stored fragment of a document.
type Chunk struct {
	// ID is assigned by the store on insert.
	ID int64

	// DocID groups chunks into a document.
	DocID string

	// Text is the chunk content.
	Text string

	// Meta is the document metadata with doc_id set.
	Meta map[string]any

	// Embedding has exactly the configured dimension.
	Embedding []float32
}

// Query describes a similarity search.
type Query struct {
	Embedding []float32

	// TopK caps the number of results.
	TopK int

	// Filter requires every top-level key to be present in a chunk's meta
	// with an equal value.
	Filter map[string]any

	// DocID restricts results to one document when non-empty.
	DocID string
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk

	// Distance is the cosine distance to the query embedding.
	Distance float64

	// Score is 1 - Distance (higher = more similar).
	Score float64
}

// Driver handles storage and retrieval of document chunks.
type Driver interface {
	// Upsert replaces every chunk of docID with chunks in a single
	// transaction and returns the number of rows stored for docID after
	// the commit.
	Upsert(ctx context.Context, docID string, chunks []Chunk) (int, error)

	// Search returns up to query.TopK chunks ordered by ascending cosine
	// distance.
	Search(ctx context.Context, query Query) ([]ScoredChunk, error)

	// Count returns the number of chunks stored for docID.
	Count(ctx context.Context, docID string) (int, error)

	// Delete removes every chunk of docID and returns how many were removed.
	Delete(ctx context.Context, docID string) (int, error)

	// Dimension reports the embedding width declared by the storage schema.
	// Returns ErrIntrospectionUnavailable when the schema cannot say.
	Dimension(ctx context.Context) (int, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
