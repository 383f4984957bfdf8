// Package embeddings
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts into embeddings in one provider call. The
	// result has one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Provider names the embedding backend, e.g. "ollama".
	Provider() string

	// Model names the embedding model.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}
