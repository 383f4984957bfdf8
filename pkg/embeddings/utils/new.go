// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"time"

	"github.com/sumrendra/memory-api/pkg/embeddings"
	"github.com/sumrendra/memory-api/pkg/embeddings/huggingface"
	"github.com/sumrendra/memory-api/pkg/embeddings/ollama"
	"github.com/sumrendra/memory-api/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	BatchSize    int
	Timeout      time.Duration
}

// NewEmbedder picks the provider once at startup.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case ollama.ProviderName:
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
	case openai.ProviderName:
		return openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL: o.TargetURL,
			APIKey:  o.APIKey,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
	case huggingface.ProviderName:
		return huggingface.NewEmbedder(huggingface.EmbedderConfig{
			BaseURL:   o.TargetURL,
			Model:     o.Model,
			Token:     o.APIKey,
			BatchSize: o.BatchSize,
			Timeout:   o.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
