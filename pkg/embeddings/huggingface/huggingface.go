// Package huggingface implements pkg/embedding's Embedder client for a
// Hugging Face text-embeddings-inference server, which serves
// sentence-transformers models over HTTP.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sumrendra/memory-api/pkg/embeddings"
	"github.com/sumrendra/memory-api/pkg/vector"
)

const (
	// ProviderName identifies this embedder in configuration.
	ProviderName = "huggingface"

	// DefaultEmbeddingModel is reported when no model is configured. The
	// server decides which model it actually serves.
	DefaultEmbeddingModel = "sentence-transformers/all-mpnet-base-v2"

	// DefaultBaseURL is the default text-embeddings-inference address.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultBatchSize matches the server's default --max-client-batch-size.
	DefaultBatchSize = 32
)

// Embedder calls the text-embeddings-inference /embed endpoint.
type Embedder struct {
	baseURL    string
	model      string
	token      string
	batchSize  int
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the Hugging Face embedder.
type EmbedderConfig struct {
	BaseURL string
	Model   string

	// Token is sent as a bearer token when set (Inference Endpoints).
	Token string

	// BatchSize caps the inputs per /embed request. Defaults to 32.
	BatchSize int

	// Timeout bounds each HTTP call. Defaults to 120s.
	Timeout time.Duration
}

type embedRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
	Truncate  bool     `json:"truncate"`
}

// NewEmbedder creates a new text-embeddings-inference embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Embedder{
		baseURL:   baseURL,
		model:     model,
		token:     cfg.Token,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order, sending at most BatchSize inputs per
// /embed call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{
		Inputs:    texts,
		Normalize: true,
		Truncate:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %w", vector.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %w", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: huggingface returned status %d: %s", vector.ErrEmbedding, resp.StatusCode, string(body))
	}

	var out [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", vector.ErrEmbedding, err)
	}

	if len(out) != len(texts) {
		return nil, fmt.Errorf("%w: huggingface returned %d embeddings for %d inputs",
			vector.ErrEmbedding, len(out), len(texts))
	}

	return out, nil
}

func (e *Embedder) Provider() string { return ProviderName }

func (e *Embedder) Model() string { return e.model }

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
