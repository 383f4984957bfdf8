package testutils

import (
	"context"
	"fmt"
	"sync"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	// Embeddings maps exact input text to the vector returned for it.
	Embeddings map[string][]float32

	// Dimensions is the width of generated vectors for unmapped text.
	// Defaults to 3.
	Dimensions int

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Err, when set, is returned by every call.
	Err error

	mu         sync.Mutex
	calls      int
	batchCalls int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Dimensions: 3,
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.embed(ctx, text)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *MockEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	return m.generate(text), nil
}

// generate buckets runes by code point so similar texts get similar vectors.
func (m *MockEmbedder) generate(text string) []float32 {
	dims := m.Dimensions
	if dims <= 0 {
		dims = 3
	}
	v := make([]float32, dims)
	v[0] = 1
	for _, r := range text {
		v[int(r)%dims]++
	}
	return v
}

// Calls reports the number of Embed calls.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// BatchCalls reports the number of EmbedBatch calls.
func (m *MockEmbedder) BatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

func (m *MockEmbedder) Provider() string { return "mock" }

func (m *MockEmbedder) Model() string { return "mock-model" }

func (m *MockEmbedder) Close() error {
	return nil
}
