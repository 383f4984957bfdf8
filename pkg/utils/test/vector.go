package testutils

import (
	"context"

	"github.com/sumrendra/memory-api/pkg/vector"
	"github.com/sumrendra/memory-api/pkg/vector/inmemory"
)

// MockVectorDriver is an in-memory vector driver with injectable failures.
type MockVectorDriver struct {
	*inmemory.Driver

	UpsertErr    error
	SearchErr    error
	DeleteErr    error
	DimensionErr error
	PingErr      error

	// Dim overrides the reported storage dimension when non-zero.
	Dim int

	Upserts int
}

func NewMockVectorDriver(dimensions int) *MockVectorDriver {
	return &MockVectorDriver{
		Driver: inmemory.NewDriver(inmemory.Config{Dimensions: dimensions}, nil),
	}
}

func (m *MockVectorDriver) Upsert(ctx context.Context, docID string, chunks []vector.Chunk) (int, error) {
	m.Upserts++
	if m.UpsertErr != nil {
		return 0, m.UpsertErr
	}
	return m.Driver.Upsert(ctx, docID, chunks)
}

func (m *MockVectorDriver) Search(ctx context.Context, q vector.Query) ([]vector.ScoredChunk, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.Driver.Search(ctx, q)
}

func (m *MockVectorDriver) Delete(ctx context.Context, docID string) (int, error) {
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	return m.Driver.Delete(ctx, docID)
}

func (m *MockVectorDriver) Dimension(ctx context.Context) (int, error) {
	if m.DimensionErr != nil {
		return 0, m.DimensionErr
	}
	if m.Dim != 0 {
		return m.Dim, nil
	}
	return m.Driver.Dimension(ctx)
}

func (m *MockVectorDriver) Ping(ctx context.Context) error {
	if m.PingErr != nil {
		return m.PingErr
	}
	return m.Driver.Ping(ctx)
}
