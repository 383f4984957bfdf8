// Package inmemory provides a process-local vector driver backed by a map.
// Contents are lost when the process exits.
package inmemory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/vector"
)

// Driver implements vector.Driver with brute-force cosine search.
type Driver struct {
	mu     sync.RWMutex
	docs   map[string][]vector.Chunk
	nextID int64

	dimensions int
	logger     *zap.Logger
}

// Config holds configuration for the in-memory driver.
type Config struct {
	// Dimensions is the required embedding width. Zero disables the width
	// check and Dimension reports ErrIntrospectionUnavailable.
	Dimensions int
}

var _ vector.Driver = (*Driver)(nil)

// NewDriver creates an empty in-memory driver.
func NewDriver(c Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		docs:       make(map[string][]vector.Chunk),
		dimensions: c.Dimensions,
		logger:     logger,
	}
}

// Upsert replaces every chunk of docID. Either all chunks are stored or none.
func (d *Driver) Upsert(_ context.Context, docID string, chunks []vector.Chunk) (int, error) {
	for i, c := range chunks {
		if d.dimensions > 0 && len(c.Embedding) != d.dimensions {
			return 0, fmt.Errorf("%w: chunk %d has %d dimensions, want %d",
				vector.ErrWriteFailed, i, len(c.Embedding), d.dimensions)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	stored := make([]vector.Chunk, 0, len(chunks))
	for _, c := range chunks {
		d.nextID++
		stored = append(stored, vector.Chunk{
			ID:        d.nextID,
			DocID:     docID,
			Text:      c.Text,
			Meta:      maps.Clone(c.Meta),
			Embedding: append([]float32(nil), c.Embedding...),
		})
	}

	if len(stored) == 0 {
		delete(d.docs, docID)
	} else {
		d.docs[docID] = stored
	}

	d.logger.Debug("upserted chunks in memory",
		zap.String("doc_id", docID),
		zap.Int("count", len(stored)),
	)

	return len(stored), nil
}

// Search scans every chunk and returns the closest matches.
func (d *Driver) Search(_ context.Context, q vector.Query) ([]vector.ScoredChunk, error) {
	if q.TopK <= 0 {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var candidates []vector.Chunk
	if q.DocID != "" {
		candidates = d.docs[q.DocID]
	} else {
		for _, chunks := range d.docs {
			candidates = append(candidates, chunks...)
		}
	}

	results := make([]vector.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if !vector.MatchesFilter(c.Meta, q.Filter) {
			continue
		}
		dist := vector.CosineDistance(q.Embedding, c.Embedding)
		results = append(results, vector.ScoredChunk{
			Chunk: vector.Chunk{
				ID:        c.ID,
				DocID:     c.DocID,
				Text:      c.Text,
				Meta:      maps.Clone(c.Meta),
				Embedding: c.Embedding,
			},
			Distance: dist,
			Score:    1 - dist,
		})
	}

	// ID breaks ties so results are stable across map iteration order.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

// Count returns the number of chunks stored for docID.
func (d *Driver) Count(_ context.Context, docID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs[docID]), nil
}

// Delete removes every chunk of docID.
func (d *Driver) Delete(_ context.Context, docID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.docs[docID])
	delete(d.docs, docID)
	return n, nil
}

// Dimension returns the configured width.
func (d *Driver) Dimension(_ context.Context) (int, error) {
	if d.dimensions == 0 {
		return 0, vector.ErrIntrospectionUnavailable
	}
	return d.dimensions, nil
}

func (d *Driver) Ping(_ context.Context) error {
	return nil
}

func (d *Driver) Close() error {
	return nil
}
