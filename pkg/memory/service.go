// Package memory stores documents as embedded chunks and answers similarity
// queries over them.
//
// A store call splits text into overlapping chunks, embeds them in one
// provider call, optionally drops near-duplicate chunks, and replaces every
// chunk previously stored under the same doc_id in a single transaction. A
// search call embeds the query and returns the closest chunks, optionally
// restricted by metadata and doc_id.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/chunker"
	"github.com/sumrendra/memory-api/pkg/dedupe"
	"github.com/sumrendra/memory-api/pkg/embeddings"
	"github.com/sumrendra/memory-api/pkg/eventstream"
	"github.com/sumrendra/memory-api/pkg/eventstream/nop"
	"github.com/sumrendra/memory-api/pkg/utils"
	"github.com/sumrendra/memory-api/pkg/vector"
)

const (
	// MaxTopK is the largest accepted top_k.
	MaxTopK = 100

	// DefaultTopK is used by the transports when a request omits top_k.
	DefaultTopK = 5

	defaultTimeout = 30 * time.Second

	metaDocID = "doc_id"
	metaID    = "id"
)

// DedupeConfig controls near-duplicate removal within a single store call.
type DedupeConfig struct {
	Enabled   bool
	Threshold float64
}

// Config holds the service dependencies. Everything is built once at
// startup and shared by all requests.
type Config struct {
	// Embedder produces vectors. Required.
	Embedder embeddings.Embedder

	// Driver persists and searches chunks. Required.
	Driver vector.Driver

	// Publisher receives document events. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// Splitter chunks text. Defaults to chunker.New().
	Splitter *chunker.Splitter

	// Dimensions is the configured embedding width. Required.
	Dimensions int

	Dedupe DedupeConfig

	// EmbeddingTimeout and StorageTimeout bound each external call.
	EmbeddingTimeout time.Duration
	StorageTimeout   time.Duration

	// Schema and Table are reported by Config.
	Schema string
	Table  string

	Logger *zap.Logger
}

// Service is the facade used by the HTTP and MCP transports.
type Service struct {
	embedder  embeddings.Embedder
	driver    vector.Driver
	publisher eventstream.Publisher
	splitter  *chunker.Splitter
	validator *Validator

	dimensions     int
	dedupe         DedupeConfig
	embedTimeout   time.Duration
	storageTimeout time.Duration
	schema         string
	table          string

	logger *zap.Logger
}

// NewService validates the dependencies and builds the service.
func NewService(c Config) (*Service, error) {
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Driver == nil {
		return nil, errors.New("vector driver is required")
	}
	if c.Dimensions <= 0 {
		return nil, errors.New("embedding dimensions must be positive")
	}
	if c.Dedupe.Enabled && (c.Dedupe.Threshold < 0 || c.Dedupe.Threshold > 1) {
		return nil, fmt.Errorf("dedupe threshold %v must be in [0, 1]", c.Dedupe.Threshold)
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.Splitter == nil {
		c.Splitter = chunker.New()
	}
	if c.EmbeddingTimeout == 0 {
		c.EmbeddingTimeout = defaultTimeout
	}
	if c.StorageTimeout == 0 {
		c.StorageTimeout = defaultTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	return &Service{
		embedder:       c.Embedder,
		driver:         c.Driver,
		publisher:      c.Publisher,
		splitter:       c.Splitter,
		validator:      NewValidator(c.Embedder, c.Driver, c.Dimensions, c.EmbeddingTimeout, c.StorageTimeout, c.Logger),
		dimensions:     c.Dimensions,
		dedupe:         c.Dedupe,
		embedTimeout:   c.EmbeddingTimeout,
		storageTimeout: c.StorageTimeout,
		schema:         c.Schema,
		table:          c.Table,
		logger:         c.Logger,
	}, nil
}

// Store replaces the document's chunks with the chunks of req.Text.
func (s *Service) Store(ctx context.Context, req StoreRequest) (*StoreResult, error) {
	if strings.TrimSpace(req.DocID) == "" {
		return nil, invalidInput("doc_id is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, invalidInput("text is empty")
	}

	report, err := s.validator.Validate(ctx)
	if err != nil {
		return nil, err
	}

	texts := s.split(req.Text)
	if len(texts) == 0 {
		return &StoreResult{DocID: req.DocID}, nil
	}

	vecs, err := s.embedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for _, vec := range vecs {
		if err := s.validator.CheckVector(vec, report); err != nil {
			return nil, err
		}
	}

	deduped := 0
	if s.dedupe.Enabled {
		before := len(texts)
		texts, vecs = dedupe.Dedupe(texts, vecs, s.dedupe.Threshold)
		deduped = before - len(texts)
	}

	meta := maps.Clone(req.Meta)
	if meta == nil {
		meta = map[string]any{}
	}
	meta[metaDocID] = req.DocID

	chunks := make([]vector.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = vector.Chunk{
			DocID:     req.DocID,
			Text:      text,
			Meta:      meta,
			Embedding: vecs[i],
		}
	}

	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	count, err := s.driver.Upsert(sctx, req.DocID, chunks)
	if err != nil {
		s.logger.Error("storing document failed",
			zap.String("doc_id", req.DocID),
			zap.Int("chunks", len(chunks)),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("document stored",
		zap.String("doc_id", req.DocID),
		zap.Int("chunks", count),
		zap.Int("deduped", deduped),
	)

	s.publish(ctx, eventstream.EventTypeDocumentStored, eventstream.DocumentChange{
		DocID:         req.DocID,
		Chunks:        count,
		ChunksDeduped: deduped,
		Meta:          req.Meta,
	})

	return &StoreResult{DocID: req.DocID, ChunksInserted: count}, nil
}

// Search returns the chunks closest to req.Query.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, invalidInput("query is empty")
	}
	if req.TopK < 1 || req.TopK > MaxTopK {
		return nil, invalidInput(fmt.Sprintf("top_k must be between 1 and %d", MaxTopK))
	}

	report, err := s.validator.Validate(ctx)
	if err != nil {
		return nil, err
	}

	ectx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	qvec, err := s.embedder.Embed(ectx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if err := s.validator.CheckVector(qvec, report); err != nil {
		return nil, err
	}

	sctx, scancel := context.WithTimeout(ctx, s.storageTimeout)
	defer scancel()

	rows, err := s.driver.Search(sctx, vector.Query{
		Embedding: qvec,
		TopK:      req.TopK,
		Filter:    req.Filter,
		DocID:     req.DocID,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(rows))
	for _, r := range rows {
		meta := maps.Clone(r.Meta)
		if meta == nil {
			meta = map[string]any{}
		}
		delete(meta, metaID)
		delete(meta, metaDocID)

		hits = append(hits, SearchHit{
			ID:    r.ID,
			DocID: r.DocID,
			Chunk: r.Text,
			Meta:  meta,
			Score: r.Score,
		})
	}

	s.logger.Debug("search complete",
		zap.String("query", utils.Truncate(req.Query, 60)),
		zap.Int("top_k", req.TopK),
		zap.Int("results", len(hits)),
	)

	return &SearchResult{Query: req.Query, Results: hits}, nil
}

// Delete removes every chunk stored under docID.
func (s *Service) Delete(ctx context.Context, docID string) (*DeleteResult, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, invalidInput("doc_id is required")
	}

	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	n, err := s.driver.Delete(sctx, docID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("document deleted",
		zap.String("doc_id", docID),
		zap.Int("chunks", n),
	)

	if n > 0 {
		s.publish(ctx, eventstream.EventTypeDocumentDeleted, eventstream.DocumentChange{
			DocID:  docID,
			Chunks: n,
		})
	}

	return &DeleteResult{DocID: docID, ChunksDeleted: n}, nil
}

// Config reports the running configuration. A dimension mismatch is
// reported with Match false rather than as an error.
func (s *Service) Config(ctx context.Context) (*ConfigReport, error) {
	report, err := s.validator.Validate(ctx)
	var mismatch *DimensionMismatchError
	if err != nil && !errors.As(err, &mismatch) {
		return nil, err
	}

	return &ConfigReport{
		EmbeddingProvider: s.embedder.Provider(),
		EmbeddingModel:    s.embedder.Model(),
		Schema:            s.schema,
		Table:             s.table,
		ChunkSize:         s.splitter.ChunkSize(),
		ChunkOverlap:      s.splitter.Overlap(),
		VectorDim:         *report,
		Dedupe: DedupeReport{
			Enabled:   s.dedupe.Enabled,
			Threshold: s.dedupe.Threshold,
		},
		Version: utils.Version,
	}, nil
}

// Health reports liveness. It touches no dependency.
func (s *Service) Health(_ context.Context) error {
	return nil
}

// Ready checks that the chunk store is reachable.
func (s *Service) Ready(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	return s.driver.Ping(sctx)
}

// split chunks text and drops chunks that are only whitespace.
func (s *Service) split(text string) []string {
	chunks := s.splitter.Split(text)
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	vecs, err := s.embedder.EmbedBatch(ectx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", ErrEmbeddingFailed, len(vecs), len(texts))
	}
	return vecs, nil
}

// publish hands the event to the publisher. Failures never fail the request.
func (s *Service) publish(ctx context.Context, eventType string, change eventstream.DocumentChange) {
	event := eventstream.NewDocumentEvent(eventType, eventstream.EventSource{
		Provider: s.embedder.Provider(),
		Model:    s.embedder.Model(),
	}, change)

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publishing event failed",
			zap.String("event_type", eventType),
			zap.String("doc_id", change.DocID),
			zap.Error(err),
		)
	}
}
