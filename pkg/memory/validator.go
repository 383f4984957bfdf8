package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sumrendra/memory-api/pkg/embeddings"
	"github.com/sumrendra/memory-api/pkg/vector"
)

// probeText is embedded once to learn the provider's output width.
const probeText = "dimension probe"

// Validator checks that the embedder, the configuration and the store agree
// on the vector width. The embedder's width is probed once and cached for
// the life of the process; the store is asked on every call.
type Validator struct {
	embedder   embeddings.Embedder
	driver     vector.Driver
	configured int

	embedTimeout   time.Duration
	storageTimeout time.Duration
	logger         *zap.Logger

	mu           sync.RWMutex
	embeddingDim int
	probe        singleflight.Group
}

// NewValidator creates a validator for the configured width.
func NewValidator(
	embedder embeddings.Embedder,
	driver vector.Driver,
	configured int,
	embedTimeout, storageTimeout time.Duration,
	logger *zap.Logger,
) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		embedder:       embedder,
		driver:         driver,
		configured:     configured,
		embedTimeout:   embedTimeout,
		storageTimeout: storageTimeout,
		logger:         logger,
	}
}

// Validate returns the dimension report. A report with Match false is
// returned together with a *DimensionMismatchError.
func (v *Validator) Validate(ctx context.Context) (*DimensionReport, error) {
	embeddingDim, err := v.embeddingDimension(ctx)
	if err != nil {
		return nil, err
	}

	report := &DimensionReport{
		Configured: v.configured,
		Embedding:  embeddingDim,
	}

	storageDim, err := v.storageDimension(ctx)
	switch {
	case errors.Is(err, vector.ErrIntrospectionUnavailable):
		v.logger.Debug("storage dimension unavailable, comparing embedding to configuration only")
	case err != nil:
		return nil, err
	default:
		report.DB = &storageDim
	}

	report.Match = embeddingDim == v.configured && (report.DB == nil || *report.DB == v.configured)
	if !report.Match {
		return report, &DimensionMismatchError{
			Configured: report.Configured,
			Embedding:  report.Embedding,
			Storage:    report.DB,
		}
	}
	return report, nil
}

// CheckVector rejects a vector whose width differs from the configured one.
func (v *Validator) CheckVector(vec []float32, report *DimensionReport) error {
	if len(vec) == v.configured {
		return nil
	}
	var db *int
	if report != nil {
		db = report.DB
	}
	return &DimensionMismatchError{
		Configured: v.configured,
		Embedding:  len(vec),
		Storage:    db,
	}
}

func (v *Validator) embeddingDimension(ctx context.Context) (int, error) {
	v.mu.RLock()
	dim := v.embeddingDim
	v.mu.RUnlock()
	if dim > 0 {
		return dim, nil
	}

	// Concurrent first callers share one probe. The probe is detached from
	// the caller's cancellation since its result is shared.
	res, err, _ := v.probe.Do("probe", func() (any, error) {
		v.mu.RLock()
		cached := v.embeddingDim
		v.mu.RUnlock()
		if cached > 0 {
			return cached, nil
		}

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.embedTimeout)
		defer cancel()

		vec, err := v.embedder.Embed(pctx, probeText)
		if err != nil {
			return 0, fmt.Errorf("%w: probing embedding dimension: %w", ErrEmbeddingFailed, err)
		}
		if len(vec) == 0 {
			return 0, fmt.Errorf("%w: provider returned an empty embedding", ErrEmbeddingFailed)
		}

		v.mu.Lock()
		v.embeddingDim = len(vec)
		v.mu.Unlock()

		v.logger.Info("probed embedding dimension",
			zap.String("provider", v.embedder.Provider()),
			zap.String("model", v.embedder.Model()),
			zap.Int("dimensions", len(vec)),
		)
		return len(vec), nil
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

func (v *Validator) storageDimension(ctx context.Context) (int, error) {
	sctx, cancel := context.WithTimeout(ctx, v.storageTimeout)
	defer cancel()
	return v.driver.Dimension(sctx)
}
