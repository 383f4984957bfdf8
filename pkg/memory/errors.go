package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/sumrendra/memory-api/pkg/vector"
)

var (
	// ErrInvalidInput is returned for malformed requests such as blank text.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch is returned when the embedding width disagrees
	// with the configured or stored width.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmbeddingFailed is returned when the embedding provider errors or
	// returns an unusable result.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// DimensionMismatchError carries the three widths involved in a mismatch.
// Storage is nil when the store cannot report its width.
type DimensionMismatchError struct {
	Configured int
	Embedding  int
	Storage    *int
}

func (e *DimensionMismatchError) Error() string {
	db := "unknown"
	if e.Storage != nil {
		db = fmt.Sprint(*e.Storage)
	}
	return fmt.Sprintf("dimension mismatch: configured=%d embedding=%d db=%s", e.Configured, e.Embedding, db)
}

func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}

// IsRetryable reports whether a caller may retry the failed operation
// unchanged. Timeouts and provider or store outages are retryable; bad input
// and dimension mismatches are not. Write failures are only retryable when
// caused by a timeout.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDimensionMismatch):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, vector.ErrWriteFailed):
		return false
	case errors.Is(err, ErrEmbeddingFailed),
		errors.Is(err, vector.ErrEmbedding),
		errors.Is(err, vector.ErrStorageUnavailable),
		errors.Is(err, vector.ErrSearchFailed):
		return true
	default:
		return false
	}
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
