package vector

import "errors"

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStorageUnavailable is returned when the store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrWriteFailed is returned when an upsert could not be committed.
	ErrWriteFailed = errors.New("write failed")

	// ErrSearchFailed is returned when a similarity query fails to execute.
	ErrSearchFailed = errors.New("search failed")

	// ErrIntrospectionUnavailable is returned when the schema does not
	// expose the embedding width.
	ErrIntrospectionUnavailable = errors.New("dimension introspection unavailable")
)
