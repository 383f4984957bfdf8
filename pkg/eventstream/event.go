package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentStored is emitted after a document's chunks are replaced.
	EventTypeDocumentStored = "memory.document.stored"

	// EventTypeDocumentDeleted is emitted after a document is removed.
	EventTypeDocumentDeleted = "memory.document.deleted"
)

// DocumentEvent is a transport-neutral event payload for a document change.
type DocumentEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	Document      DocumentChange `json:"document"`
}

// EventSource identifies the embedding backend that produced the chunks.
type EventSource struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// DocumentChange describes what happened to the document.
type DocumentChange struct {
	DocID         string         `json:"doc_id"`
	Chunks        int            `json:"chunks"`
	ChunksDeduped int            `json:"chunks_deduped,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// NewDocumentEvent stamps a new event with an ID and the current time.
func NewDocumentEvent(eventType string, source EventSource, change DocumentChange) *DocumentEvent {
	return &DocumentEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Document:      change,
	}
}
