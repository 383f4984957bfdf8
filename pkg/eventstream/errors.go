package eventstream

import "errors"

var (
	// ErrNilEvent indicates a nil event payload was provided to a publisher.
	ErrNilEvent = errors.New("nil document event")

	// ErrQueueFull is returned by asynchronous publishers that drop events
	// instead of blocking.
	ErrQueueFull = errors.New("event queue full")
)
