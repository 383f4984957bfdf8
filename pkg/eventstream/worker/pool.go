// Package worker provides an asynchronous worker pool that forwards document
// events to an eventstream.Publisher.
//
// The pool decouples event delivery from the request path so that store and
// delete latency does not depend on the event backend.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultTimeout           = 10 * time.Second
)

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher delivers events. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Timeout bounds each delivery (defaults to 10s).
	Timeout time.Duration

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool publishes events asynchronously via a worker pool. It implements
// eventstream.Publisher so it can stand in for the publisher it wraps.
type Pool struct {
	config *Config
	queue  chan *eventstream.DocumentEvent
	wg     sync.WaitGroup
	logger *zap.Logger

	closeOnce sync.Once
}

var _ eventstream.Publisher = (*Pool)(nil)

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *eventstream.DocumentEvent, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Publish submits an event for delivery without blocking. Returns
// ErrQueueFull if the queue is full, resulting in the event being dropped.
func (p *Pool) Publish(_ context.Context, event *eventstream.DocumentEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	select {
	case p.queue <- event:
		p.logger.Debug("event queued",
			zap.String("event_type", event.EventType),
			zap.String("doc_id", event.Document.DocID),
		)
		return nil
	default:
		p.logger.Error("event not queued, queue full, event dropped",
			zap.String("event_type", event.EventType),
			zap.String("doc_id", event.Document.DocID),
		)
		return eventstream.ErrQueueFull
	}
}

// Close signals workers to stop, waits for queued events to drain and then
// closes the wrapped publisher. Call this during graceful shutdown after the
// HTTP server has stopped.
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
		err = p.config.Publisher.Close()
	})
	return err
}

// worker is the inner worker thread that continuously pulls events off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for event := range p.queue {
		p.deliver(event)
	}

	p.logger.Debug("event worker stopped", zap.Uint("worker_id", id))
}

// deliver publishes one event. Failures are logged, not retried.
func (p *Pool) deliver(event *eventstream.DocumentEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	if err := p.config.Publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("event delivery failed",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID),
			zap.String("doc_id", event.Document.DocID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("event delivered",
		zap.String("event_type", event.EventType),
		zap.String("event_id", event.EventID),
	)
}
