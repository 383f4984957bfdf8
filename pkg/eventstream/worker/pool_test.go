package worker

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/sumrendra/memory-api/pkg/eventstream"
)

// recordingPublisher collects delivered events. If gate is set, Publish
// blocks until it is closed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.DocumentEvent
	gate   chan struct{}
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, e *eventstream.DocumentEvent) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newEvent(docID string) *eventstream.DocumentEvent {
	return eventstream.NewDocumentEvent(
		eventstream.EventTypeDocumentStored,
		eventstream.EventSource{},
		eventstream.DocumentChange{DocID: docID},
	)
}

var _ = Describe("Worker Pool", func() {
	var pub *recordingPublisher

	BeforeEach(func() {
		pub = &recordingPublisher{}
	})

	It("requires a publisher", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	It("applies defaults", func() {
		wp, err := NewPool(&Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())
		Expect(wp.config.NumWorkers).To(Equal(defaultNumWorkers))
		Expect(wp.config.QueueSize).To(Equal(defaultJobQueueSize))
		Expect(wp.Close()).To(Succeed())
	})

	It("delivers every queued event before Close returns", func() {
		wp, err := NewPool(&Config{Publisher: pub, Logger: zap.NewNop()})
		Expect(err).NotTo(HaveOccurred())

		for range 20 {
			Expect(wp.Publish(context.Background(), newEvent("d1"))).To(Succeed())
		}
		Expect(wp.Close()).To(Succeed())

		Expect(pub.count()).To(Equal(20))
		Expect(pub.closed).To(BeTrue())
	})

	It("rejects nil events", func() {
		wp, _ := NewPool(&Config{Publisher: pub})
		defer wp.Close()
		Expect(wp.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("drops events when the queue is full", func() {
		pub.gate = make(chan struct{})
		wp, err := NewPool(&Config{Publisher: pub, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		// The first event occupies the worker, the second fills the queue.
		Expect(wp.Publish(context.Background(), newEvent("a"))).To(Succeed())
		Eventually(func() int { return len(wp.queue) }).Should(Equal(0))
		Expect(wp.Publish(context.Background(), newEvent("b"))).To(Succeed())

		err = wp.Publish(context.Background(), newEvent("c"))
		Expect(errors.Is(err, eventstream.ErrQueueFull)).To(BeTrue())

		close(pub.gate)
		Expect(wp.Close()).To(Succeed())
		Expect(pub.count()).To(Equal(2))
	})

	It("keeps running after a delivery failure", func() {
		pub.err = errors.New("backend down")
		wp, _ := NewPool(&Config{Publisher: pub, NumWorkers: 1})

		Expect(wp.Publish(context.Background(), newEvent("a"))).To(Succeed())
		Expect(wp.Publish(context.Background(), newEvent("b"))).To(Succeed())
		Expect(wp.Close()).To(Succeed())
	})

	It("is safe to close twice", func() {
		wp, _ := NewPool(&Config{Publisher: pub})
		Expect(wp.Close()).To(Succeed())
		Expect(wp.Close()).To(Succeed())
	})
})
