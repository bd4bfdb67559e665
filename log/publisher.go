package log

import (
	"github.com/replicantd/core/bus"
)

const defaultBufferSize = 64

// Publisher is an [io.Writer] that fans out written bytes to subscribers.
//
// Each call to [Publisher.Write] copies the input once and publishes the
// copy on an underlying [bus.Bus][[]byte] -- ring-buffer delivery semantics
// and all -- so Write never blocks on a slow or absent subscriber. Safe for
// concurrent use.
//
// Create instances with [NewPublisher].
type Publisher struct {
	bus *bus.Bus[[]byte]
}

// NewPublisher creates a [Publisher] with the given options.
// The default buffer size is 64.
func NewPublisher(opts ...PublisherOption) *Publisher {
	bufSize := defaultBufferSize
	for _, opt := range opts {
		opt(&bufSize)
	}

	return &Publisher{bus: bus.New[[]byte](bus.WithBufferSize[[]byte](bufSize))}
}

// PublisherOption configures a [Publisher].
type PublisherOption func(bufSize *int)

// WithBufferSize sets the channel buffer size for new subscriptions.
// Values less than 1 are clamped to 1.
func WithBufferSize(n int) PublisherOption {
	return func(bufSize *int) {
		if n < 1 {
			n = 1
		}

		*bufSize = n
	}
}

// Write copies b and publishes the copy to all active subscribers. Write
// always returns len(b), nil.
func (p *Publisher) Write(b []byte) (int, error) {
	entry := make([]byte, len(b))
	copy(entry, b)

	p.bus.Publish(entry)

	return len(b), nil
}

// Subscribe creates and registers a new [Subscription]. If the Publisher is
// already closed the returned subscription's channel is immediately closed.
func (p *Publisher) Subscribe() *Subscription {
	return p.bus.Subscribe()
}

// Close marks the Publisher as closed, closes all subscription channels,
// and releases the subscriber list. Idempotent.
func (p *Publisher) Close() error {
	return p.bus.Close()
}

// Subscription receives log entries from a [Publisher].
type Subscription = bus.Subscription[[]byte]
