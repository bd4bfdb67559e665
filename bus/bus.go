package bus

import (
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 64

// Bus fans values of type T out to any number of [Subscription]s. Each
// call to [Bus.Publish] delivers one copy of v to every active
// subscription via a buffered channel with ring-buffer semantics: when a
// subscriber's channel is full the oldest entry is dropped so Publish
// never blocks. Safe for concurrent use.
//
// Create instances with [New].
type Bus[T any] struct {
	subscribers []*Subscription[T]
	bufSize     int
	mu          sync.Mutex
	closed      bool
}

// New creates a Bus with the given options. The default buffer size is 64.
func New[T any](opts ...Option[T]) *Bus[T] {
	b := &Bus[T]{
		bufSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Option configures a [Bus].
type Option[T any] func(*Bus[T])

// WithBufferSize sets the channel buffer size for new subscriptions.
// Values less than 1 are clamped to 1.
func WithBufferSize[T any](n int) Option[T] {
	return func(b *Bus[T]) {
		if n < 1 {
			n = 1
		}

		b.bufSize = n
	}
}

// Publish delivers v to all active subscribers. When a subscriber's
// channel is full the oldest entry is dropped to make room. Closed
// subscriptions are compacted out of the subscriber list.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	// Compact closed subscriptions and deliver in one pass.
	alive := b.subscribers[:0]

	for _, sub := range b.subscribers {
		if sub.closed.Load() {
			close(sub.ch)
			continue
		}
		// Ring-buffer: drop oldest if full.
		select {
		case sub.ch <- v:
		default:
			<-sub.ch

			sub.ch <- v
		}

		alive = append(alive, sub)
	}
	// Clear trailing references for GC.
	for i := len(alive); i < len(b.subscribers); i++ {
		b.subscribers[i] = nil
	}

	b.subscribers = alive
}

// Subscribe creates and registers a new [Subscription]. If the Bus is
// already closed the returned subscription's channel is immediately
// closed.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription[T]{
		ch: make(chan T, b.bufSize),
	}

	if b.closed {
		close(sub.ch)
		return sub
	}

	b.subscribers = append(b.subscribers, sub)

	return sub
}

// Close marks the Bus as closed, closes all subscription channels, and
// releases the subscriber list. Idempotent.
func (b *Bus[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}

	b.subscribers = nil

	return nil
}

// Subscription receives values from a [Bus].
type Subscription[T any] struct {
	ch     chan T
	closed atomic.Bool
}

// C returns the read-only channel that delivers values. Callers must not
// rely on mutating what they receive if T is itself a reference type.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close marks the subscription as closed. The Bus will close the
// underlying channel on its next Publish or Close call. Idempotent.
func (s *Subscription[T]) Close() {
	s.closed.Store(true)
}
