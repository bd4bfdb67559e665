package bus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicantd/core/bus"
)

func TestBusPublishDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	b := bus.New[int]()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	b.Publish(42)

	assert.Equal(t, 42, <-sub1.C())
	assert.Equal(t, 42, <-sub2.C())
}

func TestBusRingBufferDropsOldest(t *testing.T) {
	t.Parallel()

	b := bus.New[string](bus.WithBufferSize[string](2))
	sub := b.Subscribe()

	b.Publish("a")
	b.Publish("b")
	b.Publish("c")

	assert.Equal(t, "b", <-sub.C())
	assert.Equal(t, "c", <-sub.C())
}

func TestBusBufferSizeClampedToOne(t *testing.T) {
	t.Parallel()

	b := bus.New[int](bus.WithBufferSize[int](0))
	sub := b.Subscribe()

	assert.Equal(t, 1, cap(sub.C()))
}

func TestBusCloseClosesSubscriptions(t *testing.T) {
	t.Parallel()

	b := bus.New[int]()
	sub := b.Subscribe()

	require.NoError(t, b.Close())

	_, open := <-sub.C()
	assert.False(t, open)
}

func TestBusPublishAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	b := bus.New[int]()
	sub := b.Subscribe()

	require.NoError(t, b.Close())

	b.Publish(1)

	_, open := <-sub.C()
	assert.False(t, open)
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	t.Parallel()

	b := bus.New[int]()
	sub := b.Subscribe()

	b.Publish(1)
	sub.Close()

	// Trigger compaction.
	b.Publish(2)

	got := <-sub.C()
	assert.Equal(t, 1, got)

	_, open := <-sub.C()
	assert.False(t, open)
}
