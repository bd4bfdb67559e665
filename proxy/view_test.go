package proxy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicantd/core/op"
	"github.com/replicantd/core/proxy"
)

// fakeSink is a minimal [proxy.Sink] double: DryRun always succeeds unless
// reject is set, CloneRoot deep-copies via JSON-shaped map/slice literals
// (good enough for the plain map/slice trees these tests build), and
// Enqueue just records every accepted Operation in order.
type fakeSink struct {
	owner         proxy.Owner
	authoritative bool
	reject        error
	root          any
	ops           []op.Operation
}

func newFakeSink(owner string, authoritative bool, root any) *fakeSink {
	return &fakeSink{owner: proxy.Owner{Namespace: "ns", Name: owner}, authoritative: authoritative, root: root}
}

func (s *fakeSink) Owner() proxy.Owner         { return s.owner }
func (s *fakeSink) Authoritative() bool        { return s.authoritative }
func (s *fakeSink) DryRun(candidate any) error { return s.reject }

func (s *fakeSink) CloneRoot() any {
	return cloneValue(s.root)
}

func (s *fakeSink) Enqueue(o op.Operation) {
	s.ops = append(s.ops, o)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}

		return out
	default:
		return v
	}
}

func TestViewSetAddAndUpdate(t *testing.T) {
	t.Parallel()

	root := map[string]any{"title": "hello"}
	sink := newFakeSink("dashboard", true, root)

	v, err := proxy.Wrap(sink, root, func(any) {})
	require.NoError(t, err)

	require.NoError(t, v.Set("subtitle", "world"))
	require.NoError(t, v.Set("title", "updated"))

	assert.Equal(t, "world", root["subtitle"])
	assert.Equal(t, "updated", root["title"])

	require.Len(t, sink.ops, 2)
	assert.Equal(t, op.Add, sink.ops[0].Method)
	assert.Equal(t, op.Update, sink.ops[1].Method)
}

func TestViewSetNoopOnEqualValue(t *testing.T) {
	t.Parallel()

	root := map[string]any{"n": float64(1)}
	sink := newFakeSink("counter", true, root)

	v, err := proxy.Wrap(sink, root, func(any) {})
	require.NoError(t, err)

	require.NoError(t, v.Set("n", float64(1)))
	assert.Empty(t, sink.ops)
}

func TestViewDeleteOnAbsentKeyIsNoop(t *testing.T) {
	t.Parallel()

	root := map[string]any{"a": 1}
	sink := newFakeSink("dashboard", true, root)

	v, err := proxy.Wrap(sink, root, func(any) {})
	require.NoError(t, err)

	require.NoError(t, v.Delete("missing"))
	assert.Empty(t, sink.ops)
	assert.Contains(t, root, "a")
}

func TestViewDeleteRemovesKeyAndEnqueues(t *testing.T) {
	t.Parallel()

	root := map[string]any{"a": 1, "b": 2}
	sink := newFakeSink("dashboard", true, root)

	v, err := proxy.Wrap(sink, root, func(any) {})
	require.NoError(t, err)

	require.NoError(t, v.Delete("a"))
	assert.NotContains(t, root, "a")
	require.Len(t, sink.ops, 1)
	assert.Equal(t, op.Delete, sink.ops[0].Method)
}

func TestViewSetDryRunRejectionLeavesTreeUntouched(t *testing.T) {
	t.Parallel()

	root := map[string]any{"title": "hello"}
	sink := newFakeSink("dashboard", true, root)
	sink.reject = assert.AnError

	v, err := proxy.Wrap(sink, root, func(any) {})
	require.NoError(t, err)

	err = v.Set("title", "rejected")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "hello", root["title"])
	assert.Empty(t, sink.ops)
}

func TestViewSubscriberSetDoesNotWriteThrough(t *testing.T) {
	t.Parallel()

	root := map[string]any{"title": "hello"}
	sink := newFakeSink("dashboard", false, root)

	v, err := proxy.Wrap(sink, root, func(any) {})
	require.NoError(t, err)

	require.NoError(t, v.Set("title", "proposed"))

	// Subscriber-side writes take effect only once the authoritative echo
	// is replayed; the local tree is unchanged and the operation is merely
	// queued for transmission.
	assert.Equal(t, "hello", root["title"])
	require.Len(t, sink.ops, 1)
	assert.Equal(t, op.Update, sink.ops[0].Method)
}

func TestViewNestedCompositeIsWrapped(t *testing.T) {
	t.Parallel()

	root := map[string]any{"user": map[string]any{"name": "ren"}}
	sink := newFakeSink("dashboard", true, root)

	v, err := proxy.Wrap(sink, root, func(any) {})
	require.NoError(t, err)

	child, ok := v.Get("user")
	require.True(t, ok)

	childView, ok := child.(*proxy.View)
	require.True(t, ok)
	assert.Equal(t, "/user", childView.Path())

	require.NoError(t, childView.Set("name", "kai"))
	assert.Equal(t, "kai", root["user"].(map[string]any)["name"])
}

func TestViewSetRootKeyEscapesIntoPath(t *testing.T) {
	t.Parallel()

	root := map[string]any{}
	sink := newFakeSink("dashboard", true, root)

	v, err := proxy.Wrap(sink, root, func(any) {})
	require.NoError(t, err)

	require.NoError(t, v.Set("a/b", float64(1)))

	require.Len(t, sink.ops, 1)
	assert.Equal(t, op.Operation{
		Path:   "/a~1b",
		Method: op.Add,
		Args:   op.Args{Prop: "a/b", NewValue: float64(1)},
	}, sink.ops[0])
	assert.Equal(t, float64(1), root["a/b"])

	// The exact operation a root-level add emits must also replay
	// correctly through Mutate, since it is what gets broadcast and
	// applied on every subscriber.
	replayed := map[string]any{}
	out, err := proxy.Mutate(replayed, sink.ops[0])
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a/b": float64(1)}, out)
}

func TestViewCrossOwnershipIsRejected(t *testing.T) {
	t.Parallel()

	shared := map[string]any{"n": 1}
	container := map[string]any{"shared": shared}

	sinkA := newFakeSink("a", true, container)
	_, err := proxy.Wrap(sinkA, container, func(any) {})
	require.NoError(t, err)

	sinkB := newFakeSink("b", true, shared)
	_, err = proxy.Wrap(sinkB, shared, func(any) {})

	var cross *proxy.CrossOwnershipError
	require.ErrorAs(t, err, &cross)
	assert.ErrorIs(t, err, proxy.ErrCrossOwnership)
}

func TestViewArrayPushPopMutators(t *testing.T) {
	t.Parallel()

	root := []any{float64(1), float64(2)}
	sink := newFakeSink("queue", true, root)

	v, err := proxy.Wrap(sink, root, func(newRoot any) { root, _ = newRoot.([]any) })
	require.NoError(t, err)

	n, err := v.Push(float64(3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	last, err := v.Pop()
	require.NoError(t, err)
	assert.Equal(t, float64(3), last)

	require.Len(t, sink.ops, 2)
	assert.Equal(t, op.Push, sink.ops[0].Method)
	assert.Equal(t, op.Pop, sink.ops[1].Method)
}

func TestViewSuppressBypassesValidationAndEnqueue(t *testing.T) {
	t.Parallel()

	root := map[string]any{"title": "hello"}
	sink := newFakeSink("dashboard", true, root)
	sink.reject = assert.AnError

	v, err := proxy.Wrap(sink, root, func(any) {})
	require.NoError(t, err)

	proxy.Suppress(sink.Owner(), func() {
		require.NoError(t, v.Set("title", "replayed"))
	})

	assert.Equal(t, "replayed", root["title"])
	assert.Empty(t, sink.ops)
	assert.False(t, proxy.IsSuspended(sink.Owner()))
}
