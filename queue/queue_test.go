package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicantd/core/op"
	"github.com/replicantd/core/queue"
)

func TestEnqueueSchedulesFlushOnlyOnce(t *testing.T) {
	t.Parallel()

	var q queue.Queue

	first, err := q.Enqueue(op.Operation{Path: "/a", Method: op.Update})
	require.NoError(t, err)
	assert.True(t, first)

	second, err := q.Enqueue(op.Operation{Path: "/b", Method: op.Update})
	require.NoError(t, err)
	assert.False(t, second)

	assert.Equal(t, 2, q.Len())
}

func TestFlushEmptyQueue(t *testing.T) {
	t.Parallel()

	var q queue.Queue

	ops, ok := q.Flush()
	assert.False(t, ok)
	assert.Nil(t, ops)
}

func TestFlushSnapshotsAndClears(t *testing.T) {
	t.Parallel()

	var q queue.Queue

	_, err := q.Enqueue(op.Operation{Path: "/a", Method: op.Update})
	require.NoError(t, err)

	ops, ok := q.Flush()
	assert.True(t, ok)
	assert.Len(t, ops, 1)
	assert.True(t, q.Empty())
}

func TestOverwriteTruncatesUnderlyingOps(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		seed     []op.Operation
		overwrite op.Operation
		wantPaths []string
	}{
		"drops exact path": {
			seed: []op.Operation{
				{Path: "/a", Method: op.Update},
			},
			overwrite: op.Operation{Path: "/a", Method: op.Overwrite},
			wantPaths: []string{"/a"},
		},
		"drops descendants": {
			seed: []op.Operation{
				{Path: "/a/b", Method: op.Update},
				{Path: "/a/c", Method: op.Add},
				{Path: "/z", Method: op.Update},
			},
			overwrite: op.Operation{Path: "/a", Method: op.Overwrite},
			wantPaths: []string{"/z", "/a"},
		},
		"root overwrite drops everything": {
			seed: []op.Operation{
				{Path: "/a", Method: op.Update},
				{Path: "/b", Method: op.Update},
			},
			overwrite: op.Operation{Path: "/", Method: op.Overwrite},
			wantPaths: []string{"/"},
		},
		"unrelated sibling path survives": {
			seed: []op.Operation{
				{Path: "/ab", Method: op.Update},
			},
			overwrite: op.Operation{Path: "/a", Method: op.Overwrite},
			wantPaths: []string{"/ab", "/a"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var q queue.Queue

			for _, o := range tc.seed {
				_, err := q.Enqueue(o)
				require.NoError(t, err)
			}

			_, err := q.Enqueue(tc.overwrite)
			require.NoError(t, err)

			ops, ok := q.Flush()
			require.True(t, ok)

			var gotPaths []string
			for _, o := range ops {
				gotPaths = append(gotPaths, o.Path)
			}

			assert.Equal(t, tc.wantPaths, gotPaths)
		})
	}
}

func TestEnqueueDepthExceeded(t *testing.T) {
	t.Parallel()

	q := queue.Queue{MaxDepth: 1}

	_, err := q.Enqueue(op.Operation{Path: "/a", Method: op.Update})
	require.NoError(t, err)

	_, err = q.Enqueue(op.Operation{Path: "/b", Method: op.Update})
	require.ErrorIs(t, err, queue.ErrDepthExceeded)
}
