package queue

import (
	"errors"
	"strings"
	"sync"

	"github.com/replicantd/core/op"
)

// ErrDepthExceeded is returned by Enqueue when the queue already holds
// MaxDepth operations and cannot accept another before the next flush.
// The default MaxDepth is 0 (unbounded); callers that set a positive
// MaxDepth get this error back instead of silent growth, so no caller
// ever loses an operation without knowing about it.
var ErrDepthExceeded = errors.New("queue: depth exceeded")

// Queue is one Replicant's append-only batch of accumulated Operations
// plus the "has a flush already been scheduled this turn" flag.
type Queue struct {
	mu           sync.Mutex
	ops          []op.Operation
	pendingFlush bool

	// MaxDepth bounds the queue; 0 means unbounded.
	MaxDepth int
}

// Enqueue appends o, applying an overwrite-truncation coalescing rule: an
// overwrite anywhere in the queue drops all earlier queued ops whose path
// is under (or equal to) the overwritten subtree, since they reference
// state the overwrite has already made obsolete. Plain same-path updates
// are never coalesced, intentionally: each remains an observable step for
// anything diffing the operation log.
//
// scheduleFlush reports whether this call is the first enqueue of the
// current turn and the caller should schedule an end-of-turn flush.
func (q *Queue) Enqueue(o op.Operation) (scheduleFlush bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.MaxDepth > 0 && len(q.ops) >= q.MaxDepth {
		return false, ErrDepthExceeded
	}

	if o.Method == op.Overwrite {
		q.ops = truncateUnder(q.ops, o.Path)
	}

	q.ops = append(q.ops, o)

	first := !q.pendingFlush
	q.pendingFlush = true

	return first, nil
}

// truncateUnder drops every operation whose path is prefix-under root
// (root itself, or any descendant path of root).
func truncateUnder(ops []op.Operation, root string) []op.Operation {
	kept := ops[:0]

	for _, o := range ops {
		if isUnder(o.Path, root) {
			continue
		}

		kept = append(kept, o)
	}

	return kept
}

func isUnder(path, root string) bool {
	if root == "/" {
		return true
	}

	if path == root {
		return true
	}

	return strings.HasPrefix(path, root+"/")
}

// Len reports the number of currently queued, unflushed operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.ops)
}

// Empty reports whether the queue currently holds no operations.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Flush snapshots and clears the queue, clearing the pending-flush flag,
// and returns the snapshot for the caller to broadcast and replay into a
// change event. Flushing an empty queue returns (nil, false).
func (q *Queue) Flush() ([]op.Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pendingFlush = false

	if len(q.ops) == 0 {
		return nil, false
	}

	snapshot := q.ops
	q.ops = nil

	return snapshot, true
}
