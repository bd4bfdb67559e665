package proxy

import "github.com/replicantd/core/op"

// ApplyOperation is the inbound path: it suspends interception for owner,
// applies o to root, and returns the resulting root. Used both to replay
// remote operations on any side and, on a subscriber, to apply its own
// just-acknowledged operations without them re-enqueueing themselves.
//
// Suspension is bracketed with [Suppress], which guarantees resumption
// even if Mutate panics or returns an error: leaving interception
// suspended on any exit path would corrupt every later mutation.
func ApplyOperation(owner Owner, root any, o op.Operation) (any, error) {
	var (
		result any
		err    error
	)

	Suppress(owner, func() {
		result, err = Mutate(root, o)
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}
