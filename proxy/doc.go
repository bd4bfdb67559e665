// Package proxy implements the mutation-interception layer: the mechanism
// by which writes to a nested field of a Replicant's value graph -- without
// any explicit setter call -- are captured, validated, and turned into an
// [github.com/replicantd/core/op.Operation].
//
// Go has no analogue of a JavaScript Proxy trap, so there is no way to
// intercept `tree["a"]["b"][1] = 9` on a bare map[string]any. Instead every
// composite reachable from a Replicant's root value is wrapped, lazily and
// recursively, in a [View]: a stable *View pointer stands in for the source
// interposer, and callers mutate through View's methods (Get, Set, Delete,
// and the array mutators) rather than through native Go indexing. [Sink]
// is the small interface a View reports through -- it is implemented by the
// owning Replicant so this package never imports it, avoiding a cycle.
//
// Three process-wide registries back this:
//
//   - rawRegistry maps the identity of a raw map/slice header to the (weak)
//     View that wraps it, so re-encountering a container at a new path
//     updates the View's stored path instead of allocating a new one --
//     this is how moving a subtree reassigns its paths.
//   - The "interposer membership set" ("is this value already a View?")
//     needs no registry at all: Go's static type system answers it with a
//     type assertion, where the source needed a runtime WeakSet.
//   - The process-wide suspended-owner set, driven by [Suppress] and read by
//     [IsSuspended], disables interception while applying remote or
//     just-flushed operations. It is a plain set of [Owner] values, not
//     weak-keyed.
package proxy
