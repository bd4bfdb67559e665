package proxy

import (
	"fmt"

	"github.com/replicantd/core/op"
)

// Owner identifies the Replicant a composite is currently wrapped for. It
// is deliberately just a Replicant's (namespace, name) pair -- stable,
// comparable, and cheap to carry around without this package importing
// the replicant package itself.
type Owner struct {
	Namespace string
	Name      string
}

func (o Owner) String() string {
	return fmt.Sprintf("%s/%s", o.Namespace, o.Name)
}

// Sink is the callback surface a [View] reports through. It is implemented
// by the owning Replicant; keeping it this small lets package proxy avoid
// importing package replicant (which imports proxy), and lets tests fake a
// Sink without constructing a full Replicant.
type Sink interface {
	// Owner returns the identity under which this tree's composites are
	// registered for single-owner enforcement.
	Owner() Owner

	// Authoritative reports whether this side is the authoritative
	// (server) side of the replicant, as opposed to a subscriber side.
	Authoritative() bool

	// DryRun validates candidate against the attached schema, if any,
	// without mutating anything. A nil error means the mutation may
	// proceed. Sinks with no schema attached always return nil.
	DryRun(candidate any) error

	// CloneRoot returns a deep copy of the Replicant's current full value,
	// used to build the dry-run candidate a prospective mutation is
	// checked against before it touches the live tree.
	CloneRoot() any

	// Enqueue appends an accepted Operation to this replicant's pending
	// batch and schedules a flush if one is not already scheduled.
	Enqueue(o op.Operation)
}
