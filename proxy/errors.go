package proxy

import (
	"errors"
	"fmt"
)

// ErrCrossOwnership is the sentinel wrapped by every [CrossOwnershipError].
// Use errors.Is(err, proxy.ErrCrossOwnership) to test for the condition
// without caring about the offending owners or value.
var ErrCrossOwnership = errors.New("composite already owned by another replicant")

// ErrUnknownOperationMethod indicates applyOperation was asked to replay a
// Method it does not recognize. This is a programmer error and fatal --
// callers are expected to crash the process rather than recover.
var ErrUnknownOperationMethod = errors.New("unknown operation method")

// CrossOwnershipError reports that a composite already owned by one
// Replicant was about to be grafted into another's value tree. Satisfies
// errors.Is against [ErrCrossOwnership] and errors.As for detail.
type CrossOwnershipError struct {
	Existing Owner
	Incoming Owner
	Path     string
	Value    any
}

func (e *CrossOwnershipError) Error() string {
	return fmt.Sprintf("%s: value at %q owned by %s, cannot graft into %s",
		ErrCrossOwnership, e.Path, e.Existing, e.Incoming)
}

func (e *CrossOwnershipError) Unwrap() error {
	return ErrCrossOwnership
}
