package replicant

import (
	"errors"

	"github.com/replicantd/core/proxy"
	"github.com/replicantd/core/schema"
)

// Re-exported so callers that only import package replicant can still
// errors.Is/As against failures raised deeper in the stack.
var (
	ErrSchemaValidation       = schema.ErrSchemaValidation
	ErrCrossOwnership         = proxy.ErrCrossOwnership
	ErrUnknownOperationMethod = proxy.ErrUnknownOperationMethod
)

var (
	// ErrInvalidDeclaration indicates a findOrDeclare call used an empty
	// namespace/name, or re-declared an existing name with conflicting
	// options.
	ErrInvalidDeclaration = errors.New("replicant: invalid declaration")

	// ErrUnknownReplicant indicates a remote operation named a replicant
	// this side has never heard of.
	ErrUnknownReplicant = errors.New("replicant: unknown replicant")

	// ErrUndeclaredReplicant indicates an operation was attempted against
	// a replicant that has not finished declaring.
	ErrUndeclaredReplicant = errors.New("replicant: not yet declared")

	// ErrPersistence wraps failures writing or reading a replicant's
	// durable store.
	ErrPersistence = errors.New("replicant: persistence failure")

	// ErrNotComposite is returned by Update when the replicant's current
	// value is a scalar (or undeclared), which has no View to recurse
	// into; use SetValue to replace the whole value instead.
	ErrNotComposite = errors.New("replicant: value is not a composite; use SetValue")

	// ErrPathNotFound is returned by Set/Delete/Mutate when an
	// intermediate segment of path does not resolve to an existing key.
	ErrPathNotFound = errors.New("replicant: no such path")

	// ErrNotContainer is returned when an intermediate path segment
	// resolves to a scalar instead of a mapping or sequence.
	ErrNotContainer = errors.New("replicant: path segment is not a container")

	// ErrRootPath is returned by Set/Delete when given the root path
	// itself, which has no key of its own to assign or remove; use
	// SetValue to replace the root.
	ErrRootPath = errors.New("replicant: root path has no key; use SetValue")
)
