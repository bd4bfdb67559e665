package replicator

import (
	"errors"

	"github.com/replicantd/core/replicant"
)

// ErrUnknownReplicant indicates an inbound envelope named a (namespace,
// name) this Registry has never declared.
var ErrUnknownReplicant = errors.New("replicator: unknown replicant")

// ErrUndeclaredReplicant indicates an inbound envelope arrived for a
// replicant still in [replicant.Declaring] -- it is buffered, not
// dropped.
var ErrUndeclaredReplicant = errors.New("replicator: replicant not yet declared")

// errorKind maps an error from the apply path to an [ErrorEnvelope.Kind]
// string, for transports that need to ack a rejected subscriber
// mutation.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownReplicant):
		return KindUnknownReplicant
	case errors.Is(err, ErrUndeclaredReplicant):
		return KindUndeclaredReplicant
	case errors.Is(err, replicant.ErrSchemaValidation):
		return KindSchemaValidationError
	case errors.Is(err, replicant.ErrCrossOwnership):
		return KindCrossOwnershipError
	default:
		return KindInternalError
	}
}

func toErrorEnvelope(err error) ErrorEnvelope {
	return ErrorEnvelope{
		Kind:    errorKind(err),
		Message: err.Error(),
	}
}
