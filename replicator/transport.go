package replicator

import (
	"context"

	"github.com/replicantd/core/op"
)

// Envelope is the broadcast envelope a [Registry] sends for every
// non-empty flush, and the shape a [Transport] delivers inbound
// operations in.
type Envelope struct {
	Namespace  string          `json:"namespace"`
	Name       string          `json:"name"`
	Revision   uint64          `json:"revision"`
	Operations []op.Operation  `json:"operations"`
}

// DeclaredOptions is the subset of a replicant's options relevant to the
// declaration handshake: whether it persists, the schema it currently
// has compiled (by sum, so the authoritative side can tell a stale
// subscriber to adopt a new one), and its default value.
type DeclaredOptions struct {
	Persistent   bool
	SchemaSum    string
	DefaultValue any
}

// DeclarationRequest is a subscriber's declare handshake request.
type DeclarationRequest struct {
	Namespace string
	Name      string
	Opts      DeclaredOptions
}

// DeclarationResponse is the authoritative side's reply to a
// [DeclarationRequest]: the current value, revision, and (when the
// requester's schemaSum did not match) the schema to adopt.
type DeclarationResponse struct {
	Value     any
	Revision  uint64
	Schema    []byte
	SchemaSum string
}

// Transport is the wire boundary: a [Registry] never talks to the network
// directly, it only ever calls through this interface, so swapping in a
// real transport (Socket.IO, gRPC, whatever a given deployment uses)
// never touches replicant or replicator logic.
type Transport interface {
	// Broadcast sends env to every subscriber of (env.Namespace, env.Name).
	// Fire-and-forget from the Registry's perspective: delivery ordering
	// and retries are the transport's concern.
	Broadcast(ctx context.Context, env Envelope) error

	// Declare performs the subscriber-side declaration handshake against
	// the authoritative side.
	Declare(ctx context.Context, req DeclarationRequest) (DeclarationResponse, error)

	// Operations delivers inbound operation batches: on a subscriber, the
	// authoritative side's broadcasts; on the authoritative side, a
	// subscriber's proposed mutations awaiting acknowledgement. Closed
	// when the transport shuts down.
	Operations() <-chan InboundEnvelope
}

// InboundEnvelope is one [Envelope] received from the transport, paired
// with an Ack/Nack callback so a subscriber-proposed mutation on the
// authoritative side can report [ErrorEnvelope] failures back over the
// transport's own ack channel.
type InboundEnvelope struct {
	Envelope

	// Ack reports the outcome of applying this envelope: nil on success,
	// or the error the apply failed with (surfaced to the transport as an
	// [ErrorEnvelope]). Left nil by transports that don't need
	// acknowledgement (e.g. a subscriber receiving authoritative
	// broadcasts it must simply accept).
	Ack func(err error)
}

// ErrorEnvelope is the acknowledgement shape for a rejected subscriber
// mutation.
type ErrorEnvelope struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error kinds for [ErrorEnvelope.Kind].
const (
	KindSchemaValidationError = "SchemaValidationError"
	KindCrossOwnershipError   = "CrossOwnershipError"
	KindUnknownReplicant      = "UnknownReplicant"
	KindUndeclaredReplicant   = "UndeclaredReplicant"
	KindInternalError         = "InternalError"
)
