package replicator

import (
	"context"
	"errors"
	"sync"

	"github.com/replicantd/core/replicant"
)

// LoopbackHub is an in-process medium connecting one authoritative
// [Registry] to any number of subscriber Registries with no network, no
// serialization -- the harness this module's tests use, and the one
// cmd/replicantd wires for its single-process demo. A real deployment
// swaps both sides' Transport for a networked implementation; nothing
// else in this module changes.
type LoopbackHub struct {
	authoritative *Registry
	authOps       chan InboundEnvelope

	mu          sync.Mutex
	subscribers []chan InboundEnvelope
}

// NewLoopbackHub creates an unattached hub. Call [LoopbackHub.Attach] with
// the authoritative Registry before any subscriber declares.
func NewLoopbackHub() *LoopbackHub {
	return &LoopbackHub{authOps: make(chan InboundEnvelope, 256)}
}

// Attach binds hub to the authoritative Registry its subscriber
// transports declare against.
func (h *LoopbackHub) Attach(authoritative *Registry) {
	h.authoritative = authoritative
}

// AuthoritativeTransport returns the [Transport] the authoritative
// Registry should be constructed with.
func (h *LoopbackHub) AuthoritativeTransport() Transport {
	return &loopbackAuthTransport{hub: h}
}

// SubscriberTransport returns a new [Transport] for one more subscriber
// Registry to be constructed with.
func (h *LoopbackHub) SubscriberTransport() Transport {
	ch := make(chan InboundEnvelope, 256)

	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()

	return &loopbackSubTransport{hub: h, ops: ch}
}

// loopbackAuthTransport is the authoritative side's view of the hub:
// Broadcast fans out to every subscriber; Operations yields the proposed
// mutations subscribers send up.
type loopbackAuthTransport struct {
	hub *LoopbackHub
}

func (t *loopbackAuthTransport) Broadcast(ctx context.Context, env Envelope) error {
	t.hub.mu.Lock()
	subs := append([]chan InboundEnvelope(nil), t.hub.subscribers...)
	t.hub.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- InboundEnvelope{Envelope: env}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (t *loopbackAuthTransport) Declare(context.Context, DeclarationRequest) (DeclarationResponse, error) {
	return DeclarationResponse{}, errors.New("replicator: the authoritative side's transport never issues Declare")
}

func (t *loopbackAuthTransport) Operations() <-chan InboundEnvelope {
	return t.hub.authOps
}

// loopbackSubTransport is one subscriber's view of the hub: Broadcast
// sends its proposed mutations up to the authoritative side; Declare
// forwards directly into the authoritative Registry's FindOrDeclare
// (skipping wire serialization entirely, since both sides share a
// process); Operations yields the authoritative side's broadcasts.
type loopbackSubTransport struct {
	hub *LoopbackHub
	ops chan InboundEnvelope
}

func (t *loopbackSubTransport) Broadcast(ctx context.Context, env Envelope) error {
	select {
	case t.hub.authOps <- InboundEnvelope{Envelope: env}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *loopbackSubTransport) Declare(ctx context.Context, req DeclarationRequest) (DeclarationResponse, error) {
	if t.hub.authoritative == nil {
		return DeclarationResponse{}, errors.New("replicator: loopback hub has no attached authoritative Registry")
	}

	opts := []replicant.Option{replicant.WithPersistent(req.Opts.Persistent)}
	if req.Opts.DefaultValue != nil {
		opts = append(opts, replicant.WithDefaultValue(req.Opts.DefaultValue))
	}

	r, err := t.hub.authoritative.FindOrDeclare(ctx, req.Namespace, req.Name, opts...)
	if err != nil {
		return DeclarationResponse{}, err
	}

	// A real transport would ship the compiled schema's bytes alongside
	// schemaSum when they disagree; this in-process hub has no such wire
	// to put them on, so a subscriber that needs schema enforcement
	// should be declared with the same schemaPath directly.
	return DeclarationResponse{Value: r.Value(), Revision: r.Revision(), SchemaSum: r.SchemaSum()}, nil
}

func (t *loopbackSubTransport) Operations() <-chan InboundEnvelope {
	return t.ops
}
