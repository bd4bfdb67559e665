package replicator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/replicantd/core/bus"
	"github.com/replicantd/core/persistence"
	"github.com/replicantd/core/replicant"
)

// defaultBufferWait is how long an inbound operation for an
// unknown/undeclared replicant is held before being dropped, giving a
// declare in flight a chance to resolve before the operation is lost.
const defaultBufferWait = 5 * time.Second

// identity is a Replicant's (namespace, name) pair, used as the Registry's
// map key.
type identity struct {
	namespace string
	name      string
}

func (id identity) String() string {
	return id.namespace + "/" + id.name
}

// bufferedOp is one inbound envelope held because its replicant was not
// yet known or not yet declared. consumed guards against both the
// bounded-wait timer and a later FindOrDeclare racing to handle it twice.
type bufferedOp struct {
	env      InboundEnvelope
	consumed atomic.Bool
}

// Registry is the (namespace, name) -> [replicant.Replicant] registry and
// dispatcher. One Registry serves either the authoritative side
// (constructed with authoritative=true) or a subscriber side.
//
// Create instances with [NewRegistry], then run [Registry.Run] on its own
// goroutine for the lifetime of the process -- every flush emission and
// every inbound-operation apply executes there, so the two can never
// interleave for a single replicant.
type Registry struct {
	authoritative bool
	transport     Transport
	store         *persistence.Store
	logger        *slog.Logger
	bufferWait    time.Duration

	bus *bus.Bus[Envelope]

	mu         sync.Mutex
	replicants map[identity]*replicant.Replicant
	buffered   map[identity][]*bufferedOp

	flushes   chan *replicant.Replicant
	redeliver chan InboundEnvelope
}

// Option configures a [Registry].
type Option func(*Registry)

// WithLogger attaches logger for dispatcher diagnostics (broadcast
// failures, dropped buffered operations, discarded persisted values).
// Left unset, a Registry uses [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(reg *Registry) { reg.logger = logger }
}

// WithBufferWait overrides how long an inbound operation for an unknown or
// undeclared replicant waits before being dropped. Zero disables
// buffering: such operations are dropped immediately.
func WithBufferWait(d time.Duration) Option {
	return func(reg *Registry) { reg.bufferWait = d }
}

// NewRegistry constructs a Registry. authoritative distinguishes the
// declaring (server) side, which resolves initial values from persistence
// or defaults and owns revision numbering, from a subscriber side, which
// declares against transport and accepts revisions authoritatively.
// store may be nil, disabling persistence entirely (every replicant
// behaves as though declared with WithPersistent(false)).
func NewRegistry(authoritative bool, transport Transport, store *persistence.Store, opts ...Option) *Registry {
	reg := &Registry{
		authoritative: authoritative,
		transport:     transport,
		store:         store,
		logger:        slog.Default(),
		bufferWait:    defaultBufferWait,
		bus:           bus.New[Envelope](),
		replicants:    map[identity]*replicant.Replicant{},
		buffered:      map[identity][]*bufferedOp{},
		flushes:       make(chan *replicant.Replicant, 256),
		redeliver:     make(chan InboundEnvelope, 64),
	}

	for _, opt := range opts {
		opt(reg)
	}

	return reg
}

// Subscribe registers a local observer for every [Envelope] this Registry
// emits -- broadcasts it sends and remote operations it applies alike --
// independent of Transport. [LoopbackHub] does not use it; it fans
// broadcasts out through its own per-subscriber channels.
func (reg *Registry) Subscribe() *bus.Subscription[Envelope] {
	return reg.bus.Subscribe()
}

// Run is the cooperative dispatcher: it drains scheduled flushes and
// inbound operations until ctx is cancelled or the transport's Operations
// channel closes. Every call into replicant mutation/notification state
// from Registry happens here, on one goroutine, so flush emission and
// remote-operation application for a single (namespace, name) can never
// interleave.
func (reg *Registry) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case r := <-reg.flushes:
			reg.dispatchFlush(ctx, r)

		case in := <-reg.redeliver:
			reg.applyInbound(ctx, in)

		case in, ok := <-reg.transport.Operations():
			if !ok {
				return nil
			}

			reg.applyInbound(ctx, in)
		}
	}
}

// Find returns the replicant already registered at (namespace, name), if
// any, without declaring it.
func (reg *Registry) Find(namespace, name string) (*replicant.Replicant, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.replicants[identity{namespace, name}]

	return r, ok
}

// FindOrDeclare returns the existing replicant at (namespace, name), or
// constructs and declares a new one. Declare is idempotent: a second call
// with the same identity returns the same instance untouched, regardless
// of opts.
func (reg *Registry) FindOrDeclare(
	ctx context.Context, namespace, name string, opts ...replicant.Option,
) (*replicant.Replicant, error) {
	if namespace == "" || name == "" {
		return nil, fmt.Errorf("%w: namespace and name must both be non-empty", replicant.ErrInvalidDeclaration)
	}

	id := identity{namespace, name}

	reg.mu.Lock()
	r, exists := reg.replicants[id]

	if !exists {
		r = replicant.New(namespace, name, reg.authoritative, opts...)
		r.SetEnqueueHook(func() { reg.flushes <- r })
		reg.replicants[id] = r
	}
	reg.mu.Unlock()

	if exists {
		return r, nil
	}

	r.MarkDeclaring()

	var err error
	if reg.authoritative {
		err = reg.declareAuthoritative(r)
	} else {
		err = reg.declareSubscriber(ctx, r)
	}

	if err != nil {
		return nil, err
	}

	reg.drainBuffered(r)

	return r, nil
}

// declareAuthoritative resolves r's initial value from persistence (if
// persistent and a store is attached) or its default, compiles its schema
// if one is configured, and marks it Declared at revision 0.
func (reg *Registry) declareAuthoritative(r *replicant.Replicant) error {
	opts := r.Options()

	if opts.SchemaPath != "" {
		schemaBytes, err := loadSchemaFile(opts.SchemaPath)
		if err != nil {
			return fmt.Errorf("replicator: load schema for %s: %w", identity{r.Namespace(), r.Name()}, err)
		}

		if err := r.CompileSchema(schemaBytes); err != nil {
			return fmt.Errorf("replicator: compile schema for %s: %w", identity{r.Namespace(), r.Name()}, err)
		}
	}

	initial := opts.DefaultValue

	if opts.Persistent && reg.store != nil {
		persisted, found, err := reg.store.Load(r.Namespace(), r.Name())

		switch {
		case err != nil:
			reg.logger.Warn("persisted value unreadable, falling back to default value",
				slog.String("replicant", identity{r.Namespace(), r.Name()}.String()), slog.Any("error", err))
		case found:
			if ok, verr := r.Validate(persisted, true); ok {
				initial = persisted
			} else {
				// A bad persisted value is reported and discarded, not fatal.
				reg.logger.Warn("persisted value failed schema validation, discarding",
					slog.String("replicant", identity{r.Namespace(), r.Name()}.String()), slog.Any("error", verr))
			}
		}
	}

	if err := r.MarkDeclared(initial, 0); err != nil {
		return fmt.Errorf("replicator: declare %s: %w", identity{r.Namespace(), r.Name()}, err)
	}

	return nil
}

// declareSubscriber performs the declare handshake against the
// authoritative side and installs whatever value, revision, and (if the
// local schemaSum didn't match) schema it returns.
func (reg *Registry) declareSubscriber(ctx context.Context, r *replicant.Replicant) error {
	opts := r.Options()

	resp, err := reg.transport.Declare(ctx, DeclarationRequest{
		Namespace: r.Namespace(),
		Name:      r.Name(),
		Opts: DeclaredOptions{
			Persistent:   opts.Persistent,
			SchemaSum:    r.SchemaSum(),
			DefaultValue: opts.DefaultValue,
		},
	})
	if err != nil {
		return fmt.Errorf("replicator: declare %s: %w", identity{r.Namespace(), r.Name()}, err)
	}

	if len(resp.Schema) > 0 && resp.SchemaSum != r.SchemaSum() {
		if err := r.CompileSchema(resp.Schema); err != nil {
			return fmt.Errorf("replicator: adopt server schema for %s: %w", identity{r.Namespace(), r.Name()}, err)
		}
	}

	if err := r.MarkDeclared(resp.Value, resp.Revision); err != nil {
		return fmt.Errorf("replicator: declare %s: %w", identity{r.Namespace(), r.Name()}, err)
	}

	return nil
}

// dispatchFlush runs one replicant's flush: snapshot and clear its queue,
// advance revision (authoritative side only), broadcast, persist, and
// notify local listeners. Invoked only from [Registry.Run].
func (reg *Registry) dispatchFlush(ctx context.Context, r *replicant.Replicant) {
	ops, newValue, oldValue, ok := r.FlushPending()
	if !ok {
		return
	}

	id := identity{r.Namespace(), r.Name()}

	var revision uint64
	if reg.authoritative {
		revision = r.BumpRevision()
	} else {
		revision = r.Revision()
	}

	env := Envelope{Namespace: id.namespace, Name: id.name, Revision: revision, Operations: ops}

	if err := reg.transport.Broadcast(ctx, env); err != nil {
		reg.logger.Error("broadcast failed", slog.String("replicant", id.String()), slog.Any("error", err))
	}

	reg.bus.Publish(env)

	if reg.authoritative {
		if opts := r.Options(); opts.Persistent && reg.store != nil {
			reg.store.Save(id.namespace, id.name, newValue, opts.PersistenceInterval)
		}

		// The authoritative side notifies local listeners immediately on
		// flush. A subscriber defers notification until the acknowledged
		// state arrives back over the transport -- handled by
		// applyInbound, not here.
		r.NotifyChange(newValue, oldValue, ops)
	}
}

// applyInbound replays one inbound envelope's operations against its
// replicant, acknowledges it if the sender asked for an ack, notifies
// local listeners, and -- on the authoritative side -- re-broadcasts with
// the now-authoritative revision. Invoked only from [Registry.Run].
func (reg *Registry) applyInbound(ctx context.Context, in InboundEnvelope) {
	id := identity{in.Namespace, in.Name}

	r, ok := reg.Find(id.namespace, id.name)
	if !ok {
		reg.ackAndBuffer(id, in, ErrUnknownReplicant)
		return
	}

	if r.Status() != replicant.Declared {
		reg.ackAndBuffer(id, in, ErrUndeclaredReplicant)
		return
	}

	revision := in.Revision
	if reg.authoritative {
		revision = r.BumpRevision()
	}

	oldValue, newValue, err := r.ApplyRemote(in.Operations, revision)
	if in.Ack != nil {
		in.Ack(err)
	}

	if err != nil {
		if errors.Is(err, replicant.ErrUnknownOperationMethod) {
			reg.logger.Error("fatal: unknown operation method",
				slog.String("replicant", id.String()),
				slog.Uint64("revision", revision),
				slog.Any("operations", in.Operations),
				slog.Any("error", err))
			os.Exit(1)
		}

		reg.logger.Error("apply remote operation failed", slog.String("replicant", id.String()), slog.Any("error", err))
		return
	}

	r.NotifyChange(newValue, oldValue, in.Operations)

	env := Envelope{Namespace: id.namespace, Name: id.name, Revision: revision, Operations: in.Operations}

	if reg.authoritative {
		if err := reg.transport.Broadcast(ctx, env); err != nil {
			reg.logger.Error("broadcast failed", slog.String("replicant", id.String()), slog.Any("error", err))
		}

		if opts := r.Options(); opts.Persistent && reg.store != nil {
			reg.store.Save(id.namespace, id.name, newValue, opts.PersistenceInterval)
		}
	}

	reg.bus.Publish(env)
}

// ackAndBuffer acks in (if it asked for one) with sentinel, then holds it
// for up to reg.bufferWait in case a matching FindOrDeclare arrives.
func (reg *Registry) ackAndBuffer(id identity, in InboundEnvelope, sentinel error) {
	err := fmt.Errorf("%w: %s", sentinel, id)
	if in.Ack != nil {
		in.Ack(err)
	}

	if reg.bufferWait <= 0 {
		return
	}

	bo := &bufferedOp{env: in}

	reg.mu.Lock()
	reg.buffered[id] = append(reg.buffered[id], bo)
	reg.mu.Unlock()

	time.AfterFunc(reg.bufferWait, func() {
		if bo.consumed.CompareAndSwap(false, true) {
			reg.logger.Warn("dropping buffered operation: replicant never declared",
				slog.String("replicant", id.String()))
		}
	})
}

// drainBuffered redelivers every not-yet-dropped operation buffered for r
// onto the dispatcher goroutine, in the order it originally arrived.
func (reg *Registry) drainBuffered(r *replicant.Replicant) {
	id := identity{r.Namespace(), r.Name()}

	reg.mu.Lock()
	pending := reg.buffered[id]
	delete(reg.buffered, id)
	reg.mu.Unlock()

	for _, bo := range pending {
		if !bo.consumed.CompareAndSwap(false, true) {
			continue
		}

		go func(in InboundEnvelope) { reg.redeliver <- in }(bo.env)
	}
}
