package replicant

import (
	"fmt"
	"sync"

	"github.com/replicantd/core/op"
	"github.com/replicantd/core/proxy"
	"github.com/replicantd/core/queue"
	"github.com/replicantd/core/schema"
)

// View is a recording proxy over one composite reachable from a Replicant's
// value: the explicit path API Go substitutes for JavaScript's transparent
// property interception. See [github.com/replicantd/core/proxy.View].
type View = proxy.View

// changeListener is one registration made through [Replicant.OnChange] or
// [Replicant.OnceChange].
type changeListener struct {
	fn   func(newValue, oldValue any, ops []op.Operation)
	once bool
}

// Replicant is a named, namespaced, schema-validated observable value.
// Mutations made through [Replicant.Update] or the explicit path API
// ([Replicant.Set], [Replicant.Delete], [Replicant.Mutate]) are validated
// against the attached schema, applied, and batched into an ordered
// [op.Operation] stream delivered to [Replicant.OnChange] listeners (and,
// once wired to a [github.com/replicantd/core/replicator.Registry],
// broadcast to remote subscribers).
//
// The zero Replicant is not usable; construct one with [New].
type Replicant struct {
	mu sync.Mutex

	namespace     string
	name          string
	authoritative bool
	opts          Options

	status           Status
	revision         uint64
	value            any
	root             *View
	schema           schema.Gate
	validationErrors []schema.Field
	queue            queue.Queue

	listeners []changeListener

	// turnSnapshot is the deep clone of value captured at the first
	// mutation of the current turn, so a flush can report the value as it
	// stood before any of this turn's mutations ran. Cleared once
	// FlushPending consumes it.
	turnSnapshot any

	// onEnqueue, when set, is notified every time this replicant's queue
	// schedules a flush -- the hook a Registry uses to wake its dispatcher
	// goroutine. Left nil, flushes simply accumulate until FlushPending is
	// called directly, which is sufficient for standalone/local use.
	onEnqueue func()
}

// New constructs a Replicant identified by (namespace, name). authoritative
// distinguishes the declaring (server) side, which writes through to the
// value directly, from a subscriber side, which only ever applies
// operations it receives back from the authoritative side. The returned
// replicant starts [Undeclared];
// callers transition it with [Replicant.MarkDeclaring] and
// [Replicant.MarkDeclared].
func New(namespace, name string, authoritative bool, opts ...Option) *Replicant {
	return &Replicant{
		namespace:     namespace,
		name:          name,
		authoritative: authoritative,
		opts:          newOptions(opts...),
		status:        Undeclared,
	}
}

// Namespace returns this replicant's namespace.
func (r *Replicant) Namespace() string { return r.namespace }

// Name returns this replicant's name.
func (r *Replicant) Name() string { return r.name }

// Owner identifies this replicant for [proxy]'s single-owner enforcement.
// Implements [proxy.Sink].
func (r *Replicant) Owner() proxy.Owner {
	return proxy.Owner{Namespace: r.namespace, Name: r.name}
}

// Authoritative reports whether this is the declaring side. Implements
// [proxy.Sink].
func (r *Replicant) Authoritative() bool { return r.authoritative }

// Status returns the replicant's current lifecycle status.
func (r *Replicant) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

// Revision returns the replicant's current monotonic revision.
func (r *Replicant) Revision() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.revision
}

// Options returns the options this replicant was constructed with. The
// returned value is a copy; opts is never mutated after [New], so no lock
// is needed to read it.
func (r *Replicant) Options() Options {
	return r.opts
}

// BumpRevision increments the revision by 1 and returns the new value.
// The authoritative side calls this once per non-empty flushed batch.
func (r *Replicant) BumpRevision() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revision++

	return r.revision
}

// SetRevision installs revision directly. Subscribers never self-advance
// their revision counter; they accept whatever the authoritative side's
// broadcast envelope carries.
func (r *Replicant) SetRevision(revision uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revision = revision
}

// SetEnqueueHook installs fn to be called (outside any lock) whenever this
// replicant's queue transitions from empty to non-empty -- the integration
// point a [github.com/replicantd/core/replicator.Registry] uses to schedule
// this replicant onto its dispatcher goroutine. Intended to be called once,
// before declaration.
func (r *Replicant) SetEnqueueHook(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onEnqueue = fn
}

// CompileSchema compiles and attaches a JSON Schema document. Called by the
// Replicator after resolving [Options.SchemaPath]; a Replicant never reads
// its own schema off disk.
func (r *Replicant) CompileSchema(schemaBytes []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.schema.Compile(schemaBytes)
}

// SchemaSum returns the attached schema's content hash, or "" if none is
// attached.
func (r *Replicant) SchemaSum() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.schema.Sum()
}

// ValidationErrors returns the fields recorded by the most recent
// [Replicant.Validate] call that failed with throwOnInvalid set, or nil if
// a later Validate succeeded (or none has run). A failing Validate without
// throwOnInvalid leaves it unchanged, and mutations rejected by their
// schema dry run (Set, Delete, SetValue, the array mutators) do not update
// it; their *[schema.ValidationError] carries the fields instead.
func (r *Replicant) ValidationErrors() []schema.Field {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.validationErrors
}

// Validate checks candidate against the attached schema without mutating
// anything. With throwOnInvalid it returns a *[schema.ValidationError]
// on failure; without it, it never errors and reports validity via the bool.
func (r *Replicant) Validate(candidate any, throwOnInvalid bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok, err := r.schema.Validate(candidate, schema.ValidateOptions{ThrowOnInvalid: throwOnInvalid})

	var verr *schema.ValidationError
	if asValidationError(err, &verr) {
		r.validationErrors = verr.Fields
	} else if ok {
		r.validationErrors = nil
	}

	return ok, err
}

func asValidationError(err error, target **schema.ValidationError) bool {
	ve, ok := err.(*schema.ValidationError) //nolint:errorlint // concrete sentinel type check, no wrapping expected here.
	if !ok {
		return false
	}

	*target = ve

	return true
}

// MarkDeclaring transitions an [Undeclared] replicant to [Declaring].
func (r *Replicant) MarkDeclaring() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == Undeclared {
		r.status = Declaring
	}
}

// MarkDeclared installs initialValue and revision and transitions the
// replicant to [Declared]. Called once, by the Replicator, after resolving
// the initial value from persisted storage, [Options.DefaultValue], or
// undefined (nil).
func (r *Replicant) MarkDeclared(initialValue any, revision uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.installValueLocked(initialValue); err != nil {
		return err
	}

	r.revision = revision
	r.status = Declared

	return nil
}

// installValueLocked replaces r.value wholesale, releasing the old root's
// registry entry (if any) and wrapping the new one. Callers must hold r.mu.
func (r *Replicant) installValueLocked(v any) error {
	if r.root != nil {
		proxy.Release(r.root.Raw())
	}

	r.value = v
	r.root = nil

	if isComposite(v) {
		root, err := proxy.Wrap(r, v, func(newRaw any) { r.value = newRaw })
		if err != nil {
			return err
		}

		r.root = root
	}

	return nil
}

func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// Value returns a deep copy of the replicant's current value. Callers must
// not rely on in-place mutation of the result; use [Replicant.Update],
// [Replicant.Set], [Replicant.Delete], or [Replicant.Mutate] to change the
// live value.
func (r *Replicant) Value() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return proxy.DeepClone(r.value)
}

// CloneRoot returns a deep copy of the current value for dry-run
// validation. Implements [proxy.Sink]. Every accepted mutation dry-runs
// through here before it touches the live tree, which makes this the one
// call site that sees the value exactly as it stood before the turn's
// first change -- so it also captures [Replicant.turnSnapshot] lazily, the
// `oldValue` a subsequent flush reports to change listeners.
func (r *Replicant) CloneRoot() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.captureTurnSnapshotLocked()

	return proxy.DeepClone(r.value)
}

// captureTurnSnapshotLocked records the pre-turn value the first time it
// is called in a turn (i.e. while the queue is still empty from the
// previous flush). Callers must hold r.mu.
func (r *Replicant) captureTurnSnapshotLocked() {
	if r.queue.Empty() {
		r.turnSnapshot = proxy.DeepClone(r.value)
	}
}

// DryRun validates candidate against the attached schema without mutating
// anything. Implements [proxy.Sink].
func (r *Replicant) DryRun(candidate any) error {
	return r.schema.DryRun(candidate)
}

// Enqueue appends an accepted Operation to the pending batch, scheduling a
// flush (via the enqueue hook, if one is installed) on the first enqueue of
// a new turn. Implements [proxy.Sink].
func (r *Replicant) Enqueue(o op.Operation) {
	first, err := r.queue.Enqueue(o)
	if err != nil {
		// MaxDepth is unset (0, unbounded) by default for replicants
		// constructed through New; a caller that opts into a bound and
		// overflows it loses this operation. There is no channel back to
		// the original caller from inside Sink.Enqueue, so the drop is
		// surfaced only via the next FlushPending's returned ops being
		// short one entry -- acceptable since MaxDepth is opt-in.
		return
	}

	if first && r.onEnqueue != nil {
		r.onEnqueue()
	}
}

// SetValue replaces the entire value with an Overwrite [op.Operation] at
// the root. The candidate is validated against the attached schema before
// anything changes; on failure the live value is untouched.
func (r *Replicant) SetValue(v any) error {
	// Deferred first so it runs after the unlock below: the enqueue hook is
	// never called with r.mu held.
	var hook func()

	defer func() {
		if hook != nil {
			hook()
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.schema.DryRun(v); err != nil {
		return err
	}

	r.captureTurnSnapshotLocked()

	if err := r.installValueLocked(v); err != nil {
		return err
	}

	first, _ := r.queue.Enqueue(op.Operation{Path: op.JoinPath(), Method: op.Overwrite, Args: op.Args{NewValue: v}})

	if first {
		hook = r.onEnqueue
	}

	return nil
}

// Update runs fn against a [View] recording proxy rooted at the replicant's
// current value. Returns [ErrNotComposite] if the current value is a
// scalar or undefined.
func (r *Replicant) Update(fn func(*View) error) error {
	r.mu.Lock()
	root := r.root
	r.mu.Unlock()

	if root == nil {
		return ErrNotComposite
	}

	return fn(root)
}

// containerAt walks path (JSON-Pointer-style, as produced by
// [op.SplitPath]) down from the replicant's root, returning the *View of
// the container path addresses into, the last path value read
// independently. An empty path string ("" or "/") returns the root itself.
func (r *Replicant) containerAt(path string) (*View, error) {
	r.mu.Lock()
	root := r.root
	r.mu.Unlock()

	if root == nil {
		return nil, ErrNotComposite
	}

	keys := op.SplitPath(path)

	cur := root
	for _, k := range keys {
		child, ok := cur.Get(k)
		if !ok {
			return nil, errNoSuchPath(path)
		}

		cv, ok := child.(*View)
		if !ok {
			return nil, errNotContainer(path)
		}

		cur = cv
	}

	return cur, nil
}

// Set assigns value at the container addressed by path's last segment,
// the explicit-path equivalent of `View.Set`. path follows [op.JoinPath]'s
// format; the root's own direct child "/x" sets key "x" on the root.
func (r *Replicant) Set(path string, value any) error {
	parent, key, err := splitParent(path)
	if err != nil {
		return err
	}

	view, err := r.containerAt(parent)
	if err != nil {
		return err
	}

	return view.Set(key, value)
}

// Delete removes the key addressed by path's last segment.
func (r *Replicant) Delete(path string) error {
	parent, key, err := splitParent(path)
	if err != nil {
		return err
	}

	view, err := r.containerAt(parent)
	if err != nil {
		return err
	}

	return view.Delete(key)
}

// Mutate invokes one of the JS Array.prototype-style mutator methods on the
// sequence at path, the explicit-path equivalent of calling the
// corresponding View method directly. Returns that method's native return
// value (e.g. the removed element for Pop/Shift, the new length for
// Push/Unshift, the removed slice for Splice).
func (r *Replicant) Mutate(path string, method op.Method, args ...any) (any, error) {
	if !op.IsArrayMutator(method) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperationMethod, method)
	}

	view, err := r.containerAt(path)
	if err != nil {
		return nil, err
	}

	switch method {
	case op.Push:
		n, err := view.Push(args...)

		return n, err
	case op.Pop:
		return view.Pop()
	case op.Shift:
		return view.Shift()
	case op.Unshift:
		n, err := view.Unshift(args...)

		return n, err
	case op.Splice:
		start, deleteCount, items, err := spliceArgs(args)
		if err != nil {
			return nil, err
		}

		return view.Splice(start, deleteCount, items...)
	case op.Sort:
		return nil, view.Sort()
	case op.Reverse:
		return nil, view.Reverse()
	case op.Fill:
		value, start, end, err := fillArgs(args)
		if err != nil {
			return nil, err
		}

		return nil, view.Fill(value, start, end)
	case op.CopyWithin:
		target, start, end, err := copyWithinArgs(args)
		if err != nil {
			return nil, err
		}

		return nil, view.CopyWithin(target, start, end)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperationMethod, method)
	}
}

func spliceArgs(args []any) (start, deleteCount int, items []any, err error) {
	if len(args) < 2 {
		return 0, 0, nil, fmt.Errorf("replicant: splice requires (start, deleteCount, ...items), got %d args", len(args))
	}

	start, ok := args[0].(int)
	if !ok {
		return 0, 0, nil, fmt.Errorf("replicant: splice start must be int, got %T", args[0])
	}

	deleteCount, ok = args[1].(int)
	if !ok {
		return 0, 0, nil, fmt.Errorf("replicant: splice deleteCount must be int, got %T", args[1])
	}

	return start, deleteCount, args[2:], nil
}

func fillArgs(args []any) (value any, start, end int, err error) {
	if len(args) < 3 {
		return nil, 0, 0, fmt.Errorf("replicant: fill requires (value, start, end), got %d args", len(args))
	}

	start, ok := args[1].(int)
	if !ok {
		return nil, 0, 0, fmt.Errorf("replicant: fill start must be int, got %T", args[1])
	}

	end, ok = args[2].(int)
	if !ok {
		return nil, 0, 0, fmt.Errorf("replicant: fill end must be int, got %T", args[2])
	}

	return args[0], start, end, nil
}

func copyWithinArgs(args []any) (target, start, end int, err error) {
	if len(args) < 3 {
		return 0, 0, 0, fmt.Errorf("replicant: copyWithin requires (target, start, end), got %d args", len(args))
	}

	target, ok := args[0].(int)
	if !ok {
		return 0, 0, 0, fmt.Errorf("replicant: copyWithin target must be int, got %T", args[0])
	}

	start, ok = args[1].(int)
	if !ok {
		return 0, 0, 0, fmt.Errorf("replicant: copyWithin start must be int, got %T", args[1])
	}

	end, ok = args[2].(int)
	if !ok {
		return 0, 0, 0, fmt.Errorf("replicant: copyWithin end must be int, got %T", args[2])
	}

	return target, start, end, nil
}

// splitParent separates path into its parent container path and its final
// key, both still in [op.JoinPath] form/raw respectively.
func splitParent(path string) (parent string, key string, err error) {
	keys := op.SplitPath(path)
	if len(keys) == 0 {
		return "", "", fmt.Errorf("%w: %q", ErrRootPath, path)
	}

	return op.JoinPath(keys[:len(keys)-1]...), keys[len(keys)-1], nil
}

func errNoSuchPath(path string) error {
	return fmt.Errorf("%w: %q", ErrPathNotFound, path)
}

func errNotContainer(path string) error {
	return fmt.Errorf("%w: %q", ErrNotContainer, path)
}

// ApplyRemote replays ops against the replicant's raw value tree with
// interception suspended -- used both to apply a subscriber's own
// just-acknowledged operations and to replay operations a Replicator
// received over the transport -- installs revision, and returns the
// (oldValue, newValue) pair the caller hands to [Replicant.NotifyChange].
// The replicant must already be [Declared].
func (r *Replicant) ApplyRemote(ops []op.Operation, revision uint64) (oldValue, newValue any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldValue = proxy.DeepClone(r.value)

	root := r.value
	owner := r.Owner()

	for _, o := range ops {
		root, err = proxy.ApplyOperation(owner, root, o)
		if err != nil {
			return oldValue, nil, fmt.Errorf("replicant: apply remote operation at %q: %w", o.Path, err)
		}
	}

	if err := r.installValueLocked(root); err != nil {
		return oldValue, nil, err
	}

	r.revision = revision

	return oldValue, proxy.DeepClone(r.value), nil
}

// FlushPending snapshots and clears the pending operation batch, returning
// it along with the value before and after the batch for change
// notification. Returns ok=false if nothing was pending. Called by the
// Replicator's dispatcher after running a request to completion; safe to
// call directly for standalone use with no Replicator.
func (r *Replicant) FlushPending() (ops []op.Operation, newValue, oldValue any, ok bool) {
	snapshot, hasOps := r.queue.Flush()
	if !hasOps {
		return nil, nil, nil, false
	}

	r.mu.Lock()
	newValue = proxy.DeepClone(r.value)
	oldValue = r.turnSnapshot
	r.turnSnapshot = nil
	r.mu.Unlock()

	return snapshot, newValue, oldValue, true
}

// NotifyChange invokes every registered [Replicant.OnChange] /
// [Replicant.OnceChange] listener with (newValue, oldValue, ops), removing
// one-shot listeners after they fire. Called by the Replicator once per
// flushed batch.
func (r *Replicant) NotifyChange(newValue, oldValue any, ops []op.Operation) {
	r.mu.Lock()
	listeners := make([]changeListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	remaining := listeners[:0]

	for _, l := range listeners {
		l.fn(newValue, oldValue, ops)

		if !l.once {
			remaining = append(remaining, l)
		}
	}

	r.mu.Lock()
	r.listeners = remaining
	r.mu.Unlock()
}

// OnChange registers fn to run on every future flushed mutation batch. If
// the replicant is already [Declared], fn also fires synchronously right
// away, with the current value and no oldValue/ops, so a listener
// attached after declaration still sees the current state.
func (r *Replicant) OnChange(fn func(newValue, oldValue any, ops []op.Operation)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, changeListener{fn: fn})
	declared := r.status == Declared
	current := proxy.DeepClone(r.value)
	r.mu.Unlock()

	if declared {
		fn(current, nil, nil)
	}
}

// OnceChange registers fn to run exactly once, on the next flushed
// mutation batch. If the replicant is already [Declared], fn fires
// synchronously right away with the current value and is never
// registered -- it does not also fire on the next real change.
func (r *Replicant) OnceChange(fn func(newValue, oldValue any, ops []op.Operation)) {
	r.mu.Lock()
	declared := r.status == Declared
	current := proxy.DeepClone(r.value)

	if !declared {
		r.listeners = append(r.listeners, changeListener{fn: fn, once: true})
	}
	r.mu.Unlock()

	if declared {
		fn(current, nil, nil)
	}
}
