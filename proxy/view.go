package proxy

import (
	"fmt"
	"strconv"

	"github.com/replicantd/core/op"
)

// View is a stable wrapper around one composite (map[string]any or []any)
// reachable from a Replicant's value. Every read, write, delete, or
// array-mutator call that
// touches a Replicant's value graph after the first level goes through a
// View rather than native Go indexing.
type View struct {
	sink      Sink
	path      []string // raw, unescaped keys from root to this container
	raw       any       // map[string]any or []any
	writeBack func(any) // replaces this container in its parent (or root)
	children  map[string]*View
}

// wrap allocates or reuses the View for raw, recursively wrapping raw's own
// composite children. path is raw's path from the owning Replicant's root.
// writeBack must replace raw in whatever holds it (a parent map, a parent
// slice slot, or the Replicant's root) when this View later replaces its
// own raw value (e.g. after growing a slice).
func wrap(sink Sink, path []string, raw any, writeBack func(any)) (*View, error) {
	if !isComposite(raw) {
		return nil, fmt.Errorf("proxy: wrap called on non-composite %T", raw)
	}

	key, hasIdentity := rawIdentity(raw)

	if hasIdentity {
		if existing, ok := lookupRaw(key); ok {
			if existing.sink.Owner() != sink.Owner() {
				return nil, &CrossOwnershipError{
					Existing: existing.sink.Owner(),
					Incoming: sink.Owner(),
					Path:     op.JoinPath(path...),
					Value:    raw,
				}
			}
			// Same owner, possibly a new location: rebind path/writeBack
			// rather than allocating a second View for the same container.
			existing.path = path
			existing.raw = raw
			existing.writeBack = writeBack

			return existing, nil
		}
	}

	v := &View{
		sink:      sink,
		path:      path,
		raw:       raw,
		writeBack: writeBack,
		children:  map[string]*View{},
	}

	if hasIdentity {
		registerRaw(key, v)
	}

	if err := v.wrapChildren(); err != nil {
		return nil, err
	}

	return v, nil
}

// wrapChildren recursively wraps every composite own child of v.raw,
// rebinding each child's path to be relative to v's own path.
func (v *View) wrapChildren() error {
	switch t := v.raw.(type) {
	case map[string]any:
		for k, child := range t {
			if !isComposite(child) {
				continue
			}

			k := k
			childView, err := wrap(v.sink, append(append([]string{}, v.path...), k), child, func(newRaw any) {
				t[k] = newRaw
			})
			if err != nil {
				return err
			}

			v.children[k] = childView
		}
	case []any:
		for i, child := range t {
			if !isComposite(child) {
				continue
			}

			i := i
			key := strconv.Itoa(i)
			childView, err := wrap(v.sink, append(append([]string{}, v.path...), key), child, func(newRaw any) {
				t[i] = newRaw
			})
			if err != nil {
				return err
			}

			v.children[key] = childView
		}
	}

	return nil
}

// Path returns this View's path from its Replicant's root, already
// escaped and joined (e.g. "/a/b").
func (v *View) Path() string {
	return op.JoinPath(v.path...)
}

// lastKey returns the raw key this container is reachable by from its own
// parent, or "" if this View wraps the Replicant's root value directly.
func (v *View) lastKey() string {
	if len(v.path) == 0 {
		return ""
	}

	return v.path[len(v.path)-1]
}

// Raw returns the current underlying container. Callers must not mutate it
// directly; use Set/Delete/the array mutators so mutations are tracked.
func (v *View) Raw() any {
	return v.raw
}

// Get reads key (a map key, or a slice index rendered as a decimal
// string) and returns either a child *View (if the value is composite) or
// the raw scalar. ok is false if the key/index is absent.
func (v *View) Get(key string) (any, bool) {
	switch t := v.raw.(type) {
	case map[string]any:
		val, ok := t[key]
		if !ok {
			return nil, false
		}

		if child, ok := v.children[key]; ok {
			return child, true
		}

		return val, true
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(t) {
			return nil, false
		}

		if child, ok := v.children[key]; ok {
			return child, true
		}

		return t[idx], true
	default:
		return nil, false
	}
}

// Len reports the number of entries (map) or elements (slice) in this
// container.
func (v *View) Len() int {
	switch t := v.raw.(type) {
	case map[string]any:
		return len(t)
	case []any:
		return len(t)
	default:
		return 0
	}
}

func (v *View) rawHas(key string) bool {
	switch t := v.raw.(type) {
	case map[string]any:
		_, ok := t[key]

		return ok
	case []any:
		idx, err := strconv.Atoi(key)

		return err == nil && idx >= 0 && idx < len(t)
	default:
		return false
	}
}

func (v *View) rawGet(key string) any {
	switch t := v.raw.(type) {
	case map[string]any:
		return t[key]
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(t) {
			return nil
		}

		return t[idx]
	default:
		return nil
	}
}

// Set assigns value at key, enqueuing an add or update Operation. A write
// that is strict-equal to the current value is a no-op. When
// interception is suspended for this View's owner the assignment is made
// directly with no validation and no Operation.
func (v *View) Set(key string, value any) error {
	existed := v.rawHas(key)
	if existed && valuesEqual(v.rawGet(key), value) {
		return nil
	}

	if IsSuspended(v.sink.Owner()) {
		return v.writeThrough(key, value)
	}

	method := op.Add
	if existed {
		method = op.Update
	}

	path := v.opPath(method, key)

	if err := v.dryRun(op.Operation{
		Path:   path,
		Method: method,
		Args:   op.Args{Prop: key, NewValue: value},
	}); err != nil {
		return err
	}

	if !v.sink.Authoritative() {
		// Subscriber side: the write does not apply locally; it takes
		// effect when the authoritative side's acknowledged operation
		// arrives and is replayed via ApplyOperation.
		v.sink.Enqueue(op.Operation{Path: path, Method: method, Args: op.Args{Prop: key, NewValue: value}})

		return nil
	}

	if err := v.writeThrough(key, value); err != nil {
		return err
	}

	v.sink.Enqueue(op.Operation{Path: path, Method: method, Args: op.Args{Prop: key, NewValue: value}})

	return nil
}

// opPath returns the Path an Operation assigning key on this View should
// carry. Everywhere but the replicant root, Path stops at the container
// and the key travels only in Args.Prop (so `r.value.a.b[1] = 9` reports
// path "/a/b", not "/a/b/1"). At the root, though, the container path is
// just "/" and carries no key of its own to distinguish one add from
// another, so a brand-new key introduced there is folded into Path itself
// (escaped), matching the wire shape a root-level add is expected to use.
func (v *View) opPath(method op.Method, key string) string {
	if method == op.Add && len(v.path) == 0 {
		return op.JoinPath(key)
	}

	return v.Path()
}

// writeThrough performs the raw write (and recursive wrapping/ownership
// binding of a composite value) with no validation or enqueueing. Used
// both for the authoritative write-through after a dry run and for writes
// made while interception is suspended.
func (v *View) writeThrough(key string, value any) error {
	// Wrap (and ownership-check) a composite before touching the raw
	// container, so a rejected graft leaves the tree unchanged.
	var child *View

	if isComposite(value) {
		c, err := wrap(v.sink, append(append([]string{}, v.path...), key), value, v.childWriteBack(key))
		if err != nil {
			return err
		}

		child = c
	}

	switch t := v.raw.(type) {
	case map[string]any:
		t[key] = value
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(t) {
			return fmt.Errorf("proxy: index %q out of range", key)
		}

		t[idx] = value
	default:
		return fmt.Errorf("proxy: writeThrough on non-composite %T", v.raw)
	}

	if child != nil {
		v.children[key] = child
	} else {
		delete(v.children, key)
	}

	return nil
}

func (v *View) childWriteBack(key string) func(any) {
	return func(newRaw any) {
		switch t := v.raw.(type) {
		case map[string]any:
			t[key] = newRaw
		case []any:
			idx, _ := strconv.Atoi(key) //nolint:errcheck // key always produced internally as a valid index.
			t[idx] = newRaw
		}
	}
}

// Delete removes key, enqueuing a delete Operation. Deleting an absent key
// is a no-op success.
func (v *View) Delete(key string) error {
	if !v.rawHas(key) {
		return nil
	}

	if IsSuspended(v.sink.Owner()) {
		return v.deleteThrough(key)
	}

	if err := v.dryRun(op.Operation{
		Path:   v.Path(),
		Method: op.Delete,
		Args:   op.Args{Prop: key},
	}); err != nil {
		return err
	}

	if !v.sink.Authoritative() {
		v.sink.Enqueue(op.Operation{Path: v.Path(), Method: op.Delete, Args: op.Args{Prop: key}})

		return nil
	}

	if err := v.deleteThrough(key); err != nil {
		return err
	}

	v.sink.Enqueue(op.Operation{Path: v.Path(), Method: op.Delete, Args: op.Args{Prop: key}})

	return nil
}

func (v *View) deleteThrough(key string) error {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return fmt.Errorf("proxy: delete only supported on mappings, got %T", v.raw)
	}

	delete(m, key)
	delete(v.children, key)

	if id, ok := rawIdentity(v.raw); ok {
		_ = id // container identity unchanged by a key delete; nothing to forget.
	}

	return nil
}

// dryRun builds a clone of the owning Replicant's current full value with
// o applied at this View's path, and runs it past the schema gate. On
// success the live value is untouched; on failure it is equally untouched
// and the error is returned to the caller.
func (v *View) dryRun(o op.Operation) error {
	root := v.sink.CloneRoot()

	mutated, err := Mutate(root, o)
	if err != nil {
		return err
	}

	return v.sink.DryRun(mutated)
}
