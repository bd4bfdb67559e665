package proxy

import (
	"fmt"

	"github.com/replicantd/core/op"
)

// mutatorArgs returns the Args carried by an array-mutator Operation:
// Prop names the key this array is reachable by from its own parent (""
// when this array is the Replicant's root value), mirroring the source's
// habit of recording both the container path and its property name.
func (v *View) mutatorArgs(args []any) op.Args {
	return op.Args{Prop: v.lastKey(), MutatorArgs: args}
}

// callMutator is the shared implementation behind Push, Pop, Shift,
// Unshift, Splice, Sort, Reverse, Fill, and CopyWithin: dry-run the
// mutation against a clone, enqueue the Operation, and -- authoritative
// side only -- apply it to the live slice and re-wrap it to pick up any
// newly inserted composites. Subscriber sides never apply an array
// mutator locally; they wait for the authoritative echo, preserving the
// same read/write asymmetry every other mutation path has.
func (v *View) callMutator(method op.Method, args []any) (any, error) {
	s, ok := v.raw.([]any)
	if !ok {
		return nil, fmt.Errorf("proxy: %s called on non-sequence %T", method, v.raw)
	}

	o := op.Operation{Path: v.Path(), Method: method, Args: v.mutatorArgs(args)}

	if IsSuspended(v.sink.Owner()) {
		newSlice, ret, err := applyArrayMutator(s, method, args)
		if err != nil {
			return nil, err
		}

		v.replaceSlice(newSlice)

		return ret, nil
	}

	if err := v.dryRun(o); err != nil {
		return nil, err
	}

	if !v.sink.Authoritative() {
		v.sink.Enqueue(o)

		return nil, nil
	}

	newSlice, ret, err := applyArrayMutator(s, method, args)
	if err != nil {
		return nil, err
	}

	v.replaceSlice(newSlice)
	v.sink.Enqueue(o)

	return ret, nil
}

// replaceSlice installs newSlice as v's raw value, propagates it to
// whatever holds this container (parent map/slice or Replicant root) via
// writeBack, and re-wraps children since indices may have shifted.
func (v *View) replaceSlice(newSlice []any) {
	if oldKey, ok := rawIdentity(v.raw); ok {
		forgetRaw(oldKey)
	}

	v.raw = newSlice
	v.children = map[string]*View{}

	if newKey, ok := rawIdentity(newSlice); ok {
		registerRaw(newKey, v)
	}

	_ = v.wrapChildren()
	v.writeBack(newSlice)
}

// Push appends items, mirroring Array.prototype.push. It returns the new
// length on the authoritative side and 0 on a subscriber (the real length
// is only known once the authoritative echo arrives).
func (v *View) Push(items ...any) (int, error) {
	ret, err := v.callMutator(op.Push, items)
	if err != nil {
		return 0, err
	}

	n, _ := ret.(int)

	return n, nil
}

// Pop removes and returns the last element, mirroring Array.prototype.pop.
func (v *View) Pop() (any, error) {
	return v.callMutator(op.Pop, nil)
}

// Shift removes and returns the first element.
func (v *View) Shift() (any, error) {
	return v.callMutator(op.Shift, nil)
}

// Unshift prepends items, returning the new length (authoritative side
// only).
func (v *View) Unshift(items ...any) (int, error) {
	ret, err := v.callMutator(op.Unshift, items)
	if err != nil {
		return 0, err
	}

	n, _ := ret.(int)

	return n, nil
}

// Splice removes deleteCount elements starting at start and inserts
// items in their place, returning the removed elements.
func (v *View) Splice(start, deleteCount int, items ...any) ([]any, error) {
	args := append([]any{start, deleteCount}, items...)

	ret, err := v.callMutator(op.Splice, args)
	if err != nil {
		return nil, err
	}

	removed, _ := ret.([]any)

	return removed, nil
}

// Sort sorts the sequence using a string-rendered comparison, mirroring
// the default Array.prototype.sort behavior.
func (v *View) Sort() error {
	_, err := v.callMutator(op.Sort, nil)

	return err
}

// Reverse reverses the sequence in place.
func (v *View) Reverse() error {
	_, err := v.callMutator(op.Reverse, nil)

	return err
}

// Fill sets every element from start to end (end exclusive) to value.
func (v *View) Fill(value any, start, end int) error {
	_, err := v.callMutator(op.Fill, []any{value, start, end})

	return err
}

// CopyWithin copies the [start, end) region to target, overwriting the
// elements there. The length is unchanged: elements that would land past
// the end are dropped, and nothing is shifted.
func (v *View) CopyWithin(target, start, end int) error {
	_, err := v.callMutator(op.CopyWithin, []any{target, start, end})

	return err
}
