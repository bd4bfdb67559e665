package proxy

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/replicantd/core/op"
)

func descend(cur any, key string) (any, error) {
	switch t := cur.(type) {
	case map[string]any:
		v, ok := t[key]
		if !ok {
			return nil, fmt.Errorf("proxy: no such key %q", key)
		}

		return v, nil
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(t) {
			return nil, fmt.Errorf("proxy: index %q out of range", key)
		}

		return t[idx], nil
	default:
		return nil, fmt.Errorf("proxy: cannot descend into %T", cur)
	}
}

// navigate walks root down path, returning the value found there. An empty
// path returns root itself.
func navigate(root any, path []string) (any, error) {
	cur := root
	for _, k := range path {
		var err error

		cur, err = descend(cur, k)
		if err != nil {
			return nil, err
		}
	}

	return cur, nil
}

// navigateParent walks root down all but the last segment of path,
// returning that ancestor, the last segment, and the value it addresses --
// so callers can write a replacement back for containers (like slices)
// that may need to be swapped wholesale rather than mutated in place. An
// empty path reports parent=nil, meaning "container is root itself".
func navigateParent(root any, path []string) (parent any, lastKey string, container any, err error) {
	if len(path) == 0 {
		return nil, "", root, nil
	}

	cur := root
	for _, k := range path[:len(path)-1] {
		cur, err = descend(cur, k)
		if err != nil {
			return nil, "", nil, err
		}
	}

	lastKey = path[len(path)-1]

	container, err = descend(cur, lastKey)
	if err != nil {
		return nil, "", nil, err
	}

	return cur, lastKey, container, nil
}

func writeAt(parent any, key string, value any) error {
	switch t := parent.(type) {
	case map[string]any:
		t[key] = value

		return nil
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(t) {
			return fmt.Errorf("proxy: index %q out of range", key)
		}

		t[idx] = value

		return nil
	default:
		return fmt.Errorf("proxy: cannot write into %T", parent)
	}
}

// Mutate applies o to root and returns the resulting root -- root's own
// composites are mutated in place for Add/Update/Delete (maps
// and in-bounds slice indices never need their container swapped), while
// array mutators and a root-level Overwrite may need to replace the
// container itself, which Mutate handles by returning a possibly-new root.
// Callers that need the original root untouched must pass a [DeepClone].
func Mutate(root any, o op.Operation) (any, error) {
	path := op.SplitPath(o.Path)

	switch o.Method {
	case op.Overwrite:
		if len(path) != 0 {
			return nil, fmt.Errorf("proxy: overwrite must target the root, got %q", o.Path)
		}

		return o.Args.NewValue, nil

	case op.Add, op.Update:
		container, err := navigate(root, path)
		if err != nil && o.Method == op.Add && len(path) == 1 && path[0] == o.Args.Prop {
			// A root-level Add folds the new key into Path itself
			// (duplicating Args.Prop), since the root container has no
			// path segments of its own to carry it -- see View.opPath.
			// The key can't resolve via navigate because it doesn't
			// exist yet; the container is root.
			container, err = root, nil
		}

		if err != nil {
			return nil, err
		}

		if err := writeAt(container, o.Args.Prop, o.Args.NewValue); err != nil {
			return nil, err
		}

		return root, nil

	case op.Delete:
		container, err := navigate(root, path)
		if err != nil {
			return nil, err
		}

		m, ok := container.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("proxy: delete target at %q is not a mapping", o.Path)
		}

		delete(m, o.Args.Prop)

		return root, nil

	case op.CopyWithin, op.Fill, op.Pop, op.Push, op.Reverse, op.Shift, op.Sort, op.Splice, op.Unshift:
		container, err := navigate(root, path)
		if err != nil {
			return nil, err
		}

		s, ok := container.([]any)
		if !ok {
			return nil, fmt.Errorf("proxy: %s target at %q is not a sequence", o.Method, o.Path)
		}

		newSlice, _, err := applyArrayMutator(s, o.Method, o.Args.MutatorArgs)
		if err != nil {
			return nil, err
		}

		if len(path) == 0 {
			return newSlice, nil
		}

		parent, lastKey, _, err := navigateParent(root, path)
		if err != nil {
			return nil, err
		}

		if err := writeAt(parent, lastKey, newSlice); err != nil {
			return nil, err
		}

		return root, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperationMethod, o.Method)
	}
}

// applyArrayMutator runs one of the JS Array.prototype mutator methods
// against s, returning the (possibly reallocated) resulting slice and its
// return value (meaningful for Pop/Shift, which return the removed
// element).
func applyArrayMutator(s []any, m op.Method, args []any) ([]any, any, error) {
	switch m {
	case op.Push:
		return append(s, args...), len(s) + len(args), nil

	case op.Pop:
		if len(s) == 0 {
			return s, nil, nil
		}

		last := s[len(s)-1]

		return s[:len(s)-1], last, nil

	case op.Shift:
		if len(s) == 0 {
			return s, nil, nil
		}

		first := s[0]

		return append([]any{}, s[1:]...), first, nil

	case op.Unshift:
		out := make([]any, 0, len(args)+len(s))
		out = append(out, args...)
		out = append(out, s...)

		return out, len(out), nil

	case op.Reverse:
		out := make([]any, len(s))
		for i, v := range s {
			out[len(s)-1-i] = v
		}

		return out, out, nil

	case op.Sort:
		out := append([]any{}, s...)
		sort.SliceStable(out, func(i, j int) bool {
			return fmt.Sprint(out[i]) < fmt.Sprint(out[j])
		})

		return out, out, nil

	case op.Fill:
		if len(args) == 0 {
			return s, s, nil
		}

		value := args[0]
		start, end := 0, len(s)

		if len(args) > 1 {
			start = clampIndex(args[1], len(s))
		}

		if len(args) > 2 {
			end = clampIndex(args[2], len(s))
		}

		out := append([]any{}, s...)
		for i := start; i < end && i < len(out); i++ {
			out[i] = value
		}

		return out, out, nil

	case op.CopyWithin:
		if len(args) == 0 {
			return s, s, nil
		}

		target := clampIndex(args[0], len(s))
		start := 0
		end := len(s)

		if len(args) > 1 {
			start = clampIndex(args[1], len(s))
		}

		if len(args) > 2 {
			end = clampIndex(args[2], len(s))
		}

		out := append([]any{}, s...)
		region := append([]any{}, out[start:end]...)

		for i, v := range region {
			if target+i >= len(out) {
				break
			}

			out[target+i] = v
		}

		return out, out, nil

	case op.Splice:
		start := 0
		if len(args) > 0 {
			start = clampIndex(args[0], len(s))
		}

		deleteCount := len(s) - start
		if len(args) > 1 {
			if dc, ok := asInt(args[1]); ok {
				deleteCount = dc
			}
		}

		if deleteCount < 0 {
			deleteCount = 0
		}

		if start+deleteCount > len(s) {
			deleteCount = len(s) - start
		}

		var items []any
		if len(args) > 2 {
			items = args[2:]
		}

		removed := append([]any{}, s[start:start+deleteCount]...)

		out := make([]any, 0, len(s)-deleteCount+len(items))
		out = append(out, s[:start]...)
		out = append(out, items...)
		out = append(out, s[start+deleteCount:]...)

		return out, removed, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownOperationMethod, m)
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

func clampIndex(v any, length int) int {
	i, ok := asInt(v)
	if !ok {
		return 0
	}

	if i < 0 {
		i += length
	}

	if i < 0 {
		i = 0
	}

	if i > length {
		i = length
	}

	return i
}
