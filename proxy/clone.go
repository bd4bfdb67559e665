package proxy

// DeepClone returns a structural copy of a JSON-compatible tree (nil, bool,
// string, any numeric type, map[string]any, or []any). Scalars are
// returned as-is since they are immutable in Go; composites are copied
// recursively so mutating the clone never affects v.
func DeepClone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = DeepClone(child)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = DeepClone(child)
		}

		return out
	default:
		return v
	}
}

// isComposite reports whether v is a mapping or ordered sequence, i.e. a
// node this package installs an interception layer over, as opposed to a
// leaf scalar.
func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// valuesEqual mirrors JavaScript's strict-equality as used by the write
// no-op check: scalars compare by value, composites never compare equal
// even when deep-equal, since assigning a *different* object reference
// over an existing one is an observable mutation even if the two encode
// the same JSON.
func valuesEqual(a, b any) bool {
	if isComposite(a) || isComposite(b) {
		return false
	}

	return a == b
}
