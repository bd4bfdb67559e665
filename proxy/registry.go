package proxy

import (
	"reflect"
	"runtime"
	"sync"
	"weak"
)

// rawIdentity returns a stable identity for the underlying storage of a
// map or slice: the address of the map header's bucket data, or of the
// slice's backing array. Composites with the same identity are the same
// underlying container, even if wrapped from two different reflect.Values.
//
// Slices with no backing storage (nil, or zero capacity) have no usable
// identity; such slices are never registered (see [registerRaw]), which only means an
// empty slice is never recognized as "the same slice encountered again" --
// harmless, since an empty slice carries no children to mis-attribute.
func rawIdentity(v any) (uintptr, bool) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		ptr := rv.Pointer()
		if ptr == 0 {
			return 0, false
		}

		// Zero-capacity slices that are not nil all point at the runtime's
		// shared zero-size allocation, so their address identifies nothing.
		if rv.Kind() == reflect.Slice && rv.Cap() == 0 {
			return 0, false
		}

		return ptr, true
	default:
		return 0, false
	}
}

var (
	rawRegistryMu sync.Mutex
	rawRegistry   = map[uintptr]weak.Pointer[View]{}
)

// lookupRaw returns the View already wrapping the raw container identified
// by key, if one is still alive.
func lookupRaw(key uintptr) (*View, bool) {
	rawRegistryMu.Lock()
	defer rawRegistryMu.Unlock()

	wp, ok := rawRegistry[key]
	if !ok {
		return nil, false
	}

	v := wp.Value()
	if v == nil {
		delete(rawRegistry, key)

		return nil, false
	}

	return v, true
}

// registerRaw records that v now wraps the raw container identified by
// key, and arranges for the registry entry to be dropped once v becomes
// unreachable, using the standard library's weak pointers and cleanup
// hook instead of a language-level WeakMap.
func registerRaw(key uintptr, v *View) {
	rawRegistryMu.Lock()
	rawRegistry[key] = weak.Make(v)
	rawRegistryMu.Unlock()

	runtime.AddCleanup(v, func(k uintptr) {
		rawRegistryMu.Lock()
		defer rawRegistryMu.Unlock()

		if wp, ok := rawRegistry[k]; ok && wp.Value() == nil {
			delete(rawRegistry, k)
		}
	}, key)
}

// forgetRaw drops the registry entry for key outright, used on overwrite
// and explicit release where the old container is known to be discarded.
func forgetRaw(key uintptr) {
	rawRegistryMu.Lock()
	delete(rawRegistry, key)
	rawRegistryMu.Unlock()
}

// suspendSet is the process-wide set of owners for whom interception is
// currently suppressed -- active while applying remote operations or
// replaying a flush's own operations back onto the raw tree, so those
// writes do not re-enter the interception path and enqueue themselves.
type suspendSet struct {
	mu sync.Mutex
	m  map[Owner]struct{}
}

var suspended = &suspendSet{m: map[Owner]struct{}{}}

func (s *suspendSet) isSuspended(o Owner) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.m[o]

	return ok
}

func (s *suspendSet) suspend(o Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[o] = struct{}{}
}

func (s *suspendSet) resume(o Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, o)
}

// Suppress suspends interception for owner, runs fn, and unconditionally
// resumes interception afterward -- including when fn panics -- so an
// error from fn can never leave interception suspended. Nesting Suppress
// calls for the same owner is not supported; no call site in this module
// needs to.
func Suppress(o Owner, fn func()) {
	suspended.suspend(o)
	defer suspended.resume(o)

	fn()
}

// IsSuspended reports whether interception is currently suspended for o.
func IsSuspended(o Owner) bool {
	return suspended.isSuspended(o)
}
