package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// key identifies one durable JSON blob by the replicant identity it backs.
type key struct {
	namespace string
	name      string
}

// pendingWrite is the latest value scheduled for key, plus the debounce
// timer counting down to its write. Re-scheduling within the coalescing
// window replaces value and resets the timer -- latest-write-wins.
type pendingWrite struct {
	timer *time.Timer
	value any
}

// Store is the durable store backing every `persistent` replicant: one
// JSON file per (namespace, name) under Dir, written crash-safely
// (temp-file-then-rename) and debounced per key so a burst of mutations
// produces one write instead of one per mutation.
//
// Create instances with [NewStore] or [Config.NewStore].
type Store struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	pending map[key]*pendingWrite
}

// Option configures a [Store].
type Option func(*Store)

// WithLogger attaches logger for reporting [ErrPersistence] failures.
// Left unset, a Store uses [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store rooted at dir. dir is created lazily, on first
// write, not by NewStore itself.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:     dir,
		logger:  slog.Default(),
		pending: map[key]*pendingWrite{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load reads the persisted value for (namespace, name). found is false
// with a nil error when no file exists yet -- the caller falls back to
// [replicant.Options.DefaultValue].
func (s *Store) Load(namespace, name string) (value any, found bool, err error) {
	data, err := os.ReadFile(s.path(namespace, name)) //nolint:gosec // path is built from validated namespace/name, not arbitrary input.
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s/%s: %w", ErrPersistence, namespace, name, err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("%w: decode %s/%s: %w", ErrPersistence, namespace, name, err)
	}

	return v, true, nil
}

// Save schedules a debounced, crash-safe write of value for
// (namespace, name), coalescing writes that land within interval of each
// other into one. Calling Save again before the timer fires replaces the
// pending value and resets the window -- latest-write-wins.
func (s *Store) Save(namespace, name string, value any, interval time.Duration) {
	k := key{namespace: namespace, name: name}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[k]
	if !ok {
		p = &pendingWrite{}
		s.pending[k] = p
	}

	p.value = value

	if p.timer != nil {
		p.timer.Stop()
	}

	p.timer = time.AfterFunc(interval, func() { s.flush(k) })
}

// flush performs the actual write for k, logging (not returning) any
// failure: a write failure is logged and retried on the next Save, never
// surfaced to the in-memory mutation path.
func (s *Store) flush(k key) {
	s.mu.Lock()
	p, ok := s.pending[k]
	if ok {
		delete(s.pending, k)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	if err := s.writeAtomic(k.namespace, k.name, p.value); err != nil {
		s.logger.Error("persistence write failed",
			slog.String("namespace", k.namespace),
			slog.String("name", k.name),
			slog.Any("error", err))
	}
}

// Flush forces an immediate, synchronous write of every currently pending
// key, bypassing their debounce timers. Intended for graceful shutdown,
// where waiting out the debounce window would lose the last burst of
// mutations.
func (s *Store) Flush() {
	s.mu.Lock()
	keys := make([]key, 0, len(s.pending))

	for k, p := range s.pending {
		if p.timer != nil {
			p.timer.Stop()
		}

		keys = append(keys, k)
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.flush(k)
	}
}

// writeAtomic marshals value and writes it to a temp file in the same
// directory as the final path, then renames it into place -- the
// standard crash-safety trick: a reader never observes a partially
// written file, since os.Rename is atomic within one filesystem.
func (s *Store) writeAtomic(namespace, name string, value any) error {
	dir := filepath.Join(s.dir, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // data directory, not secret.
		return fmt.Errorf("%w: mkdir %s: %w", ErrPersistence, dir, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %w", ErrPersistence, namespace, name, err)
	}

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrPersistence, err)
	}

	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op once the rename below succeeds; best-effort cleanup otherwise.

	if _, err := tmp.Write(data); err != nil {
		must(tmp.Close())

		return fmt.Errorf("%w: write %s/%s: %w", ErrPersistence, namespace, name, err)
	}

	if err := tmp.Sync(); err != nil {
		must(tmp.Close())

		return fmt.Errorf("%w: sync %s/%s: %w", ErrPersistence, namespace, name, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s/%s: %w", ErrPersistence, namespace, name, err)
	}

	if err := os.Rename(tmp.Name(), s.path(namespace, name)); err != nil {
		return fmt.Errorf("%w: rename %s/%s: %w", ErrPersistence, namespace, name, err)
	}

	return nil
}

func (s *Store) path(namespace, name string) string {
	return filepath.Join(s.dir, namespace, name+".json")
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
