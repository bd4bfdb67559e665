package replicant

import "time"

const defaultPersistenceInterval = 100 * time.Millisecond

// Options configures a Replicant at declaration time: whether the value
// survives restart, how aggressively persistence writes are coalesced,
// where its schema lives, and the value to seed when no persisted value
// exists yet.
type Options struct {
	Persistent          bool
	PersistenceInterval time.Duration
	SchemaPath          string
	DefaultValue        any
}

// Option configures a Replicant at construction, following the same
// functional-options shape used throughout this module (see
// [github.com/replicantd/core/log.PublisherOption]).
type Option func(*Options)

// WithPersistent overrides the default (true): whether this replicant's
// value is written to durable storage at all.
func WithPersistent(persistent bool) Option {
	return func(o *Options) {
		o.Persistent = persistent
	}
}

// WithPersistenceInterval overrides the default 100ms coalescing window
// for persistence writes. Non-positive values are clamped to the default.
func WithPersistenceInterval(d time.Duration) Option {
	return func(o *Options) {
		if d <= 0 {
			d = defaultPersistenceInterval
		}

		o.PersistenceInterval = d
	}
}

// WithSchemaPath sets the locator the Replicator resolves and compiles a
// JSON Schema document from before declaration completes.
func WithSchemaPath(path string) Option {
	return func(o *Options) {
		o.SchemaPath = path
	}
}

// WithDefaultValue sets the value used to seed this replicant when no
// persisted value is found (or persistence is disabled).
func WithDefaultValue(v any) Option {
	return func(o *Options) {
		o.DefaultValue = v
	}
}

func newOptions(opts ...Option) Options {
	o := Options{
		Persistent:          true,
		PersistenceInterval: defaultPersistenceInterval,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
