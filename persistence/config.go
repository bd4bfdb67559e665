package persistence

import (
	"github.com/spf13/pflag"
)

// Flags holds CLI flag names for persistence configuration, allowing
// callers to customize flag names while keeping sensible defaults via
// [NewConfig].
type Flags struct {
	Dir string
}

// NewConfig creates a new [Config] embedding these flag names.
func (f Flags) NewConfig() *Config {
	return &Config{Flags: f}
}

// Config holds CLI flag values for persistence configuration.
//
// Create instances with [NewConfig] and register CLI flags with
// [Config.RegisterFlags]. Use [Config.NewStore] to create a [Store].
type Config struct {
	Dir   string
	Flags Flags
}

// NewConfig returns a new [Config] with the default flag names.
func NewConfig() *Config {
	f := Flags{Dir: "persistence-dir"}

	return f.NewConfig()
}

// RegisterFlags adds persistence flags to the given [*pflag.FlagSet].
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Dir, c.Flags.Dir, "./data",
		"directory holding one JSON file per declared, persistent replicant")
}

// NewStore creates a [Store] rooted at c.Dir.
func (c *Config) NewStore(opts ...Option) *Store {
	return NewStore(c.Dir, opts...)
}
