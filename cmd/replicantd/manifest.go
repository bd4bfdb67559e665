package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/replicantd/core/replicant"
)

// ErrInvalidManifest is the sentinel every manifest load/parse failure
// wraps.
var ErrInvalidManifest = errors.New("invalid manifest")

// manifest is the bootstrap declaration file replicantd reads at startup:
// the set of replicants an authoritative Registry should declare before it
// starts serving subscribers.
type manifest struct {
	Replicants []replicantSpec `yaml:"replicants"`
}

// replicantSpec is one entry of a manifest. Persistent is a pointer so an
// omitted field falls back to [replicant.Options]'s own default (true)
// rather than the YAML zero value (false).
type replicantSpec struct {
	Namespace           string `yaml:"namespace"`
	Name                string `yaml:"name"`
	Persistent          *bool  `yaml:"persistent"`
	PersistenceInterval string `yaml:"persistenceInterval"`
	SchemaPath          string `yaml:"schemaPath"`
	DefaultValue        any    `yaml:"defaultValue"`
}

func (s replicantSpec) options() ([]replicant.Option, error) {
	var opts []replicant.Option

	if s.Persistent != nil {
		opts = append(opts, replicant.WithPersistent(*s.Persistent))
	}

	if s.PersistenceInterval != "" {
		d, err := time.ParseDuration(s.PersistenceInterval)
		if err != nil {
			return nil, fmt.Errorf("%w: %s/%s: persistenceInterval: %w", ErrInvalidManifest, s.Namespace, s.Name, err)
		}

		opts = append(opts, replicant.WithPersistenceInterval(d))
	}

	if s.SchemaPath != "" {
		opts = append(opts, replicant.WithSchemaPath(s.SchemaPath))
	}

	if s.DefaultValue != nil {
		opts = append(opts, replicant.WithDefaultValue(s.DefaultValue))
	}

	return opts, nil
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidManifest, path, err)
	}

	var m manifest

	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidManifest, path, err)
	}

	for i, spec := range m.Replicants {
		if spec.Namespace == "" || spec.Name == "" {
			return nil, fmt.Errorf("%w: entry %d: namespace and name are both required", ErrInvalidManifest, i)
		}
	}

	return &m, nil
}
