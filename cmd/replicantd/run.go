package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/replicantd/core/log"
	"github.com/replicantd/core/persistence"
	"github.com/replicantd/core/profile"
	"github.com/replicantd/core/replicator"
	"github.com/replicantd/core/version"
)

// config holds every flag-backed setting replicantd needs. Each embedded
// *Config owns its own flag names and registration, in the functional
// Flags/Config pattern used throughout this module.
type config struct {
	log         *log.Config
	persistence *persistence.Config
	profile     *profile.Config
	bufferWait  time.Duration
}

func newConfig() *config {
	return &config{
		log:         log.NewConfig(),
		persistence: persistence.NewConfig(),
		profile:     profile.NewConfig(),
		bufferWait:  5 * time.Second,
	}
}

// run loads manifestPath, declares every replicant it names on a fresh
// authoritative Registry, and blocks until ctx is canceled.
func run(ctx context.Context, cfg *config, manifestPath string) error {
	handler, err := cfg.log.NewHandler(os.Stderr)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	logger := slog.New(handler).With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)

	profiler := cfg.profile.NewProfiler()
	if err := profiler.Start(); err != nil {
		return fmt.Errorf("start profiling: %w", err)
	}

	defer func() {
		if err := profiler.Stop(); err != nil {
			logger.Error("stop profiling", slog.Any("error", err))
		}
	}()

	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}

	store := cfg.persistence.NewStore(persistence.WithLogger(logger))

	hub := replicator.NewLoopbackHub()
	reg := replicator.NewRegistry(true, hub.AuthoritativeTransport(), store,
		replicator.WithLogger(logger), replicator.WithBufferWait(cfg.bufferWait))
	hub.Attach(reg)

	runErrs := make(chan error, 1)

	go func() { runErrs <- reg.Run(ctx) }()

	for _, spec := range m.Replicants {
		opts, err := spec.options()
		if err != nil {
			return err
		}

		r, err := reg.FindOrDeclare(ctx, spec.Namespace, spec.Name, opts...)
		if err != nil {
			return fmt.Errorf("declare %s/%s: %w", spec.Namespace, spec.Name, err)
		}

		logger.Info("declared replicant",
			slog.String("namespace", spec.Namespace),
			slog.String("name", spec.Name),
			slog.Uint64("revision", r.Revision()))
	}

	logger.Info("replicantd ready",
		slog.Int("replicants", len(m.Replicants)),
		slog.String("version", version.Version),
		slog.String("revision", version.Revision))

	select {
	case <-ctx.Done():
	case err := <-runErrs:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("registry dispatcher stopped", slog.Any("error", err))
		}
	}

	store.Flush()

	logger.Info("replicantd stopped")

	return nil
}
