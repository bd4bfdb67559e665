// Package main provides the CLI entry point for replicantd, a daemon that
// loads a manifest of declared replicants and serves them over an
// in-process loopback transport.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/replicantd/core/version"
)

func main() {
	cfg := newConfig()

	rootCmd := &cobra.Command{
		Use:   "replicantd [flags] <manifest.yaml>",
		Short: "Run an authoritative replicant registry from a declaration manifest",
		Long: `replicantd loads a YAML manifest declaring a set of namespaced, named
replicants, declares each of them on a fresh authoritative Registry, and
serves them over an in-process loopback transport for any subscriber
started in the same process. It runs until interrupted.`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, args[0])
		},
	}

	cfg.log.RegisterFlags(rootCmd.Flags())
	cfg.persistence.RegisterFlags(rootCmd.Flags())
	cfg.profile.RegisterFlags(rootCmd.Flags())
	rootCmd.Flags().DurationVar(&cfg.bufferWait, "buffer-wait", cfg.bufferWait,
		"how long an inbound operation for an undeclared replicant is held before being dropped")

	if err := cfg.log.RegisterCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register log completions: %v\n", err)
	}

	if err := cfg.profile.RegisterCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register profile completions: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
