// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arvisha16/resctl-demo/internal/checks"
	"github.com/arvisha16/resctl-demo/internal/cleanup"
	"github.com/arvisha16/resctl-demo/internal/config"
	"github.com/arvisha16/resctl-demo/internal/prepare"
	"github.com/arvisha16/resctl-demo/internal/systemd"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rd-agent",
		Short: "Inject synthetic workloads and memory pressure on the local host",
		Long: `Rd-agent materialises declaratively specified synthetic workloads as
systemd units and keeps them reconciled against a target set. Sysloads
run under the agent's own supervision, sideloads are handed to the
sideloader daemon through job files, and a memory balloon provides
configurable physical memory pressure.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("top", "", "Agent working directory")
	pf.String("config", "", "Path to YAML config file")
	pf.String("scratch-dev", "", "Block device backing the scratch directory (e.g. nvme0n1)")
	pf.Bool("verbose", false, "Enable verbose output")

	rootCmd.AddCommand(newRunCmd(), newCleanupCmd(), newCheckCmd(), newPrepareCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile workloads against the command file until interrupted",
		Long: `Run the reconciliation loop: on every tick the command file is read,
the active workload set is converged toward it, and a status report is
published. Stops cleanly on SIGINT/SIGTERM, tearing down everything it
started.`,
		RunE: runE,
	}

	f := cmd.Flags()
	f.Int("interval", 0, "Reconciliation interval in seconds")
	f.String("balloon-bin", "", "Balloon executable path")
	f.String("linux-tar", "", "Local kernel source tarball for the build workload")
	f.Bool("audit", true, "Record workload lifecycle in the audit database")
	f.String("audit-db", "", "Audit database path")
	f.Bool("skip-checks", false, "Start even when prerequisite checks fail")

	return cmd
}

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Stop leftover units and remove leftover job files and scratch dirs",
		RunE:  cleanupE,
	}
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe binary and devel-library prerequisites",
		RunE:  checkE,
	}
}

func newPrepareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Install side-workload helper scripts and the kernel tarball",
		RunE:  prepareE,
	}
	cmd.Flags().String("linux-tar", "", "Local kernel source tarball to use instead of downloading")
	return cmd
}

// cleanupE is the sweep flow for the "cleanup" subcommand.
func cleanupE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mgr, err := systemd.Connect(cmd.Context())
	if err != nil {
		return fmt.Errorf("connecting to systemd: %w", err)
	}

	result, err := cleanup.Sweep(cmd.Context(), mgr, cfg)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cleanup complete: %d units stopped, %d job files removed, %d scratch dirs removed\n",
		result.UnitsStopped, result.JobFilesRemoved, result.ScratchDirsRemoved)

	if len(result.Errors) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warnings (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %v\n", e)
		}
	}

	return nil
}

// checkE is the prerequisite probe for the "check" subcommand.
func checkE(cmd *cobra.Command, args []string) error {
	res := checks.Startup()
	if res.Ok() {
		fmt.Fprintln(cmd.OutOrStdout(), "All prerequisites satisfied")
		return nil
	}

	if len(res.MissingBins) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Missing binaries: %s\n", strings.Join(res.MissingBins, ", "))
	}
	if len(res.MissingLibs) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Missing devel libraries: %s\n", strings.Join(res.MissingLibs, ", "))
	}
	return fmt.Errorf("%d prerequisite(s) missing", len(res.MissingBins)+len(res.MissingLibs))
}

// prepareE is the provisioning flow for the "prepare" subcommand.
func prepareE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := prepare.All(cmd.Context(), cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Prepared side bins under %s\n", cfg.SideBinPath)
	return nil
}

// loadConfig loads configuration and applies the logging level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	return cfg, nil
}
