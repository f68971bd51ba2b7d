// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/natefinch/atomic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arvisha16/resctl-demo/internal/audit"
	"github.com/arvisha16/resctl-demo/internal/checks"
	"github.com/arvisha16/resctl-demo/internal/config"
	"github.com/arvisha16/resctl-demo/internal/side"
	"github.com/arvisha16/resctl-demo/internal/sysinfo"
	"github.com/arvisha16/resctl-demo/internal/systemd"
)

// Report is the agent's published status file, rewritten atomically on
// every tick.
type Report struct {
	Timestamp   time.Time                      `json:"timestamp"`
	Sysloads    map[string]side.SysloadReport  `json:"sysloads"`
	Sideloads   map[string]side.SideloadReport `json:"sideloads"`
	BalloonSize uint64                         `json:"balloon_size"`
}

// runE is the main reconciliation loop for the "run" subcommand.
func runE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	skipChecks, _ := cmd.Flags().GetBool("skip-checks")
	if res := checks.Startup(); !res.Ok() {
		if !skipChecks {
			return fmt.Errorf("prerequisite checks failed, rerun with --skip-checks to start anyway")
		}
		log.Warnf("starting with failed prerequisite checks: %v", res.MissingBins)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	facts, err := sysinfo.Collect()
	if err != nil {
		return fmt.Errorf("collecting host facts: %w", err)
	}

	devMajor, devMinor, err := sysinfo.DevNr(cfg.ScratchPath)
	if err != nil {
		// The scratch dir may not exist until the first workload does;
		// the environment then reports device 0:0.
		log.Warnf("failed to resolve scratch device number: %v", err)
	}

	mgr, err := systemd.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connecting to systemd: %w", err)
	}

	auditor, err := newAuditor(cfg)
	if err != nil {
		return err
	}
	defer auditor.Close()

	execID, runID, err := auditor.StartExecution(ctx, "run", cfg)
	if err != nil {
		return fmt.Errorf("starting audit execution: %w", err)
	}
	log.Infof("rd-agent run %s starting", runID)

	runner := side.NewSideRunner(cfg, mgr, facts, devMajor, devMinor)
	balloon := side.NewBalloon(ctx, cfg, mgr)

	// Shutdown tears down everything the agent owns. A fresh context:
	// the loop context is already cancelled by the time this runs.
	defer func() {
		downCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		runner.Close(downCtx)
		balloon.Close(downCtx)
		if err := auditor.CompleteExecution(downCtx, execID, "completed", ""); err != nil {
			log.Errorf("failed to complete audit execution: %v", err)
		}
	}()

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	for {
		if err := tick(ctx, cfg, runner, balloon, auditor, execID); err != nil {
			log.Errorf("reconciliation tick failed: %v", err)
		}

		select {
		case <-ctx.Done():
			log.Infof("rd-agent run %s stopping", runID)
			return nil
		case <-ticker.C:
		}
	}
}

// tick performs one full reconciliation pass: read target state, apply
// balloon and both workload kinds, publish the report.
func tick(ctx context.Context, cfg *config.Config, runner *side.SideRunner, balloon *side.Balloon, auditor audit.Auditor, execID int64) error {
	target, err := side.LoadCommand(cfg.CommandPath)
	if err != nil {
		return err
	}
	defs, err := side.LoadDefs(cfg.CatalogPath)
	if err != nil {
		return err
	}
	bench, err := side.LoadBench(cfg.BenchPath)
	if err != nil {
		return err
	}

	if err := balloon.SetSize(ctx, target.BalloonSize); err != nil {
		log.Errorf("failed to set balloon size to %d: %v", target.BalloonSize, err)
		recordEvent(ctx, auditor, execID, audit.EventRecord{
			EventType:   "balloon_error",
			Message:     fmt.Sprintf("set_size %d", target.BalloonSize),
			ErrorDetail: err.Error(),
		})
	}

	prevSys := runner.ActiveSysloads()
	var removedSys []*side.Sysload
	sysErr := runner.ApplySysloads(ctx, target.Sysloads, defs, bench, &removedSys)
	for _, sl := range removedSys {
		sl.Close(ctx)
	}
	auditDiff(ctx, auditor, execID, "sysload", prevSys, runner.ActiveSysloads(), target.Sysloads, side.SysloadSvcName)
	if sysErr != nil {
		return sysErr
	}

	prevSide := runner.ActiveSideloads()
	var removedSide []*side.Sideload
	sideErr := runner.ApplySideloads(ctx, target.Sideloads, defs, bench, &removedSide)
	for _, sl := range removedSide {
		sl.Close(ctx)
	}
	auditDiff(ctx, auditor, execID, "sideload", prevSide, runner.ActiveSideloads(), target.Sideloads, side.SideloadSvcName)
	if sideErr != nil {
		return sideErr
	}

	return writeReport(ctx, cfg, runner, balloon)
}

// writeReport refreshes every unit's status and publishes the report
// file atomically.
func writeReport(ctx context.Context, cfg *config.Config, runner *side.SideRunner, balloon *side.Balloon) error {
	sysRep, err := runner.ReportSysloads(ctx)
	if err != nil {
		return err
	}
	sideRep, err := runner.ReportSideloads(ctx)
	if err != nil {
		return err
	}

	rep := Report{
		Timestamp:   time.Now(),
		Sysloads:    sysRep,
		Sideloads:   sideRep,
		BalloonSize: balloon.Size(),
	}
	data, err := json.MarshalIndent(&rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(cfg.ReportPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing report %s: %w", cfg.ReportPath, err)
	}
	return nil
}

// auditDiff records creations and removals between two active sets.
func auditDiff(ctx context.Context, auditor audit.Auditor, execID int64, kind string, before, after []string, target map[string]string, svcName func(string) string) {
	prev := toSet(before)
	cur := toSet(after)

	for name := range prev {
		if _, ok := cur[name]; !ok {
			if err := auditor.RecordWorkloadRemoval(ctx, execID, name, kind); err != nil {
				log.Errorf("failed to audit removal of %s %q: %v", kind, name, err)
			}
		}
	}
	for name := range cur {
		if _, ok := prev[name]; !ok {
			if err := auditor.RecordWorkload(ctx, execID, audit.WorkloadRecord{
				Name:      name,
				Kind:      kind,
				CatalogID: target[name],
				UnitName:  svcName(name),
			}); err != nil {
				log.Errorf("failed to audit creation of %s %q: %v", kind, name, err)
			}
		}
	}
}

func recordEvent(ctx context.Context, auditor audit.Auditor, execID int64, e audit.EventRecord) {
	if err := auditor.RecordEvent(ctx, execID, e); err != nil {
		log.Errorf("failed to record audit event: %v", err)
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func newAuditor(cfg *config.Config) (audit.Auditor, error) {
	if !cfg.AuditEnabled {
		return audit.NopAuditor{}, nil
	}
	a, err := audit.NewSQLiteAuditor(cfg.AuditDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	return a, nil
}
