// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

// Package side reconciles declaratively specified synthetic workloads
// against the set currently running on the host. Sysloads are started
// directly as transient systemd units; sideloads are handed to the
// sideloader daemon through per-workload job files. The package also
// owns the memory balloon.
//
// A SideRunner is not safe for concurrent use; it expects a single
// logical caller driving reconciliation, reporting and teardown in
// sequence.
package side

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/arvisha16/resctl-demo/internal/config"
	"github.com/arvisha16/resctl-demo/internal/constants"
	"github.com/arvisha16/resctl-demo/internal/sysinfo"
	"github.com/arvisha16/resctl-demo/internal/systemd"
)

// SideRunner owns the active sysload and sideload maps and drives them
// toward whatever target mapping the caller supplies.
type SideRunner struct {
	cfg   *config.Config
	mgr   systemd.Manager
	facts *sysinfo.Facts

	devMajor uint64
	devMinor uint64

	sysloads  map[string]*Sysload
	sideloads map[string]*Sideload
}

// NewSideRunner returns a runner with empty active maps. devMajor and
// devMinor identify the block device backing the scratch directory.
func NewSideRunner(cfg *config.Config, mgr systemd.Manager, facts *sysinfo.Facts, devMajor, devMinor uint64) *SideRunner {
	return &SideRunner{
		cfg:       cfg,
		mgr:       mgr,
		facts:     facts,
		devMajor:  devMajor,
		devMinor:  devMinor,
		sysloads:  map[string]*Sysload{},
		sideloads: map[string]*Sideload{},
	}
}

func (r *SideRunner) envs(bench *BenchKnobs) []string {
	return BuildEnvs(r.facts, r.cfg.ScratchDev, r.devMajor, r.devMinor, bench)
}

// ApplySysloads reconciles the active sysloads against target, a
// mapping from workload name to catalog id. Workloads whose names left
// the target set are removed first; if removed is non-nil their records
// are appended to it for deferred disposal instead of being torn down
// inline. New names are then resolved and created. A resolution or
// creation failure aborts the call; changes already applied stay
// applied.
func (r *SideRunner) ApplySysloads(ctx context.Context, target map[string]string, defs *SideloadDefs, bench *BenchKnobs, removed *[]*Sysload) error {
	goners, fresh := diffNames(r.sysloads, target)

	for _, name := range goners {
		sl := r.sysloads[name]
		delete(r.sysloads, name)
		if removed != nil {
			*removed = append(*removed, sl)
		} else {
			sl.Close(ctx)
		}
	}

	for _, name := range fresh {
		spec, err := resolveSpec(name, target[name], defs, r.cfg.SideBinPath)
		if err != nil {
			return err
		}

		umask := constants.SvcUMask
		svc, err := systemd.NewTransientService(r.mgr, SysloadSvcName(name), spec.Args, r.envs(bench), &umask)
		if err != nil {
			return err
		}
		scratchPath, err := prepScratchDir(r.cfg.SysScratchPath, name)
		if err != nil {
			return err
		}
		svc.SetSlice(constants.SysSlice).SetWorkingDir(scratchPath)

		sysload := &Sysload{scratchPath: scratchPath, svc: svc}
		// Best-effort start: the record is kept either way and the next
		// status refresh surfaces a unit that never came up.
		if err := svc.Start(ctx); err != nil {
			log.Warnf("side: failed to start sysload %q: %v", name, err)
		}

		r.sysloads[name] = sysload
	}

	return nil
}

// ApplySideloads reconciles the active sideloads against target. The
// shape mirrors ApplySysloads, but creation publishes a job file for
// the sideloader daemon instead of starting a unit; the daemon starts
// the unit when it observes the file.
func (r *SideRunner) ApplySideloads(ctx context.Context, target map[string]string, defs *SideloadDefs, bench *BenchKnobs, removed *[]*Sideload) error {
	goners, fresh := diffNames(r.sideloads, target)

	for _, name := range goners {
		sl := r.sideloads[name]
		delete(r.sideloads, name)
		if removed != nil {
			*removed = append(*removed, sl)
		} else {
			sl.Close(ctx)
		}
	}

	for _, name := range fresh {
		spec, err := resolveSpec(name, target[name], defs, r.cfg.SideBinPath)
		if err != nil {
			return err
		}

		jobPath := filepath.Join(r.cfg.JobsPath, name+".json")
		scratchPath, err := prepScratchDir(r.cfg.SideScratchPath, name)
		if err != nil {
			return err
		}

		jobs := &SideloaderJobs{
			SideloaderJobs: []SideloaderJob{{
				ID:               name,
				Args:             spec.Args,
				Envs:             r.envs(bench),
				FrozenExpiration: spec.FrozenExp,
				WorkingDir:       scratchPath,
			}},
		}
		if err := jobs.Save(jobPath); err != nil {
			return err
		}

		r.sideloads[name] = &Sideload{
			name:        name,
			scratchPath: scratchPath,
			jobPath:     jobPath,
			unit:        systemd.NewUnit(r.mgr, SideloadSvcName(name)),
		}

		log.Infof("side: %q started", name)
	}

	return nil
}

// Stop tears down all sysloads. Sideloads are left to the sideloader
// daemon; Close handles full shutdown.
func (r *SideRunner) Stop(ctx context.Context) {
	for name, sl := range r.sysloads {
		delete(r.sysloads, name)
		sl.Close(ctx)
	}
}

// Close tears down everything the runner owns. Called once on agent
// shutdown.
func (r *SideRunner) Close(ctx context.Context) {
	r.Stop(ctx)
	for name, sl := range r.sideloads {
		delete(r.sideloads, name)
		sl.Close(ctx)
	}
}

// ActiveSysloads returns the sorted names of active sysloads.
func (r *SideRunner) ActiveSysloads() []string {
	return sortedKeys(r.sysloads)
}

// ActiveSideloads returns the sorted names of active sideloads.
func (r *SideRunner) ActiveSideloads() []string {
	return sortedKeys(r.sideloads)
}

// prepScratchDir creates the per-workload scratch directory. Failure is
// fatal to the creation attempt, not retried.
func prepScratchDir(root, name string) (string, error) {
	scratchPath := filepath.Join(root, name)
	if err := os.MkdirAll(scratchPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch dir for %q: %w", name, err)
	}
	return scratchPath, nil
}

// diffNames splits the reconciliation into removals (active but no
// longer targeted) and additions (targeted but not active). Names in
// both sets are untouched: a changed catalog id for an existing name
// only takes effect through removal and recreation in later calls.
// Both slices come back sorted for deterministic application order.
func diffNames[T any](active map[string]T, target map[string]string) (goners, fresh []string) {
	for name := range active {
		if _, ok := target[name]; !ok {
			goners = append(goners, name)
		}
	}
	for name := range target {
		if _, ok := active[name]; !ok {
			fresh = append(fresh, name)
		}
	}
	sort.Strings(goners)
	sort.Strings(fresh)
	return goners, fresh
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
