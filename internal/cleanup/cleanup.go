// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

// Package cleanup sweeps away everything a previous agent run may have
// left behind: units under the agent's prefixes, published job files,
// and per-workload scratch directories.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arvisha16/resctl-demo/internal/config"
	"github.com/arvisha16/resctl-demo/internal/constants"
	"github.com/arvisha16/resctl-demo/internal/systemd"
)

// Result summarises the outcome of a sweep. Individual failures are
// recorded but do not abort the operation.
type Result struct {
	UnitsStopped       int
	JobFilesRemoved    int
	ScratchDirsRemoved int
	Errors             []error
}

// Sweep stops leftover units and removes leftover job files and scratch
// directories. It keeps going past individual failures so one stuck
// unit cannot shadow the rest of the sweep.
func Sweep(ctx context.Context, mgr systemd.Manager, cfg *config.Config) (*Result, error) {
	result := &Result{}

	patterns := []string{
		constants.SysloadSvcPrefix + "*",
		constants.SideloadSvcPrefix + "*",
		constants.BalloonSvcName,
	}
	names, err := mgr.ListUnits(ctx, patterns)
	if err != nil {
		return result, fmt.Errorf("listing leftover units: %w", err)
	}
	for _, name := range names {
		if err := systemd.NewUnit(mgr, name).StopAndReset(ctx); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.UnitsStopped++
	}

	sweepJobFiles(cfg.JobsPath, result)
	sweepScratchRoot(cfg.SysScratchPath, result)
	sweepScratchRoot(cfg.SideScratchPath, result)

	return result, nil
}

// sweepJobFiles removes every job descriptor in the jobs directory. A
// missing directory means nothing was ever published.
func sweepJobFiles(dir string, result *Result) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, fmt.Errorf("listing job files: %w", err))
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("removing job file %s: %w", path, err))
			continue
		}
		result.JobFilesRemoved++
	}
}

// sweepScratchRoot removes every per-workload directory under a scratch
// root, leaving the root itself in place.
func sweepScratchRoot(root string, result *Result) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, fmt.Errorf("listing scratch root %s: %w", root, err))
		}
		return
	}
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("removing scratch dir %s: %w", path, err))
			continue
		}
		result.ScratchDirsRemoved++
	}
}
