// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/arvisha16/resctl-demo/internal/constants"
	"github.com/arvisha16/resctl-demo/internal/systemd"
)

// SideloadSvcName returns the unit name for a sideload.
func SideloadSvcName(name string) string {
	return constants.SideloadSvcPrefix + name + ".service"
}

// Sideload is a workload executed by the sideloader daemon on this
// agent's behalf. The agent owns the job file, the scratch directory
// and a handle to the daemon-managed unit; the daemon owns the process.
type Sideload struct {
	name        string
	scratchPath string
	jobPath     string
	unit        *systemd.Unit
}

// Name returns the workload name.
func (sl *Sideload) Name() string {
	return sl.name
}

// ScratchPath returns the workload's scratch directory.
func (sl *Sideload) ScratchPath() string {
	return sl.scratchPath
}

// JobPath returns the path of the published job file.
func (sl *Sideload) JobPath() string {
	return sl.jobPath
}

// Close releases everything the sideload owns. The job file goes first
// so the daemon stops relaunching, then the unit is stopped, then the
// scratch directory is purged. Errors are logged only.
func (sl *Sideload) Close(ctx context.Context) {
	if err := os.Remove(sl.jobPath); err != nil && !os.IsNotExist(err) {
		log.Errorf("side: failed to remove %q: %v", sl.jobPath, err)
	}
	if err := sl.unit.StopAndReset(ctx); err != nil {
		log.Errorf("side: failed to stop %q: %v", sl.name, err)
	}
	removeScratchDir(sl.scratchPath)
}
