// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/arvisha16/resctl-demo/internal/constants"
	"github.com/arvisha16/resctl-demo/internal/systemd"
)

// SysloadSvcName returns the unit name for a sysload.
func SysloadSvcName(name string) string {
	return constants.SysloadSvcPrefix + name + ".service"
}

// Sysload is a workload whose process this agent starts and supervises
// directly. It owns its scratch directory and its transient unit; both
// are released by Close, which every discard path must call.
type Sysload struct {
	scratchPath string
	svc         *systemd.TransientService
}

// ScratchPath returns the workload's scratch directory.
func (sl *Sysload) ScratchPath() string {
	return sl.scratchPath
}

// Close stops the unit and purges the scratch directory. Errors are
// logged only; teardown is best-effort on every exit path.
func (sl *Sysload) Close(ctx context.Context) {
	if err := sl.svc.StopAndReset(ctx); err != nil {
		log.Errorf("side: failed to stop %s: %v", sl.svc.Name, err)
	}
	removeScratchDir(sl.scratchPath)
}
