// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"context"
	"fmt"

	"github.com/arvisha16/resctl-demo/internal/systemd"
)

// SvcReport is the refreshed status of one unit.
type SvcReport struct {
	Name  string            `json:"name"`
	State systemd.UnitState `json:"state"`
}

// SysloadReport is the published status of one sysload.
type SysloadReport struct {
	Svc SvcReport `json:"svc"`
}

// SideloadReport is the published status of one sideload.
type SideloadReport struct {
	Svc SvcReport `json:"svc"`
}

// svcRefreshAndReport pulls a unit's live state and snapshots it.
func svcRefreshAndReport(ctx context.Context, unit *systemd.Unit) (SvcReport, error) {
	if err := unit.Refresh(ctx); err != nil {
		return SvcReport{}, err
	}
	return SvcReport{Name: unit.Name, State: unit.State}, nil
}

// ReportSysloads refreshes every active sysload's unit and returns the
// reports keyed by workload name. The first refresh failure fails the
// whole call; no partial report is returned.
func (r *SideRunner) ReportSysloads(ctx context.Context) (map[string]SysloadReport, error) {
	rep := make(map[string]SysloadReport, len(r.sysloads))
	for name, sysload := range r.sysloads {
		svc, err := svcRefreshAndReport(ctx, sysload.svc.Unit)
		if err != nil {
			return nil, fmt.Errorf("reporting sysload %q: %w", name, err)
		}
		rep[name] = SysloadReport{Svc: svc}
	}
	return rep, nil
}

// ReportSideloads refreshes every active sideload's unit and returns
// the reports keyed by workload name. Fail-fast like ReportSysloads.
func (r *SideRunner) ReportSideloads(ctx context.Context) (map[string]SideloadReport, error) {
	rep := make(map[string]SideloadReport, len(r.sideloads))
	for name, sideload := range r.sideloads {
		svc, err := svcRefreshAndReport(ctx, sideload.unit)
		if err != nil {
			return nil, fmt.Errorf("reporting sideload %q: %w", name, err)
		}
		rep[name] = SideloadReport{Svc: svc}
	}
	return rep, nil
}
