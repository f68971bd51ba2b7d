// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

// Package systemd wraps the systemd D-Bus manager API behind a small
// interface so the reconciliation core can be exercised against a fake.
package systemd

import (
	"context"
	"errors"
	"fmt"

	sd "github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
)

// UnitState is a condensed view of a unit's ActiveState/SubState pair.
type UnitState string

const (
	StateRunning  UnitState = "running"
	StateExited   UnitState = "exited"
	StateFailed   UnitState = "failed"
	StateNotFound UnitState = "not-found"
	StateOther    UnitState = "other"
)

// Manager is the set of systemd operations this agent consumes.
type Manager interface {
	// StartTransientUnit creates and starts a transient unit and waits
	// for the start job to finish.
	StartTransientUnit(ctx context.Context, name string, props []sd.Property) error

	// StopUnit stops a unit and waits for the stop job to finish.
	StopUnit(ctx context.Context, name string) error

	// ResetFailedUnit clears the failed state of a unit.
	ResetFailedUnit(ctx context.Context, name string) error

	// QueryUnit returns the condensed state of a unit. Unknown units
	// report StateNotFound, not an error.
	QueryUnit(ctx context.Context, name string) (UnitState, error)

	// ListUnits returns the names of units matching any of the given
	// shell-style patterns, loaded or not.
	ListUnits(ctx context.Context, patterns []string) ([]string, error)
}

// dbusManager implements Manager over the system bus.
type dbusManager struct {
	conn *sd.Conn
}

// Connect opens a connection to the systemd manager on the system bus.
func Connect(ctx context.Context) (Manager, error) {
	conn, err := sd.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to systemd: %w", err)
	}
	return &dbusManager{conn: conn}, nil
}

func (m *dbusManager) StartTransientUnit(ctx context.Context, name string, props []sd.Property) error {
	jobCh := make(chan string, 1)
	if _, err := m.conn.StartTransientUnitContext(ctx, name, "replace", props, jobCh); err != nil {
		return err
	}
	return awaitJob(ctx, name, "start", jobCh)
}

func (m *dbusManager) StopUnit(ctx context.Context, name string) error {
	jobCh := make(chan string, 1)
	if _, err := m.conn.StopUnitContext(ctx, name, "replace", jobCh); err != nil {
		return err
	}
	return awaitJob(ctx, name, "stop", jobCh)
}

func (m *dbusManager) ResetFailedUnit(ctx context.Context, name string) error {
	return m.conn.ResetFailedUnitContext(ctx, name)
}

func (m *dbusManager) QueryUnit(ctx context.Context, name string) (UnitState, error) {
	sts, err := m.conn.ListUnitsByNamesContext(ctx, []string{name})
	if err != nil {
		return StateOther, err
	}
	if len(sts) == 0 || sts[0].LoadState == "not-found" {
		return StateNotFound, nil
	}
	return condenseState(sts[0].ActiveState, sts[0].SubState), nil
}

func (m *dbusManager) ListUnits(ctx context.Context, patterns []string) ([]string, error) {
	sts, err := m.conn.ListUnitsByPatternsContext(ctx, nil, patterns)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(sts))
	for _, st := range sts {
		names = append(names, st.Name)
	}
	return names, nil
}

// awaitJob waits for a queued systemd job to complete.
func awaitJob(ctx context.Context, name, op string, jobCh <-chan string) error {
	select {
	case res := <-jobCh:
		if res != "done" {
			return fmt.Errorf("%s job for %s finished as %q", op, name, res)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func condenseState(active, sub string) UnitState {
	switch {
	case active == "active" && sub == "running":
		return StateRunning
	case active == "failed":
		return StateFailed
	case sub == "exited" || sub == "dead":
		return StateExited
	default:
		return StateOther
	}
}

// IsNoSuchUnit reports whether an error is systemd's NoSuchUnit reply,
// returned when stopping or resetting a unit that is not loaded.
func IsNoSuchUnit(err error) bool {
	var dbusErr godbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name == "org.freedesktop.systemd1.NoSuchUnit"
	}
	return false
}
