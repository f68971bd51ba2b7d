// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"context"
	"fmt"

	sd "github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
)

// Unit is a named handle to a systemd unit. The unit may be managed by
// this process or by an external one; the handle itself carries no
// ownership of the unit's process.
type Unit struct {
	Name  string
	State UnitState

	mgr Manager
}

// NewUnit returns a handle to the named unit. No D-Bus traffic happens
// until the handle is used.
func NewUnit(mgr Manager, name string) *Unit {
	return &Unit{Name: name, State: StateOther, mgr: mgr}
}

// Refresh pulls the unit's live state into the handle.
func (u *Unit) Refresh(ctx context.Context) error {
	st, err := u.mgr.QueryUnit(ctx, u.Name)
	if err != nil {
		return fmt.Errorf("refreshing unit %s: %w", u.Name, err)
	}
	u.State = st
	return nil
}

// StopAndReset stops the unit and clears any failed state. A unit that
// is not loaded counts as already stopped.
func (u *Unit) StopAndReset(ctx context.Context) error {
	if err := u.mgr.StopUnit(ctx, u.Name); err != nil && !IsNoSuchUnit(err) {
		return fmt.Errorf("stopping unit %s: %w", u.Name, err)
	}
	if err := u.mgr.ResetFailedUnit(ctx, u.Name); err != nil && !IsNoSuchUnit(err) {
		return fmt.Errorf("resetting unit %s: %w", u.Name, err)
	}
	u.State = StateNotFound
	return nil
}

// TransientService builds and starts a transient service unit managed by
// this process.
type TransientService struct {
	*Unit

	Args []string
	Envs []string

	slice      string
	workingDir string
	umask      *uint32
	extraProps []sd.Property
}

// NewTransientService returns a transient service builder for the named
// unit. args[0] must be an absolute executable path.
func NewTransientService(mgr Manager, name string, args, envs []string, umask *uint32) (*TransientService, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("unit %s has no command", name)
	}
	return &TransientService{
		Unit:  NewUnit(mgr, name),
		Args:  args,
		Envs:  envs,
		umask: umask,
	}, nil
}

// SetSlice assigns the unit to a resource slice.
func (s *TransientService) SetSlice(slice string) *TransientService {
	s.slice = slice
	return s
}

// SetWorkingDir sets the working directory of the unit's process.
func (s *TransientService) SetWorkingDir(dir string) *TransientService {
	s.workingDir = dir
	return s
}

// AddProp attaches a numeric unit property, e.g. MemorySwapMax.
func (s *TransientService) AddProp(name string, value uint64) *TransientService {
	s.extraProps = append(s.extraProps, sd.Property{
		Name:  name,
		Value: godbus.MakeVariant(value),
	})
	return s
}

// Start creates and starts the unit.
func (s *TransientService) Start(ctx context.Context) error {
	props := []sd.Property{
		sd.PropExecStart(s.Args, false),
	}
	if len(s.Envs) > 0 {
		props = append(props, sd.Property{
			Name:  "Environment",
			Value: godbus.MakeVariant(s.Envs),
		})
	}
	if s.slice != "" {
		props = append(props, sd.PropSlice(s.slice))
	}
	if s.workingDir != "" {
		props = append(props, sd.Property{
			Name:  "WorkingDirectory",
			Value: godbus.MakeVariant(s.workingDir),
		})
	}
	if s.umask != nil {
		props = append(props, sd.Property{
			Name:  "UMask",
			Value: godbus.MakeVariant(*s.umask),
		})
	}
	props = append(props, s.extraProps...)

	if err := s.mgr.StartTransientUnit(ctx, s.Name, props); err != nil {
		return fmt.Errorf("starting unit %s: %w", s.Name, err)
	}
	s.State = StateRunning
	return nil
}
