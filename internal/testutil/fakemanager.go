// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared helpers for package tests. It has no
// build tags; it is a pure library imported only by test files.
package testutil

import (
	"context"
	"path"
	"sort"
	"sync"

	sd "github.com/coreos/go-systemd/v22/dbus"

	"github.com/arvisha16/resctl-demo/internal/systemd"
)

// FakeManager is an in-memory systemd.Manager. It records every call
// and serves scripted unit states, letting tests assert creation
// counts, stop ordering and start/refresh failure handling without a
// system bus.
type FakeManager struct {
	mu sync.Mutex

	// States maps unit names to the state QueryUnit reports. Units
	// absent from the map report StateNotFound.
	States map[string]systemd.UnitState

	// StartErr and QueryErr inject per-unit failures.
	StartErr map[string]error
	QueryErr map[string]error

	Started []string                 // unit names in StartTransientUnit order
	Stopped []string                 // unit names in StopUnit order
	Resets  []string                 // unit names in ResetFailedUnit order
	Props   map[string][]sd.Property // last properties each unit was started with
}

// NewFakeManager returns an empty fake with no scripted failures.
func NewFakeManager() *FakeManager {
	return &FakeManager{
		States:   map[string]systemd.UnitState{},
		StartErr: map[string]error{},
		QueryErr: map[string]error{},
		Props:    map[string][]sd.Property{},
	}
}

func (f *FakeManager) StartTransientUnit(ctx context.Context, name string, props []sd.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Started = append(f.Started, name)
	f.Props[name] = props
	if err := f.StartErr[name]; err != nil {
		return err
	}
	f.States[name] = systemd.StateRunning
	return nil
}

func (f *FakeManager) StopUnit(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stopped = append(f.Stopped, name)
	delete(f.States, name)
	return nil
}

func (f *FakeManager) ResetFailedUnit(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resets = append(f.Resets, name)
	return nil
}

func (f *FakeManager) QueryUnit(ctx context.Context, name string) (systemd.UnitState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.QueryErr[name]; err != nil {
		return systemd.StateOther, err
	}
	if st, ok := f.States[name]; ok {
		return st, nil
	}
	return systemd.StateNotFound, nil
}

func (f *FakeManager) ListUnits(ctx context.Context, patterns []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.States {
		for _, p := range patterns {
			if ok, _ := path.Match(p, name); ok {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// StartCount returns how many times the named unit was started.
func (f *FakeManager) StartCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, started := range f.Started {
		if started == name {
			n++
		}
	}
	return n
}

// SetState scripts the state QueryUnit reports for a unit, e.g. to
// simulate a unit that died without the agent noticing.
func (f *FakeManager) SetState(name string, st systemd.UnitState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.States[name] = st
}
