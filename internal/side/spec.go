// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// SideloadSpec is a catalog entry describing one workload: the command
// to run (args[0] is the executable name) and the frozen-expiration
// duration handed through to the sideloader daemon.
type SideloadSpec struct {
	Args      []string `json:"args" yaml:"args"`
	FrozenExp uint32   `json:"frozen_expiration" yaml:"frozen_expiration"`
}

// SideloadDefs is the catalog of workload definitions, keyed by catalog
// id. It is supplied by the caller on every reconciliation and never
// mutated.
type SideloadDefs struct {
	Defs map[string]SideloadSpec `json:"sideload_defs" yaml:"sideload_defs"`
}

// LoadDefs reads a catalog file. A missing file yields an empty catalog.
func LoadDefs(path string) (*SideloadDefs, error) {
	defs := &SideloadDefs{Defs: map[string]SideloadSpec{}}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defs, nil
		}
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, defs); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return defs, nil
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// resolveSpec validates a requested workload name, looks up its catalog
// entry and resolves the executable. It returns a copy; the catalog
// entry itself is never mutated. No filesystem state is created here.
func resolveSpec(name, id string, defs *SideloadDefs, binDir string) (SideloadSpec, error) {
	if !nameRE.MatchString(name) {
		return SideloadSpec{}, fmt.Errorf("invalid workload name %q, only alnums, - and _ are allowed", name)
	}

	spec, ok := defs.Defs[id]
	if !ok {
		return SideloadSpec{}, fmt.Errorf("unknown sideload id %q", id)
	}
	if len(spec.Args) == 0 {
		return SideloadSpec{}, fmt.Errorf("sideload id %q has no command", id)
	}

	bin, err := findBin(spec.Args[0], binDir)
	if err != nil {
		return SideloadSpec{}, err
	}

	args := make([]string, len(spec.Args))
	copy(args, spec.Args)
	args[0] = bin
	spec.Args = args
	return spec, nil
}

// findBin resolves an executable name against the workload-private bin
// directory first, then the regular search path.
func findBin(name, binDir string) (string, error) {
	if binDir != "" {
		cand := filepath.Join(binDir, name)
		if st, err := os.Stat(cand); err == nil && !st.IsDir() && st.Mode()&0o111 != 0 {
			return cand, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve binary %q", name)
	}
	return path, nil
}
