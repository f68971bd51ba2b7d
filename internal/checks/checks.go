// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

// Package checks probes the binary and development-library
// prerequisites of the side workloads. It diagnoses everything it can
// rather than stopping at the first miss, so an operator sees the full
// shopping list at once.
package checks

import (
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// SysReq names a class of startup requirement.
type SysReq string

// SysReqDependencies covers missing executables and devel libraries.
const SysReqDependencies SysReq = "dependencies"

// Binaries the side workloads call at runtime.
var requiredBins = []string{"gcc", "ld", "make", "bison", "flex", "pkg-config", "stress"}

// Development libraries the kernel-build workload links against,
// probed via pkg-config.
var requiredLibs = []string{"libssl", "libelf"}

// Hooks for tests.
var (
	lookPath     = exec.LookPath
	pkgConfigRun = func(lib string) error {
		return exec.Command("pkg-config", "--exists", lib).Run()
	}
)

// Result accumulates requirement failures.
type Result struct {
	Failed      map[SysReq]struct{}
	MissingBins []string
	MissingLibs []string
}

// Ok reports whether every requirement was satisfied.
func (r *Result) Ok() bool {
	return len(r.Failed) == 0
}

// Startup probes all requirements and returns the accumulated result.
// The caller decides whether failures halt startup.
func Startup() *Result {
	res := &Result{Failed: map[SysReq]struct{}{}}

	for _, bin := range requiredBins {
		if _, err := lookPath(bin); err != nil {
			log.Errorf("side: binary dependency %q is missing", bin)
			res.MissingBins = append(res.MissingBins, bin)
			res.Failed[SysReqDependencies] = struct{}{}
		}
	}

	for _, lib := range requiredLibs {
		if err := pkgConfigRun(lib); err != nil {
			log.Errorf("side: devel library dependency %q is missing", lib)
			res.MissingLibs = append(res.MissingLibs, lib)
			res.Failed[SysReqDependencies] = struct{}{}
		}
	}

	return res
}
