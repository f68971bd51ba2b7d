// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

// Package sysinfo collects the static host facts exported to every
// workload's environment.
package sysinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// Facts holds host properties that do not change while the agent runs.
type Facts struct {
	NrCPUs         int
	TotalMemory    uint64
	TotalSwap      uint64
	RotationalSwap bool
}

// Collect gathers host facts from /proc and /sys.
func Collect() (*Facts, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("opening procfs: %w", err)
	}

	mi, err := fs.Meminfo()
	if err != nil {
		return nil, fmt.Errorf("reading meminfo: %w", err)
	}

	facts := &Facts{NrCPUs: runtime.NumCPU()}
	if mi.MemTotal != nil {
		facts.TotalMemory = *mi.MemTotal * 1024
	}
	if mi.SwapTotal != nil {
		facts.TotalSwap = *mi.SwapTotal * 1024
	}

	// A host may have multiple swap devices; treat swap as rotational if
	// any backing device is.
	swaps, err := fs.Swaps()
	if err == nil {
		for _, sw := range swaps {
			if deviceRotational(sw.Filename) {
				facts.RotationalSwap = true
				break
			}
		}
	}

	return facts, nil
}

// DevNr returns the major:minor pair of the block device backing the
// filesystem that contains path.
func DevNr(path string) (major, minor uint64, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	dev := uint64(st.Dev)
	return uint64(unix.Major(dev)), uint64(unix.Minor(dev)), nil
}

// deviceRotational reads the rotational queue attribute for a block
// device path like /dev/sda2. Swap files and unknown devices report
// false.
func deviceRotational(devPath string) bool {
	base := filepath.Base(devPath)

	// Partitions have no queue directory of their own; their attribute
	// lives on the parent device.
	for name := base; name != ""; name = parentDevice(name) {
		b, err := os.ReadFile(filepath.Join("/sys/block", name, "queue/rotational"))
		if err == nil {
			return strings.TrimSpace(string(b)) == "1"
		}
	}
	return false
}

// parentDevice strips one trailing partition digit, e.g. "sda2" -> "sda",
// "nvme0n1p1" -> "nvme0n1p" -> "nvme0n1". Returns "" when nothing is left
// to strip.
func parentDevice(name string) string {
	if len(name) == 0 {
		return ""
	}
	last := name[len(name)-1]
	if last < '0' || last > '9' {
		if strings.HasSuffix(name, "p") {
			return name[:len(name)-1]
		}
		return ""
	}
	return name[:len(name)-1]
}
