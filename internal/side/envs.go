// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"fmt"

	"github.com/arvisha16/resctl-demo/internal/sysinfo"
)

// BuildEnvs produces the fixed environment every workload process
// receives. Deterministic and side-effect free; the result is captured
// at workload creation and never updated afterwards.
func BuildEnvs(facts *sysinfo.Facts, ioDev string, devMajor, devMinor uint64, bench *BenchKnobs) []string {
	rotational := 0
	if facts.RotationalSwap {
		rotational = 1
	}
	return []string{
		fmt.Sprintf("NR_CPUS=%d", facts.NrCPUs),
		fmt.Sprintf("TOTAL_MEMORY=%d", facts.TotalMemory),
		fmt.Sprintf("TOTAL_SWAP=%d", facts.TotalSwap),
		fmt.Sprintf("ROTATIONAL_SWAP=%d", rotational),
		fmt.Sprintf("IO_DEV=%s", ioDev),
		fmt.Sprintf("IO_DEVNR=%d:%d", devMajor, devMinor),
		fmt.Sprintf("IO_RBPS=%d", bench.IOCost.Model.RBps),
		fmt.Sprintf("IO_WBPS=%d", bench.IOCost.Model.WBps),
	}
}
