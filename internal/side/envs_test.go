// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arvisha16/resctl-demo/internal/side"
	"github.com/arvisha16/resctl-demo/internal/sysinfo"
)

var _ = Describe("workload environment", func() {
	It("encodes every fact as a fixed KEY=VALUE pair", func() {
		envs := side.BuildEnvs(testFacts(), "nvme0n1", 259, 3, testBench())
		Expect(envs).To(Equal([]string{
			"NR_CPUS=8",
			"TOTAL_MEMORY=17179869184",
			"TOTAL_SWAP=4294967296",
			"ROTATIONAL_SWAP=0",
			"IO_DEV=nvme0n1",
			"IO_DEVNR=259:3",
			"IO_RBPS=262144000",
			"IO_WBPS=131072000",
		}))
	})

	It("flags rotational swap", func() {
		facts := &sysinfo.Facts{NrCPUs: 1, RotationalSwap: true}
		envs := side.BuildEnvs(facts, "sda", 8, 0, &side.BenchKnobs{})
		Expect(envs).To(ContainElement("ROTATIONAL_SWAP=1"))
		Expect(envs).To(ContainElement("IO_RBPS=0"))
	})
})
