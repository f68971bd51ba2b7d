// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package checks_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arvisha16/resctl-demo/internal/checks"
)

var _ = Describe("Startup", func() {
	haveAll := func(string) (string, error) { return "/usr/bin/x", nil }
	haveNone := func(name string) (string, error) { return "", errors.New(name + " not found") }
	pkgOK := func(string) error { return nil }
	pkgFail := func(string) error { return errors.New("exit status 1") }

	It("passes when every probe succeeds", func() {
		restore := checks.SetProbes(haveAll, pkgOK)
		DeferCleanup(restore)

		res := checks.Startup()
		Expect(res.Ok()).To(BeTrue())
		Expect(res.MissingBins).To(BeEmpty())
		Expect(res.MissingLibs).To(BeEmpty())
	})

	It("collects every missing binary instead of stopping at the first", func() {
		restore := checks.SetProbes(haveNone, pkgOK)
		DeferCleanup(restore)

		res := checks.Startup()
		Expect(res.Ok()).To(BeFalse())
		Expect(res.Failed).To(HaveKey(checks.SysReqDependencies))
		Expect(res.MissingBins).To(Equal([]string{
			"gcc", "ld", "make", "bison", "flex", "pkg-config", "stress",
		}))
		Expect(res.MissingLibs).To(BeEmpty())
	})

	It("probes devel libraries independently of binaries", func() {
		restore := checks.SetProbes(haveAll, pkgFail)
		DeferCleanup(restore)

		res := checks.Startup()
		Expect(res.Ok()).To(BeFalse())
		Expect(res.MissingBins).To(BeEmpty())
		Expect(res.MissingLibs).To(Equal([]string{"libssl", "libelf"}))
	})

	It("reports a single miss among passing probes", func() {
		restore := checks.SetProbes(func(name string) (string, error) {
			if name == "stress" {
				return "", errors.New("not found")
			}
			return "/usr/bin/" + name, nil
		}, pkgOK)
		DeferCleanup(restore)

		res := checks.Startup()
		Expect(res.Ok()).To(BeFalse())
		Expect(res.MissingBins).To(Equal([]string{"stress"}))
	})
})
