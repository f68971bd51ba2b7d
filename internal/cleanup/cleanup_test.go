// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package cleanup_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arvisha16/resctl-demo/internal/cleanup"
	"github.com/arvisha16/resctl-demo/internal/config"
	"github.com/arvisha16/resctl-demo/internal/systemd"
	"github.com/arvisha16/resctl-demo/internal/testutil"
)

var _ = Describe("Sweep", func() {
	var (
		ctx context.Context
		mgr *testutil.FakeManager
		cfg *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		mgr = testutil.NewFakeManager()
		cfg = &config.Config{TopPath: GinkgoT().TempDir()}
		cfg.Derive()
		for _, dir := range []string{cfg.JobsPath, cfg.SysScratchPath, cfg.SideScratchPath} {
			Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		}
	})

	It("stops every unit under the agent's prefixes and nothing else", func() {
		mgr.SetState("rd-sysload-a.service", systemd.StateRunning)
		mgr.SetState("rd-sideload-b.service", systemd.StateFailed)
		mgr.SetState("rd-balloon.service", systemd.StateRunning)
		mgr.SetState("sshd.service", systemd.StateRunning)

		res, err := cleanup.Sweep(ctx, mgr, cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.UnitsStopped).To(Equal(3))
		Expect(res.Errors).To(BeEmpty())
		Expect(mgr.Stopped).NotTo(ContainElement("sshd.service"))
	})

	It("removes published job files but leaves other files in place", func() {
		Expect(os.WriteFile(filepath.Join(cfg.JobsPath, "a.json"), []byte("{}"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(cfg.JobsPath, "b.json"), []byte("{}"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(cfg.JobsPath, "README"), []byte("x"), 0o644)).To(Succeed())

		res, err := cleanup.Sweep(ctx, mgr, cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.JobFilesRemoved).To(Equal(2))
		Expect(filepath.Join(cfg.JobsPath, "README")).To(BeAnExistingFile())
	})

	It("purges per-workload scratch dirs but keeps the roots", func() {
		Expect(os.MkdirAll(filepath.Join(cfg.SysScratchPath, "a", "deep"), 0o755)).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(cfg.SideScratchPath, "b"), 0o755)).To(Succeed())

		res, err := cleanup.Sweep(ctx, mgr, cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.ScratchDirsRemoved).To(Equal(2))
		Expect(cfg.SysScratchPath).To(BeADirectory())
		Expect(cfg.SideScratchPath).To(BeADirectory())
		Expect(filepath.Join(cfg.SysScratchPath, "a")).NotTo(BeADirectory())
	})

	It("tolerates directories that were never created", func() {
		cfg2 := &config.Config{TopPath: filepath.Join(GinkgoT().TempDir(), "never-prepared")}
		cfg2.Derive()

		res, err := cleanup.Sweep(ctx, mgr, cfg2)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Errors).To(BeEmpty())
		Expect(res.JobFilesRemoved).To(BeZero())
		Expect(res.ScratchDirsRemoved).To(BeZero())
	})

	It("fails only the listing step when the unit query is broken", func() {
		res, err := cleanup.Sweep(ctx, failingListManager{mgr}, cfg)
		Expect(err).To(MatchError(ContainSubstring("listing leftover units")))
		Expect(res.UnitsStopped).To(BeZero())
	})
})

type failingListManager struct {
	systemd.Manager
}

func (failingListManager) ListUnits(context.Context, []string) ([]string, error) {
	return nil, context.DeadlineExceeded
}
