// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arvisha16/resctl-demo/internal/config"
	"github.com/arvisha16/resctl-demo/internal/side"
	"github.com/arvisha16/resctl-demo/internal/systemd"
	"github.com/arvisha16/resctl-demo/internal/testutil"
)

var _ = Describe("SideRunner", func() {
	var (
		ctx    context.Context
		runner *side.SideRunner
		mgr    *testutil.FakeManager
		cfg    *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner, mgr, cfg = newTestRunner(GinkgoT().TempDir())
	})

	Describe("ApplySysloads", func() {
		It("creates a sysload with its scratch dir and a started unit", func() {
			defs := testDefs("catalog-id-1")
			err := runner.ApplySysloads(ctx, map[string]string{"a": "catalog-id-1"}, defs, testBench(), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.ActiveSysloads()).To(Equal([]string{"a"}))
			Expect(filepath.Join(cfg.SysScratchPath, "a")).To(BeADirectory())
			Expect(mgr.Started).To(Equal([]string{"rd-sysload-a.service"}))
		})

		It("converges onto the second target regardless of the first", func() {
			defs := testDefs("id-1", "id-2", "id-3")
			t1 := map[string]string{"a": "id-1", "b": "id-2"}
			t2 := map[string]string{"b": "id-2", "c": "id-3"}

			Expect(runner.ApplySysloads(ctx, t1, defs, testBench(), nil)).To(Succeed())
			Expect(runner.ApplySysloads(ctx, t2, defs, testBench(), nil)).To(Succeed())

			Expect(runner.ActiveSysloads()).To(Equal([]string{"b", "c"}))
			Expect(filepath.Join(cfg.SysScratchPath, "a")).NotTo(BeADirectory())
			// b survived untouched: created once, never stopped.
			Expect(mgr.StartCount("rd-sysload-b.service")).To(Equal(1))
			Expect(mgr.Stopped).To(ContainElement("rd-sysload-a.service"))
		})

		It("rejects an invalid name before creating anything", func() {
			defs := testDefs("id-1")
			err := runner.ApplySysloads(ctx, map[string]string{"bad name!": "id-1"}, defs, testBench(), nil)
			Expect(err).To(MatchError(ContainSubstring("invalid workload name")))

			Expect(runner.ActiveSysloads()).To(BeEmpty())
			Expect(mgr.Started).To(BeEmpty())
			entries, readErr := os.ReadDir(cfg.SysScratchPath)
			Expect(readErr).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("rejects an empty name", func() {
			defs := testDefs("id-1")
			err := runner.ApplySysloads(ctx, map[string]string{"": "id-1"}, defs, testBench(), nil)
			Expect(err).To(MatchError(ContainSubstring("invalid workload name")))
		})

		It("fails the whole call on an unknown catalog id but keeps untouched names", func() {
			defs := testDefs("id-1")
			Expect(runner.ApplySysloads(ctx, map[string]string{"a": "id-1"}, defs, testBench(), nil)).To(Succeed())

			err := runner.ApplySysloads(ctx, map[string]string{"a": "id-1", "z": "no-such-id"}, defs, testBench(), nil)
			Expect(err).To(MatchError(ContainSubstring("unknown sideload id")))
			Expect(runner.ActiveSysloads()).To(Equal([]string{"a"}))
		})

		It("keeps the record when the unit fails to start", func() {
			defs := testDefs("id-1")
			mgr.StartErr["rd-sysload-a.service"] = context.DeadlineExceeded

			Expect(runner.ApplySysloads(ctx, map[string]string{"a": "id-1"}, defs, testBench(), nil)).To(Succeed())
			Expect(runner.ActiveSysloads()).To(Equal([]string{"a"}))

			// The failed start surfaces through the next report.
			rep, err := runner.ReportSysloads(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep["a"].Svc.State).To(Equal(systemd.StateNotFound))
		})

		It("hands removed records to the sink without tearing them down", func() {
			defs := testDefs("id-1")
			Expect(runner.ApplySysloads(ctx, map[string]string{"a": "id-1"}, defs, testBench(), nil)).To(Succeed())
			scratch := filepath.Join(cfg.SysScratchPath, "a")

			var removed []*side.Sysload
			Expect(runner.ApplySysloads(ctx, map[string]string{}, defs, testBench(), &removed)).To(Succeed())
			Expect(removed).To(HaveLen(1))
			Expect(runner.ActiveSysloads()).To(BeEmpty())

			// Teardown is deferred until the caller closes the record.
			Expect(scratch).To(BeADirectory())
			removed[0].Close(ctx)
			Expect(scratch).NotTo(BeADirectory())
		})

		It("removes the scratch dir even when a concurrent writer holds it non-empty", func() {
			defs := testDefs("id-1")
			Expect(runner.ApplySysloads(ctx, map[string]string{"a": "id-1"}, defs, testBench(), nil)).To(Succeed())
			scratch := filepath.Join(cfg.SysScratchPath, "a")

			// A writer churns files in the scratch dir for a while, then
			// stops; removal must outlast it.
			stop := time.Now().Add(300 * time.Millisecond)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; time.Now().Before(stop); i++ {
					_ = os.WriteFile(filepath.Join(scratch, "junk"), []byte("x"), 0o644)
					time.Sleep(5 * time.Millisecond)
				}
			}()

			Expect(runner.ApplySysloads(ctx, map[string]string{}, defs, testBench(), nil)).To(Succeed())
			<-done
			Expect(scratch).NotTo(BeADirectory())
		})
	})

	Describe("ApplySideloads", func() {
		It("publishes a job file and does not start the unit", func() {
			defs := testDefs("catalog-id-1")
			err := runner.ApplySideloads(ctx, map[string]string{"tar-bomb": "catalog-id-1"}, defs, testBench(), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(runner.ActiveSideloads()).To(Equal([]string{"tar-bomb"}))
			Expect(mgr.Started).To(BeEmpty())

			jobPath := filepath.Join(cfg.JobsPath, "tar-bomb.json")
			jobs, err := side.LoadJobs(jobPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(jobs.SideloaderJobs).To(HaveLen(1))

			job := jobs.SideloaderJobs[0]
			Expect(job.ID).To(Equal("tar-bomb"))
			Expect(job.Args[0]).To(Equal(filepath.Join(cfg.SideBinPath, "burn-cpus.sh")))
			Expect(job.Args[1:]).To(Equal([]string{"--forever"}))
			Expect(job.FrozenExpiration).To(Equal(uint32(90)))
			Expect(job.WorkingDir).To(Equal(filepath.Join(cfg.SideScratchPath, "tar-bomb")))
			Expect(job.Envs).To(ContainElement("NR_CPUS=8"))
		})

		It("removes the job file, stops the unit and purges scratch on removal", func() {
			defs := testDefs("id-1")
			Expect(runner.ApplySideloads(ctx, map[string]string{"x": "id-1"}, defs, testBench(), nil)).To(Succeed())
			jobPath := filepath.Join(cfg.JobsPath, "x.json")
			scratch := filepath.Join(cfg.SideScratchPath, "x")

			Expect(runner.ApplySideloads(ctx, map[string]string{}, defs, testBench(), nil)).To(Succeed())

			Expect(jobPath).NotTo(BeAnExistingFile())
			Expect(mgr.Stopped).To(ContainElement("rd-sideload-x.service"))
			Expect(scratch).NotTo(BeADirectory())
		})
	})

	Describe("reporting", func() {
		It("reports the refreshed state of every active workload", func() {
			defs := testDefs("id-1", "id-2")
			Expect(runner.ApplySysloads(ctx, map[string]string{"a": "id-1"}, defs, testBench(), nil)).To(Succeed())
			Expect(runner.ApplySideloads(ctx, map[string]string{"b": "id-2"}, defs, testBench(), nil)).To(Succeed())
			mgr.SetState("rd-sideload-b.service", systemd.StateRunning)

			sysRep, err := runner.ReportSysloads(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sysRep).To(HaveKey("a"))
			Expect(sysRep["a"].Svc.Name).To(Equal("rd-sysload-a.service"))
			Expect(sysRep["a"].Svc.State).To(Equal(systemd.StateRunning))

			sideRep, err := runner.ReportSideloads(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sideRep["b"].Svc.State).To(Equal(systemd.StateRunning))
		})

		It("fails the whole report on a single refresh error", func() {
			defs := testDefs("id-1", "id-2")
			Expect(runner.ApplySysloads(ctx, map[string]string{"a": "id-1", "b": "id-2"}, defs, testBench(), nil)).To(Succeed())
			mgr.QueryErr["rd-sysload-a.service"] = context.DeadlineExceeded

			_, err := runner.ReportSysloads(ctx)
			Expect(err).To(MatchError(ContainSubstring("reporting sysload")))
		})
	})

	Describe("shutdown", func() {
		It("tears down sysloads on Stop and everything on Close", func() {
			defs := testDefs("id-1", "id-2")
			Expect(runner.ApplySysloads(ctx, map[string]string{"a": "id-1"}, defs, testBench(), nil)).To(Succeed())
			Expect(runner.ApplySideloads(ctx, map[string]string{"b": "id-2"}, defs, testBench(), nil)).To(Succeed())

			runner.Stop(ctx)
			Expect(runner.ActiveSysloads()).To(BeEmpty())
			Expect(runner.ActiveSideloads()).To(Equal([]string{"b"}))

			runner.Close(ctx)
			Expect(runner.ActiveSideloads()).To(BeEmpty())
			Expect(filepath.Join(cfg.JobsPath, "b.json")).NotTo(BeAnExistingFile())
		})
	})
})
