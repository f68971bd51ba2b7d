// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/arvisha16/resctl-demo/internal/side"
)

var _ = Describe("scratch dir removal", func() {
	var hook *logtest.Hook

	BeforeEach(func() {
		hook = logtest.NewGlobal()
		DeferCleanup(hook.Reset)
	})

	It("treats an already-gone directory as removed without logging", func() {
		side.RemoveScratchDir(filepath.Join(GinkgoT().TempDir(), "never-created"))
		Expect(hook.AllEntries()).To(BeEmpty())
	})

	It("removes nested content in one pass", func() {
		dir := filepath.Join(GinkgoT().TempDir(), "scratch")
		Expect(os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "a", "b", "f"), []byte("x"), 0o644)).To(Succeed())

		side.RemoveScratchDir(dir)
		Expect(dir).NotTo(BeADirectory())
	})

	It("outlasts a writer that keeps the directory transiently non-empty", func() {
		restore := side.SetScratchRemoveTimeout(5 * time.Second)
		DeferCleanup(restore)

		dir := filepath.Join(GinkgoT().TempDir(), "scratch")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())

		stop := time.Now().Add(200 * time.Millisecond)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for time.Now().Before(stop) {
				_ = os.WriteFile(filepath.Join(dir, "inflight"), []byte("x"), 0o644)
			}
		}()

		side.RemoveScratchDir(dir)
		<-done
		Expect(dir).NotTo(BeADirectory())
	})
})
