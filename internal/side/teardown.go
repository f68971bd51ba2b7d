// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"errors"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/arvisha16/resctl-demo/internal/constants"
)

var scratchRemoveTimeout = constants.ScratchRemoveTimeout

// removeScratchDir recursively removes a scratch directory. A directory
// that is already gone counts as removed. A directory transiently held
// non-empty by an in-flight writer is retried until the wall-clock
// budget runs out. Failures are logged, never propagated: teardown runs
// on paths that have no error channel.
//
// Blocks the calling goroutine for up to the full budget in the worst
// case.
func removeScratchDir(path string) {
	deadline := time.Now().Add(scratchRemoveTimeout)

	for {
		err := os.RemoveAll(path)
		if err == nil || errors.Is(err, unix.ENOENT) {
			return
		}

		// rmdir reports EEXIST instead of ENOTEMPTY on some systems.
		if !errors.Is(err, unix.ENOTEMPTY) && !errors.Is(err, unix.EEXIST) {
			log.Errorf("side: failed to remove %q: %v", path, err)
			return
		}

		if time.Now().After(deadline) {
			log.Errorf("side: failed to remove %q after trying for %s", path, scratchRemoveTimeout)
			return
		}

		log.Debugf("side: %q not empty, trying to remove again", path)
	}
}
