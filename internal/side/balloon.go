// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"context"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/arvisha16/resctl-demo/internal/config"
	"github.com/arvisha16/resctl-demo/internal/constants"
	"github.com/arvisha16/resctl-demo/internal/systemd"
)

// Balloon is the singleton memory-pressure workload. At most one
// backing unit exists at a time, always under the fixed balloon unit
// name. Swap is clamped to zero for it so the pressure stays physical.
type Balloon struct {
	cfg *config.Config
	mgr systemd.Manager

	size uint64
	svc  *systemd.TransientService
}

// NewBalloon returns a balloon of size zero. Any unit surviving under
// the balloon name from a previous crashed run is stopped best-effort.
func NewBalloon(ctx context.Context, cfg *config.Config, mgr systemd.Manager) *Balloon {
	unit := systemd.NewUnit(mgr, constants.BalloonSvcName)
	if err := unit.StopAndReset(ctx); err != nil {
		log.Warnf("balloon: failed to stop %q: %v", constants.BalloonSvcName, err)
	}
	return &Balloon{cfg: cfg, mgr: mgr}
}

// Size returns the currently recorded balloon size.
func (b *Balloon) Size() uint64 {
	return b.size
}

// SetSize adjusts the balloon to size bytes. Requesting the recorded
// size while the backing unit still reports running is a no-op; in
// every other case the old unit is discarded and, for a non-zero size,
// a fresh one is started. A start failure is fatal to the call and no
// size is recorded.
func (b *Balloon) SetSize(ctx context.Context, size uint64) error {
	if size == b.size && b.svc != nil {
		if err := b.svc.Refresh(ctx); err == nil && b.svc.State == systemd.StateRunning {
			return nil
		}
	}

	if b.svc != nil {
		if err := b.svc.StopAndReset(ctx); err != nil {
			log.Warnf("balloon: failed to stop %q: %v", constants.BalloonSvcName, err)
		}
		b.svc = nil
	}

	if size == 0 {
		b.size = 0
		return nil
	}

	umask := constants.SvcUMask
	svc, err := systemd.NewTransientService(
		b.mgr,
		constants.BalloonSvcName,
		[]string{b.cfg.BalloonBin, strconv.FormatUint(size, 10)},
		nil,
		&umask,
	)
	if err != nil {
		return err
	}

	svc.SetSlice(constants.SysSlice).AddProp("MemorySwapMax", 0)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	b.size = size
	b.svc = svc
	return nil
}

// Close discards the backing unit, if any. Errors are logged only.
func (b *Balloon) Close(ctx context.Context) {
	if b.svc == nil {
		return
	}
	if err := b.svc.StopAndReset(ctx); err != nil {
		log.Warnf("balloon: failed to stop %q: %v", constants.BalloonSvcName, err)
	}
	b.svc = nil
	b.size = 0
}
