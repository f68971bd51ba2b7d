// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

// Package prepare installs the embedded side-workload helper scripts
// and acquires the kernel source tarball the build workload consumes.
package prepare

import (
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/arvisha16/resctl-demo/internal/config"
	"github.com/arvisha16/resctl-demo/internal/constants"
)

//go:embed scripts/*
var sideBins embed.FS

const linuxTarURL = "https://cdn.kernel.org/pub/linux/kernel/v5.x/linux-5.8.11.tar.xz"

// All prepares the side-bin directory and the kernel tarball. The two
// steps are independent and run concurrently.
func All(ctx context.Context, cfg *config.Config) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return SideBins(cfg.SideBinPath) })
	g.Go(func() error { return LinuxTar(gctx, cfg) })
	return g.Wait()
}

// SideBins installs every embedded helper script into binDir with the
// executable bit set. Existing files are overwritten so upgrades take
// effect.
func SideBins(binDir string) error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating side-bin dir: %w", err)
	}

	entries, err := sideBins.ReadDir("scripts")
	if err != nil {
		return fmt.Errorf("reading embedded scripts: %w", err)
	}
	for _, entry := range entries {
		body, err := sideBins.ReadFile("scripts/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading embedded script %s: %w", entry.Name(), err)
		}
		dst := filepath.Join(binDir, entry.Name())
		if err := os.WriteFile(dst, body, 0o755); err != nil {
			return fmt.Errorf("installing %s: %w", dst, err)
		}
	}
	return nil
}

// LinuxTar makes sure <scratch>/linux.tar exists: a configured local
// tarball is verified and copied, an already-present valid tarball is
// kept, and otherwise one is downloaded and decompressed.
func LinuxTar(ctx context.Context, cfg *config.Config) error {
	tarPath := filepath.Join(cfg.ScratchPath, constants.LinuxTarName)
	if err := os.MkdirAll(cfg.ScratchPath, 0o755); err != nil {
		return fmt.Errorf("creating scratch dir: %w", err)
	}

	if cfg.LinuxTarPath != "" {
		if !verifyLinuxTar(cfg.LinuxTarPath) {
			return fmt.Errorf("%q is not a valid tarball", cfg.LinuxTarPath)
		}
		log.Infof("side: copying %q to %q", cfg.LinuxTarPath, tarPath)
		return copyFile(cfg.LinuxTarPath, tarPath)
	}

	if verifyLinuxTar(tarPath) {
		log.Debugf("side: using existing %q", tarPath)
		return nil
	}

	log.Infof("side: downloading linux tarball, a local file can be specified with --linux-tar")
	tmpPath := tarPath + ".tmp"
	xzPath := tmpPath + ".xz"

	wget := exec.CommandContext(ctx, "wget", "--progress=dot:mega", linuxTarURL, "-O", xzPath)
	wget.Stdout, wget.Stderr = os.Stdout, os.Stderr
	if err := wget.Run(); err != nil {
		return fmt.Errorf("failed to download linux tarball: %w", err)
	}

	log.Infof("side: decompressing linux tarball")
	xz := exec.CommandContext(ctx, "xz", "--decompress", xzPath)
	xz.Stdout, xz.Stderr = os.Stdout, os.Stderr
	if err := xz.Run(); err != nil {
		return fmt.Errorf("failed to decompress linux tarball: %w", err)
	}

	if err := os.Rename(tmpPath, tarPath); err != nil {
		return fmt.Errorf("moving tarball into place: %w", err)
	}
	return nil
}

// verifyLinuxTar accepts any non-empty regular file.
func verifyLinuxTar(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular() && st.Size() > 0
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
