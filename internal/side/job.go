// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// SideloaderJob is the handoff contract to the sideloader daemon: one
// job descriptor the daemon turns into a supervised service.
type SideloaderJob struct {
	ID               string   `json:"id"`
	Args             []string `json:"args"`
	Envs             []string `json:"envs"`
	FrozenExpiration uint32   `json:"frozen_expiration"`
	WorkingDir       string   `json:"working_dir"`
}

// SideloaderJobs is the entire content of one job file. Presence of the
// file tells the daemon to run the jobs; removal tells it to stop them.
type SideloaderJobs struct {
	SideloaderJobs []SideloaderJob `json:"sideloader_jobs"`
}

// Save publishes the job list atomically (write-then-rename) so the
// daemon watching the directory never observes a partial file.
func (j *SideloaderJobs) Save(path string) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling job file %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing job file %s: %w", path, err)
	}
	return nil
}

// LoadJobs reads a job file back, used by tests and the cleanup sweep.
func LoadJobs(path string) (*SideloaderJobs, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file %s: %w", path, err)
	}
	jobs := &SideloaderJobs{}
	if err := json.Unmarshal(b, jobs); err != nil {
		return nil, fmt.Errorf("parsing job file %s: %w", path, err)
	}
	return jobs, nil
}
