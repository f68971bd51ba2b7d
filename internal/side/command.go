// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Command is the target state the agent converges toward, read fresh
// from the command file on every reconciliation tick.
type Command struct {
	// Sysloads and Sideloads map workload names to catalog ids.
	Sysloads  map[string]string `json:"sysloads" yaml:"sysloads"`
	Sideloads map[string]string `json:"sideloads" yaml:"sideloads"`

	// BalloonSize is the requested memory-pressure size in bytes.
	BalloonSize uint64 `json:"balloon_size" yaml:"balloon_size"`
}

// LoadCommand reads the command file. A missing file means "no
// workloads, no balloon".
func LoadCommand(path string) (*Command, error) {
	cmd := &Command{
		Sysloads:  map[string]string{},
		Sideloads: map[string]string{},
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cmd, nil
		}
		return nil, fmt.Errorf("reading command file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cmd); err != nil {
		return nil, fmt.Errorf("parsing command file %s: %w", path, err)
	}
	if cmd.Sysloads == nil {
		cmd.Sysloads = map[string]string{}
	}
	if cmd.Sideloads == nil {
		cmd.Sideloads = map[string]string{}
	}
	return cmd, nil
}
