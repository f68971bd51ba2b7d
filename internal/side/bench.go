// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package side

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// IOCostModel carries the modeled bandwidth of the scratch device.
type IOCostModel struct {
	RBps uint64 `json:"rbps" yaml:"rbps"`
	WBps uint64 `json:"wbps" yaml:"wbps"`
}

// IOCostKnobs wraps the iocost model parameters.
type IOCostKnobs struct {
	Model IOCostModel `json:"model" yaml:"model"`
}

// BenchKnobs holds benchmark results consumed by the environment
// builder. Opaque beyond the fields read here.
type BenchKnobs struct {
	IOCost IOCostKnobs `json:"iocost" yaml:"iocost"`
}

// LoadBench reads benchmark knobs from a file. A missing file yields
// zero knobs.
func LoadBench(path string) (*BenchKnobs, error) {
	bench := &BenchKnobs{}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return bench, nil
		}
		return nil, fmt.Errorf("reading bench file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, bench); err != nil {
		return nil, fmt.Errorf("parsing bench file %s: %w", path, err)
	}
	return bench, nil
}
