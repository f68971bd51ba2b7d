// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arvisha16/resctl-demo/internal/constants"
)

// Config holds the complete agent configuration. All paths default to
// locations under TopPath and may be overridden individually.
type Config struct {
	TopPath         string `mapstructure:"top"`
	SideBinPath     string `mapstructure:"side-bin-path"`
	ScratchPath     string `mapstructure:"scratch-path"`
	SysScratchPath  string `mapstructure:"sys-scratch-path"`
	SideScratchPath string `mapstructure:"side-scratch-path"`
	JobsPath        string `mapstructure:"jobs-path"`
	BalloonBin      string `mapstructure:"balloon-bin"`
	CommandPath     string `mapstructure:"command-path"`
	CatalogPath     string `mapstructure:"catalog-path"`
	BenchPath       string `mapstructure:"bench-path"`
	ReportPath      string `mapstructure:"report-path"`

	// ScratchDev is the block device backing the scratch directory, as
	// exported to workloads via IO_DEV (e.g. "nvme0n1").
	ScratchDev string `mapstructure:"scratch-dev"`

	// LinuxTarPath is an optional local kernel source tarball used by the
	// prepare step instead of downloading one.
	LinuxTarPath string `mapstructure:"linux-tar"`

	IntervalSeconds int    `mapstructure:"interval"`
	AuditEnabled    bool   `mapstructure:"audit"`
	AuditDBPath     string `mapstructure:"audit-db"`
	Verbose         bool   `mapstructure:"verbose"`
}

// Interval returns the reconciliation poll interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// SetDefaults registers Viper defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("top", constants.DefaultTopPath)
	v.SetDefault("scratch-dev", "")
	v.SetDefault("linux-tar", "")
	v.SetDefault("interval", int(constants.DefaultPollInterval/time.Second))
	v.SetDefault("audit", true)
	v.SetDefault("verbose", false)
}

// LoadConfig loads configuration from flags, environment variables, config
// file, and defaults using the Viper priority chain: flags > env > file >
// defaults. Path fields left empty are derived from the top directory.
func LoadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// Set defaults first (lowest priority)
	SetDefaults(v)

	// Environment variables (middle priority)
	v.SetEnvPrefix("RD_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Config file (if specified via --config flag)
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Bind flags last; they only override when explicitly set.
	bindFlagIfSet(v, cmd, "top")
	bindFlagIfSet(v, cmd, "scratch-dev")
	bindFlagIfSet(v, cmd, "linux-tar")
	bindFlagIfSet(v, cmd, "balloon-bin")
	bindFlagIfSet(v, cmd, "audit-db")

	if cmd.Flags().Changed("interval") {
		val, _ := cmd.Flags().GetInt("interval")
		v.Set("interval", val)
	}
	if cmd.Flags().Changed("audit") {
		val, _ := cmd.Flags().GetBool("audit")
		v.Set("audit", val)
	}
	if cmd.Flags().Changed("verbose") {
		val, _ := cmd.Flags().GetBool("verbose")
		v.Set("verbose", val)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Derive()
	return cfg, nil
}

// Derive fills empty path fields from the top directory. Explicitly
// configured paths are left alone.
func (c *Config) Derive() {
	top := c.TopPath
	fill := func(field *string, rel string) {
		if *field == "" {
			*field = filepath.Join(top, rel)
		}
	}
	fill(&c.SideBinPath, constants.SideBinDirName)
	fill(&c.ScratchPath, constants.ScratchDirName)
	fill(&c.SysScratchPath, constants.SysScratchDirName)
	fill(&c.SideScratchPath, constants.SideScratchDirName)
	fill(&c.JobsPath, constants.JobsDirName)
	fill(&c.CommandPath, constants.CommandFileName)
	fill(&c.CatalogPath, constants.CatalogFileName)
	fill(&c.BenchPath, constants.BenchFileName)
	fill(&c.ReportPath, constants.ReportFileName)
	fill(&c.AuditDBPath, constants.AuditDBFileName)
	if c.BalloonBin == "" {
		c.BalloonBin = filepath.Join(c.SideBinPath, constants.BalloonBinName)
	}
}

// bindFlagIfSet sets a Viper key from a Cobra flag only when the flag was
// explicitly provided.
func bindFlagIfSet(v *viper.Viper, cmd *cobra.Command, name string) {
	if cmd.Flags().Changed(name) {
		val, _ := cmd.Flags().GetString(name)
		v.Set(name, val)
	}
}
