// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd is the v6core command-line entry point: a small cobra tree
// wrapping cfg's flag/file/env surface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/retrokernel/v6core/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error

	// RunConfig is the parsed configuration every subcommand reads from.
	RunConfig cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "v6core",
	Short: "A disk-backed simulation of a V6-style Unix kernel core",
	Long: `v6core simulates the process, memory, and filesystem core of a
classic time-sharing Unix kernel on top of a single disk image: the buffer
cache, block and inode allocators, the open-file and descriptor tables, and
the process table and scheduler.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.Rationalize(&RunConfig); err != nil {
			return fmt.Errorf("rationalizing config: %w", err)
		}
		if err := cfg.ValidateConfig(&RunConfig); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}
		return nil
	},
}

// Execute runs the command tree, exiting the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mkfsCmd)
}

func initConfig() {
	viper.SetEnvPrefix("V6CORE")
	viper.AutomaticEnv()

	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&RunConfig, viper.DecodeHook(cfg.DecodeHook()), yamlTags)
		return
	}

	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("error while resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&RunConfig, viper.DecodeHook(cfg.DecodeHook()), yamlTags)
}

// yamlTags makes viper match cfg.Config fields by their yaml tags, the
// keys cfg.BindFlags binds under.
func yamlTags(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }
