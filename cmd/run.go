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

package cmd

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/retrokernel/v6core/cfg"
	"github.com/retrokernel/v6core/kernel"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open a disk image and run its scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		k, err := kernel.Open(ctx, RunConfig)
		if err != nil {
			return err
		}
		defer k.Close()

		if cfg.IsMetricsEnabled(&RunConfig) {
			go func() {
				if err := k.ServeMetrics(ctx, RunConfig.Metrics.ListenAddr); err != nil {
					log.Printf("metrics server: %v", err)
				}
			}()
		}

		log.Printf("v6core: serving %s (isize=%d fsize=%d)", RunConfig.Disk.ImagePath, RunConfig.FileSystem.Isize, RunConfig.FileSystem.Fsize)
		k.Swapper.Run(ctx)
		return nil
	},
}
