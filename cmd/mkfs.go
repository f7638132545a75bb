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
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retrokernel/v6core/bufcache"
	"github.com/retrokernel/v6core/diskio"
	"github.com/retrokernel/v6core/fsalloc"
	"github.com/retrokernel/v6core/kernel"
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs",
	Short: "Format a new disk image with an empty filesystem",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := RunConfig.Disk.ImagePath
		if path == "" {
			return fmt.Errorf("mkfs: disk-image is required")
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("mkfs: %s already exists", path)
		}

		ctx := context.Background()

		disk, err := diskio.Open(kernel.RootDev, path, true, int64(RunConfig.FileSystem.Fsize))
		if err != nil {
			return fmt.Errorf("creating disk image: %w", err)
		}
		defer disk.Close()

		pool := bufcache.NewPool(RunConfig.BufferCache.Buffers)
		pool.Register(disk)

		sb := fsalloc.New(kernel.RootDev, RunConfig.FileSystem.Isize, RunConfig.FileSystem.Fsize)
		if err := fsalloc.Format(ctx, pool, sb); err != nil {
			return fmt.Errorf("formatting filesystem: %w", err)
		}

		pool.Bflush(kernel.RootDev)
		fmt.Printf("mkfs: formatted %s (isize=%d fsize=%d)\n", path, RunConfig.FileSystem.Isize, RunConfig.FileSystem.Fsize)
		return nil
	},
}
