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

package cfg

import "fmt"

const (
	IsizeTooSmallError     = "isize must be at least 1"
	FsizeTooSmallError     = "fsize must leave room for the superblock and inode list"
	CoreClicksTooLowError  = "core-clicks must be positive"
	BuffersTooLowError     = "buffers must be at least the minimum working set"
	QuantumTooLowError     = "quantum-ms must be positive"
)

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidFileSystemConfig(c *FileSystemConfig) error {
	if c.Isize < 1 {
		return fmt.Errorf(IsizeTooSmallError)
	}
	// Blocks [0, isize+2) are reserved for the boot block, superblock and
	// inode list; fsize must leave at least one block free beyond that.
	if c.Fsize < c.Isize+3 {
		return fmt.Errorf(FsizeTooSmallError)
	}
	return nil
}

func isValidMemoryConfig(c *MemoryConfig) error {
	if c.CoreClicks == 0 {
		return fmt.Errorf(CoreClicksTooLowError)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	var err error

	if err = isValidFileSystemConfig(&config.FileSystem); err != nil {
		return fmt.Errorf("error parsing file-system config: %w", err)
	}

	if err = isValidMemoryConfig(&config.Memory); err != nil {
		return fmt.Errorf("error parsing memory config: %w", err)
	}

	if config.BufferCache.Buffers < MinBuffers {
		return fmt.Errorf(BuffersTooLowError)
	}

	if config.Scheduler.QuantumMs <= 0 {
		return fmt.Errorf(QuantumTooLowError)
	}

	if err = isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	return nil
}
