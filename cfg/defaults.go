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

// GetDefaultLoggingConfig returns the default configuration that is to be
// used during application startup, before a config file or flags have been
// parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: DefaultLogRotateBackupFileCount,
			Compress:        true,
			MaxFileSizeMb:   DefaultLogRotateMaxFileSizeMb,
		},
	}
}

// GetDefaultConfig returns a Config usable on its own, without a flag set or
// config file, for embedding callers (tests, mkfs).
func GetDefaultConfig() Config {
	return Config{
		AppName: "v6core",
		FileSystem: FileSystemConfig{
			Isize:    DefaultIsize,
			Fsize:    DefaultFsize,
			FileMode: Octal(DefaultFileMode),
		},
		Memory: MemoryConfig{
			CoreClicks: DefaultCoreClicks,
			SwapClicks: DefaultSwapClicks,
		},
		BufferCache: BufferCacheConfig{
			Buffers: DefaultBuffers,
		},
		Scheduler: SchedulerConfig{
			QuantumMs: DefaultQuantumMs,
		},
		Logging: GetDefaultLoggingConfig(),
	}
}
