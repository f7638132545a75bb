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

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the top-level configuration for a v6core kernel instance: the
// disk image it serves, the in-core resource budgets it starts with, and
// the ambient debug/metrics surface.
type Config struct {
	AppName string `yaml:"app-name"`

	Disk DiskConfig `yaml:"disk"`

	FileSystem FileSystemConfig `yaml:"file-system"`

	Memory MemoryConfig `yaml:"memory"`

	BufferCache BufferCacheConfig `yaml:"buffer-cache"`

	Scheduler SchedulerConfig `yaml:"scheduler"`

	Logging LoggingConfig `yaml:"logging"`

	Debug DebugConfig `yaml:"debug"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// DiskConfig describes the backing store fsalloc.Superblock and bufcache.Pool
// read and write through diskio.Dev. ReadOnly is decoded but not read by
// kernel.Open, which always opens the image read-write.
type DiskConfig struct {
	ImagePath string `yaml:"image-path"`

	ReadOnly bool `yaml:"read-only"`
}

// FileSystemConfig carries the geometry a fresh filesystem is formatted
// with. FileMode and Uid are decoded, but no other package reads them:
// incore's AllocInode takes no mode or owner.
type FileSystemConfig struct {
	Isize uint32 `yaml:"isize"`

	Fsize uint32 `yaml:"fsize"`

	FileMode Octal `yaml:"file-mode"`

	Uid int `yaml:"uid"`
}

// MemoryConfig sizes the core and swap click allocators proctab.Table is
// built from.
type MemoryConfig struct {
	CoreClicks uint32 `yaml:"core-clicks"`

	SwapClicks uint32 `yaml:"swap-clicks"`
}

// BufferCacheConfig sizes bufcache.Pool.
type BufferCacheConfig struct {
	Buffers int `yaml:"buffers"`
}

// SchedulerConfig holds the scheduler tick period. sched.Swapper paces its
// run loop with its own fixed period and does not read QuantumMs.
type SchedulerConfig struct {
	QuantumMs int `yaml:"quantum-ms"`
}

// LoggingConfig holds a severity threshold, a log file path and a
// log-rotation policy. Rationalize may raise the severity and
// ValidateConfig checks the rotation policy; the kernel logs through the
// standard log package to stderr and reads none of these values.
type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	FilePath string `yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

// LogRotateLoggingConfig is a log-rotation policy. ValidateConfig checks
// it; nothing in this module rotates log files.
type LogRotateLoggingConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

// DebugConfig holds two debug switches. Rationalize raises the log
// severity to TRACE when either is set; nothing else reads them, and they
// do not change how InvariantMutex checks run.
type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

// MetricsConfig controls the Prometheus /metrics endpoint the kernel exposes
// for scheduler and buffer-cache gauges.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen-addr"`
}

// BindFlags registers every Config field as a pflag and binds it into
// viper under the same dotted key its yaml tag names, so that flags,
// environment variables and a config file all resolve to the same value.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "v6core", "The application name of this kernel instance.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.StringP("disk-image", "", "", "Path to the disk image file this kernel serves.")
	if err = viper.BindPFlag("disk.image-path", flagSet.Lookup("disk-image")); err != nil {
		return err
	}

	flagSet.BoolP("disk-read-only", "", false, "Mark the disk image read-only. The kernel does not read this setting.")
	if err = viper.BindPFlag("disk.read-only", flagSet.Lookup("disk-read-only")); err != nil {
		return err
	}

	flagSet.Uint32P("isize", "", DefaultIsize, "Number of inode-list blocks to format a fresh filesystem with.")
	if err = viper.BindPFlag("file-system.isize", flagSet.Lookup("isize")); err != nil {
		return err
	}

	flagSet.Uint32P("fsize", "", DefaultFsize, "Total number of blocks to format a fresh filesystem with.")
	if err = viper.BindPFlag("file-system.fsize", flagSet.Lookup("fsize")); err != nil {
		return err
	}

	flagSet.IntP("file-mode", "", DefaultFileMode, "Permission bits for newly allocated files, in octal. The kernel does not read this setting.")
	if err = viper.BindPFlag("file-system.file-mode", flagSet.Lookup("file-mode")); err != nil {
		return err
	}

	flagSet.IntP("uid", "", 0, "Owner UID for newly allocated inodes. The kernel does not read this setting.")
	if err = viper.BindPFlag("file-system.uid", flagSet.Lookup("uid")); err != nil {
		return err
	}

	flagSet.Uint32P("core-clicks", "", DefaultCoreClicks, "Size of the core-memory click allocator.")
	if err = viper.BindPFlag("memory.core-clicks", flagSet.Lookup("core-clicks")); err != nil {
		return err
	}

	flagSet.Uint32P("swap-clicks", "", DefaultSwapClicks, "Size of the swap-space click allocator.")
	if err = viper.BindPFlag("memory.swap-clicks", flagSet.Lookup("swap-clicks")); err != nil {
		return err
	}

	flagSet.IntP("buffers", "", DefaultBuffers, "Number of buffer-cache blocks to hold in memory.")
	if err = viper.BindPFlag("buffer-cache.buffers", flagSet.Lookup("buffers")); err != nil {
		return err
	}

	flagSet.IntP("quantum-ms", "", DefaultQuantumMs, "Scheduler tick period, in milliseconds. The swapper loop does not read this setting.")
	if err = viper.BindPFlag("scheduler.quantum-ms", flagSet.Lookup("quantum-ms")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Minimum log severity. The kernel's logging does not read this setting.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file. The kernel does not read this setting and logs to stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.IntP("log-rotate-max-file-size-mb", "", DefaultLogRotateMaxFileSizeMb, "Log file size at which it is rotated. Nothing in this module rotates log files.")
	if err = viper.BindPFlag("logging.log-rotate.max-file-size-mb", flagSet.Lookup("log-rotate-max-file-size-mb")); err != nil {
		return err
	}

	flagSet.IntP("log-rotate-backup-file-count", "", DefaultLogRotateBackupFileCount, "Number of rotated log files to retain. 0 retains all. Nothing in this module rotates log files.")
	if err = viper.BindPFlag("logging.log-rotate.backup-file-count", flagSet.Lookup("log-rotate-backup-file-count")); err != nil {
		return err
	}

	flagSet.BoolP("log-rotate-compress", "", true, "Gzip rotated log files. Nothing in this module rotates log files.")
	if err = viper.BindPFlag("logging.log-rotate.compress", flagSet.Lookup("log-rotate-compress")); err != nil {
		return err
	}

	flagSet.BoolP("debug-invariants", "", false, "Debug switch for InvariantMutex violations. Its only effect is raising the log severity to TRACE.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants")); err != nil {
		return err
	}

	flagSet.BoolP("debug-mutex", "", false, "Debug switch for mutex hold-time warnings. Its only effect is raising the log severity to TRACE.")
	if err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug-mutex")); err != nil {
		return err
	}

	flagSet.StringP("metrics-listen-addr", "", "", "Address to serve /metrics on. Empty disables the metrics server.")
	if err = viper.BindPFlag("metrics.listen-addr", flagSet.Lookup("metrics-listen-addr")); err != nil {
		return err
	}

	return nil
}
