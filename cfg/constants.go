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

const (
	// Filesystem geometry defaults. A fresh image this size holds a few
	// hundred files, enough to exercise fsalloc/incore without a slow
	// mkfs in tests.

	DefaultIsize    uint32 = 16
	DefaultFsize    uint32 = 2048
	DefaultFileMode        = 0644
)

const (
	// Resource allocator defaults.

	DefaultCoreClicks uint32 = 256
	DefaultSwapClicks uint32 = 1024
	DefaultBuffers           = 32
)

const (
	// MinBuffers is the floor bufcache.Pool needs to make forward progress:
	// at least one buffer for the block being read plus one for the
	// free-list chain block alloc/free sometimes touches concurrently.
	MinBuffers = 2

	DefaultQuantumMs = 100
)

const (
	// Log-rotation defaults.

	DefaultLogRotateMaxFileSizeMb   = 512
	DefaultLogRotateBackupFileCount = 10
)
