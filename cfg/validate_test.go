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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "isize zero is rejected",
			mutate:  func(c *Config) { c.FileSystem.Isize = 0 },
			wantErr: true,
		},
		{
			name:    "fsize too small for isize is rejected",
			mutate:  func(c *Config) { c.FileSystem.Fsize = c.FileSystem.Isize },
			wantErr: true,
		},
		{
			name:    "zero core clicks is rejected",
			mutate:  func(c *Config) { c.Memory.CoreClicks = 0 },
			wantErr: true,
		},
		{
			name:    "buffers below the minimum working set is rejected",
			mutate:  func(c *Config) { c.BufferCache.Buffers = 1 },
			wantErr: true,
		},
		{
			name:    "non-positive quantum is rejected",
			mutate:  func(c *Config) { c.Scheduler.QuantumMs = 0 },
			wantErr: true,
		},
		{
			name:    "zero max-file-size-mb is rejected",
			mutate:  func(c *Config) { c.Logging.LogRotate.MaxFileSizeMb = 0 },
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tc.mutate(&config)
			err := ValidateConfig(&config)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
