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

func TestRationalizeForcesTraceLoggingWhenDebuggingInvariants(t *testing.T) {
	config := GetDefaultConfig()
	config.Debug.ExitOnInvariantViolation = true

	err := Rationalize(&config)

	assert.NoError(t, err)
	assert.Equal(t, TraceLogSeverity, config.Logging.Severity)
}

func TestRationalizeDefaultsAppName(t *testing.T) {
	config := GetDefaultConfig()
	config.AppName = ""

	err := Rationalize(&config)

	assert.NoError(t, err)
	assert.Equal(t, "v6core", config.AppName)
}
