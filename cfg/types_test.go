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
	"github.com/stretchr/testify/require"
)

func TestOctalUnmarshalText(t *testing.T) {
	var o Octal
	require.NoError(t, o.UnmarshalText([]byte("644")))
	assert.Equal(t, Octal(0644), o)
}

func TestOctalRoundTrips(t *testing.T) {
	o := Octal(0755)
	text, err := o.MarshalText()
	require.NoError(t, err)

	var decoded Octal
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, o, decoded)
}

func TestLogSeverityUnmarshalTextRejectsUnknownLevels(t *testing.T) {
	var l LogSeverity
	assert.Error(t, l.UnmarshalText([]byte("VERBOSE")))
}

func TestLogSeverityUnmarshalTextUppercases(t *testing.T) {
	var l LogSeverity
	require.NoError(t, l.UnmarshalText([]byte("info")))
	assert.Equal(t, InfoLogSeverity, l)
}
