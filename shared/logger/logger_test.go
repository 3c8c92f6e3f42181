// Copyright 2025 MCPGate
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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer log.SetOutput(log.Writer())

	fn()
	return buf.String()
}

func TestLogEntryStructure(t *testing.T) {
	l := New("gateway")

	out := captureOutput(t, func() {
		l.Info("req-123", "tenant-1", "request processed", map[string]interface{}{
			"agent": "azureVmMetricsAgent",
		})
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &entry))

	assert.Equal(t, INFO, entry.Level)
	assert.Equal(t, "gateway", entry.Component)
	assert.Equal(t, "req-123", entry.RequestID)
	assert.Equal(t, "tenant-1", entry.TenantID)
	assert.Equal(t, "request processed", entry.Message)
	assert.Equal(t, "azureVmMetricsAgent", entry.Fields["agent"])
	assert.NotEmpty(t, entry.Timestamp)
}

func TestLogLevels(t *testing.T) {
	l := New("test")

	tests := []struct {
		name  string
		logFn func()
		level LogLevel
	}{
		{"debug", func() { l.Debug("", "", "m", nil) }, DEBUG},
		{"info", func() { l.Info("", "", "m", nil) }, INFO},
		{"warn", func() { l.Warn("", "", "m", nil) }, WARN},
		{"error", func() { l.Error("", "", "m", nil) }, ERROR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t, tt.logFn)

			var entry LogEntry
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &entry))
			assert.Equal(t, tt.level, entry.Level)
		})
	}
}

func TestInfoWithDuration(t *testing.T) {
	l := New("test")

	out := captureOutput(t, func() {
		l.InfoWithDuration("req-1", "default", "dispatch complete", 12.5, nil)
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &entry))
	assert.Equal(t, 12.5, entry.Fields["duration_ms"])
}

func TestErrorWithErr(t *testing.T) {
	l := New("test")

	out := captureOutput(t, func() {
		l.ErrorWithErr("req-2", "", "dispatch failed", assert.AnError, nil)
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &entry))
	assert.Contains(t, entry.Fields["error"], "assert.AnError")
}
