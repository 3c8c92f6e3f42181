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

package audit

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpgate/platform/shared/logger"
)

func sampleEvent() *Event {
	return &Event{
		RequestID:       "req-123",
		AgentName:       "azureVmMetricsAgent",
		UserID:          "demo-user",
		TenantID:        "default",
		Status:          "success",
		PromptLength:    42,
		ResultLength:    512,
		ExecutionTimeMs: 12.5,
		IPAddress:       "10.0.0.1",
		UserAgent:       "curl/8.0",
	}
}

func TestLogOnlyRecorder(t *testing.T) {
	r := NewRecorder("", logger.New("audit-test"))
	defer r.Close()

	assert.False(t, r.Persistent())
	assert.True(t, r.Healthy())

	// Must not block or panic without a database.
	r.Record(sampleEvent())
}

func TestRecordStampsTimestamp(t *testing.T) {
	r := NewRecorder("", logger.New("audit-test"))
	defer r.Close()

	event := sampleEvent()
	r.Record(event)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 5*time.Second)
}

func TestRecorderWritesBatchOnClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewRecorderWithDB(db, logger.New("audit-test"))
	assert.True(t, r.Persistent())

	event := sampleEvent()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO audit_events")
	prep.ExpectExec().
		WithArgs(
			sqlmock.AnyArg(),
			event.RequestID,
			event.AgentName,
			event.UserID,
			event.TenantID,
			event.Status,
			event.CacheHit,
			event.PromptLength,
			event.ResultLength,
			event.ExecutionTimeMs,
			event.IPAddress,
			event.UserAgent,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	r.Record(event)
	r.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorderHealthyPingsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPing()

	r := NewRecorderWithDB(db, logger.New("audit-test"))
	assert.True(t, r.Healthy())
}

func TestBatchWriterGroupsEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w := newBatchWriter(db, 100, logger.New("audit-test"))
	defer w.flushTicker.Stop()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO audit_events")
	for i := 0; i < 3; i++ {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(int64(i + 1), 1))
	}
	mock.ExpectCommit()

	for i := 0; i < 3; i++ {
		event := sampleEvent()
		event.Timestamp = time.Now().UTC()
		w.add(event)
	}
	w.flushAll()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchWriterFlushesAtBatchSize(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	w := newBatchWriter(db, 2, logger.New("audit-test"))
	defer w.flushTicker.Stop()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO audit_events")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	w.add(sampleEvent())
	w.add(sampleEvent())

	assert.NoError(t, mock.ExpectationsWereMet())
}
