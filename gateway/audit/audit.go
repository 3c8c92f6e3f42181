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

// Package audit records per-request audit events. Events carry lengths
// and identifiers only, never raw prompts or results. Every event goes
// to the structured log; when a database URL is configured, events are
// also batch-written to Postgres.
package audit

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"mcpgate/platform/shared/logger"
)

// Event is one audit record for an agent request.
type Event struct {
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id"`
	AgentName       string    `json:"agent_name"`
	UserID          string    `json:"user_id"`
	TenantID        string    `json:"tenant_id"`
	Status          string    `json:"status"`
	CacheHit        bool      `json:"cache_hit"`
	PromptLength    int       `json:"prompt_length"`
	ResultLength    int       `json:"result_length"`
	ExecutionTimeMs float64   `json:"execution_time_ms"`
	IPAddress       string    `json:"ip_address"`
	UserAgent       string    `json:"user_agent"`
}

// Recorder fans audit events out to the structured log and, when a
// database is attached, to a batched Postgres writer.
type Recorder struct {
	log          *logger.Logger
	db           *sql.DB
	batchWriter  *batchWriter
	queue        chan *Event
	wg           sync.WaitGroup
	shutdownChan chan struct{}
	closeOnce    sync.Once
}

// NewRecorder creates a recorder. An empty databaseURL, or a database
// that cannot be opened, yields a log-only recorder.
func NewRecorder(databaseURL string, log *logger.Logger) *Recorder {
	if databaseURL == "" {
		return newLogOnlyRecorder(log)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Warn("", "", "Failed to open audit database, audit events will be log-only", map[string]interface{}{"error": err.Error()})
		return newLogOnlyRecorder(log)
	}

	return NewRecorderWithDB(db, log)
}

// NewRecorderWithDB creates a recorder over an existing database handle.
func NewRecorderWithDB(db *sql.DB, log *logger.Logger) *Recorder {
	if err := createAuditTable(db); err != nil {
		log.Warn("", "", "Failed to create audit table", map[string]interface{}{"error": err.Error()})
	}

	r := &Recorder{
		log:          log,
		db:           db,
		batchWriter:  newBatchWriter(db, 100, log),
		queue:        make(chan *Event, 10000),
		shutdownChan: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.processQueue()

	return r
}

func newLogOnlyRecorder(log *logger.Logger) *Recorder {
	return &Recorder{
		log:          log,
		queue:        make(chan *Event, 10000),
		shutdownChan: make(chan struct{}),
	}
}

// Record logs the event and enqueues it for the database writer.
func (r *Recorder) Record(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	r.log.Info(event.RequestID, event.TenantID, "Agent request processed", map[string]interface{}{
		"agent_name":        event.AgentName,
		"user_id":           event.UserID,
		"status":            event.Status,
		"cache_hit":         event.CacheHit,
		"prompt_length":     event.PromptLength,
		"result_length":     event.ResultLength,
		"execution_time_ms": event.ExecutionTimeMs,
		"ip_address":        event.IPAddress,
		"user_agent":        event.UserAgent,
	})

	if r.db == nil {
		return
	}

	select {
	case r.queue <- event:
	default:
		// Queue is full, write directly.
		r.log.Warn(event.RequestID, event.TenantID, "Audit queue full, writing directly", nil)
		_ = r.batchWriter.write([]*Event{event})
	}
}

// Healthy reports whether the database sink is reachable. A log-only
// recorder is always healthy.
func (r *Recorder) Healthy() bool {
	if r.db == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return r.db.PingContext(ctx) == nil
}

// Persistent reports whether events reach a database.
func (r *Recorder) Persistent() bool {
	return r.db != nil
}

// Close flushes pending events and stops the background worker.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.shutdownChan)
		r.wg.Wait()
		if r.batchWriter != nil {
			r.batchWriter.stop()
		}
		if r.db != nil {
			_ = r.db.Close()
		}
	})
}

func (r *Recorder) processQueue() {
	defer r.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event := <-r.queue:
			r.batchWriter.add(event)
		case <-ticker.C:
			r.batchWriter.flushAll()
		case <-r.shutdownChan:
			for {
				select {
				case event := <-r.queue:
					r.batchWriter.add(event)
				default:
					r.batchWriter.flushAll()
					return
				}
			}
		}
	}
}

// batchWriter accumulates events and writes them in one transaction.
type batchWriter struct {
	db          *sql.DB
	log         *logger.Logger
	batchSize   int
	flushTicker *time.Ticker
	entries     []*Event
	mu          sync.Mutex
}

func newBatchWriter(db *sql.DB, batchSize int, log *logger.Logger) *batchWriter {
	w := &batchWriter{
		db:          db,
		log:         log,
		batchSize:   batchSize,
		entries:     make([]*Event, 0, batchSize),
		flushTicker: time.NewTicker(10 * time.Second),
	}

	go w.periodicFlush()

	return w
}

func (w *batchWriter) add(event *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, event)

	if len(w.entries) >= w.batchSize {
		w.flush()
	}
}

func (w *batchWriter) flushAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flush()
}

// flush expects w.mu held.
func (w *batchWriter) flush() {
	if len(w.entries) == 0 {
		return
	}

	if err := w.write(w.entries); err != nil {
		w.log.Error("", "", "Failed to write audit batch", map[string]interface{}{"error": err.Error()})
	}

	w.entries = w.entries[:0]
}

func (w *batchWriter) write(events []*Event) error {
	if w.db == nil {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO audit_events (
			timestamp, request_id, agent_name, user_id, tenant_id,
			status, cache_hit, prompt_length, result_length,
			execution_time_ms, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, event := range events {
		_, err = stmt.Exec(
			event.Timestamp,
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
		)
		if err != nil {
			w.log.Error(event.RequestID, event.TenantID, "Failed to insert audit event", map[string]interface{}{"error": err.Error()})
		}
	}

	return tx.Commit()
}

func (w *batchWriter) periodicFlush() {
	for range w.flushTicker.C {
		w.flushAll()
	}
}

func (w *batchWriter) stop() {
	w.flushTicker.Stop()
	w.flushAll()
}

// createAuditTable creates the audit table if it does not exist.
func createAuditTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		request_id VARCHAR(255) NOT NULL,
		agent_name VARCHAR(255) NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		tenant_id VARCHAR(255) NOT NULL,
		status VARCHAR(50) NOT NULL,
		cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
		prompt_length INTEGER NOT NULL,
		result_length INTEGER NOT NULL,
		execution_time_ms DOUBLE PRECISION NOT NULL,
		ip_address VARCHAR(64),
		user_agent TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_request_id ON audit_events(request_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_tenant_id ON audit_events(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_agent_name ON audit_events(agent_name);
	`

	_, err := db.Exec(query)
	return err
}
