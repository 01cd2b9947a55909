// Copyright 2026 The Vega Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracestore is an optional on-disk sink for trace.Bus events,
// grounded on pkg/agent/session_store.go's schema-on-open SQLite pattern
// (spec.md names no persistence requirement; this is an ambient-stack
// addition so the sqlite dependency carried from the teacher has a home --
// see SPEC_FULL.md §3 and DESIGN.md).
package tracestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vega-lang/vega/internal/trace"
)

// Store persists trace.Bus events to a SQLite database. Writes are
// serialized behind mu: trace volume is low (one row per VM-level event,
// not per opcode) so a single writer is not a bottleneck.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	bus *trace.Bus
	tok string
}

// Open creates (or reuses) the sqlite file at path and returns a Store
// ready to subscribe to a Bus.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tracestore: opening %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracestore: enabling WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trace_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		agent_id INTEGER,
		agent_name TEXT,
		data TEXT,
		input_tokens INTEGER,
		output_tokens INTEGER,
		duration_ms INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_trace_events_kind ON trace_events(kind);
	CREATE INDEX IF NOT EXISTS idx_trace_events_agent ON trace_events(agent_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracestore: initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Attach subscribes the store to bus; every published Event is persisted.
// Only one bus may be attached at a time per Store.
func (s *Store) Attach(bus *trace.Bus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus != nil {
		s.bus.Unsubscribe(s.tok)
	}
	s.bus = bus
	s.tok = bus.Subscribe(s.record)
}

// Detach stops persisting events from the previously attached bus.
func (s *Store) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus == nil {
		return
	}
	s.bus.Unsubscribe(s.tok)
	s.bus = nil
	s.tok = ""
}

func (s *Store) record(ev trace.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inputTokens, outputTokens sql.NullInt64
	if ev.Usage != nil {
		inputTokens = sql.NullInt64{Int64: int64(ev.Usage.InputTokens), Valid: true}
		outputTokens = sql.NullInt64{Int64: int64(ev.Usage.OutputTokens), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO trace_events
		(id, kind, timestamp, agent_id, agent_name, data, input_tokens, output_tokens, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.Timestamp.UnixMilli(), ev.AgentID, ev.AgentName, ev.Data,
		inputTokens, outputTokens, ev.Duration.Milliseconds(),
	)
	if err != nil {
		// Trace persistence is best-effort: a sink failure must never
		// propagate back into the interpreter thread (spec §5).
		return
	}
}

// EventRecord is a row read back out of the store, for `vega` subcommands
// that inspect past runs.
type EventRecord struct {
	ID           string
	Kind         string
	Timestamp    time.Time
	AgentID      uint64
	AgentName    string
	Data         string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// Query returns up to limit events of the given kind (all kinds if kind is
// ""), most recent first.
func (s *Store) Query(ctx context.Context, kind string, limit int) ([]EventRecord, error) {
	var rows *sql.Rows
	var err error
	if kind == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, kind, timestamp, agent_id, agent_name, data, input_tokens, output_tokens, duration_ms
			 FROM trace_events ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, kind, timestamp, agent_id, agent_name, data, input_tokens, output_tokens, duration_ms
			 FROM trace_events WHERE kind = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`, kind, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("tracestore: querying events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		var tsMs, durMs int64
		var inputTokens, outputTokens sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Kind, &tsMs, &r.AgentID, &r.AgentName, &r.Data, &inputTokens, &outputTokens, &durMs); err != nil {
			return nil, fmt.Errorf("tracestore: scanning row: %w", err)
		}
		r.Timestamp = time.UnixMilli(tsMs)
		r.Duration = time.Duration(durMs) * time.Millisecond
		r.InputTokens = int(inputTokens.Int64)
		r.OutputTokens = int(outputTokens.Int64)
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarshalData is a convenience for producers that want to store a
// structured payload in Event.Data as JSON (trace.Event.Data is a plain
// string; the schema stays stable whether callers pass JSON or plain text).
func MarshalData(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
