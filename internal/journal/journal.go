// Package journal records session activity durably: asserted and derived
// facts, and the rule firings that produced them. It is an append-only log;
// graphs themselves are never persisted.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	session_id TEXT NOT NULL,
	fact_id    TEXT NOT NULL,
	fact_type  TEXT NOT NULL,
	payload    TEXT,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, fact_id)
);
CREATE TABLE IF NOT EXISTS firings (
	session_id TEXT NOT NULL,
	rule_id    TEXT NOT NULL,
	fact_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_firings_session ON firings (session_id);
`

// Journal is a sqlite-backed session activity log. It implements
// engine.Recorder.
type Journal struct {
	db *sql.DB
}

// Entry is one journaled fact.
type Entry struct {
	SessionID string
	FactID    string
	FactType  string
	Payload   any
	CreatedAt time.Time
}

// Firing is one journaled rule firing.
type Firing struct {
	SessionID string
	RuleID    string
	FactID    string
	CreatedAt time.Time
}

// Open creates or opens a journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordFact appends one fact. Re-recording an existing (session, fact) pair
// is a no-op, matching the engine's first-derivation-wins semantics.
func (j *Journal) RecordFact(ctx context.Context, sessionID, factID, factType string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode fact payload: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO facts (session_id, fact_id, fact_type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, factID, factType, string(encoded), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record fact %s: %w", factID, err)
	}
	return nil
}

// RecordFiring appends one rule firing.
func (j *Journal) RecordFiring(ctx context.Context, sessionID, ruleID, factID string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO firings (session_id, rule_id, fact_id, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, ruleID, factID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record firing of %s: %w", ruleID, err)
	}
	return nil
}

// Facts returns the journaled facts for a session in insertion order.
func (j *Journal) Facts(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT fact_id, fact_type, payload, created_at FROM facts
		 WHERE session_id = ? ORDER BY created_at, fact_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query journal facts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			payload string
			created int64
		)
		if err := rows.Scan(&e.FactID, &e.FactType, &payload, &created); err != nil {
			return nil, err
		}
		e.SessionID = sessionID
		e.CreatedAt = time.UnixMilli(created)
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
				return nil, fmt.Errorf("decode fact payload %s: %w", e.FactID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Firings returns the journaled firings for a session in insertion order.
func (j *Journal) Firings(ctx context.Context, sessionID string) ([]Firing, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT rule_id, fact_id, created_at FROM firings
		 WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query journal firings: %w", err)
	}
	defer rows.Close()

	var out []Firing
	for rows.Next() {
		var (
			f       Firing
			created int64
		)
		if err := rows.Scan(&f.RuleID, &f.FactID, &created); err != nil {
			return nil, err
		}
		f.SessionID = sessionID
		f.CreatedAt = time.UnixMilli(created)
		out = append(out, f)
	}
	return out, rows.Err()
}
