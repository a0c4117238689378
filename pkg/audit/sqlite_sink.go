package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS audit_events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id     TEXT NOT NULL,
	role           TEXT NOT NULL,
	attrs          TEXT NOT NULL,
	intent         TEXT NOT NULL,
	confidence     REAL NOT NULL,
	allowed        INTEGER NOT NULL,
	reason         TEXT NOT NULL,
	latency_ms     REAL NOT NULL,
	t_intent_ms    REAL NOT NULL,
	t_policy_ms    REAL NOT NULL,
	prompt_chars   INTEGER NOT NULL,
	policy_version TEXT NOT NULL,
	ts             TEXT NOT NULL
)`

const insertEventSQL = `
INSERT INTO audit_events (
	request_id, role, attrs, intent, confidence, allowed, reason,
	latency_ms, t_intent_ms, t_policy_ms, prompt_chars, policy_version, ts
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink persists events into an insert-only SQLite table. There is no
// update or delete path; the table is as append-only as the JSONL log.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (creating if needed) the audit database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	// Serialized writes: SQLite handles one writer at a time and the sink is
	// shared across request goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Record masks the event and inserts one row.
func (s *SQLiteSink) Record(ctx context.Context, event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = NewTimestamp(time.Now())
	}
	masked := event.Masked()

	attrs, err := json.Marshal(masked.Attrs)
	if err != nil {
		return fmt.Errorf("marshal audit attrs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertEventSQL,
		masked.RequestID,
		masked.Role,
		string(attrs),
		masked.Intent.Intent,
		masked.Intent.Confidence,
		masked.Allowed,
		masked.Reason,
		masked.LatencyMS,
		masked.IntentMS,
		masked.PolicyMS,
		masked.PromptChars,
		masked.PolicyVersion,
		masked.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
