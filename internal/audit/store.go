// Package audit persists a trail of WAN mutations in SQLite.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/wanboard/internal/clock"
	"grimm.is/wanboard/internal/errors"
)

// DefaultRetentionDays applies when the store is created with no retention.
const DefaultRetentionDays = 90

// Event is one audited prefer or refresh request.
type Event struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Action    string          `json:"action"`
	Interface string          `json:"interface"`
	ClientIP  string          `json:"clientIp,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Status    int             `json:"status"`
	Message   string          `json:"message,omitempty"`
	Steps     json.RawMessage `json:"steps,omitempty"`
}

// Store provides persistent storage for audit events.
type Store struct {
	mu            sync.RWMutex
	db            *sql.DB
	retentionDays int
	clock         clock.Clock
}

// NewStore opens (and if needed creates) the audit database at dbPath.
// ":memory:" keeps the trail in memory.
func NewStore(dbPath string, retentionDays int) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "create audit dir")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "open audit db")
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			action TEXT NOT NULL,
			interface TEXT NOT NULL,
			client_ip TEXT,
			request_id TEXT,
			status INTEGER DEFAULT 0,
			message TEXT,
			steps TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_events(action);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.KindInternal, "create audit table")
	}

	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	return &Store{
		db:            db,
		retentionDays: retentionDays,
		clock:         &clock.RealClock{},
	}, nil
}

// SetClock replaces the time source used for timestamps and pruning.
func (s *Store) SetClock(c clock.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
}

// Write persists an audit event. A zero timestamp is set to now.
func (s *Store) Write(evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.clock.Now()
	}
	var steps sql.NullString
	if len(evt.Steps) > 0 {
		steps = sql.NullString{String: string(evt.Steps), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_events (timestamp, action, interface, client_ip, request_id, status, message, steps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, evt.Timestamp.UTC(), evt.Action, evt.Interface, evt.ClientIP, evt.RequestID, evt.Status, evt.Message, steps)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "insert audit event")
	}
	return nil
}

// Query returns the newest events first. An empty action matches every
// action; a non-positive limit returns everything.
func (s *Store) Query(action string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, timestamp, action, interface, client_ip, request_id, status, message, steps
		FROM audit_events`
	var args []any

	if action != "" {
		query += " WHERE action = ?"
		args = append(args, action)
	}

	query += " ORDER BY timestamp DESC, id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "query audit events")
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var evt Event
		var clientIP, requestID, message, steps sql.NullString

		err := rows.Scan(&evt.ID, &evt.Timestamp, &evt.Action, &evt.Interface,
			&clientIP, &requestID, &evt.Status, &message, &steps)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan audit event")
		}

		evt.ClientIP = clientIP.String
		evt.RequestID = requestID.String
		evt.Message = message.String
		if steps.Valid && steps.String != "" {
			evt.Steps = json.RawMessage(steps.String)
		}

		events = append(events, evt)
	}

	return events, rows.Err()
}

// Prune removes events older than the retention period.
func (s *Store) Prune() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays).UTC()
	result, err := s.db.Exec("DELETE FROM audit_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "prune audit events")
	}

	return result.RowsAffected()
}

// RunPruner prunes once a day until ctx is done.
func (s *Store) RunPruner(ctx context.Context, onPrune func(n int64, err error)) {
	s.mu.RLock()
	ticker := s.clock.NewTicker(24 * time.Hour)
	s.mu.RUnlock()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			n, err := s.Prune()
			if onPrune != nil {
				onPrune(n, err)
			}
		}
	}
}

// Ping verifies the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the total number of events in the store.
func (s *Store) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM audit_events").Scan(&count)
	return count, err
}
