// Package ledger provides the append-only audit log of reasoned brightness
// and colour temperature changes.
package ledger

import (
	"database/sql"
	"time"
)

// Entry is one audit record.
type Entry struct {
	ID             int64         `json:"id"`
	Axis           string        `json:"axis"`
	Reason         string        `json:"reason"`
	Value          float64       `json:"value"`
	Transition     bool          `json:"transition"`
	TransitionTime time.Duration `json:"transition_time"`
	TaskID         string        `json:"task_id,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Ledger stores audit entries in SQLite.
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a new entry. A zero Timestamp is set to now.
func (l *Ledger) Append(entry Entry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	transition := 0
	if entry.Transition {
		transition = 1
	}

	_, err := l.db.Exec(`
		INSERT INTO audit_log (axis, reason, value, transition, transition_ms, task_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.Axis, entry.Reason, entry.Value, transition, entry.TransitionTime.Milliseconds(), entry.TaskID, ts.UTC().UnixMilli())

	return err
}

// Recent returns the newest entries, optionally filtered by axis.
func (l *Ledger) Recent(axis string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if axis == "" {
		rows, err = l.db.Query(`
			SELECT id, axis, reason, value, transition, transition_ms, task_id, timestamp
			FROM audit_log
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, limit)
	} else {
		rows, err = l.db.Query(`
			SELECT id, axis, reason, value, transition, transition_ms, task_id, timestamp
			FROM audit_log
			WHERE axis = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, axis, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByTimeRange returns entries within a time range
func (l *Ledger) GetByTimeRange(start, end time.Time, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, axis, reason, value, transition, transition_ms, task_id, timestamp
		FROM audit_log
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, start.UTC().UnixMilli(), end.UTC().UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`
		DELETE FROM audit_log WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var taskID sql.NullString
		var transition int
		var transitionMs, timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.Axis, &entry.Reason, &entry.Value, &transition, &transitionMs, &taskID, &timestamp,
		)
		if err != nil {
			return nil, err
		}

		entry.Transition = transition != 0
		entry.TransitionTime = time.Duration(transitionMs) * time.Millisecond
		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		if taskID.Valid {
			entry.TaskID = taskID.String
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
