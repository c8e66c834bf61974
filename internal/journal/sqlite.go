// Package journal persists session store mutations so history and stats
// survive restarts. The store treats every journal failure as
// log-and-continue; the in-memory state stays authoritative.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"lunara/internal/database"
	"lunara/internal/models"
)

// SQLite journals sessions into the embedded database. It is the default
// backend when no MongoDB URI is configured.
type SQLite struct {
	db *database.DB
}

// NewSQLite wraps an initialized journal database.
func NewSQLite(db *database.DB) *SQLite {
	return &SQLite{db: db}
}

func (j *SQLite) SessionStarted(s *models.Session) error {
	recordJSON, err := json.Marshal(s.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT OR REPLACE INTO sessions (id, start_time, end_time, status, state, user_turns, record_json, updated_at)
		 VALUES (?, ?, NULL, ?, ?, ?, ?, ?)`,
		s.ID, s.StartTime, string(s.Status), s.State, s.UserTurns, string(recordJSON), time.Now().UTC(),
	)
	return err
}

func (j *SQLite) ProgressSaved(s *models.Session) error {
	recordJSON, err := json.Marshal(s.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	_, err = j.db.Exec(
		`UPDATE sessions SET state = ?, user_turns = ?, record_json = ?, updated_at = ? WHERE id = ?`,
		s.State, s.UserTurns, string(recordJSON), time.Now().UTC(), s.ID,
	)
	return err
}

func (j *SQLite) LogAppended(sessionID string, seq int, entry models.LogEntry) error {
	recordJSON, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT INTO session_logs (session_id, seq, created_at, record_json, has_missing_data, unusual_symptoms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, seq, entry.Timestamp, string(recordJSON), entry.HasMissingData, entry.UnusualSymptoms,
	)
	return err
}

func (j *SQLite) TurnAppended(sessionID string, seq int, turn models.ConversationTurn) error {
	_, err := j.db.Exec(
		`INSERT INTO session_turns (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, seq, turn.Role, turn.Content, turn.Timestamp,
	)
	return err
}

func (j *SQLite) SessionEnded(sessionID string, endTime time.Time) error {
	_, err := j.db.Exec(
		`UPDATE sessions SET status = ?, end_time = ?, updated_at = ? WHERE id = ?`,
		string(models.SessionCompleted), endTime, time.Now().UTC(), sessionID,
	)
	return err
}

// Restore loads every journaled session with its logs and conversation
// history in append order.
func (j *SQLite) Restore() ([]*models.Session, error) {
	rows, err := j.db.Query(
		`SELECT id, start_time, end_time, status, state, user_turns, record_json FROM sessions ORDER BY start_time`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var (
			sess       models.Session
			endTime    sql.NullTime
			status     string
			recordJSON string
		)
		if err := rows.Scan(&sess.ID, &sess.StartTime, &endTime, &status, &sess.State, &sess.UserTurns, &recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.Status = models.SessionStatus(status)
		if endTime.Valid {
			t := endTime.Time
			sess.EndTime = &t
		}
		if err := json.Unmarshal([]byte(recordJSON), &sess.Record); err != nil {
			return nil, fmt.Errorf("failed to decode record for session %s: %w", sess.ID, err)
		}
		sess.LastActivity = sess.StartTime
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sess := range sessions {
		if err := j.loadLogs(sess); err != nil {
			return nil, err
		}
		if err := j.loadTurns(sess); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (j *SQLite) loadLogs(sess *models.Session) error {
	rows, err := j.db.Query(
		`SELECT created_at, record_json, has_missing_data, unusual_symptoms
		 FROM session_logs WHERE session_id = ? ORDER BY seq`,
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query logs for session %s: %w", sess.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry      models.LogEntry
			recordJSON string
		)
		if err := rows.Scan(&entry.Timestamp, &recordJSON, &entry.HasMissingData, &entry.UnusualSymptoms); err != nil {
			return fmt.Errorf("failed to scan log: %w", err)
		}
		if err := json.Unmarshal([]byte(recordJSON), &entry.Record); err != nil {
			return fmt.Errorf("failed to decode log record: %w", err)
		}
		sess.Logs = append(sess.Logs, entry)
		if entry.Timestamp.After(sess.LastActivity) {
			sess.LastActivity = entry.Timestamp
		}
	}
	return rows.Err()
}

func (j *SQLite) loadTurns(sess *models.Session) error {
	rows, err := j.db.Query(
		`SELECT role, content, created_at FROM session_turns WHERE session_id = ? ORDER BY seq`,
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query turns for session %s: %w", sess.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var turn models.ConversationTurn
		if err := rows.Scan(&turn.Role, &turn.Content, &turn.Timestamp); err != nil {
			return fmt.Errorf("failed to scan turn: %w", err)
		}
		sess.Conversation = append(sess.Conversation, turn)
		if turn.Timestamp.After(sess.LastActivity) {
			sess.LastActivity = turn.Timestamp
		}
	}
	return rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
