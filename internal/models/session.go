package models

import "time"

// SessionStatus is the lifecycle state of a logging session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one utterance in a session's dialog history.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry is one extraction result appended to a session. The two flags
// are computed at append time against the slot schema and unusual lexicon
// so stored history carries its own quality markers.
type LogEntry struct {
	Timestamp       time.Time    `json:"timestamp"`
	Record          HealthRecord `json:"record"`
	HasMissingData  bool         `json:"has_missing_data"`
	UnusualSymptoms bool         `json:"unusual_symptoms"`
}

// Session is one voice logging conversation. Record is the working record
// the dialog accumulates across turns; Logs is the append-only history.
// HasMissingData and UnusualSymptoms are aggregates recomputed on read,
// never trusted from storage.
type Session struct {
	ID              string             `json:"session_id"`
	StartTime       time.Time          `json:"start_time"`
	EndTime         *time.Time         `json:"end_time,omitempty"`
	LastActivity    time.Time          `json:"last_activity"`
	Status          SessionStatus      `json:"status"`
	State           string             `json:"state"`
	Record          HealthRecord       `json:"record"`
	UserTurns       int                `json:"user_turns"`
	Logs            []LogEntry         `json:"logs"`
	Conversation    []ConversationTurn `json:"conversation_history"`
	HasMissingData  bool               `json:"has_missing_data"`
	UnusualSymptoms bool               `json:"unusual_symptoms"`
}

// Clone returns a snapshot copy whose slices are detached from the live
// session, so readers never observe later mutations.
func (s *Session) Clone() *Session {
	out := *s
	out.Record = s.Record.Clone()
	if len(s.Logs) > 0 {
		out.Logs = append([]LogEntry(nil), s.Logs...)
	}
	if len(s.Conversation) > 0 {
		out.Conversation = append([]ConversationTurn(nil), s.Conversation...)
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return &out
}

// SessionSummary is the compact listing form of a session.
type SessionSummary struct {
	ID        string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
	StartTime time.Time     `json:"start_time"`
	LogCount  int           `json:"log_count"`
}

// SessionStats is the aggregate view across all sessions, taken as one
// consistent snapshot.
type SessionStats struct {
	TotalSessions               int `json:"total_sessions"`
	ActiveSessions              int `json:"active_sessions"`
	CompletedSessions           int `json:"completed_sessions"`
	TotalLogs                   int `json:"total_logs"`
	SessionsWithMissingData     int `json:"sessions_with_missing_data"`
	SessionsWithUnusualSymptoms int `json:"sessions_with_unusual_symptoms"`
}
