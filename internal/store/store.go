package store

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lunara/internal/models"
)

// Error types for session store operations
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session already completed")
)

// Journal mirrors store mutations into durable storage so sessions survive
// a restart. Implementations live in internal/journal. A nil journal
// disables durability entirely.
type Journal interface {
	SessionStarted(s *models.Session) error
	ProgressSaved(s *models.Session) error
	LogAppended(sessionID string, seq int, entry models.LogEntry) error
	TurnAppended(sessionID string, seq int, turn models.ConversationTurn) error
	SessionEnded(sessionID string, endTime time.Time) error
	Restore() ([]*models.Session, error)
	Close() error
}

// sessionEntry pairs a session with its own mutex so mutations on one
// session serialize without blocking independent sessions.
type sessionEntry struct {
	mutex   sync.Mutex
	session *models.Session
}

// SessionStore keeps every logging session in memory. The in-memory map is
// the source of truth; the journal is write-through recovery state and its
// failures are logged, never returned to callers.
type SessionStore struct {
	sessions map[string]*sessionEntry
	mutex    sync.RWMutex
	journal  Journal
}

// NewSessionStore creates an empty store. journal may be nil.
func NewSessionStore(journal Journal) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*sessionEntry),
		journal:  journal,
	}
	log.Println("🗂️ Session store initialized")
	return s
}

// Restore replays the journal into memory. Called once at startup before
// the store is shared.
func (s *SessionStore) Restore() error {
	if s.journal == nil {
		return nil
	}
	restored, err := s.journal.Restore()
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, sess := range restored {
		s.sessions[sess.ID] = &sessionEntry{session: sess}
	}
	if len(restored) > 0 {
		log.Printf("🗂️ Restored %d sessions from journal", len(restored))
	}
	return nil
}

// CreateSession registers a new active session and returns a snapshot.
func (s *SessionStore) CreateSession() *models.Session {
	now := time.Now().UTC()
	sess := &models.Session{
		ID:           uuid.New().String(),
		StartTime:    now,
		LastActivity: now,
		Status:       models.SessionActive,
	}

	s.mutex.Lock()
	s.sessions[sess.ID] = &sessionEntry{session: sess}
	s.mutex.Unlock()

	s.journalWrite("session start", func(j Journal) error { return j.SessionStarted(sess) })
	log.Printf("🗂️ Session %s created", sess.ID)
	return sess.Clone()
}

func (s *SessionStore) entry(id string) (*sessionEntry, error) {
	s.mutex.RLock()
	entry, ok := s.sessions[id]
	s.mutex.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

// GetSession returns a snapshot copy with aggregate flags recomputed from
// the log history rather than trusted from stored state.
func (s *SessionStore) GetSession(id string) (*models.Session, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	snap := entry.session.Clone()
	snap.HasMissingData, snap.UnusualSymptoms = aggregateFlags(snap.Logs)
	return snap, nil
}

// Sessions lists every session in start-time order, newest first.
func (s *SessionStore) Sessions() []models.SessionSummary {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]models.SessionSummary, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entry.mutex.Lock()
		out = append(out, models.SessionSummary{
			ID:        entry.session.ID,
			Status:    entry.session.Status,
			StartTime: entry.session.StartTime,
			LogCount:  len(entry.session.Logs),
		})
		entry.mutex.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}

// AppendLog appends an extraction result to an active session. The
// per-entry quality flags are derived here so stored history is
// self-describing.
func (s *SessionStore) AppendLog(id string, rec models.HealthRecord) (models.LogEntry, error) {
	entry, err := s.entry(id)
	if err != nil {
		return models.LogEntry{}, err
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	sess := entry.session
	if sess.Status != models.SessionActive {
		return models.LogEntry{}, ErrSessionCompleted
	}

	logEntry := models.LogEntry{
		Timestamp:       time.Now().UTC(),
		Record:          rec.Clone(),
		HasMissingData:  len(rec.MissingSlots()) > 0,
		UnusualSymptoms: rec.UnusualSymptoms,
	}
	sess.Logs = append(sess.Logs, logEntry)
	sess.LastActivity = logEntry.Timestamp
	seq := len(sess.Logs)

	s.journalWrite("log append", func(j Journal) error { return j.LogAppended(id, seq, logEntry) })
	return logEntry, nil
}

// AppendTurn records one conversation utterance. User turns advance the
// session's turn counter.
func (s *SessionStore) AppendTurn(id, role, content string) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	sess := entry.session
	if sess.Status != models.SessionActive {
		return ErrSessionCompleted
	}

	turn := models.ConversationTurn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	sess.Conversation = append(sess.Conversation, turn)
	sess.LastActivity = turn.Timestamp
	if role == models.RoleUser {
		sess.UserTurns++
	}
	seq := len(sess.Conversation)

	s.journalWrite("turn append", func(j Journal) error { return j.TurnAppended(id, seq, turn) })
	return nil
}

// SaveProgress persists the dialog's working record and resting state.
func (s *SessionStore) SaveProgress(id string, rec models.HealthRecord, state string) error {
	entry, err := s.entry(id)
	if err != nil {
		return err
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	sess := entry.session
	if sess.Status != models.SessionActive {
		return ErrSessionCompleted
	}

	sess.Record = rec.Clone()
	sess.State = state
	sess.LastActivity = time.Now().UTC()

	s.journalWrite("progress save", func(j Journal) error { return j.ProgressSaved(sess) })
	return nil
}

// EndSession marks a session completed. Ending an already completed
// session is a no-op that returns the existing snapshot.
func (s *SessionStore) EndSession(id string) (*models.Session, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mutex.Lock()
	defer entry.mutex.Unlock()

	sess := entry.session
	if sess.Status == models.SessionCompleted {
		snap := sess.Clone()
		snap.HasMissingData, snap.UnusualSymptoms = aggregateFlags(snap.Logs)
		return snap, nil
	}

	now := time.Now().UTC()
	sess.EndTime = &now
	sess.Status = models.SessionCompleted
	sess.LastActivity = now

	s.journalWrite("session end", func(j Journal) error { return j.SessionEnded(id, now) })
	log.Printf("🗂️ Session %s ended (%d logs, %d turns)", id, len(sess.Logs), len(sess.Conversation))

	snap := sess.Clone()
	snap.HasMissingData, snap.UnusualSymptoms = aggregateFlags(snap.Logs)
	return snap, nil
}

// IdleSessions returns the ids of active sessions whose last activity is
// older than ttl. It only reports candidates; closing them is up to the
// caller.
func (s *SessionStore) IdleSessions(ttl time.Duration) []string {
	s.mutex.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mutex.RUnlock()

	cutoff := time.Now().UTC().Add(-ttl)
	var idle []string
	for _, id := range ids {
		entry, err := s.entry(id)
		if err != nil {
			continue
		}
		entry.mutex.Lock()
		if entry.session.Status == models.SessionActive && entry.session.LastActivity.Before(cutoff) {
			idle = append(idle, id)
		}
		entry.mutex.Unlock()
	}
	return idle
}

// Stats aggregates every session under the store lock so the six counters
// come from one consistent snapshot.
func (s *SessionStore) Stats() models.SessionStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var stats models.SessionStats
	for _, entry := range s.sessions {
		entry.mutex.Lock()
		sess := entry.session
		stats.TotalSessions++
		if sess.Status == models.SessionActive {
			stats.ActiveSessions++
		} else {
			stats.CompletedSessions++
		}
		stats.TotalLogs += len(sess.Logs)
		missing, unusual := aggregateFlags(sess.Logs)
		if missing {
			stats.SessionsWithMissingData++
		}
		if unusual {
			stats.SessionsWithUnusualSymptoms++
		}
		entry.mutex.Unlock()
	}
	return stats
}

// ActiveSessions reports the current number of active sessions. Used by
// the metrics gauge.
func (s *SessionStore) ActiveSessions() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	count := 0
	for _, entry := range s.sessions {
		entry.mutex.Lock()
		if entry.session.Status == models.SessionActive {
			count++
		}
		entry.mutex.Unlock()
	}
	return count
}

// aggregateFlags recomputes the session-level quality flags from the log
// history: a session has missing data or unusual symptoms if any entry does.
func aggregateFlags(logs []models.LogEntry) (hasMissing, unusual bool) {
	for _, l := range logs {
		if l.HasMissingData {
			hasMissing = true
		}
		if l.UnusualSymptoms {
			unusual = true
		}
	}
	return hasMissing, unusual
}

func (s *SessionStore) journalWrite(op string, fn func(Journal) error) {
	if s.journal == nil {
		return
	}
	if err := fn(s.journal); err != nil {
		log.Printf("⚠️ Journal %s failed: %v", op, err)
	}
}
