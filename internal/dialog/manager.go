package dialog

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"lunara/internal/extraction"
	"lunara/internal/models"
	"lunara/internal/services"
	"lunara/internal/store"
)

// Turn outcomes reported to clients.
const (
	TurnComplete  = "complete"
	TurnNeedsMore = "needs_more_info"
)

// Finalization reasons, used for logging and metrics labels.
const (
	ReasonComplete  = "complete"
	ReasonEndSignal = "end_signal"
	ReasonTurnLimit = "turn_limit"
	ReasonExplicit  = "explicit"
	ReasonExpired   = "expired"
)

// DefaultMaxTurns bounds how many user utterances a session processes
// before it is finalized with whatever data was collected.
const DefaultMaxTurns = 5

// Voice produces a spoken clip for an assistant reply and returns a URL
// path clients can fetch it from. Implementations are best-effort.
type Voice interface {
	SpeakToURL(ctx context.Context, text string) (string, error)
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	SessionID     string                    `json:"session_id"`
	Status        string                    `json:"status"`
	Message       string                    `json:"message"`
	MissingFields []string                  `json:"missing_fields,omitempty"`
	Record        models.HealthRecord       `json:"record"`
	Conversation  []models.ConversationTurn `json:"conversation_history"`
	AudioURL      string                    `json:"audio_url,omitempty"`
	Degraded      bool                      `json:"degraded,omitempty"`
}

// Manager drives the slot-filling conversation for every session. Turns
// for the same session are serialized; different sessions proceed
// independently.
type Manager struct {
	store     *store.SessionStore
	extractor extraction.Extractor
	voice     Voice
	metrics   *services.Metrics
	maxTurns  int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager wires the dialog engine to its session store and extractor.
func NewManager(st *store.SessionStore, ex extraction.Extractor, maxTurns int) *Manager {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Manager{
		store:     st,
		extractor: ex,
		maxTurns:  maxTurns,
		locks:     make(map[string]*sync.Mutex),
	}
}

// SetVoice attaches an optional speech synthesizer for assistant replies.
func (m *Manager) SetVoice(v Voice) {
	m.voice = v
}

// SetMetrics attaches optional instrumentation.
func (m *Manager) SetMetrics(mt *services.Metrics) {
	m.metrics = mt
}

// StartSession opens a new session and returns it with the spoken
// greeting.
func (m *Manager) StartSession(ctx context.Context) (*models.Session, string, string) {
	sess := m.store.CreateSession()
	if err := m.store.AppendTurn(sess.ID, models.RoleAssistant, GreetingMessage); err != nil {
		log.Printf("⚠️ [DIALOG] Session %s: failed to record greeting: %v", sess.ID, err)
	}
	audioURL := m.speak(ctx, GreetingMessage)
	if snap, err := m.store.GetSession(sess.ID); err == nil {
		sess = snap
	}
	return sess, GreetingMessage, audioURL
}

// HandleTurn runs one full dialog cycle for a transcript: extract, merge
// into the session record, then either finalize the session or ask the
// next follow-up question.
//
// The session is finalized when nothing required is missing, when the
// transcript is an explicit end signal, or when the turn limit is
// reached. Extraction failures degrade to keyword results and never
// abort the turn.
func (m *Manager) HandleTurn(ctx context.Context, sessionID, transcript string) (*TurnResult, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionActive {
		return nil, store.ErrSessionCompleted
	}

	state := State(sess.State)
	if state == "" {
		state = StateAwaitingInput
	}

	if err := m.store.AppendTurn(sessionID, models.RoleUser, transcript); err != nil {
		return nil, err
	}
	userTurns := sess.UserTurns + 1

	if state, err = Transition(state, StateExtracting); err != nil {
		return nil, err
	}

	started := time.Now()
	extracted, exErr := m.extractor.Extract(ctx, transcript)
	degraded := exErr != nil
	if exErr != nil && !errors.Is(exErr, extraction.ErrExtractionDegraded) {
		log.Printf("⚠️ [DIALOG] Session %s: unexpected extraction error: %v", sessionID, exErr)
	} else if exErr != nil {
		log.Printf("⚠️ [DIALOG] Session %s: %v", sessionID, exErr)
	}
	if m.metrics != nil {
		m.metrics.ObserveExtraction(m.extractor.Engine(), time.Since(started), degraded)
	}

	if state, err = Transition(state, StateChecking); err != nil {
		return nil, err
	}

	working := sess.Record.Clone()
	if extracted != nil {
		working.Merge(extracted)
	}
	missing := working.MissingSlots()

	reason := ""
	switch {
	case len(missing) == 0:
		reason = ReasonComplete
	case IsEndSignal(transcript):
		reason = ReasonEndSignal
	case userTurns >= m.maxTurns:
		reason = ReasonTurnLimit
	}
	if reason != "" {
		return m.finalize(ctx, sessionID, working, state, missing, reason, degraded)
	}

	question := NextQuestion(&working)
	if state, err = Transition(state, StateAsking); err != nil {
		return nil, err
	}
	if err := m.store.AppendTurn(sessionID, models.RoleAssistant, question); err != nil {
		return nil, err
	}
	if state, err = Transition(state, StateAwaitingInput); err != nil {
		return nil, err
	}
	if err := m.store.SaveProgress(sessionID, working, string(state)); err != nil {
		return nil, err
	}

	audioURL := m.speak(ctx, question)

	snap, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.TurnProcessed(TurnNeedsMore)
	}
	return &TurnResult{
		SessionID:     sessionID,
		Status:        TurnNeedsMore,
		Message:       question,
		MissingFields: missing,
		Record:        working,
		Conversation:  snap.Conversation,
		AudioURL:      audioURL,
		Degraded:      degraded,
	}, nil
}

func (m *Manager) finalize(ctx context.Context, sessionID string, working models.HealthRecord, state State, missing []string, reason string, degraded bool) (*TurnResult, error) {
	state, err := Transition(state, StateFinalized)
	if err != nil {
		return nil, err
	}

	message := completeMessage
	if len(missing) > 0 {
		message = partialMessage
	}

	if err := m.store.AppendTurn(sessionID, models.RoleAssistant, message); err != nil {
		return nil, err
	}
	if _, err := m.store.AppendLog(sessionID, working); err != nil {
		return nil, err
	}
	if err := m.store.SaveProgress(sessionID, working, string(state)); err != nil {
		return nil, err
	}
	snap, err := m.store.EndSession(sessionID)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ [DIALOG] Session %s finalized (%s), missing=%d", sessionID, reason, len(missing))
	if m.metrics != nil {
		m.metrics.TurnProcessed(TurnComplete)
		m.metrics.SessionFinalized(reason)
	}

	audioURL := m.speak(ctx, message)

	return &TurnResult{
		SessionID:     sessionID,
		Status:        TurnComplete,
		Message:       message,
		MissingFields: missing,
		Record:        working,
		Conversation:  snap.Conversation,
		AudioURL:      audioURL,
		Degraded:      degraded,
	}, nil
}

// EndSession closes a session on explicit client request. Collected but
// not yet logged data is written out first so it is not lost. Ending an
// already completed session is a no-op returning the final snapshot.
func (m *Manager) EndSession(sessionID string) (*models.Session, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionActive {
		m.endLocked(sessionID, sess, ReasonExplicit)
	}
	return m.store.EndSession(sessionID)
}

// ExpireIdle closes active sessions that have been idle past the TTL,
// preserving any collected data first. Returns the closed session ids.
func (m *Manager) ExpireIdle(ttl time.Duration) []string {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	cutoff := time.Now().UTC().Add(-ttl)

	var expired []string
	for _, id := range m.store.IdleSessions(ttl) {
		lock := m.sessionLock(id)
		lock.Lock()
		// Re-check under the lock; a turn may have landed since the scan.
		sess, err := m.store.GetSession(id)
		if err == nil && sess.Status == models.SessionActive && sess.LastActivity.Before(cutoff) {
			m.endLocked(id, sess, ReasonExpired)
			if _, err := m.store.EndSession(id); err == nil {
				expired = append(expired, id)
			}
		}
		lock.Unlock()
	}
	return expired
}

// endLocked finalizes an active session's data. The caller holds the
// session lock and ends the session in the store afterwards.
func (m *Manager) endLocked(sessionID string, sess *models.Session, reason string) {
	if !sess.Record.IsEmpty() && len(sess.Logs) == 0 {
		if _, err := m.store.AppendLog(sessionID, sess.Record); err != nil {
			log.Printf("⚠️ [DIALOG] Session %s: failed to log record on close: %v", sessionID, err)
		}
	}
	if err := m.store.SaveProgress(sessionID, sess.Record, string(StateFinalized)); err != nil {
		log.Printf("⚠️ [DIALOG] Session %s: failed to save final state: %v", sessionID, err)
	}
	if m.metrics != nil {
		m.metrics.SessionFinalized(reason)
	}
}

func (m *Manager) speak(ctx context.Context, text string) string {
	if m.voice == nil {
		return ""
	}
	url, err := m.voice.SpeakToURL(ctx, text)
	if err != nil {
		log.Printf("⚠️ [DIALOG] Voice synthesis failed: %v", err)
		return ""
	}
	return url
}

func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}
