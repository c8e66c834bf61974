package jobs

import (
	"log"
	"time"

	"lunara/internal/dialog"
)

// SessionJanitor finalizes sessions that have been idle past the TTL so
// abandoned conversations still end up with their data logged.
type SessionJanitor struct {
	manager *dialog.Manager
	ttl     time.Duration
}

func NewSessionJanitor(manager *dialog.Manager, ttl time.Duration) *SessionJanitor {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionJanitor{manager: manager, ttl: ttl}
}

func (j *SessionJanitor) Run() {
	expired := j.manager.ExpireIdle(j.ttl)
	if len(expired) > 0 {
		log.Printf("🧹 [JANITOR] Expired %d idle sessions", len(expired))
	}
}
