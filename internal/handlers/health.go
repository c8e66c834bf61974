package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"lunara/internal/store"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store  *store.SessionStore
	engine string
	stt    bool
	tts    bool
}

// NewHealthHandler creates a new health handler. engine is the active
// extraction engine name; stt and tts report provider availability.
func NewHealthHandler(st *store.SessionStore, engine string, stt, tts bool) *HealthHandler {
	return &HealthHandler{store: st, engine: engine, stt: stt, tts: tts}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":          "healthy",
		"active_sessions": h.store.ActiveSessions(),
		"extractor":       h.engine,
		"stt_configured":  h.stt,
		"tts_configured":  h.tts,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}
