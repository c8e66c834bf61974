package handlers

import (
	"github.com/gofiber/fiber/v2"

	"lunara/internal/dialog"
	"lunara/internal/store"
)

// SessionHandler handles session lifecycle requests
type SessionHandler struct {
	store   *store.SessionStore
	manager *dialog.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(st *store.SessionStore, manager *dialog.Manager) *SessionHandler {
	return &SessionHandler{store: st, manager: manager}
}

// Start opens a new logging session and returns the spoken greeting
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	sess, greeting, audioURL := h.manager.StartSession(c.Context())

	resp := fiber.Map{
		"session_id":           sess.ID,
		"status":               sess.Status,
		"message":              greeting,
		"conversation_history": sess.Conversation,
	}
	if audioURL != "" {
		resp["audio_url"] = audioURL
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// List returns all sessions, newest first
func (h *SessionHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"sessions": h.store.Sessions(),
	})
}

// Get returns one session with its aggregates recomputed from the logs
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.store.GetSession(c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(sess)
}

// End finalizes a session, writing out any collected data first.
// Ending an already completed session returns the final snapshot.
func (h *SessionHandler) End(c *fiber.Ctx) error {
	sess, err := h.manager.EndSession(c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"session_id": sess.ID,
		"status":     sess.Status,
		"record":     sess.Record,
		"summary":    sess.Record.Summary(),
	})
}

// Stats returns aggregate statistics across all sessions
func (h *SessionHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.store.Stats())
}
