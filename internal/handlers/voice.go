package handlers

import (
	"github.com/gofiber/fiber/v2"

	"lunara/internal/speech"
)

// VoiceHandler serves synthesized audio clips
type VoiceHandler struct {
	clips *speech.ClipStore
}

// NewVoiceHandler creates a new voice handler
func NewVoiceHandler(clips *speech.ClipStore) *VoiceHandler {
	return &VoiceHandler{clips: clips}
}

// Clip streams a synthesized mp3 by name
func (h *VoiceHandler) Clip(c *fiber.Ctx) error {
	if h.clips == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Audio responses not configured",
		})
	}
	path, err := h.clips.Resolve(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Audio clip not found",
		})
	}
	return c.SendFile(path)
}
