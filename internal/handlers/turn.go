package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"lunara/internal/dialog"
	"lunara/internal/speech"
)

// TurnHandler processes conversation turns
type TurnHandler struct {
	manager     *dialog.Manager
	transcriber speech.Transcriber // optional; text-only when nil
}

// NewTurnHandler creates a new turn handler
func NewTurnHandler(manager *dialog.Manager, transcriber speech.Transcriber) *TurnHandler {
	return &TurnHandler{manager: manager, transcriber: transcriber}
}

// Submit handles one conversation turn. Accepts either an uploaded audio
// file or a text field with an already transcribed utterance. An empty
// transcript is still processed; the dialog answers with a follow-up.
func (h *TurnHandler) Submit(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	transcript := c.FormValue("text", "")

	if file, err := c.FormFile("audio"); err == nil {
		// Max 25MB for Whisper
		if file.Size > 25*1024*1024 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Audio file too large. Maximum size is 25MB",
			})
		}
		if h.transcriber == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Speech transcription not configured. Submit text instead.",
			})
		}

		src, err := file.Open()
		if err != nil {
			log.Printf("❌ [TURN-API] Failed to open upload: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read audio upload",
			})
		}
		defer src.Close()

		log.Printf("🎵 [TURN-API] Transcribing audio: %s (%d bytes)", file.Filename, file.Size)
		text, err := h.transcriber.Transcribe(c.Context(), src, file.Filename)
		if err != nil {
			log.Printf("❌ [TURN-API] Transcription failed: %v", err)
			return errorResponse(c, err)
		}
		transcript = text
	} else if transcript == "" {
		var body struct {
			Text string `json:"text"`
		}
		if err := c.BodyParser(&body); err == nil {
			transcript = body.Text
		}
	}

	result, err := h.manager.HandleTurn(c.Context(), sessionID, transcript)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(result)
}
