package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"lunara/internal/speech"
	"lunara/internal/store"
)

// errorResponse maps domain errors onto transport codes.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, store.ErrSessionCompleted):
		status = fiber.StatusConflict
	case errors.Is(err, speech.ErrTranscription), errors.Is(err, speech.ErrSynthesis):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
