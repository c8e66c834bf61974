package logging

import (
	"log/slog"
	"os"
)

// Init configures the global slog logger.
// In production it uses JSON output for log aggregation. Otherwise it
// uses the human-readable text handler.
func Init(production bool) {
	var handler slog.Handler
	if production {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithSession returns a logger with session context fields attached.
// Use this for all logging within a dialog turn.
func WithSession(sessionID string) *slog.Logger {
	return slog.With("session_id", sessionID)
}
