// Package speech provides the speech-to-text and text-to-speech
// providers behind the voice API. Providers are tried in order and
// failures surface as wrapped sentinel errors so callers can map them
// to transport responses.
package speech

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// Sentinel errors for speech provider failures.
var (
	ErrTranscription = errors.New("speech transcription failed")
	ErrSynthesis     = errors.New("speech synthesis failed")
)

// Transcriber converts spoken audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	Provider() string
}

// Synthesizer renders assistant text as spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Provider() string
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}
