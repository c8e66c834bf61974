package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"lunara/internal/services"
)

// TranscriberChain tries each transcriber in order until one succeeds,
// so a cheaper or self-hosted provider can sit in front of a hosted
// fallback. The audio is buffered once and replayed per attempt.
type TranscriberChain struct {
	transcribers []Transcriber
	metrics      *services.Metrics
	logger       *logrus.Logger
}

func NewTranscriberChain(transcribers ...Transcriber) *TranscriberChain {
	return &TranscriberChain{
		transcribers: transcribers,
		logger:       newLogger(),
	}
}

// SetMetrics attaches optional instrumentation.
func (c *TranscriberChain) SetMetrics(m *services.Metrics) {
	c.metrics = m
}

func (c *TranscriberChain) Provider() string { return "chain" }

func (c *TranscriberChain) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", fmt.Errorf("%w: reading audio: %v", ErrTranscription, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty audio upload", ErrTranscription)
	}

	var lastErr error
	for _, t := range c.transcribers {
		text, err := t.Transcribe(ctx, bytes.NewReader(data), filename)
		if err == nil {
			c.record(t.Provider(), "ok")
			return text, nil
		}
		c.record(t.Provider(), "error")
		c.logger.WithFields(logrus.Fields{
			"provider": t.Provider(),
			"error":    err.Error(),
		}).Warn("Transcription attempt failed")
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no transcriber configured", ErrTranscription)
	}
	return "", lastErr
}

func (c *TranscriberChain) record(provider, status string) {
	if c.metrics != nil {
		c.metrics.SpeechRequest("stt", provider, status)
	}
}
