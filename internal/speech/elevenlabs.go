package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultVoiceID  = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultTTSModel = "eleven_monolingual_v1"
)

// ElevenLabsSynthesizer renders text to speech through the ElevenLabs
// API and returns raw mp3 bytes.
type ElevenLabsSynthesizer struct {
	baseURL    string
	apiKey     string
	voiceID    string
	model      string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewElevenLabsSynthesizer(baseURL, apiKey, voiceID string) *ElevenLabsSynthesizer {
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	return &ElevenLabsSynthesizer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		voiceID: voiceID,
		model:   defaultTTSModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: newLogger(),
	}
}

func (e *ElevenLabsSynthesizer) Provider() string { return "elevenlabs" }

func (e *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	requestBody := map[string]interface{}{
		"text":     text,
		"model_id": e.model,
		"voice_settings": map[string]interface{}{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, e.voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	e.logger.WithFields(logrus.Fields{
		"chars": len(text),
		"voice": e.voiceID,
	}).Info("Sending text to ElevenLabs")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		e.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error("ElevenLabs API error")
		return nil, fmt.Errorf("%w: status %d", ErrSynthesis, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %v", ErrSynthesis, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", ErrSynthesis)
	}

	e.logger.WithField("bytes", len(audio)).Info("Synthesis successful")
	return audio, nil
}
