package speech

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/sirupsen/logrus"
)

// AssemblyAITranscriber transcribes audio through the AssemblyAI SDK.
type AssemblyAITranscriber struct {
	client *assemblyai.Client
	logger *logrus.Logger
}

func NewAssemblyAITranscriber(apiKey string) *AssemblyAITranscriber {
	return &AssemblyAITranscriber{
		client: assemblyai.NewClient(apiKey),
		logger: newLogger(),
	}
}

func (a *AssemblyAITranscriber) Provider() string { return "assemblyai" }

// Transcribe uploads the audio and polls until the transcript is ready.
func (a *AssemblyAITranscriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a.logger.WithField("file", filename).Info("Sending audio to AssemblyAI")

	transcript, err := a.client.Transcripts.TranscribeFromReader(ctx, audio, &assemblyai.TranscriptOptionalParams{
		LanguageCode: "en",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if transcript.Text == nil || *transcript.Text == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrTranscription)
	}

	a.logger.WithField("chars", len(*transcript.Text)).Info("Transcription successful")
	return *transcript.Text, nil
}
