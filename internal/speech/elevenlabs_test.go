package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

var _ Synthesizer = (*ElevenLabsSynthesizer)(nil)

// TestElevenLabsSynthesizer_Synthesize checks the request shape and the
// returned audio bytes.
func TestElevenLabsSynthesizer_Synthesize(t *testing.T) {
	var gotPath, gotKey, gotAccept string
	var gotBody struct {
		Text          string `json:"text"`
		ModelID       string `json:"model_id"`
		VoiceSettings struct {
			Stability       float64 `json:"stability"`
			SimilarityBoost float64 `json:"similarity_boost"`
		} `json:"voice_settings"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotAccept = r.Header.Get("Accept")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("mp3-audio"))
	}))
	defer server.Close()

	synth := NewElevenLabsSynthesizer(server.URL, "xi-secret", "voice123")
	audio, err := synth.Synthesize(context.Background(), "Could you tell me the date?")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if string(audio) != "mp3-audio" {
		t.Errorf("Audio = %q", audio)
	}
	if gotPath != "/v1/text-to-speech/voice123" {
		t.Errorf("Path = %q", gotPath)
	}
	if gotKey != "xi-secret" {
		t.Errorf("API key header = %q", gotKey)
	}
	if gotAccept != "audio/mpeg" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotBody.Text != "Could you tell me the date?" {
		t.Errorf("Body text = %q", gotBody.Text)
	}
	if gotBody.ModelID != defaultTTSModel {
		t.Errorf("Model = %q", gotBody.ModelID)
	}
	if gotBody.VoiceSettings.Stability != 0.5 || gotBody.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("Voice settings = %+v", gotBody.VoiceSettings)
	}
}

// TestElevenLabsSynthesizer_APIError checks non-200 responses wrap the
// synthesis sentinel.
func TestElevenLabsSynthesizer_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	synth := NewElevenLabsSynthesizer(server.URL, "wrong", "")
	if _, err := synth.Synthesize(context.Background(), "hello"); !errors.Is(err, ErrSynthesis) {
		t.Errorf("Expected ErrSynthesis, got %v", err)
	}
}

// TestElevenLabsSynthesizer_EmptyAudio treats a 200 with no body as a
// failure rather than saving a zero-byte clip.
func TestElevenLabsSynthesizer_EmptyAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	synth := NewElevenLabsSynthesizer(server.URL, "key", "")
	if _, err := synth.Synthesize(context.Background(), "hello"); !errors.Is(err, ErrSynthesis) {
		t.Errorf("Expected ErrSynthesis for empty audio, got %v", err)
	}
}

// TestNewElevenLabsSynthesizer_Defaults checks the built-in voice and
// endpoint defaults.
func TestNewElevenLabsSynthesizer_Defaults(t *testing.T) {
	synth := NewElevenLabsSynthesizer("", "key", "")
	if synth.baseURL != "https://api.elevenlabs.io" {
		t.Errorf("Base URL = %q", synth.baseURL)
	}
	if synth.voiceID != defaultVoiceID {
		t.Errorf("Voice = %q", synth.voiceID)
	}
}
