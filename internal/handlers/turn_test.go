package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"lunara/internal/speech"
)

// fakeTranscriber returns a fixed transcript or error for audio uploads.
type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	io.Copy(io.Discard, audio)
	return f.text, f.err
}

func (f *fakeTranscriber) Provider() string { return "fake" }

func newAudioUpload(t *testing.T, payload []byte) (contentType string, body *bytes.Buffer) {
	t.Helper()
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("audio", "turn.webm")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(payload)
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return w.FormDataContentType(), body
}

// TestTurnAPI_TextComplete drives a full-record text turn through the real
// keyword extractor.
func TestTurnAPI_TextComplete(t *testing.T) {
	app, st := newTestApp(nil, nil)
	id := startSession(t, app)

	result := submitText(t, app, id, "I started my period yesterday and it's been heavy all day with severe cramps")
	if result["status"] != "complete" {
		t.Fatalf("Status = %v", result["status"])
	}
	if _, ok := result["missing_fields"]; ok {
		t.Errorf("Complete turn should omit missing_fields, got %v", result["missing_fields"])
	}

	record, ok := result["record"].(map[string]interface{})
	if !ok {
		t.Fatalf("Missing record in response: %v", result)
	}
	period := record["period"].(map[string]interface{})
	if period["status"] != "start" || period["flow"] != "heavy" {
		t.Errorf("Record period = %v", period)
	}
	if record["unusual_symptoms"] != true {
		t.Error("Record should flag unusual symptoms")
	}

	sess, err := st.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if len(sess.Logs) != 1 {
		t.Errorf("Expected 1 log entry, got %d", len(sess.Logs))
	}
}

// TestTurnAPI_NeedsMore checks the follow-up question and missing fields
// for a partial utterance.
func TestTurnAPI_NeedsMore(t *testing.T) {
	app, _ := newTestApp(nil, nil)
	id := startSession(t, app)

	result := submitText(t, app, id, "feeling pretty moody and tired")
	if result["status"] != "needs_more_info" {
		t.Fatalf("Status = %v", result["status"])
	}
	if result["message"] == "" {
		t.Error("Follow-up question missing")
	}
	missing, ok := result["missing_fields"].([]interface{})
	if !ok || len(missing) != 2 {
		t.Errorf("missing_fields = %v", result["missing_fields"])
	}
	history, ok := result["conversation_history"].([]interface{})
	if !ok || len(history) != 3 {
		t.Errorf("Expected greeting+user+question history, got %v", result["conversation_history"])
	}
}

// TestTurnAPI_UnknownSession checks the 404 mapping.
func TestTurnAPI_UnknownSession(t *testing.T) {
	app, _ := newTestApp(nil, nil)

	payload, _ := json.Marshal(map[string]string{"text": "hello"})
	req := httptest.NewRequest("POST", "/api/sessions/unknown/turns", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Status = %d, want 404", resp.StatusCode)
	}
}

// TestTurnAPI_AudioTranscribed uploads audio through a stub transcriber
// and verifies the transcript drives the dialog.
func TestTurnAPI_AudioTranscribed(t *testing.T) {
	app, _ := newTestApp(&fakeTranscriber{text: "my period started yesterday, heavy flow"}, nil)
	id := startSession(t, app)

	contentType, body := newAudioUpload(t, []byte("fake-webm-bytes"))
	req := httptest.NewRequest("POST", "/api/sessions/"+id+"/turns", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Status = %d: %s", resp.StatusCode, raw)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "complete" {
		t.Errorf("Status = %v", result["status"])
	}
}

// TestTurnAPI_AudioWithoutTranscriber checks audio uploads fail with 503
// when no speech-to-text provider is configured.
func TestTurnAPI_AudioWithoutTranscriber(t *testing.T) {
	app, _ := newTestApp(nil, nil)
	id := startSession(t, app)

	contentType, body := newAudioUpload(t, []byte("audio"))
	req := httptest.NewRequest("POST", "/api/sessions/"+id+"/turns", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", resp.StatusCode)
	}
}

// TestTurnAPI_TranscriptionFailure maps provider errors to 502.
func TestTurnAPI_TranscriptionFailure(t *testing.T) {
	failing := &fakeTranscriber{err: fmt.Errorf("%w: status 500", speech.ErrTranscription)}
	app, _ := newTestApp(failing, nil)
	id := startSession(t, app)

	contentType, body := newAudioUpload(t, []byte("audio"))
	req := httptest.NewRequest("POST", "/api/sessions/"+id+"/turns", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Errorf("Status = %d, want 502", resp.StatusCode)
	}
}

// TestVoiceAPI_Clip serves a saved clip and 404s for everything else.
func TestVoiceAPI_Clip(t *testing.T) {
	clips, err := speech.NewClipStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewClipStore failed: %v", err)
	}
	name, err := clips.Save("hello", []byte("mp3-bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	app, _ := newTestApp(nil, clips)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/voice/audio/"+name, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Status = %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(data, []byte("mp3-bytes")) {
		t.Errorf("Clip body = %q", data)
	}

	missing, err := app.Test(httptest.NewRequest("GET", "/api/voice/audio/response_gone.mp3", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != fiber.StatusNotFound {
		t.Errorf("Missing clip status = %d, want 404", missing.StatusCode)
	}
}

// TestVoiceAPI_Unconfigured checks the route answers 404 when synthesis is
// disabled entirely.
func TestVoiceAPI_Unconfigured(t *testing.T) {
	app, _ := newTestApp(nil, nil)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/voice/audio/response_x.mp3", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Status = %d, want 404", resp.StatusCode)
	}
}
