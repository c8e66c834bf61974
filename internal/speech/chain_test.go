package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// stubTranscriber records what it was fed so replay behavior is checkable.
type stubTranscriber struct {
	name  string
	text  string
	err   error
	got   []byte
	calls int
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	s.calls++
	s.got, _ = io.ReadAll(audio)
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *stubTranscriber) Provider() string { return s.name }

// TestTranscriberChain_FirstSucceeds verifies the chain stops at the first
// working provider.
func TestTranscriberChain_FirstSucceeds(t *testing.T) {
	first := &stubTranscriber{name: "first", text: "hello"}
	second := &stubTranscriber{name: "second", text: "unused"}
	chain := NewTranscriberChain(first, second)

	text, err := chain.Transcribe(context.Background(), strings.NewReader("audio"), "a.webm")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("Transcript = %q", text)
	}
	if second.calls != 0 {
		t.Errorf("Second provider should not be called, got %d calls", second.calls)
	}
}

// TestTranscriberChain_Failover verifies the audio is replayed in full for
// the fallback provider after the first one consumed the reader.
func TestTranscriberChain_Failover(t *testing.T) {
	first := &stubTranscriber{name: "first", err: errors.New("provider down")}
	second := &stubTranscriber{name: "second", text: "recovered"}
	chain := NewTranscriberChain(first, second)

	text, err := chain.Transcribe(context.Background(), strings.NewReader("full-audio-payload"), "a.webm")
	if err != nil {
		t.Fatalf("Failover should succeed: %v", err)
	}
	if text != "recovered" {
		t.Errorf("Transcript = %q", text)
	}
	if !bytes.Equal(first.got, []byte("full-audio-payload")) {
		t.Errorf("First provider got %q", first.got)
	}
	if !bytes.Equal(second.got, []byte("full-audio-payload")) {
		t.Errorf("Fallback must see the full audio again, got %q", second.got)
	}
}

// TestTranscriberChain_AllFail checks the last error is returned when every
// provider fails.
func TestTranscriberChain_AllFail(t *testing.T) {
	lastErr := errors.New("second down")
	chain := NewTranscriberChain(
		&stubTranscriber{name: "first", err: errors.New("first down")},
		&stubTranscriber{name: "second", err: lastErr},
	)

	_, err := chain.Transcribe(context.Background(), strings.NewReader("audio"), "a.webm")
	if !errors.Is(err, lastErr) {
		t.Errorf("Expected the last provider error, got %v", err)
	}
}

// TestTranscriberChain_EmptyAudio rejects empty uploads before any
// provider is tried.
func TestTranscriberChain_EmptyAudio(t *testing.T) {
	first := &stubTranscriber{name: "first", text: "x"}
	chain := NewTranscriberChain(first)

	_, err := chain.Transcribe(context.Background(), strings.NewReader(""), "a.webm")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("Expected ErrTranscription, got %v", err)
	}
	if first.calls != 0 {
		t.Errorf("Empty audio should not reach providers, got %d calls", first.calls)
	}
}

// TestTranscriberChain_NoProviders checks the configured-but-empty chain
// fails cleanly.
func TestTranscriberChain_NoProviders(t *testing.T) {
	chain := NewTranscriberChain()
	_, err := chain.Transcribe(context.Background(), strings.NewReader("audio"), "a.webm")
	if !errors.Is(err, ErrTranscription) {
		t.Errorf("Expected ErrTranscription, got %v", err)
	}
}
