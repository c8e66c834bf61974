package speech

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"lunara/internal/services"
)

// ClipURLPrefix is where saved clips are served from.
const ClipURLPrefix = "/api/voice/audio/"

// Speaker turns assistant text into a servable audio clip. Synthesis
// failures propagate so callers can decide whether audio is required.
type Speaker struct {
	synth    Synthesizer
	clips    *ClipStore
	metrics  *services.Metrics
	playback bool
	logger   *logrus.Logger
}

func NewSpeaker(synth Synthesizer, clips *ClipStore) *Speaker {
	return &Speaker{
		synth:  synth,
		clips:  clips,
		logger: newLogger(),
	}
}

// SetMetrics attaches optional instrumentation.
func (s *Speaker) SetMetrics(m *services.Metrics) {
	s.metrics = m
}

// EnablePlayback plays each clip through a local audio player as well.
// Meant for kiosk-style deployments where the server is the speaker.
func (s *Speaker) EnablePlayback() {
	s.playback = true
}

// SpeakToURL synthesizes text, saves the clip, and returns the URL path
// clients can fetch it from.
func (s *Speaker) SpeakToURL(ctx context.Context, text string) (string, error) {
	if s.synth == nil || s.clips == nil || text == "" {
		return "", nil
	}

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.record("error")
		return "", err
	}
	s.record("ok")

	name, err := s.clips.Save(text, audio)
	if err != nil {
		return "", err
	}

	if s.playback {
		go s.play(filepath.Join(s.clips.Dir(), name))
	}
	return ClipURLPrefix + name, nil
}

func (s *Speaker) record(status string) {
	if s.metrics != nil {
		s.metrics.SpeechRequest("tts", s.synth.Provider(), status)
	}
}

// play runs a local audio player when one is installed. Failures only
// log; playback is never load-bearing.
func (s *Speaker) play(path string) {
	bin, args := playerCommand()
	if bin == "" {
		return
	}
	cmd := exec.Command(bin, append(args, path)...)
	if err := cmd.Run(); err != nil {
		s.logger.WithFields(logrus.Fields{
			"player": bin,
			"error":  err.Error(),
		}).Warn("Local playback failed")
	}
}

func playerCommand() (string, []string) {
	candidates := []struct {
		bin  string
		args []string
	}{
		{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
		{"mpg123", []string{"-q"}},
		{"afplay", nil},
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c.bin); err == nil {
			return c.bin, c.args
		}
	}
	return "", nil
}
