package speech

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ClipStore writes synthesized clips to disk and remembers recent text
// so repeated prompts reuse the same file instead of calling the
// synthesizer's output path twice. Index entries expire with the clip
// TTL and take the file on disk with them.
type ClipStore struct {
	dir    string
	ttl    time.Duration
	index  *cache.Cache // text -> filename
	logger *logrus.Logger
}

func NewClipStore(dir string, ttl time.Duration) (*ClipStore, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	s := &ClipStore{
		dir:    dir,
		ttl:    ttl,
		index:  cache.New(ttl, 10*time.Minute),
		logger: newLogger(),
	}
	s.index.OnEvicted(func(key string, value interface{}) {
		name, ok := value.(string)
		if !ok {
			return
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			s.logger.WithFields(logrus.Fields{"file": name, "error": err.Error()}).Warn("Failed to remove expired clip")
		}
	})
	return s, nil
}

// Dir returns the directory clips are written to.
func (s *ClipStore) Dir() string { return s.dir }

// Save writes an mp3 clip and returns its public file name. Identical
// text within the TTL reuses the existing clip.
func (s *ClipStore) Save(text string, audio []byte) (string, error) {
	if cached, ok := s.index.Get(text); ok {
		name := cached.(string)
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			return name, nil
		}
		s.index.Delete(text)
	}

	name := fmt.Sprintf("response_%s.mp3", uuid.New().String())
	if err := os.WriteFile(filepath.Join(s.dir, name), audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write clip: %w", err)
	}
	s.index.Set(text, name, cache.DefaultExpiration)

	s.logger.WithFields(logrus.Fields{
		"file":  name,
		"bytes": len(audio),
	}).Info("Saved audio clip")
	return name, nil
}

// Resolve maps a requested clip name to its on-disk path, rejecting
// anything that is not a bare mp3 file name inside the clip directory.
func (s *ClipStore) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".mp3") {
		return "", fmt.Errorf("invalid clip name %q", name)
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// Sweep deletes clips on disk older than the TTL. It covers files the
// index no longer tracks, such as clips left over from a restart.
func (s *ClipStore) Sweep() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.WithField("error", err.Error()).Warn("Clip sweep failed")
		return 0
	}

	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil || os.IsNotExist(err) {
				removed++
			}
		}
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("Swept expired audio clips")
	}
	return removed
}
