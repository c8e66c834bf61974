package jobs

import (
	"lunara/internal/speech"
)

// ClipSweeper removes synthesized audio files past their TTL, including
// ones left over from a previous run.
type ClipSweeper struct {
	clips *speech.ClipStore
}

func NewClipSweeper(clips *speech.ClipStore) *ClipSweeper {
	return &ClipSweeper{clips: clips}
}

func (j *ClipSweeper) Run() {
	if j.clips != nil {
		j.clips.Sweep()
	}
}
