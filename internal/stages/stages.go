// Package stages decides, for a media item, the ordered list of
// pipeline stages it must pass through. It is
// a pure decision function with no I/O, kept separate from
// internal/pipeline so the stage list can be unit tested without a
// catalog or executors.
package stages

import "github.com/your-org/gaze-engine/internal/catalogmodel"

// Stage is one step of a media item's indexing state machine. Each
// value matches the corresponding catalogmodel.Status the item takes
// on while that stage runs.
type Stage string

const (
	ExtractingAudio  Stage = "EXTRACTING_AUDIO"
	Transcribing     Stage = "TRANSCRIBING"
	ExtractingFrames Stage = "EXTRACTING_FRAMES"
	Embedding        Stage = "EMBEDDING"
	Detecting        Stage = "DETECTING"
	DetectingFaces   Stage = "DETECTING_FACES"
)

// Status returns the catalogmodel.Status a media row takes on while
// this stage is running.
func (s Stage) Status() catalogmodel.Status {
	return catalogmodel.Status(s)
}

// For returns the primary stage list for a media item, given its type
// and the active indexing preset and face-recognition setting.
// Enhanced stages (EXTRACTING_AUDIO, TRANSCRIBING) are never part of
// the primary list — they are scheduled separately by the caller once
// the primary list reaches DONE.
func For(mediaType catalogmodel.MediaType, preset catalogmodel.IndexingPreset, faceRecognitionEnabled bool) []Stage {
	if preset == catalogmodel.PresetQuick {
		return []Stage{ExtractingFrames, Embedding}
	}

	deep := []Stage{ExtractingFrames, Embedding, Detecting, DetectingFaces}
	if !faceRecognitionEnabled {
		deep = deep[:len(deep)-1]
	}
	return deep
}

// Enhanced returns the background stage list scheduled after a video
// deep-preset item reaches DONE. Photos and quick-preset videos never
// run enhanced stages.
func Enhanced(mediaType catalogmodel.MediaType, preset catalogmodel.IndexingPreset) []Stage {
	if mediaType == catalogmodel.MediaVideo && preset == catalogmodel.PresetDeep {
		return []Stage{ExtractingAudio, Transcribing}
	}
	return nil
}

// IndexOf returns the position of target within stages, or -1 if not
// present.
func IndexOf(list []Stage, target Stage) int {
	for i, s := range list {
		if s == target {
			return i
		}
	}
	return -1
}
