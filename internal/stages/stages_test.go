package stages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

func TestForPhotoQuick(t *testing.T) {
	list := For(catalogmodel.MediaPhoto, catalogmodel.PresetQuick, true)
	require.Equal(t, []Stage{ExtractingFrames, Embedding}, list)
}

func TestForPhotoDeepWithFaces(t *testing.T) {
	list := For(catalogmodel.MediaPhoto, catalogmodel.PresetDeep, true)
	require.Equal(t, []Stage{ExtractingFrames, Embedding, Detecting, DetectingFaces}, list)
}

func TestForDeepWithoutFaceRecognition(t *testing.T) {
	list := For(catalogmodel.MediaVideo, catalogmodel.PresetDeep, false)
	require.Equal(t, []Stage{ExtractingFrames, Embedding, Detecting}, list)
}

func TestForVideoQuickHasNoEnhancedStages(t *testing.T) {
	list := For(catalogmodel.MediaVideo, catalogmodel.PresetQuick, true)
	require.Equal(t, []Stage{ExtractingFrames, Embedding}, list)
	require.Nil(t, Enhanced(catalogmodel.MediaVideo, catalogmodel.PresetQuick))
}

func TestEnhancedOnlyForVideoDeep(t *testing.T) {
	require.Equal(t, []Stage{ExtractingAudio, Transcribing}, Enhanced(catalogmodel.MediaVideo, catalogmodel.PresetDeep))
	require.Nil(t, Enhanced(catalogmodel.MediaPhoto, catalogmodel.PresetDeep))
}

func TestIndexOf(t *testing.T) {
	list := []Stage{ExtractingFrames, Embedding, Detecting}
	require.Equal(t, 1, IndexOf(list, Embedding))
	require.Equal(t, -1, IndexOf(list, DetectingFaces))
}
