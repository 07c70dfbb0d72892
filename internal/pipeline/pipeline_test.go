package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/executors"
	"github.com/your-org/gaze-engine/internal/stages"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResumeFrom_NoPriorStage(t *testing.T) {
	list := []stages.Stage{stages.ExtractingFrames, stages.Embedding, stages.Detecting}
	assert.Equal(t, list, resumeFrom(list, nil, true))

	empty := ""
	assert.Equal(t, list, resumeFrom(list, &empty, true))
}

func TestResumeFrom_ResumesAfterLastCompleted(t *testing.T) {
	list := []stages.Stage{stages.ExtractingFrames, stages.Embedding, stages.Detecting, stages.DetectingFaces}
	last := string(stages.Embedding)
	got := resumeFrom(list, &last, true)
	assert.Equal(t, []stages.Stage{stages.Detecting, stages.DetectingFaces}, got)
}

func TestResumeFrom_LastStageRestartsWhenNoArtifacts(t *testing.T) {
	list := []stages.Stage{stages.ExtractingFrames, stages.Embedding, stages.Detecting}
	last := string(stages.ExtractingFrames)
	got := resumeFrom(list, &last, false)
	assert.Equal(t, list, got, "missing frame artifacts should restart from the top")
}

func TestResumeFrom_ExtractingFramesTrustedWhenArtifactsPresent(t *testing.T) {
	list := []stages.Stage{stages.ExtractingFrames, stages.Embedding, stages.Detecting}
	last := string(stages.ExtractingFrames)
	got := resumeFrom(list, &last, true)
	assert.Equal(t, []stages.Stage{stages.Embedding, stages.Detecting}, got)
}

func TestResumeFrom_UnknownStageRestartsFromTop(t *testing.T) {
	list := []stages.Stage{stages.ExtractingFrames, stages.Embedding}
	bogus := "SOME_REMOVED_STAGE"
	got := resumeFrom(list, &bogus, true)
	assert.Equal(t, list, got)
}

func TestResumeFrom_LastStageInListResumesEmpty(t *testing.T) {
	list := []stages.Stage{stages.ExtractingFrames, stages.Embedding}
	last := string(stages.Embedding)
	got := resumeFrom(list, &last, true)
	assert.Empty(t, got)
}

func TestClassifyStageErr_MapsEachStageToItsTaxonomyCode(t *testing.T) {
	cases := []struct {
		stage stages.Stage
		want  catalogmodel.ErrorCode
	}{
		{stages.ExtractingAudio, catalogmodel.ErrFFmpeg},
		{stages.Transcribing, catalogmodel.ErrTranscription},
		{stages.ExtractingFrames, catalogmodel.ErrFFmpeg},
		{stages.Embedding, catalogmodel.ErrEmbedding},
		{stages.Detecting, catalogmodel.ErrDetection},
		{stages.DetectingFaces, catalogmodel.ErrFaceDetection},
	}
	for _, c := range cases {
		code, msg := classifyStageErr(c.stage, errors.New("boom"))
		assert.Equal(t, c.want, code, "stage %s", c.stage)
		assert.Equal(t, "boom", msg)
	}
}

func TestClassifyStageErr_FileNotFoundOverridesStageDefault(t *testing.T) {
	code, _ := classifyStageErr(stages.Embedding, os.ErrNotExist)
	assert.Equal(t, catalogmodel.ErrFileNotFound, code)
}

func TestIsBusyMessage(t *testing.T) {
	assert.True(t, isBusyMessage(errors.New("database is locked")))
	assert.True(t, isBusyMessage(errors.New("sqlite: SQLITE_BUSY: database is locked")))
	assert.False(t, isBusyMessage(errors.New("no such table: faces")))
}

func TestWrapRequeueable(t *testing.T) {
	p := &Pipeline{}
	assert.Nil(t, p.wrapRequeueable(nil))
	assert.ErrorIs(t, p.wrapRequeueable(errors.New("database is locked")), ErrRequeue)

	other := errors.New("disk full")
	assert.Equal(t, other, p.wrapRequeueable(other))
}

func TestSubdivideSpans_SplitsLongSpan(t *testing.T) {
	spans := []executors.SilenceSegment{{StartSeconds: 0, EndSeconds: 75}}
	got := subdivideSpans(spans, 30)
	require.Len(t, got, 3)
	assert.InDelta(t, 0, got[0].StartSeconds, 0.001)
	assert.InDelta(t, 30, got[0].EndSeconds, 0.001)
	assert.InDelta(t, 30, got[1].StartSeconds, 0.001)
	assert.InDelta(t, 60, got[1].EndSeconds, 0.001)
	assert.InDelta(t, 60, got[2].StartSeconds, 0.001)
	assert.InDelta(t, 75, got[2].EndSeconds, 0.001)
}

func TestSubdivideSpans_ShortSpanPassesThroughUnchanged(t *testing.T) {
	spans := []executors.SilenceSegment{{StartSeconds: 5, EndSeconds: 12}}
	got := subdivideSpans(spans, 30)
	require.Len(t, got, 1)
	assert.Equal(t, spans[0], got[0])
}

func TestSubdivideSpans_ZeroMaxReturnsInputUnchanged(t *testing.T) {
	spans := []executors.SilenceSegment{{StartSeconds: 0, EndSeconds: 100}}
	got := subdivideSpans(spans, 0)
	assert.Equal(t, spans, got)
}

func TestColorsPtr(t *testing.T) {
	assert.Nil(t, colorsPtr(nil))
	assert.Nil(t, colorsPtr([]string{}))

	got := colorsPtr([]string{"blue", "white"})
	require.NotNil(t, got)
	assert.Equal(t, "blue,white", *got)
}

func TestClassifyLoadErr(t *testing.T) {
	assert.Nil(t, classifyLoadErr(nil, "anything", testLogger()))
	assert.Nil(t, classifyLoadErr(executors.ErrModelMissing, "object detector", testLogger()))

	err := classifyLoadErr(errors.New("corrupt onnx graph"), "face embedder", testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "face embedder")
}
