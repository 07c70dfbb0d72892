package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// TranscriptSegment is one timed chunk of recognized speech.
type TranscriptSegment struct {
	StartMs int64
	EndMs   int64
	Text    string
}

// Transcriber turns a WAV file into timed text. The production
// implementation shells out to a whisper.cpp-family CLI binary rather
// than hosting the encoder/decoder loop in-process: whisper is a
// sequence-to-sequence model with a beam-search decode loop that ONNX
// Runtime's single Run() call per session (the shape every other
// executor in this package uses) doesn't fit cleanly, and the CLI
// already ships the model-format handling this engine otherwise has no
// use for.
type Transcriber struct {
	binaryPath string
	modelPath  string
	language   string
}

// NewTranscriber returns a Transcriber that invokes binaryPath (a
// whisper.cpp-compatible executable) against modelPath for every
// segment. language may be empty for auto-detection.
func NewTranscriber(binaryPath, modelPath, language string) (*Transcriber, error) {
	if err := requireModelFile(modelPath); err != nil {
		return nil, err
	}
	return &Transcriber{binaryPath: binaryPath, modelPath: modelPath, language: language}, nil
}

type whisperCLISegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperCLIOutput struct {
	Transcription []whisperCLISegment `json:"transcription"`
}

// Transcribe runs the backend over a single WAV file and returns its
// segments with timestamps offset by offsetMs, so callers processing
// one VAD-bounded chunk at a time can splice results back onto the
// full track's timeline.
func (t *Transcriber) Transcribe(ctx context.Context, wavPath string, offsetMs int64) ([]TranscriptSegment, error) {
	outDir, err := os.MkdirTemp("", "gaze-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("transcribe: temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	outPrefix := filepath.Join(outDir, "out")
	args := []string{
		"-m", t.modelPath,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"-np",
	}
	if t.language != "" {
		args = append(args, "-l", t.language)
	} else {
		args = append(args, "-l", "auto")
	}

	cmd := exec.CommandContext(ctx, t.binaryPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w: %s", err, lastLines(out, 10))
	}

	data, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("transcribe: read output: %w", err)
	}

	var parsed whisperCLIOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("transcribe: parse output: %w", err)
	}

	segments := make([]TranscriptSegment, 0, len(parsed.Transcription))
	for _, s := range parsed.Transcription {
		if s.Text == "" {
			continue
		}
		segments = append(segments, TranscriptSegment{
			StartMs: offsetMs + int64(s.Start*1000),
			EndMs:   offsetMs + int64(s.End*1000),
			Text:    s.Text,
		})
	}
	return segments, nil
}

// TranscribeWithVAD splits audioPath into its non-silent segments
// before transcribing each one, skipping long stretches of dead air
// instead of feeding the whole track through in one pass.
func (t *Transcriber) TranscribeWithVAD(ctx context.Context, audioPath string, durationSeconds float64, minSilenceMs, silenceThresholdDB int) ([]TranscriptSegment, error) {
	spans := DetectNonSilentSegments(ctx, audioPath, minSilenceMs, silenceThresholdDB, durationSeconds)
	if len(spans) == 0 {
		return t.Transcribe(ctx, audioPath, 0)
	}

	tmpDir, err := os.MkdirTemp("", "gaze-vad-*")
	if err != nil {
		return nil, fmt.Errorf("transcribe with vad: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var all []TranscriptSegment
	for i, span := range spans {
		chunkPath := filepath.Join(tmpDir, fmt.Sprintf("chunk_%04d.wav", i))
		if err := ExtractAudioSegment(ctx, audioPath, chunkPath, span.StartSeconds, span.EndSeconds); err != nil {
			return nil, fmt.Errorf("transcribe with vad: segment %d: %w", i, err)
		}
		offsetMs := int64(span.StartSeconds * 1000)
		segs, err := t.Transcribe(ctx, chunkPath, offsetMs)
		if err != nil {
			return nil, fmt.Errorf("transcribe with vad: segment %d: %w", i, err)
		}
		all = append(all, segs...)
	}
	return all, nil
}
