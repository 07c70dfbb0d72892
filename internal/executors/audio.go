package executors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// SilenceSegment is a contiguous non-silent span of audio, in seconds
// from the start of the clip.
type SilenceSegment struct {
	StartSeconds float64
	EndSeconds   float64
}

// ExtractAudio demuxes the audio track of a media file to a 16kHz mono
// PCM WAV, the format the transcription backend expects.
func ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outputPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg audio extraction: %w: %s", err, lastLines(out, 5))
	}
	if _, statErr := os.Stat(outputPath); statErr != nil {
		return fmt.Errorf("ffmpeg audio extraction: output not created: %w", statErr)
	}
	return nil
}

// ExtractAudioSegment cuts [startSeconds, endSeconds) of an existing WAV
// file into a new 16kHz mono WAV, used to feed one VAD-bounded chunk to
// the transcriber without re-running ffmpeg over the whole track.
func ExtractAudioSegment(ctx context.Context, inputPath, outputPath string, startSeconds, endSeconds float64) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-ss", fmt.Sprintf("%.3f", startSeconds),
		"-to", fmt.Sprintf("%.3f", endSeconds),
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outputPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg segment extraction: %w: %s", err, lastLines(out, 5))
	}
	return nil
}

// DetectNonSilentSegments runs ffmpeg's silencedetect filter and
// inverts the reported silence spans into the non-silent segments a
// transcriber should actually process, skipping dead air in voice
// recordings. minSilenceMs below 100 is floored to 100.
func DetectNonSilentSegments(ctx context.Context, audioPath string, minSilenceMs int, silenceThresholdDB int, durationSeconds float64) []SilenceSegment {
	if minSilenceMs < 100 {
		minSilenceMs = 100
	}
	minSilenceS := float64(minSilenceMs) / 1000.0

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", audioPath,
		"-af", fmt.Sprintf("silencedetect=noise=%ddB:d=%.3f", silenceThresholdDB, minSilenceS),
		"-f", "null",
		"-",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		// ffmpeg -f null exits nonzero on some inputs even when
		// silencedetect produced usable stderr output; keep going.
		slog.Warn("silencedetect exited with error", "error", err)
	}

	return parseSilenceOutput(string(out), durationSeconds)
}

// parseSilenceOutput inverts ffmpeg silencedetect's stderr lines into
// the non-silent spans between them, split out from
// DetectNonSilentSegments so the parsing logic can be tested without
// an ffmpeg binary.
func parseSilenceOutput(output string, durationSeconds float64) []SilenceSegment {
	var starts, ends []float64
	for _, line := range strings.Split(output, "\n") {
		if idx := strings.Index(line, "silence_start:"); idx >= 0 {
			v := strings.TrimSpace(line[idx+len("silence_start:"):])
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				starts = append(starts, f)
			}
		} else if idx := strings.Index(line, "silence_end:"); idx >= 0 {
			v := strings.TrimSpace(line[idx+len("silence_end:"):])
			if pipe := strings.Index(v, "|"); pipe >= 0 {
				v = strings.TrimSpace(v[:pipe])
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				ends = append(ends, f)
			}
		}
	}

	var segments []SilenceSegment
	current := 0.0
	for i, start := range starts {
		if start > current {
			segments = append(segments, SilenceSegment{StartSeconds: current, EndSeconds: start})
		}
		if i < len(ends) && ends[i] > current {
			current = ends[i]
		}
	}
	if current < durationSeconds {
		segments = append(segments, SilenceSegment{StartSeconds: current, EndSeconds: durationSeconds})
	}

	filtered := segments[:0]
	for _, s := range segments {
		if s.EndSeconds-s.StartSeconds >= 0.2 {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func lastLines(out []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
