package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/executors"
	"github.com/your-org/gaze-engine/internal/stages"
	"github.com/your-org/gaze-engine/internal/vecmath"
)

// runStage dispatches to each stage's own implementation. Each stage
// is responsible for its own persistence; runStage only routes.
func (p *Pipeline) runStage(ctx context.Context, media *catalogmodel.MediaItem, job *catalogmodel.Job, stage stages.Stage) error {
	switch stage {
	case stages.ExtractingAudio:
		return p.stageExtractAudio(ctx, media)
	case stages.Transcribing:
		return p.stageTranscribe(ctx, media, job)
	case stages.ExtractingFrames:
		return p.stageExtractFrames(ctx, media)
	case stages.Embedding:
		return p.stageEmbed(ctx, media)
	case stages.Detecting:
		return p.stageDetect(ctx, media)
	case stages.DetectingFaces:
		return p.stageDetectFaces(ctx, media)
	default:
		return fmt.Errorf("pipeline: unknown stage %q", stage)
	}
}

// stageExtractAudio produces a mono 16kHz WAV at the deterministic
// temp path, treating a stale zero-byte leftover as absent.
func (p *Pipeline) stageExtractAudio(ctx context.Context, media *catalogmodel.MediaItem) error {
	path := p.artifacts.TempAudioPath(media.MediaID)
	if info, err := os.Stat(path); err == nil && info.Size() == 0 {
		os.Remove(path)
	}
	if err := executors.ExtractAudio(ctx, media.Path, path); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("extract audio: output missing or empty")
	}
	return nil
}

// stageTranscribe implements the VAD-bounded chunking contract
// directly (rather than delegating to Transcriber.TranscribeWithVAD)
// so it can emit the per-chunk mid-stage progress is required and
// apply the exact 0.5s minimum chunk duration.
func (p *Pipeline) stageTranscribe(ctx context.Context, media *catalogmodel.MediaItem, job *catalogmodel.Job) error {
	if p.transcriber == nil {
		p.log.Warn("no transcription model loaded, skipping stage", "media_id", media.MediaID)
		return nil
	}

	audioPath := p.artifacts.TempAudioPath(media.MediaID)
	if _, err := os.Stat(audioPath); err != nil {
		p.log.Warn("audio missing at transcribing, re-extracting", "media_id", media.MediaID)
		if err := p.stageExtractAudio(ctx, media); err != nil {
			return fmt.Errorf("transcribe: re-extract audio: %w", err)
		}
	}

	durationSeconds := 0.0
	if media.DurationMs != nil {
		durationSeconds = float64(*media.DurationMs) / 1000.0
	}

	minSilenceMs := settingInt(ctx, p.store, "transcription_min_silence_ms", defaultMinSilenceMs)
	silenceDB := settingInt(ctx, p.store, "transcription_silence_threshold_db", defaultSilenceDB)
	chunkSeconds := settingFloat(ctx, p.store, "transcription_chunk_seconds", defaultTranscribeChunk)
	vadEnabled := settingBool(ctx, p.store, "transcription_vad_enabled", true)

	var spans []executors.SilenceSegment
	if vadEnabled {
		spans = executors.DetectNonSilentSegments(ctx, audioPath, minSilenceMs, silenceDB, durationSeconds)
	}
	if len(spans) == 0 {
		end := durationSeconds
		if end <= 0 {
			end = 1 << 30 // unknown duration: let ffmpeg -to clamp to EOF
		}
		spans = []executors.SilenceSegment{{StartSeconds: 0, EndSeconds: end}}
	}
	chunks := subdivideSpans(spans, chunkSeconds)

	tmpDir, err := os.MkdirTemp("", "gaze-chunks-*")
	if err != nil {
		return fmt.Errorf("transcribe: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var segments []catalogmodel.TranscriptSegment
	for i, chunk := range chunks {
		if chunk.EndSeconds-chunk.StartSeconds < 0.5 {
			continue
		}
		chunkPath := filepath.Join(tmpDir, fmt.Sprintf("chunk_%04d.wav", i))
		if err := executors.ExtractAudioSegment(ctx, audioPath, chunkPath, chunk.StartSeconds, chunk.EndSeconds); err != nil {
			p.log.Warn("chunk extraction failed, skipping", "media_id", media.MediaID, "chunk", i, "error", err)
			continue
		}
		offsetMs := int64(chunk.StartSeconds * 1000)
		segs, err := p.transcriber.Transcribe(ctx, chunkPath, offsetMs)
		if err != nil {
			p.log.Warn("chunk transcription failed, skipping", "media_id", media.MediaID, "chunk", i, "error", err)
			continue
		}
		for _, s := range segs {
			segments = append(segments, catalogmodel.TranscriptSegment{
				VideoID: media.MediaID,
				StartMs: s.StartMs,
				EndMs:   s.EndMs,
				Text:    s.Text,
			})
		}

		progress := float64(i+1) / float64(len(chunks))
		p.emit.Emit(Event{MediaID: media.MediaID, JobID: job.JobID, Stage: string(stages.Transcribing), Status: catalogmodel.StatusTranscribing, Progress: progress, Message: fmt.Sprintf("chunk %d/%d", i+1, len(chunks))})
	}

	if err := p.store.DeleteTranscriptSegments(ctx, media.MediaID); err != nil {
		return p.wrapRequeueable(fmt.Errorf("transcribe: delete prior segments: %w", err))
	}
	if err := p.store.CreateTranscriptSegments(ctx, segments); err != nil {
		return p.wrapRequeueable(fmt.Errorf("transcribe: persist segments: %w", err))
	}
	return nil
}

// subdivideSpans splits every non-silent span longer than maxSeconds
// into consecutive sub-chunks no longer than maxSeconds each.
func subdivideSpans(spans []executors.SilenceSegment, maxSeconds float64) []executors.SilenceSegment {
	if maxSeconds <= 0 {
		return spans
	}
	var out []executors.SilenceSegment
	for _, span := range spans {
		start := span.StartSeconds
		for start < span.EndSeconds {
			end := start + maxSeconds
			if end > span.EndSeconds {
				end = span.EndSeconds
			}
			out = append(out, executors.SilenceSegment{StartSeconds: start, EndSeconds: end})
			start = end
		}
	}
	return out
}

// stageExtractFrames produces one thumbnail per photo or one JPEG per
// frame_interval_seconds for a video, plus a grid thumbnail derived
// from the first frame.
func (p *Pipeline) stageExtractFrames(ctx context.Context, media *catalogmodel.MediaItem) error {
	quality := settingInt(ctx, p.store, "thumbnail_quality", defaultThumbQuality)
	preset := executors.ThumbnailPresetFull
	preset.Quality = quality

	var frames []catalogmodel.Frame

	if media.MediaType == catalogmodel.MediaPhoto {
		data, err := executors.BuildThumbnail(media.Path, preset)
		if err != nil {
			return fmt.Errorf("extract frames: %w", err)
		}
		framePath := p.artifacts.FramePath(media.MediaID, 1)
		if err := artifacts.WriteFile(framePath, data); err != nil {
			return fmt.Errorf("extract frames: write: %w", err)
		}
		colors, err := executors.QuantizeColors(framePath, 5)
		if err != nil {
			p.log.Warn("color extraction failed", "media_id", media.MediaID, "error", err)
			colors = nil
		}
		frames = append(frames, catalogmodel.Frame{
			FrameID:       uuid.NewString(),
			VideoID:       media.MediaID,
			FrameIndex:    1,
			TimestampMs:   0,
			ThumbnailPath: framePath,
			Colors:        colorsPtr(colors),
		})
		if grid, err := executors.BuildThumbnail(media.Path, executors.ThumbnailPresetGrid); err != nil {
			p.log.Warn("grid thumbnail failed", "media_id", media.MediaID, "error", err)
		} else if err := artifacts.WriteFile(p.artifacts.GridPath(media.MediaID), grid); err != nil {
			p.log.Warn("grid thumbnail write failed", "media_id", media.MediaID, "error", err)
		}
	} else {
		interval := settingFloat(ctx, p.store, "frame_interval_seconds", defaultFrameInterval)
		outputDir := p.artifacts.ThumbnailDir(media.MediaID)
		paths, err := executors.ExtractFrames(ctx, media.Path, outputDir, interval)
		if err != nil {
			return fmt.Errorf("extract frames: %w", err)
		}
		sort.Strings(paths)
		for i, path := range paths {
			idx, err := executors.FrameIndexFromPath(path)
			if err != nil {
				continue
			}
			colors, err := executors.QuantizeColors(path, 5)
			if err != nil {
				p.log.Warn("color extraction failed", "media_id", media.MediaID, "frame", idx, "error", err)
				colors = nil
			}
			frames = append(frames, catalogmodel.Frame{
				FrameID:       uuid.NewString(),
				VideoID:       media.MediaID,
				FrameIndex:    idx,
				TimestampMs:   int64(float64(idx-1) * interval * 1000),
				ThumbnailPath: path,
				Colors:        colorsPtr(colors),
			})
			if i == 0 {
				if grid, err := executors.BuildThumbnail(path, executors.ThumbnailPresetGrid); err != nil {
					p.log.Warn("grid thumbnail failed", "media_id", media.MediaID, "error", err)
				} else if err := artifacts.WriteFile(p.artifacts.GridPath(media.MediaID), grid); err != nil {
					p.log.Warn("grid thumbnail write failed", "media_id", media.MediaID, "error", err)
				}
			}
		}
	}

	if err := p.store.ReplaceFrames(ctx, media.MediaID, frames); err != nil {
		return p.wrapRequeueable(fmt.Errorf("extract frames: persist: %w", err))
	}
	return nil
}

func colorsPtr(colors []string) *string {
	if len(colors) == 0 {
		return nil
	}
	joined := strings.Join(colors, ",")
	return &joined
}

// stageEmbed produces a unit-norm embedding per frame and assembles
// the item's vector shard, indexed by frame_index.
func (p *Pipeline) stageEmbed(ctx context.Context, media *catalogmodel.MediaItem) error {
	if p.imageEmbedder == nil {
		p.log.Warn("no image embedding model loaded, skipping stage", "media_id", media.MediaID)
		return nil
	}

	frames, err := p.store.ListFramesByMedia(ctx, media.MediaID)
	if err != nil {
		return fmt.Errorf("embed: list frames: %w", err)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].FrameIndex < frames[j].FrameIndex })

	w, h := p.imageEmbedder.VisionInputSize()
	builder := artifacts.NewShardBuilder(p.artifacts.ShardPath(media.MediaID))
	for _, f := range frames {
		img, err := executors.DecodeImage(f.ThumbnailPath)
		if err != nil {
			return fmt.Errorf("embed: decode frame %d: %w", f.FrameIndex, err)
		}
		pixels := executors.PreprocessForImageEmbed(img, w, h)
		emb, err := p.imageEmbedder.EmbedImage(pixels)
		if err != nil {
			return fmt.Errorf("embed: frame %d: %w", f.FrameIndex, err)
		}
		if err := builder.Add(emb); err != nil {
			return fmt.Errorf("embed: shard add frame %d: %w", f.FrameIndex, err)
		}
	}
	if err := builder.Finish(); err != nil {
		return fmt.Errorf("embed: finish shard: %w", err)
	}
	p.shards.Invalidate(media.MediaID)
	return nil
}

// stageDetect runs the object detector over every frame and replaces
// the item's detection rows in one transaction.
func (p *Pipeline) stageDetect(ctx context.Context, media *catalogmodel.MediaItem) error {
	if p.objectDetector == nil {
		p.log.Warn("no object detection model loaded, skipping stage", "media_id", media.MediaID)
		return nil
	}

	frames, err := p.store.ListFramesByMedia(ctx, media.MediaID)
	if err != nil {
		return fmt.Errorf("detect: list frames: %w", err)
	}

	w, h := p.objectDetector.InputSize()
	var dets []catalogmodel.Detection
	for _, f := range frames {
		img, err := executors.DecodeImage(f.ThumbnailPath)
		if err != nil {
			return fmt.Errorf("detect: decode frame %d: %w", f.FrameIndex, err)
		}
		bounds := img.Bounds()
		pixels := executors.PreprocessForDetection(img, w, h)
		found, err := p.objectDetector.Detect(pixels, bounds.Dx(), bounds.Dy())
		if err != nil {
			return fmt.Errorf("detect: frame %d: %w", f.FrameIndex, err)
		}
		for _, d := range found {
			if float64(d.Confidence) < detectionMinConfidence {
				continue
			}
			dets = append(dets, catalogmodel.Detection{
				DetectionID: uuid.NewString(),
				VideoID:     media.MediaID,
				FrameID:     f.FrameID,
				TimestampMs: f.TimestampMs,
				Label:       d.Label,
				Confidence:  float64(d.Confidence),
				BBox: &catalogmodel.BBox{
					X: float64(d.BBox[0]), Y: float64(d.BBox[1]),
					W: float64(d.BBox[2] - d.BBox[0]), H: float64(d.BBox[3] - d.BBox[1]),
				},
			})
		}
	}

	if err := p.store.ReplaceDetections(ctx, media.MediaID, dets); err != nil {
		return p.wrapRequeueable(fmt.Errorf("detect: persist: %w", err))
	}
	return nil
}

// stageDetectFaces detects faces per frame, embeds and scores each
// against the person catalog, and replaces the item's face rows.
func (p *Pipeline) stageDetectFaces(ctx context.Context, media *catalogmodel.MediaItem) error {
	if p.faceDetector == nil || p.faceEmbedder == nil {
		p.log.Warn("no face model loaded, skipping stage", "media_id", media.MediaID)
		return nil
	}
	if err := p.matcher.Reload(ctx); err != nil {
		p.log.Warn("face matcher reload failed, auto-recognition disabled this run", "media_id", media.MediaID, "error", err)
	}

	frames, err := p.store.ListFramesByMedia(ctx, media.MediaID)
	if err != nil {
		return fmt.Errorf("detect faces: list frames: %w", err)
	}

	detW, detH := p.faceDetector.InputSize()
	embW, embH := p.faceEmbedder.InputSize()
	var attrW, attrH int
	if p.attrPredictor != nil {
		attrW, attrH = p.attrPredictor.InputSize()
	}

	var allFaces []catalogmodel.Face
	for _, f := range frames {
		img, err := executors.DecodeImage(f.ThumbnailPath)
		if err != nil {
			return fmt.Errorf("detect faces: decode frame %d: %w", f.FrameIndex, err)
		}
		bounds := img.Bounds()
		pixels := executors.PreprocessForDetection(img, detW, detH)
		found, err := p.faceDetector.Detect(pixels, bounds.Dx(), bounds.Dy())
		if err != nil {
			return fmt.Errorf("detect faces: frame %d: %w", f.FrameIndex, err)
		}

		for _, fd := range found {
			w := fd.BBox[2] - fd.BBox[0]
			h := fd.BBox[3] - fd.BBox[1]
			if w < minFaceSidePx || h < minFaceSidePx {
				continue
			}

			crop := executors.CropBBox(img, fd.BBox, faceCropPadding)
			if crop == nil {
				continue
			}
			square := imaging.Resize(crop, embW, embH, imaging.Lanczos)

			embPixels := executors.PreprocessForEmbedding(square, embW, embH)
			embedding, err := p.faceEmbedder.Extract(embPixels)
			if err != nil {
				p.log.Warn("face embedding failed, skipping face", "media_id", media.MediaID, "frame", f.FrameIndex, "error", err)
				continue
			}
			encoded, err := vecmath.Encode(embedding)
			if err != nil {
				continue
			}

			face := catalogmodel.Face{
				FaceID:      uuid.NewString(),
				VideoID:     media.MediaID,
				FrameID:     f.FrameID,
				TimestampMs: f.TimestampMs,
				BBox: catalogmodel.BBox{
					X: float64(fd.BBox[0]), Y: float64(fd.BBox[1]), W: float64(w), H: float64(h),
				},
				Confidence: float64(fd.Confidence),
				Embedding:  encoded,
			}

			if p.attrPredictor != nil {
				attrSquare := square
				if attrW != embW || attrH != embH {
					attrSquare = imaging.Resize(crop, attrW, attrH, imaging.Lanczos)
				}
				attrPixels := executors.PreprocessForAttributes(attrSquare, attrW, attrH)
				if ga, err := p.attrPredictor.Predict(attrPixels); err == nil {
					age := ga.Age
					face.Age = &age
					face.Gender = &ga.Gender
				} else {
					p.log.Warn("attribute prediction failed", "media_id", media.MediaID, "frame", f.FrameIndex, "error", err)
				}
			}

			cropPath := p.artifacts.FacePath(media.MediaID, face.FaceID)
			if err := artifacts.WriteFile(cropPath, executors.EncodeJPEG(square, 90)); err != nil {
				p.log.Warn("face crop write failed", "media_id", media.MediaID, "error", err)
			} else {
				face.CropPath = cropPath
			}

			if match := p.matcher.Recognize(embedding); match != nil {
				personID := match.PersonID
				conf := float64(match.Confidence)
				face.PersonID = &personID
				face.AssignmentConfidence = &conf
				face.AssignmentSource = catalogmodel.AssignmentAuto
			}

			allFaces = append(allFaces, face)
		}
	}

	if err := p.store.ReplaceFaces(ctx, media.MediaID, allFaces, nowMs()); err != nil {
		return p.wrapRequeueable(fmt.Errorf("detect faces: persist: %w", err))
	}
	return nil
}
