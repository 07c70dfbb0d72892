// Package pipeline runs the per-item resumable indexing state machine:
// stage dispatch, resumption-on-crash, cancellation polling,
// progress/event emission, and the closed failure taxonomy. Its
// detect → track → embed → attrs → match → emit shape is generalized
// from a single live-stream frame handler into a multi-stage,
// resumable, per-media-item loop, carrying the same per-step
// observability.InferenceDuration histogram and warn-and-continue
// model loading stage by stage.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/executors"
	"github.com/your-org/gaze-engine/internal/faces"
	"github.com/your-org/gaze-engine/internal/observability"
	"github.com/your-org/gaze-engine/internal/stages"
)

const (
	detectionMinConfidence = 0.25
	faceDetectThreshold    = 0.5
	minFaceSidePx          = 40.0
	faceCropPadding        = 0.2
	defaultFrameInterval   = 2.0
	defaultThumbQuality    = 85
	defaultTranscribeChunk = 30
	defaultMinSilenceMs    = 500
	defaultSilenceDB       = -35
	shardSearchNoLimit     = 0
)

// Event is one progress/status notification emitted during a run, the
// payload the scheduler forwards onto the WebSocket event bus.
type Event struct {
	MediaID   string
	JobID     string
	Stage     string
	Status    catalogmodel.Status
	Progress  float64
	Message   string
	ErrorCode catalogmodel.ErrorCode
}

// Emitter publishes pipeline events. The scheduler/events package
// implements this over the durable event bus; tests use a recording
// stub.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event, used when no subscriber exists.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// ErrRequeue signals that a stage hit a transient, locally-recovered
// condition (database busy after exhausted retries) and the item
// should return to QUEUED rather than FAIL.
var ErrRequeue = errors.New("pipeline: requeue")

// Config bundles the paths and thread-pool knobs NewPipeline needs to
// load every model.
type Config struct {
	ModelsDir         string
	WhisperBinaryPath string
	IntraOpThreads    int
	InterOpThreads    int
}

// Pipeline holds every loaded model and the catalog/artifact stores a
// run needs. A model field is nil when its weights file was absent at
// load time; the stage that depends on it then logs a warning and
// no-ops rather than failing the item.
type Pipeline struct {
	store     *catalog.Store
	artifacts *artifacts.Store
	shards    *artifacts.ShardCache
	matcher   *faces.Matcher

	imageEmbedder  *executors.ImageEmbedder
	objectDetector *executors.ObjectDetector
	faceDetector   *executors.FaceDetector
	faceEmbedder   *executors.FaceEmbedder
	attrPredictor  *executors.AttributePredictor
	transcriber    *executors.Transcriber

	emit Emitter
	log  *slog.Logger
}

// NewPipeline loads every ONNX model it can find under cfg.ModelsDir
// and the whisper.cpp binary, logging and skipping (not failing) any
// that are absent, the same per-model try/warn/continue shape the
// teacher's NewPipeline uses for its three models, generalized to six.
func NewPipeline(cfg Config, store *catalog.Store, art *artifacts.Store, shards *artifacts.ShardCache, matcher *faces.Matcher, emit Emitter, log *slog.Logger) (*Pipeline, error) {
	if emit == nil {
		emit = NoopEmitter{}
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{store: store, artifacts: art, shards: shards, matcher: matcher, emit: emit, log: log}

	newSessionOptions := func() (*ort.SessionOptions, error) {
		opts, err := ort.NewSessionOptions()
		if err != nil {
			return nil, fmt.Errorf("session options: %w", err)
		}
		if cfg.IntraOpThreads > 0 {
			if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
				opts.Destroy()
				return nil, fmt.Errorf("set intra_op_threads: %w", err)
			}
		}
		if cfg.InterOpThreads > 0 {
			if err := opts.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
				opts.Destroy()
				return nil, fmt.Errorf("set inter_op_threads: %w", err)
			}
		}
		return opts, nil
	}

	objPath := filepath.Join(cfg.ModelsDir, "yolov8.onnx")
	log.Info("loading object detection model", "path", objPath)
	det, err := executors.NewObjectDetector(objPath, 8400, 0.25)
	if loadErr := classifyLoadErr(err, "object detector", log); loadErr != nil {
		return nil, loadErr
	} else if err == nil {
		p.objectDetector = det
	}

	facePath := filepath.Join(cfg.ModelsDir, "scrfd.onnx")
	log.Info("loading face detection model", "path", facePath)
	faceOpts, err := newSessionOptions()
	if err != nil {
		return nil, err
	}
	fd, err := executors.NewFaceDetector(facePath, faceDetectThreshold, faceOpts)
	faceOpts.Destroy()
	if loadErr := classifyLoadErr(err, "face detector", log); loadErr != nil {
		return nil, loadErr
	} else if err == nil {
		p.faceDetector = fd
	}

	faceEmbPath := filepath.Join(cfg.ModelsDir, "arcface.onnx")
	log.Info("loading face embedding model", "path", faceEmbPath)
	fe, err := executors.NewFaceEmbedder(faceEmbPath)
	if loadErr := classifyLoadErr(err, "face embedder", log); loadErr != nil {
		return nil, loadErr
	} else if err == nil {
		p.faceEmbedder = fe
	}

	attrPath := filepath.Join(cfg.ModelsDir, "genderage.onnx")
	log.Info("loading face attribute model", "path", attrPath)
	attrOpts, err := newSessionOptions()
	if err != nil {
		return nil, err
	}
	ap, err := executors.NewAttributePredictor(attrPath, attrOpts)
	attrOpts.Destroy()
	if loadErr := classifyLoadErr(err, "attribute predictor", log); loadErr != nil {
		return nil, loadErr
	} else if err == nil {
		p.attrPredictor = ap
	}

	log.Info("loading CLIP image embedding model", "dir", cfg.ModelsDir)
	ie, err := executors.NewImageEmbedder(cfg.ModelsDir)
	if loadErr := classifyLoadErr(err, "image embedder", log); loadErr != nil {
		return nil, loadErr
	} else if err == nil {
		p.imageEmbedder = ie
	}

	whisperModel := filepath.Join(cfg.ModelsDir, "whisper.bin")
	if cfg.WhisperBinaryPath != "" {
		log.Info("loading transcription model", "path", whisperModel)
		tr, err := executors.NewTranscriber(cfg.WhisperBinaryPath, whisperModel, "")
		if loadErr := classifyLoadErr(err, "transcriber", log); loadErr != nil {
			return nil, loadErr
		} else if err == nil {
			p.transcriber = tr
		}
	}

	log.Info("indexing pipeline ready")
	return p, nil
}

// classifyLoadErr turns a missing-model error into a logged warning
// (nil return, caller leaves the field unset) and any other
// construction failure into a hard startup error.
func classifyLoadErr(err error, name string, log *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, executors.ErrModelMissing) {
		log.Warn("model file missing, stage will no-op", "model", name)
		return nil
	}
	return fmt.Errorf("load %s: %w", name, err)
}

// Close releases every loaded ONNX session.
func (p *Pipeline) Close() {
	if p.objectDetector != nil {
		p.objectDetector.Close()
	}
	if p.faceDetector != nil {
		p.faceDetector.Close()
	}
	if p.faceEmbedder != nil {
		p.faceEmbedder.Close()
	}
	if p.attrPredictor != nil {
		p.attrPredictor.Close()
	}
	if p.imageEmbedder != nil {
		p.imageEmbedder.Close()
	}
}

// --- settings lookups ---

func settingFloat(ctx context.Context, store *catalog.Store, key string, def float64) float64 {
	raw, ok, err := store.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	var v float64
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return def
	}
	return v
}

func settingInt(ctx context.Context, store *catalog.Store, key string, def int) int {
	return int(settingFloat(ctx, store, key, float64(def)))
}

func settingBool(ctx context.Context, store *catalog.Store, key string, def bool) bool {
	raw, ok, err := store.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	var v bool
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return def
	}
	return v
}

func settingString(ctx context.Context, store *catalog.Store, key, def string) string {
	raw, ok, err := store.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	var v string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return strings.Trim(raw, `"`)
	}
	return v
}

// resumeFrom decides where a run should start: EXTRACTING_FRAMES
// requires an artifact existence check because the catalog and the
// filesystem can diverge (e.g. after a "wipe derived" maintenance op);
// every other completed stage is trusted at face value.
func resumeFrom(list []stages.Stage, lastCompleted *string, hasAnyFrame bool) []stages.Stage {
	if lastCompleted == nil || *lastCompleted == "" {
		return list
	}
	last := stages.Stage(*lastCompleted)
	if last == stages.ExtractingFrames && !hasAnyFrame {
		return list
	}
	idx := stages.IndexOf(list, last)
	if idx < 0 {
		return list
	}
	return list[idx+1:]
}

// Run drives one media item through its stage list from wherever it
// left off, emitting progress and persisting results as it goes. It
// returns nil on success (item reached DONE for its primary stage
// list), ErrRequeue on a transient condition, a non-nil error when the
// run stopped because the item or ctx was cancelled (the item is not
// marked DONE), or a wrapped error carrying the catalogmodel.ErrorCode
// the caller should record.
func (p *Pipeline) Run(ctx context.Context, mediaID string) error {
	media, err := p.store.GetMedia(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("pipeline: load media %s: %w", mediaID, err)
	}

	job, err := p.store.LatestJobForMedia(ctx, mediaID)
	if err != nil || job == nil || job.Status == string(catalogmodel.StatusDone) || job.Status == string(catalogmodel.StatusFailed) || job.Status == string(catalogmodel.StatusCancelled) {
		job, err = p.store.CreateJob(ctx, mediaID, nowMs())
		if err != nil {
			return fmt.Errorf("pipeline: create job: %w", err)
		}
	}

	preset := catalogmodel.IndexingPreset(settingString(ctx, p.store, "indexing_preset", string(catalogmodel.PresetDeep)))
	faceOn := settingBool(ctx, p.store, "face_recognition_enabled", true)

	list := stages.For(media.MediaType, preset, faceOn)
	list = resumeFrom(list, media.LastCompletedStage, p.artifacts.HasAnyFrame(mediaID))

	if err := p.runStages(ctx, media, job, list); err != nil {
		return err
	}
	// runStages also returns nil when it stopped at a cancelled stage
	// boundary; such a run must not be marked DONE.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if cur, err := p.store.GetMedia(ctx, mediaID); err == nil && cur.Status == catalogmodel.StatusCancelled {
		return fmt.Errorf("pipeline: %s cancelled", mediaID)
	}

	if err := p.store.MarkIndexed(ctx, mediaID, nowMs()); err != nil {
		return fmt.Errorf("pipeline: mark indexed: %w", err)
	}
	if err := p.store.UpdateJobProgress(ctx, job.JobID, string(catalogmodel.StatusDone), nil, 1.0, nil, nowMs()); err != nil {
		return fmt.Errorf("pipeline: finish job: %w", err)
	}
	p.emit.Emit(Event{MediaID: mediaID, JobID: job.JobID, Status: catalogmodel.StatusDone, Progress: 1.0})

	for _, enh := range stages.Enhanced(media.MediaType, preset) {
		_ = enh // enhanced stages are scheduled by the caller (scheduler), not run inline
	}
	return nil
}

// RunEnhanced drives the background EXTRACTING_AUDIO → TRANSCRIBING
// pair scheduled after a deep-preset video reaches DONE.
func (p *Pipeline) RunEnhanced(ctx context.Context, mediaID string) error {
	media, err := p.store.GetMedia(ctx, mediaID)
	if err != nil {
		return fmt.Errorf("pipeline: load media %s: %w", mediaID, err)
	}
	job, err := p.store.CreateJob(ctx, mediaID, nowMs())
	if err != nil {
		return fmt.Errorf("pipeline: create enhanced job: %w", err)
	}
	list := []stages.Stage{stages.ExtractingAudio, stages.Transcribing}
	return p.runStages(ctx, media, job, list)
}

// runStages executes list in order against media, polling for
// cancellation before each stage and persisting progress after it.
func (p *Pipeline) runStages(ctx context.Context, media *catalogmodel.MediaItem, job *catalogmodel.Job, list []stages.Stage) error {
	for i, stage := range list {
		if cancelled, err := p.checkCancelled(ctx, media.MediaID, job.JobID); err != nil {
			return err
		} else if cancelled {
			return nil
		}

		stageName := string(stage)
		status := stage.Status()
		if err := p.store.UpdateMediaStatus(ctx, media.MediaID, status, media.Progress, nil, nil, nil); err != nil {
			return p.wrapRequeueable(err)
		}
		if err := p.store.UpdateJobProgress(ctx, job.JobID, stageName, &stageName, media.Progress, nil, nowMs()); err != nil {
			return p.wrapRequeueable(err)
		}
		p.emit.Emit(Event{MediaID: media.MediaID, JobID: job.JobID, Stage: stageName, Status: status, Progress: media.Progress})

		start := time.Now()
		stageErr := p.runStage(ctx, media, job, stage)
		observability.InferenceDuration.WithLabelValues(strings.ToLower(stageName)).Observe(time.Since(start).Seconds())

		if stageErr != nil {
			if errors.Is(stageErr, ErrRequeue) {
				return ErrRequeue
			}
			code, msg := classifyStageErr(stage, stageErr)
			p.failItem(ctx, media.MediaID, job.JobID, stageName, code, msg)
			return fmt.Errorf("pipeline: stage %s: %w", stageName, stageErr)
		}

		progress := float64(i+1) / float64(len(list))
		stageStr := stageName
		if err := p.store.UpdateMediaStatus(ctx, media.MediaID, status, progress, &stageStr, nil, nil); err != nil {
			return p.wrapRequeueable(err)
		}
		if err := p.store.UpdateJobProgress(ctx, job.JobID, stageName, &stageStr, progress, nil, nowMs()); err != nil {
			return p.wrapRequeueable(err)
		}
		media.Progress = progress
		media.LastCompletedStage = &stageStr
		p.emit.Emit(Event{MediaID: media.MediaID, JobID: job.JobID, Stage: stageName, Status: status, Progress: progress})
	}
	return nil
}

// checkCancelled rereads the media row's status before a stage runs,
// per the cancellation contract: a status flip to
// CANCELLED (whether user-initiated or via task-level interruption)
// stops the run at the next stage boundary.
func (p *Pipeline) checkCancelled(ctx context.Context, mediaID, jobID string) (bool, error) {
	if ctx.Err() != nil {
		return true, nil
	}
	m, err := p.store.GetMedia(ctx, mediaID)
	if err != nil {
		return false, p.wrapRequeueable(err)
	}
	if m.Status == catalogmodel.StatusCancelled {
		if err := p.store.UpdateJobProgress(ctx, jobID, string(catalogmodel.StatusCancelled), nil, m.Progress, nil, nowMs()); err != nil {
			return true, p.wrapRequeueable(err)
		}
		p.emit.Emit(Event{MediaID: mediaID, JobID: jobID, Status: catalogmodel.StatusCancelled, ErrorCode: catalogmodel.ErrCancelled})
		return true, nil
	}
	return false, nil
}

// failItem sets both the media and job rows to FAILED with the given
// taxonomy code, 
func (p *Pipeline) failItem(ctx context.Context, mediaID, jobID, stageName string, code catalogmodel.ErrorCode, msg string) {
	codeStr := string(code)
	_ = p.store.UpdateMediaStatus(ctx, mediaID, catalogmodel.StatusFailed, 0, nil, &codeStr, &msg)
	_ = p.store.FailJob(ctx, jobID, codeStr, msg, nowMs())
	observability.PipelineStageFailures.WithLabelValues(strings.ToLower(stageName), codeStr).Inc()
	p.emit.Emit(Event{MediaID: mediaID, JobID: jobID, Status: catalogmodel.StatusFailed, ErrorCode: code, Message: msg})
}

// wrapRequeueable converts a busy-retry-exhausted catalog error into
// ErrRequeue; any other error is returned as-is (a genuine, probably
// fatal, persistence failure).
func (p *Pipeline) wrapRequeueable(err error) error {
	if err == nil {
		return nil
	}
	if isBusyMessage(err) {
		return ErrRequeue
	}
	return err
}

func isBusyMessage(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// classifyStageErr maps a stage failure onto the closed taxonomy.
func classifyStageErr(stage stages.Stage, err error) (catalogmodel.ErrorCode, string) {
	if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
		return catalogmodel.ErrFileNotFound, err.Error()
	}
	switch stage {
	case stages.ExtractingAudio:
		return catalogmodel.ErrFFmpeg, err.Error()
	case stages.Transcribing:
		return catalogmodel.ErrTranscription, err.Error()
	case stages.ExtractingFrames:
		return catalogmodel.ErrFFmpeg, err.Error()
	case stages.Embedding:
		return catalogmodel.ErrEmbedding, err.Error()
	case stages.Detecting:
		return catalogmodel.ErrDetection, err.Error()
	case stages.DetectingFaces:
		return catalogmodel.ErrFaceDetection, err.Error()
	default:
		return catalogmodel.ErrUnknown, err.Error()
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
