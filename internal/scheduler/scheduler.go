// Package scheduler enforces indexing admission policy: a concurrency
// cap, pause/resume, priority ordering, and self-driving drain. Its
// periodic tick plus completion hook shape is adapted from a
// consume-one-message-per-worker-slot pattern to "admit one
// catalog-queued item per scheduler tick."
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/observability"
	"github.com/your-org/gaze-engine/internal/pipeline"
	"github.com/your-org/gaze-engine/internal/stages"
)

const (
	defaultMaxConcurrentJobs = 2
	tickInterval             = 5 * time.Second
	drainBatchLimit          = 10
)

// Scheduler owns the live task handles for every running pipeline and
// decides, on each tick, whether to admit the next queued item.
type Scheduler struct {
	store *catalog.Store
	pipe  *pipeline.Pipeline
	log   *slog.Logger

	mu       sync.Mutex
	paused   bool
	primary  map[string]context.CancelFunc // media_id -> running primary task
	enhanced map[string]context.CancelFunc // media_id -> running enhanced task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(store *catalog.Store, pipe *pipeline.Pipeline, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		store:    store,
		pipe:     pipe,
		log:      log,
		primary:  make(map[string]context.CancelFunc),
		enhanced: make(map[string]context.CancelFunc),
	}
}

// Start runs the scheduler's 5-second tick loop until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.StartIndexingQueued(drainBatchLimit)
			}
		}
	}()
}

// Stop cancels the tick loop and every running task handle.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.StopIndexing("")
	s.wg.Wait()
}

// StartIndexingQueued admits at most one new primary pipeline task per
// call, chosen from the queue by the configured ordering policy.
func (s *Scheduler) StartIndexingQueued(limit int) {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		observability.SchedulerTicks.WithLabelValues("false").Inc()
		return
	}
	maxConcurrent := settingInt(s.ctx, s.store, "max_concurrent_jobs", defaultMaxConcurrentJobs)
	available := maxConcurrent - len(s.primary)
	s.mu.Unlock()

	if available <= 0 {
		observability.SchedulerTicks.WithLabelValues("false").Inc()
		return
	}
	effectiveLimit := 1 // deliberate cap: at most one new primary task admitted per tick
	if limit < effectiveLimit {
		effectiveLimit = limit
	}
	if effectiveLimit <= 0 {
		observability.SchedulerTicks.WithLabelValues("false").Inc()
		return
	}

	preferRecent := settingBool(s.ctx, s.store, "prioritize_recent_media", false)
	items, err := s.store.ListQueued(s.ctx, preferRecent, drainBatchLimit)
	if err != nil {
		s.log.Warn("scheduler: list queued failed", "error", err)
		return
	}
	if len(items) == 0 {
		observability.SchedulerTicks.WithLabelValues("false").Inc()
		return
	}
	sortByPolicy(items, preferRecent)

	s.mu.Lock()
	var toAdmit *catalogmodel.MediaItem
	for i := range items {
		if _, running := s.primary[items[i].MediaID]; !running {
			toAdmit = &items[i]
			break
		}
	}
	if toAdmit == nil {
		s.mu.Unlock()
		observability.SchedulerTicks.WithLabelValues("false").Inc()
		return
	}
	taskCtx, taskCancel := context.WithCancel(s.ctx)
	s.primary[toAdmit.MediaID] = taskCancel
	observability.ActiveJobs.Set(float64(len(s.primary)))
	s.mu.Unlock()

	observability.SchedulerTicks.WithLabelValues("true").Inc()
	s.runPrimary(taskCtx, toAdmit.MediaID)
}

// runPrimary drives one item's primary stage list and, on completion,
// schedules its enhanced stages (if any) and self-drains the queue.
func (s *Scheduler) runPrimary(ctx context.Context, mediaID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.pipe.Run(ctx, mediaID)

		s.mu.Lock()
		delete(s.primary, mediaID)
		observability.ActiveJobs.Set(float64(len(s.primary)))
		s.mu.Unlock()

		if err != nil {
			s.log.Warn("scheduler: primary task ended", "media_id", mediaID, "error", err)
			if err == pipeline.ErrRequeue {
				// Keep last_completed_stage (nil is COALESCEd) so the
				// next admission resumes where this run stopped.
				if uerr := s.store.UpdateMediaStatus(s.ctx, mediaID, catalogmodel.StatusQueued, 0, nil, nil, nil); uerr != nil {
					s.log.Warn("scheduler: requeue failed", "media_id", mediaID, "error", uerr)
				}
			}
		} else {
			s.scheduleEnhanced(mediaID)
		}

		s.mu.Lock()
		noneLive := len(s.primary) == 0
		s.mu.Unlock()
		if noneLive {
			s.StartIndexingQueued(drainBatchLimit)
		}
	}()
}

// scheduleEnhanced starts the background EXTRACTING_AUDIO →
// TRANSCRIBING pair for a deep-preset video that just reached DONE.
func (s *Scheduler) scheduleEnhanced(mediaID string) {
	media, err := s.store.GetMedia(s.ctx, mediaID)
	if err != nil {
		return
	}
	preset := catalogmodel.IndexingPreset(settingString(s.ctx, s.store, "indexing_preset", string(catalogmodel.PresetDeep)))
	if stages.Enhanced(media.MediaType, preset) == nil {
		return
	}

	s.mu.Lock()
	if _, running := s.enhanced[mediaID]; running {
		s.mu.Unlock()
		return
	}
	taskCtx, taskCancel := context.WithCancel(s.ctx)
	s.enhanced[mediaID] = taskCancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.pipe.RunEnhanced(taskCtx, mediaID); err != nil {
			s.log.Warn("scheduler: enhanced task ended", "media_id", mediaID, "error", err)
		}
		s.mu.Lock()
		delete(s.enhanced, mediaID)
		s.mu.Unlock()
	}()
}

// StopIndexing cancels the task handle for mediaID, or every handle
// (both primary and enhanced maps) when mediaID is empty.
func (s *Scheduler) StopIndexing(mediaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mediaID == "" {
		for id, cancel := range s.primary {
			cancel()
			delete(s.primary, id)
		}
		for id, cancel := range s.enhanced {
			cancel()
			delete(s.enhanced, id)
		}
		observability.ActiveJobs.Set(0)
		return
	}
	if cancel, ok := s.primary[mediaID]; ok {
		cancel()
		delete(s.primary, mediaID)
		observability.ActiveJobs.Set(float64(len(s.primary)))
	}
	if cancel, ok := s.enhanced[mediaID]; ok {
		cancel()
		delete(s.enhanced, mediaID)
	}
}

// Pause flips the global paused flag; resume also triggers one tick.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.StartIndexingQueued(drainBatchLimit)
}

func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Status reports the live task counts for the jobs/status endpoint.
type Status struct {
	Paused        bool
	ActivePrimary int
	ActiveEnhanced int
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Paused: s.paused, ActivePrimary: len(s.primary), ActiveEnhanced: len(s.enhanced)}
}

// sortByPolicy orders queued items by recency (greatest of
// mtime_ms/created_at_ms, descending) when prioritize_recent_media is
// set, else FIFO by created_at_ms. catalog.ListQueued already applies
// this ordering at the SQL layer; this re-sort only guards against a
// caller passing an unordered slice (e.g. in tests).
func sortByPolicy(items []catalogmodel.MediaItem, preferRecent bool) {
	if preferRecent {
		sort.SliceStable(items, func(i, j int) bool {
			return recencyKey(&items[i]) > recencyKey(&items[j])
		})
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAtMs < items[j].CreatedAtMs
	})
}

func recencyKey(m *catalogmodel.MediaItem) int64 {
	best := m.CreatedAtMs
	if m.MtimeMs > best {
		best = m.MtimeMs
	}
	return best
}

func settingInt(ctx context.Context, store *catalog.Store, key string, def int) int {
	return int(settingFloat(ctx, store, key, float64(def)))
}

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
