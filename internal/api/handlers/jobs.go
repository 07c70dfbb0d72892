package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/observability"
	"github.com/your-org/gaze-engine/internal/scheduler"
)

type JobsHandler struct {
	store *catalog.Store
	sched *scheduler.Scheduler
}

func NewJobsHandler(store *catalog.Store, sched *scheduler.Scheduler) *JobsHandler {
	return &JobsHandler{store: store, sched: sched}
}

// Status reports the scheduler's live task counts plus the queue
// depth, and refreshes the queue-depth gauge so /metrics stays in
// sync with whatever a caller just observed here.
func (h *JobsHandler) Status(c *gin.Context) {
	queued, err := h.store.ListQueued(c.Request.Context(), false, 100000)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.QueueDepth.Set(float64(len(queued)))

	active, err := h.store.ListActiveJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := h.sched.Status()
	c.JSON(http.StatusOK, gin.H{
		"paused":          status.Paused,
		"active_primary":  status.ActivePrimary,
		"active_enhanced": status.ActiveEnhanced,
		"queue_depth":     len(queued),
		"active_jobs":     active,
	})
}

// Start asks the scheduler to admit at most one queued item (when the
// concurrency cap leaves room), returning how many it started.
func (h *JobsHandler) Start(c *gin.Context) {
	before := h.sched.Status().ActivePrimary
	h.sched.StartIndexingQueued(1)
	after := h.sched.Status().ActivePrimary
	c.JSON(http.StatusOK, gin.H{"started": after - before})
}

func (h *JobsHandler) Pause(c *gin.Context) {
	h.sched.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *JobsHandler) Resume(c *gin.Context) {
	h.sched.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

// Stop cancels a job. job_id is accepted as the route parameter but
// cancellation is keyed by media id; /jobs/status exposes the
// media_id each active job belongs to for callers that only know the
// job id.
func (h *JobsHandler) Stop(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.sched.StopIndexing(job.VideoID)
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
