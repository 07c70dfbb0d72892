package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

type MaintenanceHandler struct {
	store *catalog.Store
	art   *artifacts.Store
}

func NewMaintenanceHandler(store *catalog.Store, art *artifacts.Store) *MaintenanceHandler {
	return &MaintenanceHandler{store: store, art: art}
}

type wipeDerivedRequest struct {
	LibraryID string `json:"library_id"`
}

// WipeDerived deletes every regenerable artifact (frames, grid
// thumbnails, face crops, vector shards) for the target media and
// requeues it for a full re-index, leaving user-owned data (library
// registration, person assignments, tags, favorites) untouched.
func (h *MaintenanceHandler) WipeDerived(c *gin.Context) {
	var req wipeDerivedRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	var media []catalogmodel.MediaItem
	var err error
	if req.LibraryID != "" {
		media, err = h.store.ListMediaByLibrary(ctx, req.LibraryID)
	} else {
		media, err = h.store.ListMedia(ctx, catalog.MediaFilter{}, 1_000_000, 0)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	wiped := 0
	for _, m := range media {
		if err := h.art.DeleteItem(m.MediaID); err != nil {
			continue
		}
		if err := h.store.RequeueChanged(ctx, m.MediaID); err != nil {
			continue
		}
		wiped++
	}

	c.JSON(http.StatusOK, gin.H{"wiped": wiped})
}

type detectFacesRequest struct {
	LibraryID string `json:"library_id"`
}

// DetectFaces force-requeues media so the scheduler reruns just the
// face-detection stage onward, leaving frames/embeddings/object
// detections already computed untouched.
func (h *MaintenanceHandler) DetectFaces(c *gin.Context) {
	var req detectFacesRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	var media []catalogmodel.MediaItem
	var err error
	if req.LibraryID != "" {
		media, err = h.store.ListMediaByLibrary(ctx, req.LibraryID)
	} else {
		media, err = h.store.ListMedia(ctx, catalog.MediaFilter{}, 1_000_000, 0)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stageBeforeFaces := string(catalogmodel.StatusDetecting)
	requeued := 0
	for _, m := range media {
		if m.Status != catalogmodel.StatusDone && m.Status != catalogmodel.StatusFailed {
			continue
		}
		if err := h.store.RequeueFromStage(ctx, m.MediaID, &stageBeforeFaces); err != nil {
			continue
		}
		requeued++
	}

	c.JSON(http.StatusOK, gin.H{"requeued": requeued})
}
