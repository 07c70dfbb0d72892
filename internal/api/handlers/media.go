package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

type MediaHandler struct {
	store *catalog.Store
}

func NewMediaHandler(store *catalog.Store) *MediaHandler {
	return &MediaHandler{store: store}
}

func (h *MediaHandler) List(c *gin.Context) {
	limit, offset := paginationParams(c)

	filter := catalog.MediaFilter{
		LibraryID:         c.Query("library_id"),
		MediaType:         catalogmodel.MediaType(c.Query("media_type")),
		Status:            catalogmodel.Status(c.Query("status")),
		ExcludeComponents: c.Query("include_components") != "1",
	}

	media, err := h.store.ListMedia(c.Request.Context(), filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := h.store.CountMedia(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"media": media, "total": total})
}

func (h *MediaHandler) Get(c *gin.Context) {
	item, err := h.store.GetMedia(c.Request.Context(), c.Param("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *MediaHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteMedia(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Frames lists a video's extracted frames, carrying the per-frame
// dominant-color tags the search planner's visual branch filters on.
func (h *MediaHandler) Frames(c *gin.Context) {
	frames, err := h.store.ListFramesByMedia(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"frames": frames, "total": len(frames)})
}

func (h *MediaHandler) Detections(c *gin.Context) {
	dets, err := h.store.ListDetectionsByMedia(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detections": dets, "total": len(dets)})
}

func paginationParams(c *gin.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
