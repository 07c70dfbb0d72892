package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/faces"
)

type FacesHandler struct {
	store   *catalog.Store
	matcher *faces.Matcher
}

func NewFacesHandler(store *catalog.Store, matcher *faces.Matcher) *FacesHandler {
	return &FacesHandler{store: store, matcher: matcher}
}

type assignFaceRequest struct {
	PersonID string `json:"person_id" binding:"required"`
}

// Assign manually (re)assigns a face to a person. The learning side
// effects — negative example against the old person, pair-threshold
// bump, thumbnail re-pick — live in faces.Reassign.
func (h *FacesHandler) Assign(c *gin.Context) {
	faceID := c.Param("face_id")

	var req assignFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	face, err := h.store.GetFace(c.Request.Context(), faceID)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "face not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if face.PersonID == nil {
		confidence := 1.0
		if err := h.store.AssignFace(ctx, faceID, &req.PersonID, catalogmodel.AssignmentManual, &confidence, time.Now().UnixMilli()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := h.store.RecountFaces(ctx, req.PersonID, time.Now().UnixMilli()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	} else if err := faces.Reassign(ctx, h.store, faceID, *face.PersonID, req.PersonID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.matcher.Reload(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "assigned", "face_id": faceID, "person_id": req.PersonID})
}

type mergePersonsRequest struct {
	FromPersonID string `json:"from_person_id" binding:"required"`
	ToPersonID   string `json:"to_person_id" binding:"required"`
}

// Merge reassigns every face from FromPersonID to ToPersonID one at a
// time through the same learning path a single manual reassignment
// takes, then deletes the now-empty source person.
func (h *FacesHandler) Merge(c *gin.Context) {
	var req mergePersonsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FromPersonID == req.ToPersonID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_person_id and to_person_id must differ"})
		return
	}

	ctx := c.Request.Context()
	toMerge, err := h.store.ListFacesByPerson(ctx, req.FromPersonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for _, f := range toMerge {
		if err := faces.Reassign(ctx, h.store, f.FaceID, req.FromPersonID, req.ToPersonID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.store.DeletePerson(ctx, req.FromPersonID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.matcher.Reload(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "merged", "faces_moved": len(toMerge)})
}

type clusterFacesRequest struct {
	Limit int `json:"limit"`
}

// Cluster groups unassigned faces into "probably the same person"
// clusters for the review queue, without committing to a Person row.
func (h *FacesHandler) Cluster(c *gin.Context) {
	var req clusterFacesRequest
	_ = c.ShouldBindJSON(&req)
	limit := req.Limit
	if limit <= 0 || limit > 5000 {
		limit = 500
	}

	assigned, err := faces.ClusterUnassigned(c.Request.Context(), h.store, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"faces_clustered": assigned})
}

type setRecognitionModeRequest struct {
	Mode catalogmodel.RecognitionMode `json:"mode" binding:"required"`
}

func (h *FacesHandler) SetRecognitionMode(c *gin.Context) {
	personID := c.Param("id")

	var req setRecognitionModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Mode {
	case catalogmodel.RecognitionAverage, catalogmodel.RecognitionReferenceOnly, catalogmodel.RecognitionWeighted:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown recognition mode"})
		return
	}

	if err := h.store.SetRecognitionMode(c.Request.Context(), personID, req.Mode, time.Now().UnixMilli()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.matcher.Reload(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated", "person_id": personID, "mode": req.Mode})
}

// ReviewQueue lists unassigned faces for manual triage, oldest first.
func (h *FacesHandler) ReviewQueue(c *gin.Context) {
	limit, _ := paginationParams(c)

	unassigned, err := h.store.ListUnassignedFaces(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"faces": unassigned, "total": len(unassigned)})
}
