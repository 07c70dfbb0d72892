package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/gaze-engine/internal/search"
)

type SearchHandler struct {
	planner *search.Planner
}

func NewSearchHandler(planner *search.Planner) *SearchHandler {
	return &SearchHandler{planner: planner}
}

type searchRequest struct {
	Query     string   `json:"query"`
	Mode      string   `json:"mode"`
	Labels    []string `json:"labels"`
	PersonIDs []string `json:"person_ids"`
	LibraryID string   `json:"library_id"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := search.Query{
		Text:      req.Query,
		Mode:      search.Mode(req.Mode),
		Labels:    req.Labels,
		PersonIDs: req.PersonIDs,
		LibraryID: req.LibraryID,
		Limit:     limit,
		Offset:    req.Offset,
	}
	if q.Mode == "" {
		q.Mode = search.ModeBoth
	}

	results, total, err := h.planner.Search(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "total": total})
}
