package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/catalog"
)

type SystemHandler struct {
	store *catalog.Store
	art   *artifacts.Store
}

func NewSystemHandler(store *catalog.Store, art *artifacts.Store) *SystemHandler {
	return &SystemHandler{store: store, art: art}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	checks := map[string]string{}
	healthy := true

	if _, _, err := h.store.GetSetting(c.Request.Context(), "schema_version"); err != nil {
		checks["catalog"] = err.Error()
		healthy = false
	} else {
		checks["catalog"] = "ok"
	}

	checks["artifacts"] = "ok"

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
