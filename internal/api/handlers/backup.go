package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/gaze-engine/internal/catalog"
)

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

const appVersion = "gaze-engine"

type BackupHandler struct {
	store *catalog.Store
}

func NewBackupHandler(store *catalog.Store) *BackupHandler {
	return &BackupHandler{store: store}
}

func (h *BackupHandler) Export(c *gin.Context) {
	doc, err := h.store.Export(c.Request.Context(), appVersion, time.Now().UnixMilli())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=gaze-backup.json")
	c.JSON(http.StatusOK, doc)
}

type restoreRequest struct {
	Document         catalog.Document `json:"document" binding:"required"`
	Mode             string           `json:"mode"`
	SkipMissingPaths bool             `json:"skip_missing_paths"`
}

func (h *BackupHandler) Restore(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := catalog.RestoreMerge
	if req.Mode == string(catalog.RestoreReplace) {
		mode = catalog.RestoreReplace
	}

	opts := catalog.RestoreOptions{
		Mode:             mode,
		SkipMissingPaths: req.SkipMissingPaths,
		PathExists:       pathExists,
	}

	if err := h.store.Restore(c.Request.Context(), &req.Document, opts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restored"})
}
