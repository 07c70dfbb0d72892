package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/scanner"
)

type LibraryHandler struct {
	store *catalog.Store
	scan  *scanner.Scanner
}

func NewLibraryHandler(store *catalog.Store, scan *scanner.Scanner) *LibraryHandler {
	return &LibraryHandler{store: store, scan: scan}
}

type createLibraryRequest struct {
	FolderPath string `json:"folder_path" binding:"required"`
	Name       string `json:"name"`
	Recursive  bool   `json:"recursive"`
}

func (h *LibraryHandler) Create(c *gin.Context) {
	var req createLibraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lib, err := h.store.CreateLibrary(c.Request.Context(), req.FolderPath, req.Name, req.Recursive, time.Now().UnixMilli())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, lib)
}

func (h *LibraryHandler) List(c *gin.Context) {
	libs, err := h.store.ListLibraries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"libraries": libs, "total": len(libs)})
}

func (h *LibraryHandler) Delete(c *gin.Context) {
	libraryID := c.Param("id")
	if err := h.store.DeleteLibrary(c.Request.Context(), libraryID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Scan walks a library's folder tree, synchronously, and reports
// found/new/changed/unchanged/deleted counts. Scans are serialized per
// library; a scan already in progress for this library is rejected.
func (h *LibraryHandler) Scan(c *gin.Context) {
	libraryID := c.Param("id")

	_, err := h.store.GetLibrary(c.Request.Context(), libraryID)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "library not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.scan.IsScanning(libraryID) {
		c.JSON(http.StatusConflict, gin.H{"error": "scan already in progress"})
		return
	}

	stats, err := h.scan.Scan(c.Request.Context(), libraryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
