package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/scanner"
)

func newTestLibraryHandler(t *testing.T) *LibraryHandler {
	t.Helper()
	store, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "gaze.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	art, err := artifacts.Open(t.TempDir())
	require.NoError(t, err)

	return NewLibraryHandler(store, scanner.New(store, art, nil))
}

func TestLibraryHandler_CreateAndList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestLibraryHandler(t)

	r := gin.New()
	r.POST("/libraries", h.Create)
	r.GET("/libraries", h.List)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/libraries", strings.NewReader(`{"folder_path":"/tmp/photos","name":"Photos","recursive":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/libraries", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Photos")
}

func TestLibraryHandler_CreateMissingFolderPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestLibraryHandler(t)

	r := gin.New()
	r.POST("/libraries", h.Create)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/libraries", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
