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

	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/faces"
	"github.com/your-org/gaze-engine/internal/vecmath"
)

func newTestFacesHandler(t *testing.T) (*FacesHandler, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "gaze.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	matcher := faces.NewMatcher(store)
	return NewFacesHandler(store, matcher), store
}

func vec(dims ...float32) []float32 {
	v := make([]float32, vecmath.Dim)
	copy(v, dims)
	return v
}

func mustCreateFace(t *testing.T, store *catalog.Store, videoID string, emb []float32) catalogmodel.Face {
	t.Helper()
	encoded, err := vecmath.Encode(emb)
	require.NoError(t, err)
	f := catalogmodel.Face{
		VideoID:     videoID,
		FrameID:     "frame-1",
		TimestampMs: 0,
		BBox:        catalogmodel.BBox{X: 0, Y: 0, W: 1, H: 1},
		Confidence:  0.9,
		Embedding:   encoded,
		CropPath:    "faces/" + videoID + "/x.jpg",
	}
	require.NoError(t, store.CreateFace(context.Background(), &f, 1000))
	return f
}

func TestFacesHandler_AssignFirstTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, store := newTestFacesHandler(t)
	ctx := context.Background()

	person, err := store.CreatePerson(ctx, "Alice", 1000)
	require.NoError(t, err)
	face := mustCreateFace(t, store, "video-1", vec(1, 0, 0))

	r := gin.New()
	r.POST("/faces/:face_id/assign", h.Assign)

	w := httptest.NewRecorder()
	body := `{"person_id":"` + person.PersonID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/faces/"+face.FaceID+"/assign", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := store.GetFace(ctx, face.FaceID)
	require.NoError(t, err)
	require.NotNil(t, got.PersonID)
	assert.Equal(t, person.PersonID, *got.PersonID)
}

func TestFacesHandler_AssignReassignsAwayFromExistingPerson(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, store := newTestFacesHandler(t)
	ctx := context.Background()

	alice, err := store.CreatePerson(ctx, "Alice", 1000)
	require.NoError(t, err)
	bob, err := store.CreatePerson(ctx, "Bob", 1000)
	require.NoError(t, err)

	face := mustCreateFace(t, store, "video-1", vec(1, 0, 0))
	confidence := 1.0
	require.NoError(t, store.AssignFace(ctx, face.FaceID, &alice.PersonID, catalogmodel.AssignmentManual, &confidence, 1000))

	r := gin.New()
	r.POST("/faces/:face_id/assign", h.Assign)

	w := httptest.NewRecorder()
	body := `{"person_id":"` + bob.PersonID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/faces/"+face.FaceID+"/assign", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := store.GetFace(ctx, face.FaceID)
	require.NoError(t, err)
	require.NotNil(t, got.PersonID)
	assert.Equal(t, bob.PersonID, *got.PersonID)
}

func TestFacesHandler_AssignMissingFaceReturnsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, store := newTestFacesHandler(t)
	person, err := store.CreatePerson(context.Background(), "Alice", 1000)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/faces/:face_id/assign", h.Assign)

	w := httptest.NewRecorder()
	body := `{"person_id":"` + person.PersonID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/faces/does-not-exist/assign", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFacesHandler_MergeMovesFacesAndDeletesSource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, store := newTestFacesHandler(t)
	ctx := context.Background()

	alice, err := store.CreatePerson(ctx, "Alice", 1000)
	require.NoError(t, err)
	bob, err := store.CreatePerson(ctx, "Bob", 1000)
	require.NoError(t, err)

	face := mustCreateFace(t, store, "video-1", vec(1, 0, 0))
	confidence := 1.0
	require.NoError(t, store.AssignFace(ctx, face.FaceID, &alice.PersonID, catalogmodel.AssignmentManual, &confidence, 1000))

	r := gin.New()
	r.POST("/faces/merge", h.Merge)

	w := httptest.NewRecorder()
	body := `{"from_person_id":"` + alice.PersonID + `","to_person_id":"` + bob.PersonID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/faces/merge", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"faces_moved":1`)

	got, err := store.GetFace(ctx, face.FaceID)
	require.NoError(t, err)
	require.NotNil(t, got.PersonID)
	assert.Equal(t, bob.PersonID, *got.PersonID)

	_, err = store.GetPerson(ctx, alice.PersonID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestFacesHandler_MergeRejectsSamePerson(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, store := newTestFacesHandler(t)
	alice, err := store.CreatePerson(context.Background(), "Alice", 1000)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/faces/merge", h.Merge)

	w := httptest.NewRecorder()
	body := `{"from_person_id":"` + alice.PersonID + `","to_person_id":"` + alice.PersonID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/faces/merge", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFacesHandler_ClusterGroupsSimilarFaces(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, store := newTestFacesHandler(t)

	mustCreateFace(t, store, "video-1", vec(1, 0, 0))
	mustCreateFace(t, store, "video-1", vec(0.99, 0.01, 0))
	mustCreateFace(t, store, "video-1", vec(0, 1, 0))

	r := gin.New()
	r.POST("/faces/cluster", h.Cluster)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/faces/cluster", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"faces_clustered":2`)
}
