package faces

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/vecmath"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "gaze.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertUnassignedFace(t *testing.T, store *catalog.Store, videoID string, emb []float32) catalogmodel.Face {
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

func TestClusterUnassigned_GroupsSimilarFacesAndSkipsSingletons(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := unit(1, 0, 0)
	b := unit(0.99, 0.01, 0) // near-identical to a
	c := unit(0, 1, 0)       // far from both

	f1 := insertUnassignedFace(t, store, "video-1", a)
	f2 := insertUnassignedFace(t, store, "video-1", b)
	insertUnassignedFace(t, store, "video-1", c)

	n, err := ClusterUnassigned(ctx, store, 100)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got1, err := store.GetFace(ctx, f1.FaceID)
	require.NoError(t, err)
	got2, err := store.GetFace(ctx, f2.FaceID)
	require.NoError(t, err)

	require.NotNil(t, got1.ClusterID)
	require.NotNil(t, got2.ClusterID)
	require.Equal(t, *got1.ClusterID, *got2.ClusterID)
}

func TestClusterUnassigned_NoFacesReturnsZero(t *testing.T) {
	store := openTestStore(t)
	n, err := ClusterUnassigned(context.Background(), store, 100)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
