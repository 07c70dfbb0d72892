package executors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCocoLabelsHasEightyCategories(t *testing.T) {
	require.Len(t, CocoLabels, 80)
}

func TestNmsObjectsSuppressesOverlapSameLabel(t *testing.T) {
	dets := []ObjectDetection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.9, Label: "car"},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.8, Label: "car"},
	}
	out := nmsObjects(dets, 0.45)
	require.Len(t, out, 1)
	require.Equal(t, float32(0.9), out[0].Confidence)
}

func TestNmsObjectsKeepsDifferentLabels(t *testing.T) {
	dets := []ObjectDetection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.9, Label: "car"},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.8, Label: "truck"},
	}
	out := nmsObjects(dets, 0.45)
	require.Len(t, out, 2)
}

func TestIouObjectsNoOverlap(t *testing.T) {
	require.Equal(t, float32(0), iouObjects([4]float32{0, 0, 1, 1}, [4]float32{5, 5, 6, 6}))
}
