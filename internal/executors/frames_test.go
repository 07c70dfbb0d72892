package executors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameIndexFromPath(t *testing.T) {
	idx, err := FrameIndexFromPath("/data/thumbnails/abc123/frame_000042.jpg")
	require.NoError(t, err)
	require.Equal(t, 42, idx)
}

func TestFrameIndexFromPathInvalid(t *testing.T) {
	_, err := FrameIndexFromPath("/data/thumbnails/abc123/grid.jpg")
	require.Error(t, err)
}
