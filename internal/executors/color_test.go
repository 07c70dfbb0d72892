package executors

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyPixelPrimaries(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	cases := []struct {
		name string
		c    color.RGBA
		want string
	}{
		{"pure red", color.RGBA{255, 0, 0, 255}, "red"},
		{"pure green", color.RGBA{0, 255, 0, 255}, "green"},
		{"pure blue", color.RGBA{0, 0, 255, 255}, "blue"},
		{"white", color.RGBA{255, 255, 255, 255}, "white"},
		{"black", color.RGBA{0, 0, 0, 255}, "black"},
		{"mid gray", color.RGBA{128, 128, 128, 255}, "gray"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			img.Set(0, 0, tc.c)
			got := classifyPixel(img, 0, 0)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalColorsIsElevenNames(t *testing.T) {
	require.Len(t, CanonicalColors, 11)
}
