package executors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFrameRateFraction(t *testing.T) {
	fps := parseFrameRate("30000/1001")
	require.NotNil(t, fps)
	require.InDelta(t, 29.97, *fps, 0.01)
}

func TestParseFrameRateZeroDenominator(t *testing.T) {
	fps := parseFrameRate("30/0")
	require.Nil(t, fps)
}

func TestParseFrameRatePlain(t *testing.T) {
	fps := parseFrameRate("25")
	require.NotNil(t, fps)
	require.Equal(t, 25.0, *fps)
}

func TestParseRotationFromSideData(t *testing.T) {
	s := ffprobeStream{
		SideDataList: []ffprobeSideData{{SideDataType: "Display Matrix", Rotation: -90}},
	}
	require.Equal(t, 270, parseRotation(s))
}

func TestParseRotationFromTag(t *testing.T) {
	s := ffprobeStream{Tags: map[string]string{"rotate": "180"}}
	require.Equal(t, 180, parseRotation(s))
}

func TestParseRotationDefault(t *testing.T) {
	require.Equal(t, 0, parseRotation(ffprobeStream{}))
}

func TestFirstNonEmptyString(t *testing.T) {
	tags := map[string]string{"MODEL": "iPhone 14"}
	require.Equal(t, "iPhone 14", firstNonEmptyString(tags, "model", "MODEL"))
	require.Equal(t, "", firstNonEmptyString(tags, "missing"))
}
