package executors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSilenceOutputInvertsSpans(t *testing.T) {
	output := `[silencedetect @ 0x0] silence_start: 2.5
[silencedetect @ 0x0] silence_end: 4.0 | silence_duration: 1.5
[silencedetect @ 0x0] silence_start: 8.0
[silencedetect @ 0x0] silence_end: 8.5 | silence_duration: 0.5
`
	segments := parseSilenceOutput(output, 10.0)
	require.Equal(t, []SilenceSegment{
		{StartSeconds: 0, EndSeconds: 2.5},
		{StartSeconds: 4.0, EndSeconds: 8.0},
		{StartSeconds: 8.5, EndSeconds: 10.0},
	}, segments)
}

func TestParseSilenceOutputNoSilence(t *testing.T) {
	segments := parseSilenceOutput("", 5.0)
	require.Equal(t, []SilenceSegment{{StartSeconds: 0, EndSeconds: 5.0}}, segments)
}

func TestParseSilenceOutputFiltersTinySegments(t *testing.T) {
	output := `[silencedetect @ 0x0] silence_start: 0.05
[silencedetect @ 0x0] silence_end: 9.95 | silence_duration: 9.9
`
	segments := parseSilenceOutput(output, 10.0)
	for _, s := range segments {
		require.GreaterOrEqual(t, s.EndSeconds-s.StartSeconds, 0.2)
	}
}
