package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

func newTestPlanner() *Planner {
	return NewPlanner(nil, nil, nil)
}

func TestClassifyDetectsCanonicalObjectLabel(t *testing.T) {
	p := newTestPlanner()
	c := p.classify("a photo of a dog in the park")
	require.Equal(t, "dog", c.detectedCategory)
}

func TestClassifyDetectsObjectAlias(t *testing.T) {
	p := newTestPlanner()
	c := p.classify("the puppy is sleeping")
	require.Equal(t, "dog", c.detectedCategory)
}

func TestClassifyDetectsCanonicalColor(t *testing.T) {
	p := newTestPlanner()
	c := p.classify("a red car")
	require.Equal(t, "red", c.detectedColor)
	require.Equal(t, "car", c.detectedCategory)
}

func TestClassifyDetectsColorAlias(t *testing.T) {
	p := newTestPlanner()
	c := p.classify("a crimson bicycle")
	require.Equal(t, "red", c.detectedColor)
	require.Equal(t, "bicycle", c.detectedCategory)
}

func TestClassifyNoMatch(t *testing.T) {
	p := newTestPlanner()
	c := p.classify("hello there")
	require.Empty(t, c.detectedCategory)
	require.Empty(t, c.detectedColor)
}

func TestClassifyFirstTokenWins(t *testing.T) {
	p := newTestPlanner()
	// Both "dog" and "cat" appear; classification keeps the first hit.
	c := p.classify("dog chasing a cat")
	require.Equal(t, "dog", c.detectedCategory)
}

func TestSnippetAroundWrapsMatch(t *testing.T) {
	snippet := snippetAround("the quick brown fox jumps over the lazy dog", "fox")
	require.Contains(t, snippet, "<mark>fox</mark>")
	require.Contains(t, snippet, "quick brown")
	require.Contains(t, snippet, "jumps over")
}

func TestSnippetAroundFallsBackWhenPhraseMissing(t *testing.T) {
	snippet := snippetAround("a sentence without the needle", "haystack")
	require.NotContains(t, snippet, "<mark>")
	require.Equal(t, "a sentence without the needle", snippet)
}

func TestMergeResultsKeepsMaxScoreAndMarksBoth(t *testing.T) {
	dst := Result{MediaID: "m1", TimestampMs: 1000, Score: 0.4, MatchType: MatchTranscript, TranscriptSnippet: "hi"}
	src := Result{MediaID: "m1", TimestampMs: 1000, Score: 0.7, MatchType: MatchVisual, ThumbnailPath: "/thumb.jpg"}
	mergeResults(&dst, &src)
	require.Equal(t, MatchBoth, dst.MatchType)
	require.InDelta(t, 0.7, dst.Score, 1e-9)
	require.Equal(t, "hi", dst.TranscriptSnippet)
	require.Equal(t, "/thumb.jpg", dst.ThumbnailPath)
}

func TestPaginateSlicesAndReportsTotal(t *testing.T) {
	results := make([]Result, 10)
	for i := range results {
		results[i] = Result{MediaID: "m", TimestampMs: int64(i)}
	}
	page, total, err := paginate(results, 2, 3)
	require.NoError(t, err)
	require.Equal(t, 10, total)
	require.Len(t, page, 3)
	require.Equal(t, int64(2), page[0].TimestampMs)
}

func TestPaginateOffsetBeyondTotalReturnsEmpty(t *testing.T) {
	results := []Result{{MediaID: "m", TimestampMs: 0}}
	page, total, err := paginate(results, 5, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Empty(t, page)
}

func TestSortResultsDescOrdersByScore(t *testing.T) {
	results := []Result{
		{MediaID: "a", Score: 0.2},
		{MediaID: "b", Score: 0.9},
		{MediaID: "c", Score: 0.5},
	}
	sortResultsDesc(results)
	require.Equal(t, []string{"b", "c", "a"}, []string{results[0].MediaID, results[1].MediaID, results[2].MediaID})
}

func TestFrameHasColorMatchesCommaJoinedList(t *testing.T) {
	colors := "red,blue, green"
	require.True(t, frameHasColor(&colors, "blue"))
	require.True(t, frameHasColor(&colors, "green"))
	require.False(t, frameHasColor(&colors, "purple"))
	require.False(t, frameHasColor(nil, "red"))
}

func TestColorListSplitsCommaJoined(t *testing.T) {
	colors := "red,blue"
	require.Equal(t, []string{"red", "blue"}, colorList(&colors))
	require.Nil(t, colorList(nil))
	empty := ""
	require.Nil(t, colorList(&empty))
}

func TestExportSRTFormatsTimestamps(t *testing.T) {
	segments := []catalogmodel.TranscriptSegment{
		{VideoID: "v1", StartMs: 61234, EndMs: 65000, Text: "hello world"},
	}
	out := ExportSRT(segments)
	require.Contains(t, out, "1\n00:01:01,234 --> 00:01:05,000\nhello world")
}

func TestExportWebVTTHasHeaderAndDotSeparator(t *testing.T) {
	segments := []catalogmodel.TranscriptSegment{
		{VideoID: "v1", StartMs: 1500, EndMs: 2500, Text: "hi"},
	}
	out := ExportWebVTT(segments)
	require.Contains(t, out, "WEBVTT\n\n")
	require.Contains(t, out, "00:00:01.500 --> 00:00:02.500\nhi")
}

func TestColorScoreAdjustmentArithmetic(t *testing.T) {
	// visual branch color adjustment: matching color adds 0.15 capped at 1.0
	require.InDelta(t, 1.0, minF(1.0, 0.9+0.15), 1e-9)
	require.InDelta(t, 0.63, minF(1.0, 0.9*0.7), 1e-9)
}

func TestAbsHelpers(t *testing.T) {
	require.Equal(t, int64(5), absInt64(-5))
	require.Equal(t, int64(5), absInt64(5))
	require.InDelta(t, 2.5, absFloat(-2.5), 1e-9)
}

func TestWindowStartBucketsToFiveSeconds(t *testing.T) {
	require.Equal(t, int64(0), windowStart(1234))
	require.Equal(t, int64(5000), windowStart(6000))
	require.Equal(t, int64(5000), windowStart(9999))
}
