package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

func TestSortByPolicy_FIFOByCreatedAt(t *testing.T) {
	items := []catalogmodel.MediaItem{
		{MediaID: "c", CreatedAtMs: 300},
		{MediaID: "a", CreatedAtMs: 100},
		{MediaID: "b", CreatedAtMs: 200},
	}
	sortByPolicy(items, false)
	assert.Equal(t, []string{"a", "b", "c"}, ids(items))
}

func TestSortByPolicy_RecentFirstWhenPreferred(t *testing.T) {
	items := []catalogmodel.MediaItem{
		{MediaID: "old", CreatedAtMs: 100, MtimeMs: 100},
		{MediaID: "new", CreatedAtMs: 100, MtimeMs: 500},
		{MediaID: "mid", CreatedAtMs: 300, MtimeMs: 300},
	}
	sortByPolicy(items, true)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(items))
}

func TestRecencyKey_PicksGreatestOfCreatedAndMtime(t *testing.T) {
	assert.Equal(t, int64(500), recencyKey(&catalogmodel.MediaItem{CreatedAtMs: 100, MtimeMs: 500}))
	assert.Equal(t, int64(300), recencyKey(&catalogmodel.MediaItem{CreatedAtMs: 300, MtimeMs: 100}))
}

func ids(items []catalogmodel.MediaItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.MediaID
	}
	return out
}
