package artifacts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/vecmath"
)

func unitVector(t *testing.T, seed float32) []float32 {
	t.Helper()
	v := make([]float32, vecmath.Dim)
	v[0] = seed
	v[1] = 1
	vecmath.Normalize(v)
	return v
}

func TestShardBuilderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	b := NewShardBuilder(store.ShardPath("media1"))
	a := unitVector(t, 0)
	c := unitVector(t, 5)
	require.NoError(t, b.Add(a))
	require.NoError(t, b.Add(c))
	require.Equal(t, 2, b.Len())
	require.NoError(t, b.Finish())

	require.True(t, Exists(store.ShardPath("media1")))

	cache := NewShardCache(store, 2)
	shard, err := cache.Get("media1")
	require.NoError(t, err)
	require.Equal(t, 2, shard.Len())

	hits := shard.Search(a, 2)
	require.Len(t, hits, 2)
	require.Equal(t, 0, hits[0].FrameIndex)
	require.Greater(t, hits[0].Score, hits[1].Score)
}

func TestShardCacheEvictsBeyondCapacity(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	for _, id := range []string{"m1", "m2", "m3"} {
		b := NewShardBuilder(store.ShardPath(id))
		require.NoError(t, b.Add(unitVector(t, 1)))
		require.NoError(t, b.Finish())
	}

	cache := NewShardCache(store, 2)
	_, err = cache.Get("m1")
	require.NoError(t, err)
	_, err = cache.Get("m2")
	require.NoError(t, err)
	_, err = cache.Get("m3")
	require.NoError(t, err)

	require.Len(t, cache.items, 2)
	_, stillCached := cache.items["m1"]
	require.False(t, stillCached, "m1 should have been evicted as least recently used")
}

func TestHasAnyFrame(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	require.False(t, store.HasAnyFrame("media1"))
	require.NoError(t, WriteFile(store.FramePath("media1", 1), []byte("jpeg-bytes")))
	require.True(t, store.HasAnyFrame("media1"))
}
