package artifacts

import (
	"container/list"
	"fmt"
	"os"
	"sync"

	"github.com/your-org/gaze-engine/internal/vecmath"
)

// recordSize is the on-disk width of one shard entry: a single
// unit-norm 512-D float32 embedding, frame_index implied by its
// 0-based position in the file.
const recordSize = vecmath.Dim * 4

// ShardBuilder accumulates one vector per frame in order and commits
// the whole shard atomically, matching the requirement that a
// cancelled EMBEDDING stage leave no partial shard on disk: the file
// only appears once Finish renames it into place.
type ShardBuilder struct {
	path string
	buf  []byte
}

func NewShardBuilder(path string) *ShardBuilder {
	return &ShardBuilder{path: path}
}

// Add appends the embedding for the next frame index (callers must
// add in frame_index order; the position in buf IS the index).
func (b *ShardBuilder) Add(embedding []float32) error {
	enc, err := vecmath.Encode(embedding)
	if err != nil {
		return fmt.Errorf("shard: encode frame %d: %w", len(b.buf)/recordSize, err)
	}
	b.buf = append(b.buf, enc...)
	return nil
}

func (b *ShardBuilder) Len() int {
	return len(b.buf) / recordSize
}

// Finish writes the accumulated shard to disk atomically.
func (b *ShardBuilder) Finish() error {
	return WriteFile(b.path, b.buf)
}

// Shard is a read-only, fully-loaded vector shard: one L2-normalized
// embedding per frame, indexed by frame_index.
type Shard struct {
	vectors [][]float32
}

func loadShard(path string) (*Shard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("shard: %s has truncated record (size %d)", path, len(data))
	}
	n := len(data) / recordSize
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		v, err := vecmath.Decode(data[i*recordSize : (i+1)*recordSize])
		if err != nil {
			return nil, fmt.Errorf("shard: decode record %d: %w", i, err)
		}
		vectors[i] = v
	}
	return &Shard{vectors: vectors}, nil
}

func (sh *Shard) Len() int { return len(sh.vectors) }

// ShardHit is one result from a top-k search.
type ShardHit struct {
	FrameIndex int
	Score      float32
}

// Search returns the top-k frame indices by inner product against
// query (both assumed unit-norm, so inner product equals cosine
// similarity), highest score first.
func (sh *Shard) Search(query []float32, k int) []ShardHit {
	hits := make([]ShardHit, 0, len(sh.vectors))
	for i, v := range sh.vectors {
		hits = append(hits, ShardHit{FrameIndex: i, Score: vecmath.Dot(query, v)})
	}
	sortHitsDesc(hits)
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func sortHitsDesc(hits []ShardHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

// ShardCache is an LRU of open shards bounded to a configurable size
// (default 8 ), shared by concurrent searchers under a
// mutex. Shards are read-only after the EMBEDDING stage commits, so
// caching the fully decoded vectors is safe.
type ShardCache struct {
	store *Store
	mu    sync.Mutex
	cap   int
	ll    *list.List
	items map[string]*list.Element
}

type shardCacheEntry struct {
	mediaID string
	shard   *Shard
}

func NewShardCache(store *Store, capacity int) *ShardCache {
	if capacity <= 0 {
		capacity = 8
	}
	return &ShardCache{
		store: store,
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

// Get returns the shard for mediaID, loading and caching it on miss.
func (c *ShardCache) Get(mediaID string) (*Shard, error) {
	c.mu.Lock()
	if el, ok := c.items[mediaID]; ok {
		c.ll.MoveToFront(el)
		entry := el.Value.(*shardCacheEntry)
		c.mu.Unlock()
		return entry.shard, nil
	}
	c.mu.Unlock()

	shard, err := loadShard(c.store.ShardPath(mediaID))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[mediaID]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*shardCacheEntry).shard, nil
	}
	el := c.ll.PushFront(&shardCacheEntry{mediaID: mediaID, shard: shard})
	c.items[mediaID] = el
	for c.ll.Len() > c.cap {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.ll.Remove(back)
		delete(c.items, back.Value.(*shardCacheEntry).mediaID)
	}
	return shard, nil
}

// Invalidate drops a cached shard, used after a shard is rewritten or
// its item is deleted.
func (c *ShardCache) Invalidate(mediaID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[mediaID]; ok {
		c.ll.Remove(el)
		delete(c.items, mediaID)
	}
}
