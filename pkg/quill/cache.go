package quill

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TemplateCache is an LRU cache for parsed templates with optional TTL
// expiration. Parsing is pure, so entries are keyed by a digest of the
// template content and never invalidated by data changes.
type TemplateCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[string]*list.Element
	lru     *list.List
}

type cacheEntry struct {
	key      string
	blocks   []Block
	cachedAt time.Time
}

// NewTemplateCache creates a cache holding up to maxSize parsed
// templates. maxSize <= 0 disables caching entirely. ttl == 0 means
// entries never expire.
func NewTemplateCache(maxSize int, ttl time.Duration) *TemplateCache {
	return &TemplateCache{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// cacheKey digests template content into a cache key.
func cacheKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Get returns the parsed blocks for content, if cached and fresh.
func (c *TemplateCache) Get(content string) ([]Block, bool) {
	if c == nil || c.maxSize <= 0 {
		return nil, false
	}
	key := cacheKey(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && time.Since(entry.cachedAt) > c.ttl {
		c.lru.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.blocks, true
}

// Put stores parsed blocks for content, evicting the least recently
// used entry when full.
func (c *TemplateCache) Put(content string, blocks []Block) {
	if c == nil || c.maxSize <= 0 {
		return
	}
	key := cacheKey(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.blocks = blocks
		entry.cachedAt = time.Now()
		c.lru.MoveToFront(elem)
		return
	}

	for c.lru.Len() >= c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*cacheEntry)
		c.lru.Remove(oldest)
		delete(c.entries, evicted.key)
		logger().Debug("template cache eviction", zap.String("key", evicted.key[:8]))
	}

	c.entries[key] = c.lru.PushFront(&cacheEntry{
		key:      key,
		blocks:   blocks,
		cachedAt: time.Now(),
	})
}

// Len returns the number of cached templates.
func (c *TemplateCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear discards all cached templates.
func (c *TemplateCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}
