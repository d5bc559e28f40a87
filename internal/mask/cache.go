package mask

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of masks a Cache keeps unless NewCacheSize
// says otherwise.
const DefaultCacheSize = 64

type cacheKey struct {
	capacity int
	window   int
}

// Cache hands out one shared Mask per (capacity, effective window). Returned
// masks are read-only and may be used by any number of goroutines.
//
// The least recently used mask is dropped once the cache is full. Dropped
// masks stay valid for whoever still holds them. The zero value is a cache of
// DefaultCacheSize entries.
type Cache struct {
	mu    sync.Mutex
	size  int
	masks *lru.Cache[cacheKey, *Mask]
}

// NewCache returns an empty cache of DefaultCacheSize entries.
func NewCache() *Cache {
	return NewCacheSize(DefaultCacheSize)
}

// NewCacheSize returns an empty cache holding at most size masks. A size below
// one means DefaultCacheSize.
func NewCacheSize(size int) *Cache {
	c := &Cache{size: size}
	c.init()
	return c
}

// init must be called with c.mu held or before c is shared.
func (c *Cache) init() {
	if c.masks != nil {
		return
	}
	if c.size < 1 {
		c.size = DefaultCacheSize
	}
	masks, err := lru.New[cacheKey, *Mask](c.size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	c.masks = masks
}

// Get returns the cached mask, building it on first use. Build errors are
// not cached.
func (c *Cache) Get(capacity, window int) (*Mask, error) {
	if window <= 0 || checkCapacity(capacity) != nil {
		// Let Build produce the error message.
		return Build(capacity, window)
	}
	key := cacheKey{capacity: capacity, window: EffectiveWindow(capacity, window)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	if m, ok := c.masks.Get(key); ok {
		return m, nil
	}
	m, err := Build(key.capacity, key.window)
	if err != nil {
		return nil, err
	}
	c.masks.Add(key, m)
	return m, nil
}

// Add stores m so later Gets for its capacity and window return it. A mask
// already cached under the same key is kept and returned.
func (c *Cache) Add(m *Mask) *Mask {
	key := cacheKey{capacity: m.Size(), window: m.Window()}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	if existing, ok := c.masks.Get(key); ok {
		return existing
	}
	c.masks.Add(key, m)
	return m
}

// Len returns the number of cached masks.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	return c.masks.Len()
}

// Size returns the most masks the cache keeps.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	return c.size
}

// Reset drops every cached mask. Masks already handed out stay valid.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	c.masks.Purge()
}
