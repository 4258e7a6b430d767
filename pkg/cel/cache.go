package cel

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// Cache is a least-recently-used cache of compiled programs keyed by source
// text. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache
	evicted func(source string)
}

// NewCache creates a cache holding at most maxEntries programs. Zero means
// no limit.
func NewCache(maxEntries int) *Cache {
	c := &Cache{lru: lru.New(maxEntries)}
	c.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		if c.evicted != nil {
			c.evicted(key.(string))
		}
	}
	return c
}

// OnEvicted registers fn to be called, with the lock held, for every program
// dropped from the cache. It must be set before the cache is shared.
func (c *Cache) OnEvicted(fn func(source string)) {
	c.evicted = fn
}

// Get returns the program compiled from source.
func (c *Cache) Get(source string) (*Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(source)
	if !ok {
		return nil, false
	}
	return v.(*Program), true
}

// Add stores p under its source text.
func (c *Cache) Add(p *Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(p.Source, p)
}

// Remove drops the program compiled from source.
func (c *Cache) Remove(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(source)
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Clear()
}
