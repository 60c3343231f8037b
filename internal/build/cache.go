// Package build compiles whole projects and exports them as static sites.
package build

import (
	"sync"
	"sync/atomic"

	"github.com/conneroisu/astral/internal/compiler"
)

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Entries   int
	Capacity  int
	Hits      int64
	Misses    int64
	Evictions int64
	DiskHits  int64
}

// HitRate is the share of lookups answered from memory or disk.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MemoryCache is an LRU of compiled modules bounded by entry count.
type MemoryCache struct {
	mutex    sync.Mutex
	entries  map[string]*cacheEntry
	capacity int
	// LRU list with dummy head and tail
	head *cacheEntry
	tail *cacheEntry

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key   string
	value *compiler.Output
	prev  *cacheEntry
	next  *cacheEntry
}

// NewMemoryCache creates a cache holding at most capacity modules. A
// capacity below one disables caching.
func NewMemoryCache(capacity int) *MemoryCache {
	c := &MemoryCache{
		entries:  make(map[string]*cacheEntry),
		capacity: capacity,
		head:     &cacheEntry{},
		tail:     &cacheEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the module stored under key and marks it recently used.
func (c *MemoryCache) Get(key string) (*compiler.Output, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	c.moveToFront(entry)
	atomic.AddInt64(&c.hits, 1)
	return entry.value, true
}

// Set stores value under key, evicting the least recently used entries
// beyond capacity.
func (c *MemoryCache) Set(key string, value *compiler.Output) {
	if c.capacity < 1 {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.value = value
		c.moveToFront(entry)
		return
	}

	for len(c.entries) >= c.capacity && c.tail.prev != c.head {
		lru := c.tail.prev
		c.removeFromList(lru)
		delete(c.entries, lru.key)
		atomic.AddInt64(&c.evictions, 1)
	}

	entry := &cacheEntry{key: key, value: value}
	c.entries[key] = entry
	c.addToFront(entry)
}

// Clear drops every entry and resets the statistics.
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.head.next = c.tail
	c.tail.prev = c.head
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// Stats returns a snapshot of the cache statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mutex.Lock()
	n := len(c.entries)
	c.mutex.Unlock()
	return CacheStats{
		Entries:   n,
		Capacity:  c.capacity,
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

func (c *MemoryCache) addToFront(entry *cacheEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *MemoryCache) removeFromList(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (c *MemoryCache) moveToFront(entry *cacheEntry) {
	c.removeFromList(entry)
	c.addToFront(entry)
}
