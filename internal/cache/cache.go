// Package cache provides the render cache shared by all Markdown requests.
//
// Entries are keyed by file path and modification time. A render for a path
// under a new modification time replaces every older entry for that path, so
// the cache never holds more than one live entry per file and never serves
// HTML for a superseded version. There is no TTL and no capacity bound.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Key identifies one version of a file.
type Key struct {
	Path string
	// Modified is the modification time in nanoseconds since the epoch.
	Modified int64
}

// NewKey builds a key from a path and a modification time.
func NewKey(path string, modified time.Time) Key {
	return Key{Path: path, Modified: modified.UnixNano()}
}

// Producer renders the HTML for a cache miss.
type Producer func() (string, error)

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Renders   int64 `json:"renders"`
	Failures  int64 `json:"failures"`
	Evictions int64 `json:"evictions"`
}

// HitRate returns hits divided by lookups, or zero before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// RenderCache maps file versions to rendered HTML.
//
// A single mutex covers the whole lookup, render, evict and insert sequence,
// so concurrent requests for an uncached file render it exactly once.
type RenderCache struct {
	entries map[Key]string
	mutex   sync.Mutex

	hits      int64
	misses    int64
	renders   int64
	failures  int64
	evictions int64
}

// New creates an empty render cache.
func New() *RenderCache {
	return &RenderCache{
		entries: make(map[Key]string),
	}
}

// GetOrRender returns the HTML cached for (path, modified), invoking produce
// on a miss. A successful render evicts every other entry for path before the
// new entry is inserted. A failed render leaves the cache untouched.
func (c *RenderCache) GetOrRender(path string, modified time.Time, produce Producer) (string, error) {
	key := NewKey(path, modified)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if html, ok := c.entries[key]; ok {
		atomic.AddInt64(&c.hits, 1)
		return html, nil
	}
	atomic.AddInt64(&c.misses, 1)

	html, err := produce()
	if err != nil {
		atomic.AddInt64(&c.failures, 1)
		return "", err
	}
	atomic.AddInt64(&c.renders, 1)

	c.evictLocked(path)
	c.entries[key] = html

	return html, nil
}

// Evict removes every entry for path and reports how many were removed.
func (c *RenderCache) Evict(path string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.evictLocked(path)
}

func (c *RenderCache) evictLocked(path string) int {
	removed := 0
	for key := range c.entries {
		if key.Path == path {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		atomic.AddInt64(&c.evictions, int64(removed))
	}
	return removed
}

// Len returns the number of cached entries.
func (c *RenderCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entries)
}

// Count returns the number of entries cached for path.
func (c *RenderCache) Count(path string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := 0
	for key := range c.entries {
		if key.Path == path {
			n++
		}
	}
	return n
}

// Clear removes all entries. Counters are kept.
func (c *RenderCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[Key]string)
}

// Stats returns a snapshot of the cache counters.
func (c *RenderCache) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Renders:   atomic.LoadInt64(&c.renders),
		Failures:  atomic.LoadInt64(&c.failures),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}
