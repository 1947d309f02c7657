// Package cache adapts the teacher repo's size-aware LRU eviction scheme to
// cache commit metadata instead of blob bytes: pkg/logwalk and
// pkg/commitfilter both re-derive the same commit summary/author/body
// fields on every walk, and a small LRU in front of libgit2's commit lookup
// avoids repeating that work across overlapping queries (e.g. the UI
// re-running a search over history it already paged through once).
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
)

// DefaultCommitInfoCacheSize is the default maximum number of cached
// commit entries.
const DefaultCommitInfoCacheSize = 10_000

// bytesPerKB is the number of bytes in a kilobyte, used to normalize the
// eviction cost calculation.
const bytesPerKB = 1024.0

// CommitInfo is the cached subset of a commit's metadata: enough to render
// a log entry without re-opening the commit object.
type CommitInfo struct {
	Hash      gitlib.Hash
	Summary   string
	Body      string
	Author    gitlib.Signature
	Committer gitlib.Signature
}

// approxSize estimates the memory cost of a CommitInfo for size-aware
// eviction; it does not need to be exact, only proportionate.
func (c CommitInfo) approxSize() int64 {
	const fixedOverhead = 128 // two signatures plus the hash array.

	return int64(len(c.Summary)+len(c.Body)) + fixedOverhead
}

// CommitInfoCache provides a cross-query LRU cache for commit metadata. It
// tracks an entry-count budget and evicts least-recently-used entries
// weighted by size when the limit is exceeded, the way LRUBlobCache did for
// blob bytes.
type CommitInfoCache struct {
	mu          sync.RWMutex
	entries     map[gitlib.Hash]*lruEntry
	head        *lruEntry // Most recently used.
	tail        *lruEntry // Least recently used.
	maxEntries  int
	currentSize int64

	hits   atomic.Int64
	misses atomic.Int64
}

// lruEntry is a doubly-linked list node for LRU tracking.
type lruEntry struct {
	hash        gitlib.Hash
	info        CommitInfo
	size        int64
	accessCount int64
	prev        *lruEntry
	next        *lruEntry
}

// evictionCost calculates the cost of evicting this entry. Higher cost
// means less desirable to evict: we want to evict large, rarely-accessed
// entries first.
func (e *lruEntry) evictionCost() float64 {
	if e.size == 0 {
		return float64(e.accessCount)
	}

	sizeKB := float64(e.size) / bytesPerKB
	if sizeKB < 1 {
		sizeKB = 1
	}

	return float64(e.accessCount) / sizeKB
}

// NewCommitInfoCache creates a CommitInfoCache holding at most maxEntries
// commits.
func NewCommitInfoCache(maxEntries int) *CommitInfoCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCommitInfoCacheSize
	}

	return &CommitInfoCache{
		entries:    make(map[gitlib.Hash]*lruEntry),
		maxEntries: maxEntries,
	}
}

// Get retrieves a commit's cached metadata. The second return value is
// false on a cache miss.
func (c *CommitInfoCache) Get(hash gitlib.Hash) (CommitInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[hash]
	if !ok {
		c.misses.Add(1)

		return CommitInfo{}, false
	}

	c.hits.Add(1)

	entry.accessCount++
	c.moveToFront(entry)

	return entry.info, true
}

// Put adds a commit's metadata to the cache, evicting entries if needed.
func (c *CommitInfoCache) Put(info CommitInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[info.Hash]; ok {
		entry.info = info
		entry.accessCount++
		c.moveToFront(entry)

		return
	}

	for len(c.entries) >= c.maxEntries && c.tail != nil {
		c.evictLowestCost()
	}

	entry := &lruEntry{
		hash:        info.Hash,
		info:        info,
		size:        info.approxSize(),
		accessCount: 1,
	}

	c.entries[info.Hash] = entry
	c.currentSize += entry.size
	c.addToFront(entry)
}

// Stats returns cache performance metrics.
func (c *CommitInfoCache) Stats() LRUStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return LRUStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Entries:     len(c.entries),
		CurrentSize: c.currentSize,
		MaxEntries:  c.maxEntries,
	}
}

// LRUStats holds cache performance metrics.
type LRUStats struct {
	Hits        int64
	Misses      int64
	Entries     int
	CurrentSize int64
	MaxEntries  int
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s LRUStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}

	return float64(s.Hits) / float64(total)
}

// Clear removes all entries from the cache.
func (c *CommitInfoCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[gitlib.Hash]*lruEntry)
	c.head = nil
	c.tail = nil
	c.currentSize = 0
}

func (c *CommitInfoCache) moveToFront(entry *lruEntry) {
	if entry == c.head {
		return
	}

	c.removeFromList(entry)
	c.addToFront(entry)
}

func (c *CommitInfoCache) addToFront(entry *lruEntry) {
	entry.prev = nil
	entry.next = c.head

	if c.head != nil {
		c.head.prev = entry
	}

	c.head = entry

	if c.tail == nil {
		c.tail = entry
	}
}

func (c *CommitInfoCache) removeFromList(entry *lruEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
}

// evictionSampleSize is the number of LRU candidates sampled for size-aware
// eviction, trading exactness for an O(k) scan instead of O(n).
const evictionSampleSize = 5

// evictLowestCost removes the entry with the lowest eviction cost sampled
// from the LRU tail region.
func (c *CommitInfoCache) evictLowestCost() {
	if c.tail == nil {
		return
	}

	var candidates [evictionSampleSize]*lruEntry

	count := 0
	entry := c.tail

	for entry != nil && count < evictionSampleSize {
		candidates[count] = entry
		count++
		entry = entry.prev
	}

	if count == 0 {
		return
	}

	victim := candidates[0]
	lowestCost := victim.evictionCost()

	for i := 1; i < count; i++ {
		cost := candidates[i].evictionCost()
		if cost < lowestCost {
			lowestCost = cost
			victim = candidates[i]
		}
	}

	c.removeFromList(victim)
	delete(c.entries, victim.hash)
	c.currentSize -= victim.size
}
