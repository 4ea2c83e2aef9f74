package rules

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of compiled rule sets kept when no size is configured.
const DefaultCacheSize = 1024

// CompileFunc compiles a rule set on a cache miss.
type CompileFunc func() (*GroupExpression, error)

// Cache keeps compiled expression trees keyed by rule set id and version
// (the rule set's last-modified time). A lookup with a different version is a
// miss and replaces the stale entry. Concurrent misses for the same key share
// one compilation. Least recently used entries are evicted beyond capacity.
//
// Cached trees are immutable and may be evaluated concurrently.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[int64]*list.Element
	lru      *list.List
	flight   singleflight.Group
}

type cacheEntry struct {
	ruleSetID int64
	version   int64
	expr      *GroupExpression
}

// NewCache creates a cache holding at most capacity compiled trees.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[int64]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the compiled tree for the rule set at version.
func (c *Cache) Get(ruleSetID int64, version time.Time) (*GroupExpression, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[ruleSetID]
	if !ok {
		cacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if entry.version != version.UnixNano() {
		cacheRequests.WithLabelValues("stale").Inc()
		return nil, false
	}
	c.lru.MoveToFront(elem)
	cacheRequests.WithLabelValues("hit").Inc()
	return entry.expr, true
}

// GetOrCompile returns the cached tree or compiles and stores it.
// Compilation errors are not cached.
func (c *Cache) GetOrCompile(ruleSetID int64, version time.Time, compile CompileFunc) (*GroupExpression, error) {
	if expr, ok := c.Get(ruleSetID, version); ok {
		return expr, nil
	}

	key := fmt.Sprintf("%d@%d", ruleSetID, version.UnixNano())
	v, err, _ := c.flight.Do(key, func() (any, error) {
		expr, err := compile()
		if err != nil {
			return nil, err
		}
		c.put(ruleSetID, version, expr)
		return expr, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*GroupExpression), nil
}

func (c *Cache) put(ruleSetID int64, version time.Time, expr *GroupExpression) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{ruleSetID: ruleSetID, version: version.UnixNano(), expr: expr}
	if elem, ok := c.entries[ruleSetID]; ok {
		elem.Value = entry
		c.lru.MoveToFront(elem)
		return
	}
	c.entries[ruleSetID] = c.lru.PushFront(entry)

	for c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).ruleSetID)
	}
}

// Invalidate drops the entry of a rule set.
func (c *Cache) Invalidate(ruleSetID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[ruleSetID]; ok {
		c.lru.Remove(elem)
		delete(c.entries, ruleSetID)
	}
}

// Len returns the number of cached trees.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
