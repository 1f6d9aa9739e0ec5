package recur

import (
	"sync"
	"time"
)

// Cache reuses evaluators across repeated expansion passes. Entries are keyed
// by parent id and rebuilt automatically when the rule or anchor changes, so
// a stale entry can never serve a mutated parent. The cache is an explicit
// object owned by its caller; tests construct fresh instances with no
// cross-test leakage.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	rule   string
	anchor time.Time
	eval   *Evaluator
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// Get returns a cached evaluator for parentID, building one when the cache
// has no entry or the entry was built from a different rule or anchor.
func (c *Cache) Get(parentID, rule string, anchor time.Time) (*Evaluator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[parentID]; ok && e.rule == rule && e.anchor.Equal(anchor) {
		return e.eval, nil
	}

	eval, err := New(rule, anchor)
	if err != nil {
		delete(c.entries, parentID)
		return nil, err
	}
	c.entries[parentID] = &cacheEntry{rule: rule, anchor: anchor, eval: eval}
	return eval, nil
}

// Invalidate drops the entry for one parent.
func (c *Cache) Invalidate(parentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, parentID)
}

// Reset drops all entries.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Len reports the number of cached evaluators.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
