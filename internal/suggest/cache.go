package suggest

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"codeguardian/types"
)

// Cache holds generated suggestions keyed by issue identity. Entries keep
// insertion order so listings are stable, and a cached pointer is returned
// unchanged on every hit until Clear drops it. The cache is explicit state
// owned by whoever constructs it; there is no package-level instance.
type Cache struct {
	mu      sync.RWMutex
	entries *orderedmap.OrderedMap[string, *types.Suggestion]
	byID    map[string]*types.Suggestion
}

// NewCache creates an empty suggestion cache
func NewCache() *Cache {
	return &Cache{
		entries: orderedmap.New[string, *types.Suggestion](),
		byID:    make(map[string]*types.Suggestion),
	}
}

// CacheKey derives the cache key for an issue: file name, line number and a
// stable hash of the description.
func CacheKey(issue types.Issue) string {
	return issue.FileName + ":" + strconv.Itoa(issue.LineNumber) + ":" + stableHash(issue.Description)
}

// stableHash is a deterministic non-cryptographic digest of the description.
// Equal descriptions always produce equal keys across runs.
func stableHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// Get returns the cached suggestion for a key
func (c *Cache) Get(key string) (*types.Suggestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries.Get(key)
	return s, ok
}

// PutIfAbsent stores the suggestion under the key unless one is already
// there. The stored suggestion wins: concurrent writers racing on one key
// all end up returning the same pointer.
func (c *Cache) PutIfAbsent(key string, s *types.Suggestion) *types.Suggestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries.Get(key); ok {
		return existing
	}
	c.entries.Set(key, s)
	c.byID[s.ID] = s
	return s
}

// ByID returns the cached suggestion with the given ID
func (c *Cache) ByID(id string) (*types.Suggestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	return s, ok
}

// Len returns the number of cached suggestions
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Snapshot returns the cached suggestions in insertion order
func (c *Cache) Snapshot() []*types.Suggestion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.Suggestion, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Clear drops every cached suggestion. IDs handed out before the clear stop
// resolving; callers holding them get a not-found on the next lookup.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[string, *types.Suggestion]()
	c.byID = make(map[string]*types.Suggestion)
}
