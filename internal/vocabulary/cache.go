package vocabulary

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded per-process cache of concept lookups. Safe for
// concurrent use.
type Cache struct {
	entries *lru.Cache[string, []string]
}

// NewCache creates a cache holding up to size concepts.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, []string](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Get returns the cached same-as URIs for a concept, if present.
func (c *Cache) Get(uri string) ([]string, bool) {
	return c.entries.Get(uri)
}

// Add stores the same-as URIs for a concept.
func (c *Cache) Add(uri string, sameAs []string) {
	c.entries.Add(uri, sameAs)
}

// Len returns the number of cached concepts.
func (c *Cache) Len() int {
	return c.entries.Len()
}
