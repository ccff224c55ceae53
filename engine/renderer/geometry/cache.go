package geometry

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
)

type cacheEntry struct {
	geometry Geometry
	refs     int
}

// Cache shares geometries by ID across the materials drawing them. GPU buffers are released when
// the last reference goes away.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewCache returns an empty geometry cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// GetOrCreate returns the cached geometry for id, building it with create on a miss. Each call
// takes one reference that Release gives back.
//
// Parameters:
//   - id: the geometry identifier
//   - create: builds the geometry on a miss
//
// Returns:
//   - Geometry: the shared geometry
//   - error: the error returned by create
func (c *Cache) GetOrCreate(id string, create func() (Geometry, error)) (Geometry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		e.refs++
		return e.geometry, nil
	}
	g, err := create()
	if err != nil {
		return nil, err
	}
	c.entries[id] = &cacheEntry{geometry: g, refs: 1}
	return g, nil
}

// Release drops one reference to id and frees the geometry's GPU buffers on the last one.
func (c *Cache) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		e.geometry.Release()
		delete(c.entries, id)
	}
}

// Len returns the number of cached geometries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// LoseContext drops every cached geometry's GPU buffers.
func (c *Cache) LoseContext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.geometry.LoseContext()
	}
}

// RestoreContext re-uploads every cached geometry.
func (c *Cache) RestoreContext(b backend.Backend) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if err := e.geometry.Create(b); err != nil {
			return err
		}
	}
	return nil
}
