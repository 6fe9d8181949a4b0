package iapkit

import "sync"

// Catalog is the grow-only set of product identifiers of interest.
// Registration is independent of ownership: loads and product queries
// operate only over registered identifiers, but ownership may be learned
// for identifiers registered later.
type Catalog struct {
	mu  sync.RWMutex
	ids map[ProductID]struct{}
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{ids: make(map[ProductID]struct{})}
}

// Add registers a single product identifier. Adding an identifier that is
// already registered is a no-op.
func (c *Catalog) Add(id ProductID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[id] = struct{}{}
}

// AddAll registers multiple product identifiers as a set union.
func (c *Catalog) AddAll(ids ...ProductID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
}

// Contains reports whether id is registered.
func (c *Catalog) Contains(id ProductID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

// Len returns the number of registered identifiers.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// IDs returns a snapshot of the registered identifiers in unspecified order.
func (c *Catalog) IDs() []ProductID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ProductID, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	return out
}
