package source

import (
	"context"
	"slices"
	"sync"

	"catalog/internal/domain/item"
)

// Cached memoizes successful loads for the life of the process.
// Failures are not remembered; the next Load tries again.
type Cached struct {
	next Loader

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu    sync.Mutex
	items []item.Item
	ok    bool
}

var _ Loader = (*Cached)(nil)

// NewCached wraps next.
func NewCached(next Loader) *Cached {
	return &Cached{next: next, entries: make(map[string]*cacheEntry)}
}

// Load returns the cached list for src, fetching it on first use.
// Concurrent callers for the same source share one fetch.
// POST: callers receive their own slice; items are shared read-only values
func (c *Cached) Load(ctx context.Context, src string, kind item.Kind) ([]item.Item, error) {
	e := c.entry(string(kind) + "|" + src)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ok {
		return slices.Clone(e.items), nil
	}
	items, err := c.next.Load(ctx, src, kind)
	if err != nil {
		return nil, err
	}
	e.items, e.ok = items, true
	return slices.Clone(items), nil
}

// Forget drops every cached list.
func (c *Cached) Forget() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

func (c *Cached) entry(key string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	return e
}
