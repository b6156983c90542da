package rate

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"
)

var _ Loader = (*StoreLoader)(nil)

// StoreLoader reads settings straight from the Store on every call.
type StoreLoader struct {
	store Store
}

// NewStoreLoader creates a StoreLoader.
func NewStoreLoader(store Store) *StoreLoader {
	return &StoreLoader{store: store}
}

// Load reads all stored settings and applies defaults.
func (l *StoreLoader) Load(ctx context.Context) (Config, error) {
	settings, err := l.store.ListSettings(ctx)
	if err != nil {
		return Config{}, errors.Wrap(err, "list rate settings")
	}
	return FromSettings(settings), nil
}

var (
	_ Loader      = (*Cache)(nil)
	_ Invalidator = (*Cache)(nil)
)

// Cache is an in-process TTL cache in front of another Loader. Concurrent
// misses share a single underlying load. A stale read within the TTL is
// acceptable: it only affects operations that have not settled yet.
type Cache struct {
	next Loader
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	cfg      Config
	loadedAt time.Time
	valid    bool
}

// NewCache wraps next with a cache that holds a snapshot for ttl.
func NewCache(next Loader, ttl time.Duration) *Cache {
	return &Cache{next: next, ttl: ttl, now: time.Now}
}

// Load returns the cached snapshot or loads a fresh one.
func (c *Cache) Load(ctx context.Context) (Config, error) {
	c.mu.RLock()
	if c.valid && c.now().Sub(c.loadedAt) < c.ttl {
		cfg := c.cfg
		c.mu.RUnlock()
		return cfg, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("rates", func() (any, error) {
		cfg, err := c.next.Load(ctx)
		if err != nil {
			return Config{}, err
		}
		c.mu.Lock()
		c.cfg = cfg
		c.loadedAt = c.now()
		c.valid = true
		c.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return Config{}, err
	}
	return v.(Config), nil
}

// Invalidate forces the next Load to go to the underlying loader.
func (c *Cache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
	return nil
}
