package bounded

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/jellydator/ttlcache/v3"

	"github.com/adeilh/go-lsbible/cache"
)

// Options controls the capacity and sweep behaviour of a Cache.
type Options struct {
	// Capacity caps the number of resident entries; the least recently used
	// entry is dropped to make room. Zero means unbounded.
	Capacity uint64
	// Logger receives capacity evictions at DEBUG. Defaults to log.Log.
	Logger log.Interface
}

// Cache is an in-process provider with a size cap and an optional background
// sweep. Unlike cache.Memory, expired entries can be reclaimed without being
// read: call Start to run the sweeper.
type Cache[V any] struct {
	c      *ttlcache.Cache[string, V]
	logger log.Interface

	mu      sync.Mutex
	running bool
}

var (
	_ cache.Provider[any] = (*Cache[any])(nil)
	_ cache.Clearer       = (*Cache[any])(nil)
	_ cache.Sizer         = (*Cache[any])(nil)
)

// New builds a bounded cache. Entries are never refreshed on read.
func New[V any](opts Options) *Cache[V] {
	ttlOpts := []ttlcache.Option[string, V]{
		ttlcache.WithDisableTouchOnHit[string, V](),
	}
	if opts.Capacity > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithCapacity[string, V](opts.Capacity))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Log
	}

	c := &Cache[V]{c: ttlcache.New[string, V](ttlOpts...), logger: logger}
	c.c.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, V]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			c.logger.WithField("key", item.Key()).Debug("cache: evicted entry to stay within capacity")
		}
	})
	return c
}

func (c *Cache[V]) Get(_ context.Context, key string) (V, bool) {
	var zero V
	item := c.c.Get(key)
	if item == nil || item.IsExpired() {
		return zero, false
	}
	return item.Value(), true
}

// Set stores value for ttl. A ttl of zero or less removes the key, since the
// entry would already be expired on its next read.
func (c *Cache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		c.c.Delete(key)
		return
	}
	c.c.Set(key, value, ttl)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() { c.c.DeleteAll() }

// Size returns the number of entries that have not expired yet.
func (c *Cache[V]) Size() int { return c.c.Len() }

// Start runs the expiry sweeper in the background until Stop is called.
func (c *Cache[V]) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	go c.c.Start()
}

// Stop halts the sweeper started by Start.
func (c *Cache[V]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.c.Stop()
}

// Sweep removes every expired entry immediately.
func (c *Cache[V]) Sweep() { c.c.DeleteExpired() }
