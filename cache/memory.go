package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Provider. Expired entries stay resident until the
// next Get for their key removes them; there is no background sweep.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
	opts    options
}

var (
	_ Provider[any] = (*Memory[any])(nil)
	_ Clearer       = (*Memory[any])(nil)
	_ Sizer         = (*Memory[any])(nil)
)

// NewMemory builds an empty in-memory provider.
func NewMemory[V any](opts ...Option) *Memory[V] {
	return &Memory[V]{
		entries: make(map[string]Entry[V]),
		opts:    applyOptions("memory", opts),
	}
}

// Get returns the live value stored under key. An expired entry is deleted
// and reported as a miss.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	var zero V

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		m.opts.metrics.miss(m.opts.name)
		return zero, false
	}

	if entry.Expired(m.opts.now()) {
		m.mu.Lock()
		// A concurrent Set may have replaced the entry since the read lock.
		if current, ok := m.entries[key]; ok && current.Expired(m.opts.now()) {
			delete(m.entries, key)
			m.opts.metrics.evict(m.opts.name)
			m.opts.logger.WithField("key", key).Debug("cache: evicted expired entry")
		}
		m.mu.Unlock()
		m.opts.metrics.miss(m.opts.name)
		return zero, false
	}

	m.opts.metrics.hit(m.opts.name)
	return entry.Value, true
}

// Set stores value under key until now+ttl, replacing any previous entry.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	entry := newEntry(value, m.opts.now(), ttl)

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()

	m.opts.metrics.set(m.opts.name)
}

// Clear removes every entry.
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]Entry[V])
	m.mu.Unlock()
}

// Size returns the number of resident entries, including expired ones that
// have not been read since they expired.
func (m *Memory[V]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
