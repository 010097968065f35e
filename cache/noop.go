package cache

import (
	"context"
	"time"
)

// Noop disables caching without changing call sites: every Get misses and
// every Set is discarded. The zero value is ready to use.
type Noop[V any] struct{}

var (
	_ Provider[any] = Noop[any]{}
	_ Clearer       = Noop[any]{}
	_ Sizer         = Noop[any]{}
)

func (Noop[V]) Get(context.Context, string) (V, bool) {
	var zero V
	return zero, false
}

func (Noop[V]) Set(context.Context, string, V, time.Duration) {}

func (Noop[V]) Clear() {}

func (Noop[V]) Size() int { return 0 }
