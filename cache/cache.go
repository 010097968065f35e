package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Provider is the best-effort cache contract handed to consumers. Get reports
// a miss for absent, expired, or unreadable entries; Set drops the write when
// the backend fails. Neither surfaces an error.
type Provider[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
}

// Store is the raw byte store implemented by I/O backends. Unlike Provider it
// reports faults; misses are ErrNotFound. Wrap it with FromStore before
// handing it to consumers.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ClearableStore is a Store that can drop every entry it owns.
type ClearableStore interface {
	Store
	Clear(ctx context.Context) error
}

// Clearer is implemented by in-process providers with a synchronous clear.
type Clearer interface {
	Clear()
}

// Purger is implemented by providers whose clear performs I/O.
type Purger interface {
	Purge(ctx context.Context) error
}

// Sizer reports how many entries a provider currently holds.
type Sizer interface {
	Size() int
}

// Clear empties p using whichever clear variant it supports. Providers with
// neither are left untouched.
func Clear(ctx context.Context, p any) error {
	switch c := p.(type) {
	case Clearer:
		c.Clear()
		return nil
	case Purger:
		return c.Purge(ctx)
	default:
		return nil
	}
}

// Seconds converts a whole-second TTL, the unit used in configuration, into a
// time.Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
