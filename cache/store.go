package cache

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"
)

// StoreProvider adapts a Store into a best-effort Provider. Every Store error
// becomes a miss on Get or a dropped write on Set; faults other than
// ErrNotFound are logged.
type StoreProvider[V any] struct {
	store Store
	codec Codec[V]
	opts  options
}

var (
	_ Provider[any] = (*StoreProvider[any])(nil)
	_ Purger        = (*StoreProvider[any])(nil)
)

// FromStore wraps store, encoding values with codec. A nil codec falls back
// to JSONCodec.
func FromStore[V any](store Store, codec Codec[V], opts ...Option) *StoreProvider[V] {
	if codec == nil {
		codec = JSONCodec[V]{}
	}
	return &StoreProvider[V]{
		store: store,
		codec: codec,
		opts:  applyOptions("store", opts),
	}
}

// FromByteStore wraps store for raw []byte values.
func FromByteStore(store Store, opts ...Option) *StoreProvider[[]byte] {
	return FromStore[[]byte](store, BytesCodec{}, opts...)
}

func (p *StoreProvider[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if p.store == nil || ctxErr(ctx) != nil {
		p.opts.metrics.miss(p.opts.name)
		return zero, false
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	payload, err := p.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.fault("get", key, err)
		}
		p.opts.metrics.miss(p.opts.name)
		return zero, false
	}

	value, err := p.codec.Unmarshal(payload)
	if err != nil {
		p.fault("decode", key, err)
		p.opts.metrics.miss(p.opts.name)
		return zero, false
	}

	p.opts.metrics.hit(p.opts.name)
	return value, true
}

func (p *StoreProvider[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if p.store == nil || ctxErr(ctx) != nil {
		return
	}

	payload, err := p.codec.Marshal(value)
	if err != nil {
		p.fault("encode", key, err)
		return
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	if err := p.store.Set(ctx, key, payload, normalizeTTL(ttl)); err != nil {
		p.fault("set", key, err)
		return
	}
	p.opts.metrics.set(p.opts.name)
}

// Purge clears the underlying store when it supports clearing. Unlike Get
// and Set it reports the backend error.
func (p *StoreProvider[V]) Purge(ctx context.Context) error {
	cs, ok := p.store.(ClearableStore)
	if !ok {
		return nil
	}
	ctx, cancel := p.bound(ctx)
	defer cancel()
	return cs.Clear(ctx)
}

// Store exposes the wrapped backend.
func (p *StoreProvider[V]) Store() Store { return p.store }

func (p *StoreProvider[V]) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.opts.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.opts.timeout)
}

func (p *StoreProvider[V]) fault(op, key string, err error) {
	p.opts.metrics.fault(p.opts.name, op)
	p.opts.logger.WithFields(log.Fields{
		"provider": p.opts.name,
		"op":       op,
		"key":      key,
	}).WithError(err).Warn("cache: backend fault ignored")
}
