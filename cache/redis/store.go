package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adeilh/go-lsbible/cache"
)

// Store is a cache.ClearableStore speaking RESP to a Redis server. Expiry is
// left to the server through SET ... PX.
type Store struct {
	opts Options
	pool *pool
}

var _ cache.ClearableStore = (*Store)(nil)

func NewStore(opts Options) *Store {
	opts = opts.normalize()
	return &Store{
		opts: opts,
		pool: &pool{opts: opts, dial: dialTCP, idle: make(chan *conn, opts.PoolSize)},
	}
}

// WithDial replaces how new connections are opened. Tests use it to talk to
// an in-process server.
func (s *Store) WithDial(fn dialFunc) {
	if fn != nil {
		s.pool.dial = fn
	}
}

func (s *Store) key(k string) string { return s.opts.Prefix + ":" + k }

// px renders ttl in whole milliseconds, at least 1 so the key still expires.
func px(ttl time.Duration) string {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}

// run hands fn a pooled connection bounded by ctx.
func (s *Store) run(ctx context.Context, fn func(*conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := s.pool.get(ctx)
	if err != nil {
		return fmt.Errorf("redis: connect %s: %w", s.opts.Addr, err)
	}
	stop := c.watch(ctx)
	err = fn(c)
	stop()
	s.pool.put(c, !broken(err))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.run(ctx, func(c *conn) error {
		reply, err := c.do("GET", s.key(key))
		if err != nil {
			return err
		}
		if reply == nil {
			return cache.ErrNotFound
		}
		b, ok := reply.([]byte)
		if !ok {
			return fmt.Errorf("redis: GET replied %T", reply)
		}
		out = b
		return nil
	})
	return out, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.run(ctx, func(c *conn) error {
		reply, err := c.do("SET", s.key(key), string(value), "PX", px(ttl))
		if err != nil {
			return err
		}
		if !okReply(reply) {
			return fmt.Errorf("redis: SET replied %v", reply)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.run(ctx, func(c *conn) error {
		reply, err := c.do("DEL", s.key(key))
		if err != nil {
			return err
		}
		switch n := reply.(type) {
		case int64:
			if n == 0 {
				return cache.ErrNotFound
			}
			return nil
		default:
			return fmt.Errorf("redis: DEL replied %v", reply)
		}
	})
}

// Clear removes every key under the prefix, walking the keyspace with SCAN.
// Keys written while it runs may survive.
func (s *Store) Clear(ctx context.Context) error {
	match := s.opts.Prefix + ":*"
	batch := strconv.Itoa(s.opts.ScanBatch)
	return s.run(ctx, func(c *conn) error {
		for cursor := "0"; ; {
			if err := ctx.Err(); err != nil {
				return err
			}
			reply, err := c.do("SCAN", cursor, "MATCH", match, "COUNT", batch)
			if err != nil {
				return err
			}
			next, keys, err := scanPage(reply)
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if _, err := c.do(append([]string{"UNLINK"}, keys...)...); err != nil {
					var se ServerError
					if !errors.As(err, &se) {
						return err
					}
					// Servers before 4.0 have no UNLINK.
					if _, err := c.do(append([]string{"DEL"}, keys...)...); err != nil {
						return err
					}
				}
			}
			if next == "0" {
				return nil
			}
			cursor = next
		}
	})
}

// Ping checks the server answers with the configured credentials.
func (s *Store) Ping(ctx context.Context) error {
	return s.run(ctx, func(c *conn) error {
		reply, err := c.do("PING")
		if err != nil {
			return err
		}
		if r, _ := reply.(string); !strings.EqualFold(r, "PONG") {
			return fmt.Errorf("redis: PING replied %v", reply)
		}
		return nil
	})
}

// Close closes idle connections. Connections in use close on release once
// the pool is full.
func (s *Store) Close() error {
	s.pool.drain()
	return nil
}

func scanPage(reply any) (string, []string, error) {
	page, ok := reply.([]any)
	if !ok || len(page) != 2 {
		return "", nil, fmt.Errorf("redis: SCAN replied %v", reply)
	}
	cursor, ok := page[0].([]byte)
	if !ok {
		return "", nil, fmt.Errorf("redis: SCAN cursor %T", page[0])
	}
	items, _ := page[1].([]any)
	keys := make([]string, 0, len(items))
	for _, it := range items {
		if k, ok := it.([]byte); ok {
			keys = append(keys, string(k))
		}
	}
	return string(cursor), keys, nil
}

// Pipeline holds one connection and sends queued commands in a single
// write, then reads the replies in order. It is single-use.
type Pipeline struct {
	s      *Store
	c      *conn
	queued [][]string

	mu   sync.Mutex
	done bool
}

func (s *Store) Pipeline(ctx context.Context) (*Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := s.pool.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis: connect %s: %w", s.opts.Addr, err)
	}
	return &Pipeline{s: s, c: c}, nil
}

// Queue adds a raw command. Keys are not prefixed.
func (p *Pipeline) Queue(args ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.done {
		p.queued = append(p.queued, append([]string(nil), args...))
	}
}

// QueueSet adds a prefixed SET with the same expiry rules as Store.Set.
func (p *Pipeline) QueueSet(key string, value []byte, ttl time.Duration) {
	p.Queue("SET", p.s.key(key), string(value), "PX", px(ttl))
}

// Exec sends the queued commands and returns one reply per command. A
// server error reply is returned in place as a ServerError value.
func (p *Pipeline) Exec(ctx context.Context) ([]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil, errors.New("redis: pipeline already executed or closed")
	}
	p.done = true

	if err := ctx.Err(); err != nil {
		p.s.pool.put(p.c, true)
		return nil, err
	}
	p.c.bound(ctx)
	stop := p.c.watch(ctx)
	replies, err := p.exec()
	stop()
	p.s.pool.put(p.c, err == nil)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return replies, err
}

func (p *Pipeline) exec() ([]any, error) {
	if len(p.queued) == 0 {
		return nil, nil
	}
	if err := p.c.write(p.queued...); err != nil {
		return nil, err
	}
	replies := make([]any, len(p.queued))
	for i := range replies {
		reply, err := p.c.read()
		var se ServerError
		switch {
		case errors.As(err, &se):
			replies[i] = se
		case err != nil:
			return nil, err
		default:
			replies[i] = reply
		}
	}
	return replies, nil
}

// Close releases the connection without sending anything.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.done {
		p.done = true
		p.s.pool.put(p.c, true)
	}
}
