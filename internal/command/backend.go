package command

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"github.com/adeilh/go-lsbible/cache"
	"github.com/adeilh/go-lsbible/cache/bounded"
	"github.com/adeilh/go-lsbible/cache/file"
	"github.com/adeilh/go-lsbible/cache/redis"
	"github.com/adeilh/go-lsbible/cache/s3"
	"github.com/adeilh/go-lsbible/db/sql/postgres"
	"github.com/adeilh/go-lsbible/internal/config"
)

// Backend is an opened cache provider plus whatever must be released when
// the command finishes.
type Backend struct {
	Name     string
	Provider cache.Provider[[]byte]
	closers  []func() error
}

// Close releases connections and stops sweepers, in reverse open order.
func (b *Backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// OpenBackend builds the provider named by cfg.Cache.Backend. Providers
// report to m when it is non-nil.
func OpenBackend(ctx context.Context, cfg config.Config, m *cache.Metrics) (*Backend, error) {
	name := cfg.Cache.Backend
	b := &Backend{Name: name}
	logger := log.WithField("provider", name)
	opts := []cache.Option{cache.WithName(name), cache.WithLogger(logger), cache.WithMetrics(m)}

	switch name {
	case config.BackendNone:
		b.Provider = cache.Noop[[]byte]{}

	case config.BackendMemory:
		b.Provider = cache.NewMemory[[]byte](opts...)

	case config.BackendBounded:
		bc := bounded.New[[]byte](bounded.Options{Capacity: cfg.Cache.Capacity, Logger: logger})
		bc.Start()
		b.closers = append(b.closers, func() error { bc.Stop(); return nil })
		b.Provider = bc

	case config.BackendFile:
		store, err := file.New(file.Options{Dir: cfg.Cache.Dir})
		if err != nil {
			return nil, err
		}
		b.Provider = cache.FromByteStore(store, opts...)

	case config.BackendRedis:
		ro := redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		}
		if cfg.Cache.Redis.URL != "" {
			var err error
			if ro, err = redis.ParseURL(cfg.Cache.Redis.URL); err != nil {
				return nil, err
			}
		}
		ro.Prefix = cfg.Cache.Redis.Prefix
		store := redis.NewStore(ro)
		b.closers = append(b.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unreachable, lookups go upstream until it recovers")
		}
		b.Provider = cache.FromByteStore(store, opts...)

	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, postgres.WithDSN(cfg.Cache.Postgres.DSN))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if _, err := postgres.Migrate(ctx, db); err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Provider = cache.FromByteStore(postgres.NewCacheStore(db), opts...)

	case config.BackendS3:
		store, err := s3.Open(ctx,
			s3.Options{Bucket: cfg.Cache.S3.Bucket, Prefix: cfg.Cache.S3.Prefix},
			s3.WithProfile(cfg.Cache.S3.Profile),
			s3.WithRegion(cfg.Cache.S3.Region),
			s3.WithEndpoint(cfg.Cache.S3.Endpoint),
		)
		if err != nil {
			return nil, err
		}
		b.Provider = cache.FromByteStore(store, opts...)

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, name)
	}

	log.Debugf("cache backend: %s", name)
	return b, nil
}

// Stats describes a provider's current contents.
type Stats struct {
	Backend string `json:"backend"`
	// Entries is nil when the backend cannot count cheaply.
	Entries *int64 `json:"entries,omitempty"`
}

// CollectStats counts entries where the provider or its store supports it.
func CollectStats(ctx context.Context, b *Backend) (Stats, error) {
	st := Stats{Backend: b.Name}
	n, ok, err := countEntries(ctx, b.Provider)
	if err != nil {
		return st, err
	}
	if ok {
		st.Entries = &n
	}
	return st, nil
}

func countEntries(ctx context.Context, p any) (int64, bool, error) {
	if s, ok := p.(cache.Sizer); ok {
		return int64(s.Size()), true, nil
	}
	sp, ok := p.(interface{ Store() cache.Store })
	if !ok {
		return 0, false, nil
	}
	switch s := sp.Store().(type) {
	case interface{ Len() int }:
		return int64(s.Len()), true, nil
	case interface {
		Len(context.Context) (int, error)
	}:
		n, err := s.Len(ctx)
		return int64(n), err == nil, err
	case interface {
		Count(context.Context) (int64, error)
	}:
		n, err := s.Count(ctx)
		return n, err == nil, err
	}
	return 0, false, nil
}
