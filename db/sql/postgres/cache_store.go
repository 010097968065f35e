package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/adeilh/go-lsbible/cache"
)

// ErrSchemaMissing is returned when cache_entries does not exist yet.
var ErrSchemaMissing = errors.New("postgres: cache_entries table missing, run Migrate")

// CacheStore persists cache entries in the cache_entries table.
type CacheStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ cache.ClearableStore = (*CacheStore)(nil)

// StoreOption customizes a CacheStore.
type StoreOption func(*CacheStore)

// WithClock replaces the time source used to stamp and check expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *CacheStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCacheStore wraps an existing *sql.DB connection.
func NewCacheStore(db *sql.DB, opts ...StoreOption) *CacheStore {
	s := &CacheStore{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns the stored bytes. A row whose expiry has passed is deleted and
// reported as cache.ErrNotFound.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value, expires_at FROM cache_entries WHERE key = $1`
	var (
		value     []byte
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}

	now := s.now()
	if !now.Before(expiresAt) {
		// Guarded on expires_at so a concurrent refresh survives.
		const del = `DELETE FROM cache_entries WHERE key = $1 AND expires_at <= $2`
		if _, err := s.db.ExecContext(ctx, del, key, now); err != nil {
			return nil, translateError(err)
		}
		return nil, cache.ErrNotFound
	}
	return value, nil
}

func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const query = `INSERT INTO cache_entries (key, value, expires_at, created_at)
                   VALUES ($1, $2, $3, $4)
                   ON CONFLICT (key) DO UPDATE
                   SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`
	if ttl < 0 {
		ttl = 0
	}
	now := s.now()
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, query, key, value, now.Add(ttl), now)
	return translateError(err)
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	if err != nil {
		return translateError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// Clear truncates the table.
func (s *CacheStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE cache_entries`)
	return translateError(err)
}

// DeleteExpired removes every row whose expiry has passed and reports how
// many were removed.
func (s *CacheStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: rows affected: %w", err)
	}
	return n, nil
}

// Count returns the number of rows, expired or not.
func (s *CacheStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, translateError(err)
	}
	return n, nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P01":
			return ErrSchemaMissing
		case "57014":
			return fmt.Errorf("postgres: %w: %s", context.Canceled, pqErr.Message)
		}
	}
	return fmt.Errorf("postgres: %w", err)
}
