// Package postgres stores cache entries in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var ErrMissingDSN = errors.New("postgres: DSN is required")

type connConfig struct {
	dsn         string
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	pingTimeout time.Duration
}

// Option tunes Connect.
type Option func(*connConfig)

func WithDSN(dsn string) Option {
	return func(c *connConfig) { c.dsn = dsn }
}

// WithPool sizes the connection pool. Non-positive values keep the defaults.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(c *connConfig) {
		if maxOpen > 0 {
			c.maxOpen = maxOpen
		}
		if maxIdle > 0 {
			c.maxIdle = maxIdle
		}
		if maxLifetime > 0 {
			c.maxLifetime = maxLifetime
		}
	}
}

func WithPingTimeout(d time.Duration) Option {
	return func(c *connConfig) {
		if d > 0 {
			c.pingTimeout = d
		}
	}
}

// Connect opens a pool and pings the server before returning it.
func Connect(ctx context.Context, opts ...Option) (*sql.DB, error) {
	cfg := connConfig{
		maxOpen:     10,
		maxIdle:     5,
		maxLifetime: 30 * time.Minute,
		pingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open("postgres", cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpen)
	db.SetMaxIdleConns(cfg.maxIdle)
	db.SetConnMaxLifetime(cfg.maxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}
