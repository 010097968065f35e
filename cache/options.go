package cache

import (
	"time"

	"github.com/apex/log"
)

type options struct {
	name    string
	now     func() time.Time
	logger  log.Interface
	metrics *Metrics
	timeout time.Duration
}

// Option customizes Memory and StoreProvider instances.
type Option func(*options)

func defaultOptions(name string) options {
	return options{
		name:   name,
		now:    time.Now,
		logger: log.Log,
	}
}

func applyOptions(name string, opts []Option) options {
	cfg := defaultOptions(name)
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithClock replaces the time source used to compute and check expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used for dropped writes and backend faults.
func WithLogger(l log.Interface) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records hits, misses, writes, evictions, and faults.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithName labels log lines and metrics for this provider.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithTimeout bounds every backend call made by a StoreProvider. A call that
// runs past it is treated as a fault.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}
