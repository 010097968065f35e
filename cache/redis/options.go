package redis

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Options locates the Redis server and sizes the connection pool. Zero
// values take the defaults applied by NewStore.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces keys as "<prefix>:<key>" and bounds what Clear scans.
	Prefix      string
	PoolSize    int
	DialTimeout time.Duration
	// IOTimeout bounds each command write and reply read.
	IOTimeout time.Duration
	// ScanBatch is the COUNT hint for SCAN during Clear.
	ScanBatch int
}

func (o Options) normalize() Options {
	def := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	if o.Addr == "" {
		o.Addr = "127.0.0.1:6379"
	}
	if o.Prefix == "" {
		o.Prefix = "lsbible"
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 8
	}
	if o.ScanBatch <= 0 {
		o.ScanBatch = 100
	}
	if o.DB < 0 {
		o.DB = 0
	}
	def(&o.DialTimeout, 5*time.Second)
	def(&o.IOTimeout, 2*time.Second)
	return o
}

// ParseURL reads a redis://[:password@]host[:port][/db] address.
func ParseURL(raw string) (Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Options{}, fmt.Errorf("redis: parse url: %w", err)
	}
	if u.Scheme != "redis" {
		return Options{}, fmt.Errorf("redis: unsupported scheme %q", u.Scheme)
	}

	opts := Options{Addr: u.Host}
	if u.Port() == "" && u.Hostname() != "" {
		opts.Addr = u.Hostname() + ":6379"
	}
	if pw, ok := u.User.Password(); ok {
		opts.Password = pw
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil || n < 0 {
			return Options{}, fmt.Errorf("redis: invalid database %q", db)
		}
		opts.DB = n
	}
	return opts, nil
}
