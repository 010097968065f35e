package lsbible

import (
	"time"

	"github.com/apex/log"

	"github.com/adeilh/go-lsbible/cache"
	"github.com/adeilh/go-lsbible/httpx"
)

// Recommended TTLs in seconds.
const (
	// TTLBibleContent suits verses, passages, and chapters (30 days).
	TTLBibleContent = 2_592_000
	// TTLSearchResults suits search results, which may change with API
	// updates (7 days).
	TTLSearchResults = 604_800
	// TTLStatic suits resources that never change (365 days).
	TTLStatic = 31_536_000
)

// Version is reported in the User-Agent of upstream requests.
const Version = "0.1.0"

// DefaultBaseURL is the public LSBible endpoint.
const DefaultBaseURL = "https://read.lsbible.org"

// TTLConfig overrides the TTL, in seconds, per operation. Zero means "use
// CacheOptions.DefaultTTL".
type TTLConfig struct {
	Verse   int `yaml:"verse"`
	Passage int `yaml:"passage"`
	Chapter int `yaml:"chapter"`
	Search  int `yaml:"search"`
}

// CacheOptions configures response caching. A nil Provider disables it.
type CacheOptions struct {
	Provider cache.Provider[[]byte]
	// DefaultTTL in seconds; zero selects TTLBibleContent.
	DefaultTTL int
	TTL        TTLConfig
}

type options struct {
	baseURL string
	timeout time.Duration
	http    *httpx.Client
	cache   CacheOptions
	logger  log.Interface
}

// Option configures a Client.
type Option func(*options)

func defaultOptions() options {
	return options{
		baseURL: DefaultBaseURL,
		timeout: 30 * time.Second,
		logger:  log.Log,
	}
}

// WithBaseURL points the client at another deployment of the API.
func WithBaseURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.baseURL = url
		}
	}
}

// WithTimeout bounds each upstream request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHTTPClient supplies a preconfigured client. WithBaseURL and
// WithTimeout are ignored when it is set.
func WithHTTPClient(c *httpx.Client) Option {
	return func(o *options) { o.http = c }
}

// WithCache enables response caching.
func WithCache(co CacheOptions) Option {
	return func(o *options) { o.cache = co }
}

// WithLogger sets the logger for cache and upstream diagnostics.
func WithLogger(l log.Interface) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type ttls struct {
	verse, passage, chapter, search time.Duration
}

func (co CacheOptions) resolve() (ttls, error) {
	fields := []struct {
		name string
		v    int
	}{
		{"default_ttl", co.DefaultTTL},
		{"ttl.verse", co.TTL.Verse},
		{"ttl.passage", co.TTL.Passage},
		{"ttl.chapter", co.TTL.Chapter},
		{"ttl.search", co.TTL.Search},
	}
	for _, f := range fields {
		if f.v < 0 {
			return ttls{}, invalidArgf("cache %s must not be negative, got %d", f.name, f.v)
		}
	}

	def := co.DefaultTTL
	if def == 0 {
		def = TTLBibleContent
	}
	pick := func(override int) time.Duration {
		if override > 0 {
			return cache.Seconds(override)
		}
		return cache.Seconds(def)
	}
	return ttls{
		verse:   pick(co.TTL.Verse),
		passage: pick(co.TTL.Passage),
		chapter: pick(co.TTL.Chapter),
		search:  pick(co.TTL.Search),
	}, nil
}
