package lsbible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"github.com/adeilh/go-lsbible/cache"
	"github.com/adeilh/go-lsbible/httpx"
)

const (
	passagePath = "/api/passage"
	searchPath  = "/api/search"
)

// Client fetches scripture from the LSBible API, serving repeated requests
// from a cache. It is safe for concurrent use.
type Client struct {
	http   *httpx.Client
	cache  cache.Provider[[]byte]
	ttl    ttls
	logger log.Interface
	group  singleflight.Group
}

// NewClient builds a Client. Invalid cache TTLs are reported here rather
// than on first use.
func NewClient(opts ...Option) (*Client, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	ttl, err := cfg.cache.resolve()
	if err != nil {
		return nil, err
	}

	hc := cfg.http
	if hc == nil {
		hc = httpx.NewClient(
			httpx.WithBaseURL(cfg.baseURL),
			httpx.WithClientTimeout(cfg.timeout),
			httpx.WithUserAgent("go-lsbible/"+Version),
		)
	}

	var provider cache.Provider[[]byte] = cache.Noop[[]byte]{}
	if cfg.cache.Provider != nil {
		provider = cfg.cache.Provider
	}

	return &Client{
		http:   hc,
		cache:  provider,
		ttl:    ttl,
		logger: cfg.logger,
	}, nil
}

// Cache returns the provider the client reads and writes through.
func (c *Client) Cache() cache.Provider[[]byte] { return c.cache }

// GetVerse fetches a single verse, e.g. ("John", 3, 16).
func (c *Client) GetVerse(ctx context.Context, book string, chapter, verse int) (*Passage, error) {
	book = collapse(book)
	if book == "" {
		return nil, invalidArgf("book is required")
	}
	if chapter < 1 || verse < 1 {
		return nil, invalidArgf("chapter and verse must be positive, got %d:%d", chapter, verse)
	}
	ref := fmt.Sprintf("%s %d:%d", book, chapter, verse)
	return c.passage(ctx, verseKey(book, chapter, verse), c.ttl.verse, ref)
}

// GetChapter fetches every verse of a chapter.
func (c *Client) GetChapter(ctx context.Context, book string, chapter int) (*Passage, error) {
	book = collapse(book)
	if book == "" {
		return nil, invalidArgf("book is required")
	}
	if chapter < 1 {
		return nil, invalidArgf("chapter must be positive, got %d", chapter)
	}
	ref := fmt.Sprintf("%s %d", book, chapter)
	return c.passage(ctx, chapterKey(book, chapter), c.ttl.chapter, ref)
}

// GetPassage fetches a free-form reference such as "John 3:16-18".
func (c *Client) GetPassage(ctx context.Context, ref string) (*Passage, error) {
	ref = collapse(ref)
	if ref == "" {
		return nil, invalidArgf("reference is required")
	}
	return c.passage(ctx, passageKey(ref), c.ttl.passage, ref)
}

// Search runs a full-text query.
func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	query = collapse(query)
	if query == "" {
		return nil, invalidArgf("search query is required")
	}
	var out SearchResponse
	if err := c.fetch(ctx, searchKey(query), c.ttl.search, searchPath, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCache empties the provider when it supports clearing.
func (c *Client) ClearCache(ctx context.Context) error {
	return cache.Clear(ctx, c.cache)
}

func (c *Client) passage(ctx context.Context, key string, ttl time.Duration, ref string) (*Passage, error) {
	var res SearchResponse
	if err := c.fetch(ctx, key, ttl, passagePath, ref, &res); err != nil {
		return nil, err
	}
	if len(res.Passages) == 0 {
		return nil, &APIError{StatusCode: httpx.StatusNotFound, Body: "no passage found for " + ref}
	}
	p := res.Passages[0]
	return &p, nil
}

// fetch decodes the response for key into out, reading through the cache.
// Concurrent misses for the same key share one upstream request. Upstream
// bodies that do not decode are rejected before they reach the cache.
func (c *Client) fetch(ctx context.Context, key string, ttl time.Duration, path, q string, out *SearchResponse) error {
	logger := c.logger.WithField("key", key)

	if raw, ok := c.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(raw, out); err == nil {
			logger.Debug("lsbible: cache hit")
			return nil
		}
		logger.Warn("lsbible: cached entry undecodable, refetching")
		*out = SearchResponse{}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		raw, err := c.http.GetBytes(ctx, path, httpx.WithQuery(map[string]string{"q": q}))
		if err != nil {
			return nil, upstreamError(err)
		}
		var res SearchResponse
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, &APIError{StatusCode: httpx.StatusBadGateway, Body: "undecodable response: " + err.Error()}
		}
		c.cache.Set(ctx, key, raw, ttl)
		return raw, nil
	})
	if err != nil {
		return err
	}
	logger.WithField("shared", shared).Debug("lsbible: fetched from upstream")

	if err := json.Unmarshal(v.([]byte), out); err != nil {
		return fmt.Errorf("lsbible: decode %s: %w", key, err)
	}
	return nil
}

func upstreamError(err error) error {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return &APIError{StatusCode: se.StatusCode, Body: strings.TrimSpace(string(se.Body))}
	}
	return fmt.Errorf("lsbible: request failed: %w", err)
}
